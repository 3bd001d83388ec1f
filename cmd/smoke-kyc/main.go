package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"tasdeeq.app/internal/kyc"
)

// smoke-kyc drives one submit → review → reject → resubmit → approve cycle
// against a running API started with auth.dev_tokens enabled.
func main() {
	base := os.Getenv("TASDEEQ_SMOKE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c := &client{base: base, http: &http.Client{Timeout: 5 * time.Second}}
	userID := "smoke-" + uuid.NewString()[:8]
	userTok := c.token(ctx, userID, "user")
	reviewerTok := c.token(ctx, "smoke-reviewer", "kyc_reviewer")

	docs := map[string]any{"documents": map[string]any{
		"passport_url": userID + "/passport.jpg",
		"selfie_url":   userID + "/selfie.jpg",
	}}

	var created kyc.Case
	c.call(ctx, http.MethodPost, "/v1/cases", userTok, docs, http.StatusCreated, &created)
	if created.Status != kyc.StatusPending {
		log.Fatalf("expected pending case, got %s", created.Status)
	}

	c.call(ctx, http.MethodPost, "/v1/cases/"+created.ID+"/review", reviewerTok, nil, http.StatusOK, nil)
	c.call(ctx, http.MethodPost, "/v1/cases/"+created.ID+"/decision", reviewerTok,
		map[string]string{"decision": "rejected", "rejection_reason": "smoke test"}, http.StatusOK, nil)
	c.expectAccount(ctx, userID, userTok, kyc.AccountSuspended)

	var again kyc.Case
	c.call(ctx, http.MethodPost, "/v1/cases", userTok, docs, http.StatusCreated, &again)
	if again.ID != created.ID {
		log.Fatalf("resubmission created a new case: %s != %s", again.ID, created.ID)
	}
	c.call(ctx, http.MethodPost, "/v1/cases/"+created.ID+"/decision", reviewerTok,
		map[string]string{"decision": "approved"}, http.StatusOK, nil)
	c.expectAccount(ctx, userID, userTok, kyc.AccountActive)

	var trail struct {
		Items []kyc.AuditEntry `json:"items"`
	}
	c.call(ctx, http.MethodGet, "/v1/cases/"+created.ID+"/audit", reviewerTok, nil, http.StatusOK, &trail)
	if len(trail.Items) != 5 {
		log.Fatalf("expected 5 audit entries, got %d", len(trail.Items))
	}

	fmt.Printf("✅ kyc smoke test passed: case=%s user=%s\n", created.ID, userID)
}

type client struct {
	base string
	http *http.Client
}

func (c *client) token(ctx context.Context, user, role string) string {
	var resp struct {
		Token string `json:"token"`
	}
	c.call(ctx, http.MethodPost, "/v1/auth/token", "",
		map[string]any{"user": user, "roles": []string{role}}, http.StatusOK, &resp)
	return resp.Token
}

func (c *client) expectAccount(ctx context.Context, userID, tok string, want kyc.AccountStatus) {
	var resp struct {
		Status kyc.AccountStatus `json:"status"`
	}
	c.call(ctx, http.MethodGet, "/v1/accounts/"+userID, tok, nil, http.StatusOK, &resp)
	if resp.Status != want {
		log.Fatalf("account %s: expected %s, got %s", userID, want, resp.Status)
	}
}

func (c *client) call(ctx context.Context, method, path, tok string, body any, want int, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("encode %s: %v", path, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		log.Fatalf("build %s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		var e map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&e)
		log.Fatalf("%s %s: expected %d, got %d: %v", method, path, want, resp.StatusCode, e)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", path, err)
		}
	}
}
