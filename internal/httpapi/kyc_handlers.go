package httpapi

import (
	"net/http"
	"strings"

	"tasdeeq.app/internal/audit"
	"tasdeeq.app/internal/auth"
	"tasdeeq.app/internal/kyc"
)

type documentsPayload struct {
	NationalID *struct {
		FrontURL string `json:"front_url" validate:"required,max=2048"`
		BackURL  string `json:"back_url" validate:"required,max=2048"`
	} `json:"national_id"`
	PassportURL string `json:"passport_url" validate:"omitempty,max=2048"`
	SelfieURL   string `json:"selfie_url" validate:"required,max=2048"`
}

type submitRequest struct {
	UserID    string           `json:"user_id" validate:"omitempty,max=128"`
	Documents documentsPayload `json:"documents"`
}

func (d documentsPayload) toDocuments() kyc.Documents {
	docs := kyc.Documents{PassportURL: d.PassportURL, SelfieURL: d.SelfieURL}
	if d.NationalID != nil {
		docs.NationalID = &kyc.TwoSided{FrontURL: d.NationalID.FrontURL, BackURL: d.NationalID.BackURL}
	}
	return docs
}

type decisionRequest struct {
	Decision        string `json:"decision" validate:"required,oneof=approved rejected"`
	Notes           string `json:"notes" validate:"max=2000"`
	RejectionReason string `json:"rejection_reason" validate:"max=2000"`
}

// caller returns the authenticated user id. RequirePermission guarantees it is set.
func caller(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// ownOrAll reports whether the caller may see records of userID.
func ownOrAll(r *http.Request, userID string) bool {
	return userID == caller(r) || auth.Can(r.Context(), auth.PermReadAll)
}

func (a *API) submitCase(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeKYCError(w, r, badRequest(err))
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = caller(r)
	}
	if userID != caller(r) && !auth.Can(r.Context(), auth.PermSubmitAny) {
		writeError(w, r, http.StatusForbidden, "cannot submit on behalf of another user")
		return
	}

	c, err := a.kyc.Submit(r.Context(), userID, req.Documents.toDocuments())
	if err != nil {
		writeKYCError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "kyc.case.submitted", map[string]any{
		"case_id": c.ID,
		"subject": c.UserID,
	})
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) listCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter := kyc.CaseFilter{
		UserID: strings.TrimSpace(q.Get("user_id")),
		Search: strings.TrimSpace(q.Get("q")),
		Limit:  limit,
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st, ok := kyc.ParseStatus(raw)
		if !ok {
			writeErrorBody(w, r, http.StatusBadRequest, map[string]any{"error": "unknown status", "field": "status"})
			return
		}
		filter.Status = st
	}

	cases, err := a.kyc.ListCases(r.Context(), filter)
	if err != nil {
		writeKYCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": cases})
}

func (a *API) currentCase(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = caller(r)
	}
	if !ownOrAll(r, userID) {
		writeError(w, r, http.StatusForbidden, "cannot read another user's case")
		return
	}
	c, found, err := a.kyc.GetCurrentCase(r.Context(), userID)
	if err != nil {
		writeKYCError(w, r, err)
		return
	}
	resp := map[string]any{"found": found}
	if found {
		resp["case"] = c
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) getCase(w http.ResponseWriter, r *http.Request) {
	c, err := a.kyc.GetCase(r.Context(), r.PathValue("id"))
	if err != nil {
		writeKYCError(w, r, err)
		return
	}
	// Foreign cases look missing so ids cannot be enumerated.
	if !ownOrAll(r, c.UserID) {
		writeError(w, r, http.StatusNotFound, "case not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) markUnderReview(w http.ResponseWriter, r *http.Request) {
	c, err := a.kyc.MarkUnderReview(r.Context(), r.PathValue("id"), caller(r))
	if err != nil {
		writeKYCError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "kyc.case.review_started", map[string]any{"case_id": c.ID})
	writeJSON(w, http.StatusOK, c)
}

func (a *API) decideCase(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeKYCError(w, r, badRequest(err))
		return
	}
	c, err := a.kyc.Decide(r.Context(), kyc.DecideRequest{
		CaseID:          r.PathValue("id"),
		ReviewerID:      caller(r),
		Decision:        kyc.Status(req.Decision),
		Notes:           req.Notes,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		writeKYCError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "kyc.case.decided", map[string]any{
		"case_id":  c.ID,
		"decision": string(c.Status),
	})
	writeJSON(w, http.StatusOK, c)
}

func (a *API) auditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := a.kyc.AuditTrail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeKYCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := a.kyc.Stats(r.Context())
	if err != nil {
		writeKYCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.kyc.Notifications(r.Context(), kyc.NotificationFilter{
		UserID:     caller(r),
		UnreadOnly: parseBool(q.Get("unread")),
		Limit:      limit,
	})
	if err != nil {
		writeKYCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := a.kyc.MarkNotificationRead(r.Context(), caller(r), r.PathValue("id")); err != nil {
		writeKYCError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) accountStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if !ownOrAll(r, userID) {
		writeError(w, r, http.StatusForbidden, "cannot read another user's account")
		return
	}
	st, err := a.kyc.AccountStatus(r.Context(), userID)
	if err != nil {
		writeKYCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "status": st})
}
