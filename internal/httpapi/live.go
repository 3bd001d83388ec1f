package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tasdeeq.app/internal/auth"
	"tasdeeq.app/internal/kyc"
	"tasdeeq.app/internal/stream"
)

// parseStreamQuery reads a live view query from the URL.
func parseStreamQuery(r *http.Request) (stream.Query, error) {
	v := r.URL.Query()
	limit, err := parsePositiveInt(v.Get("limit"), 50, 1, 500)
	if err != nil {
		return stream.Query{}, err
	}
	q := stream.Query{
		Collection: stream.Collection(strings.TrimSpace(v.Get("collection"))),
		UserID:     strings.TrimSpace(v.Get("user_id")),
		Status:     kyc.Status(strings.TrimSpace(v.Get("status"))),
		UnreadOnly: parseBool(v.Get("unread")),
		Limit:      limit,
	}
	return q, nil
}

var errLiveForbidden = errors.New("live view not permitted")

// authorizeQuery scopes per-user views to the caller unless the caller can
// read every case. Dashboard views need the read_all permission.
func authorizeQuery(r *http.Request, q stream.Query) (stream.Query, error) {
	readAll := auth.Can(r.Context(), auth.PermReadAll)
	switch q.Collection {
	case stream.CollectionCases, stream.CollectionStats:
		if !readAll {
			return q, errLiveForbidden
		}
	case stream.CollectionCurrentCase, stream.CollectionNotifications:
		if !auth.Can(r.Context(), auth.PermReadOwn) {
			return q, errLiveForbidden
		}
		if q.UserID == "" {
			q.UserID = caller(r)
		}
		if q.UserID != caller(r) && !readAll {
			return q, errLiveForbidden
		}
	}
	return q, q.Validate()
}

// openLiveQuery handles the shared preamble of both live transports. It
// writes the error response itself and returns ok=false on failure.
func (a *API) openLiveQuery(w http.ResponseWriter, r *http.Request) (stream.Query, bool) {
	if a.hub == nil {
		writeError(w, r, http.StatusServiceUnavailable, "live views are disabled")
		return stream.Query{}, false
	}
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return stream.Query{}, false
	}
	q, err := parseStreamQuery(r)
	if err == nil {
		q, err = authorizeQuery(r, q)
	}
	switch {
	case errors.Is(err, errLiveForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
		return q, false
	case err != nil:
		writeError(w, r, http.StatusBadRequest, err.Error())
		return q, false
	}
	return q, true
}
