package kyc

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasdeeq.app/internal/auth"
	"tasdeeq.app/internal/ids"
	"tasdeeq.app/internal/obs"
)

// Policy holds the lifecycle switches that the reference behaviour left open.
type Policy struct {
	// AllowRedecision lets an administrator decide an approved or rejected
	// case again without a resubmission in between.
	AllowRedecision bool
	// NotifyOnReview sends the user a notification when review starts.
	NotifyOnReview bool
}

// DefaultPolicy refuses re-decisions and notifies on review.
func DefaultPolicy() Policy {
	return Policy{NotifyOnReview: true}
}

// Manager owns the verification case lifecycle.
type Manager struct {
	store     Store
	policy    Policy
	now       func() time.Time
	logger    *zap.Logger
	observers []namedObserver
}

type namedObserver struct {
	name string
	obs  Observer
}

// Option configures a Manager.
type Option func(*Manager)

func WithPolicy(p Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver registers an observer notified after every committed operation.
func WithObserver(name string, o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observers = append(m.observers, namedObserver{name: name, obs: o})
		}
	}
}

// NewManager constructs a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		policy: DefaultPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = obs.Logger().Named("kyc")
	}
	return m
}

// Policy returns the active lifecycle policy.
func (m *Manager) Policy() Policy { return m.policy }

// DecideRequest carries an administrator's terminal decision.
type DecideRequest struct {
	CaseID          string
	ReviewerID      string
	Decision        Status
	Notes           string
	RejectionReason string
}

// Submit creates a pending case for userID or resets the user's rejected (or
// still pending) case with new documents. The acting identity is read from
// ctx so an administrator can submit on the user's behalf.
func (m *Manager) Submit(ctx context.Context, userID string, docs Documents) (Case, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Case{}, &ValidationError{Field: "user_id", Reason: "is required"}
	}
	docs, err := normalizeDocuments(docs)
	if err != nil {
		return Case{}, err
	}
	actor := userID
	if id, ok := auth.UserIDFromContext(ctx); ok {
		actor = id
	}

	now := m.now().UTC()
	var (
		result Case
		evt    Event
	)
	err = m.store.InTx(ctx, func(tx Store) error {
		current, err := tx.LatestCaseForUser(ctx, userID)
		switch {
		case errors.Is(err, ErrNotFound):
			result = Case{
				ID:          ids.NewAt(now),
				UserID:      userID,
				Documents:   docs,
				Status:      StatusPending,
				SubmittedAt: now,
				UpdatedAt:   now,
			}
			if err := tx.CreateCase(ctx, result); err != nil {
				return wrapStore("create case", err)
			}
			evt = Event{Action: ActionSubmissionCreated}
		case err != nil:
			return wrapStore("load current case", err)
		default:
			if current.Status != StatusRejected && current.Status != StatusPending {
				return &InvalidTransitionError{CaseID: current.ID, From: current.Status, To: StatusPending}
			}
			evt = Event{Action: ActionSubmissionUpdated, OldStatus: current.Status}
			result = current
			result.Documents = docs
			result.Status = StatusPending
			result.ReviewerID = ""
			result.ReviewerNotes = ""
			result.RejectionReason = ""
			result.DecidedAt = nil
			result.SubmittedAt = now
			result.UpdatedAt = now
			if err := tx.UpdateCase(ctx, result); err != nil {
				return wrapStore("update case", err)
			}
		}
		evt.ID, err = m.record(ctx, tx, result, actor, evt.Action, evt.OldStatus, "", now)
		if err != nil {
			return err
		}
		if err := m.notify(ctx, tx, result, NotificationSubmissionReceived, now); err != nil {
			return err
		}
		evt.Notified = true
		return nil
	})
	if err != nil {
		return Case{}, err
	}
	m.emit(ctx, evt, result, actor, now)
	return result, nil
}

// MarkUnderReview moves a pending case to under_review.
func (m *Manager) MarkUnderReview(ctx context.Context, caseID, reviewerID string) (Case, error) {
	caseID = strings.TrimSpace(caseID)
	reviewerID = strings.TrimSpace(reviewerID)
	if caseID == "" {
		return Case{}, &ValidationError{Field: "case_id", Reason: "is required"}
	}
	if reviewerID == "" {
		return Case{}, &ValidationError{Field: "reviewer_id", Reason: "is required"}
	}

	now := m.now().UTC()
	var (
		result Case
		evt    = Event{Action: ActionMarkedUnderReview}
	)
	err := m.store.InTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, caseID)
		if err != nil {
			return wrapStore("load case", err)
		}
		if c.Status != StatusPending {
			return &InvalidTransitionError{CaseID: c.ID, From: c.Status, To: StatusUnderReview}
		}
		evt.OldStatus = c.Status
		c.Status = StatusUnderReview
		c.ReviewerID = reviewerID
		c.UpdatedAt = now
		if err := tx.UpdateCase(ctx, c); err != nil {
			return wrapStore("update case", err)
		}
		result = c
		evt.ID, err = m.record(ctx, tx, c, reviewerID, evt.Action, evt.OldStatus, "", now)
		if err != nil {
			return err
		}
		if m.policy.NotifyOnReview {
			if err := m.notify(ctx, tx, c, NotificationUnderReview, now); err != nil {
				return err
			}
			evt.Notified = true
		}
		return nil
	})
	if err != nil {
		return Case{}, err
	}
	m.emit(ctx, evt, result, reviewerID, now)
	return result, nil
}

// Decide applies a terminal decision and flips the linked account status.
// Writes happen in order: case, account, audit entry, notification.
func (m *Manager) Decide(ctx context.Context, req DecideRequest) (Case, error) {
	req.CaseID = strings.TrimSpace(req.CaseID)
	req.ReviewerID = strings.TrimSpace(req.ReviewerID)
	req.Notes = strings.TrimSpace(req.Notes)
	if req.CaseID == "" {
		return Case{}, &ValidationError{Field: "case_id", Reason: "is required"}
	}
	if req.ReviewerID == "" {
		return Case{}, &ValidationError{Field: "reviewer_id", Reason: "is required"}
	}
	var (
		account AccountStatus
		action  string
		notice  NotificationType
	)
	switch req.Decision {
	case StatusApproved:
		account, action, notice = AccountActive, ActionApproved, NotificationApproved
	case StatusRejected:
		if strings.TrimSpace(req.RejectionReason) == "" {
			return Case{}, &ValidationError{Field: "rejection_reason", Reason: "is required when rejecting"}
		}
		account, action, notice = AccountSuspended, ActionRejected, NotificationRejected
	default:
		return Case{}, &ValidationError{Field: "decision", Reason: "must be approved or rejected"}
	}

	now := m.now().UTC()
	var (
		result Case
		evt    = Event{Action: action}
	)
	err := m.store.InTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, req.CaseID)
		if err != nil {
			return wrapStore("load case", err)
		}
		if c.Status.Terminal() && !m.policy.AllowRedecision {
			return &InvalidTransitionError{CaseID: c.ID, From: c.Status, To: req.Decision}
		}
		evt.OldStatus = c.Status
		c.Status = req.Decision
		c.ReviewerID = req.ReviewerID
		c.ReviewerNotes = req.Notes
		c.RejectionReason = ""
		if req.Decision == StatusRejected {
			c.RejectionReason = req.RejectionReason
		}
		c.UpdatedAt = now
		decidedAt := now
		c.DecidedAt = &decidedAt
		if err := tx.UpdateCase(ctx, c); err != nil {
			return wrapStore("update case", err)
		}
		result = c

		if err := tx.SetAccountStatus(ctx, c.UserID, account, now); err != nil {
			return wrapStore("set account status", err)
		}

		note := req.Notes
		if note == "" {
			note = c.RejectionReason
		}
		evt.ID, err = m.record(ctx, tx, c, req.ReviewerID, action, evt.OldStatus, note, now)
		if err != nil {
			return err
		}
		if err := m.notify(ctx, tx, c, notice, now); err != nil {
			return err
		}
		evt.Notified = true
		return nil
	})
	if err != nil {
		return Case{}, err
	}
	m.emit(ctx, evt, result, req.ReviewerID, now)
	return result, nil
}

// GetCurrentCase returns the user's most recently submitted case. found is
// false when the user never submitted.
func (m *Manager) GetCurrentCase(ctx context.Context, userID string) (c Case, found bool, err error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Case{}, false, &ValidationError{Field: "user_id", Reason: "is required"}
	}
	c, err = m.store.LatestCaseForUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Case{}, false, nil
	}
	if err != nil {
		return Case{}, false, wrapStore("load current case", err)
	}
	return c, true, nil
}

func (m *Manager) GetCase(ctx context.Context, caseID string) (Case, error) {
	c, err := m.store.GetCase(ctx, strings.TrimSpace(caseID))
	if err != nil {
		return Case{}, wrapStore("load case", err)
	}
	return c, nil
}

// ListCases returns cases for the review dashboard, newest submission first.
func (m *Manager) ListCases(ctx context.Context, filter CaseFilter) ([]Case, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status"}
	}
	filter.Limit = clampLimit(filter.Limit)
	out, err := m.store.ListCases(ctx, filter)
	return out, wrapStore("list cases", err)
}

// AuditTrail returns the audit entries of a case in occurrence order.
func (m *Manager) AuditTrail(ctx context.Context, caseID string) ([]AuditEntry, error) {
	if _, err := m.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	out, err := m.store.ListAudit(ctx, strings.TrimSpace(caseID))
	return out, wrapStore("list audit", err)
}

func (m *Manager) Notifications(ctx context.Context, filter NotificationFilter) ([]Notification, error) {
	if strings.TrimSpace(filter.UserID) == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "is required"}
	}
	filter.Limit = clampLimit(filter.Limit)
	out, err := m.store.ListNotifications(ctx, filter)
	return out, wrapStore("list notifications", err)
}

// MarkNotificationRead flips the read flag of one of userID's notifications.
func (m *Manager) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	userID = strings.TrimSpace(userID)
	notificationID = strings.TrimSpace(notificationID)
	if userID == "" || notificationID == "" {
		return &ValidationError{Field: "notification_id", Reason: "is required"}
	}
	now := m.now().UTC()
	if err := m.store.MarkNotificationRead(ctx, userID, notificationID, now); err != nil {
		return wrapStore("mark notification read", err)
	}
	m.emit(ctx, Event{Action: "notification_read"}, Case{UserID: userID}, userID, now)
	return nil
}

// AccountStatus returns the linked account status of userID.
func (m *Manager) AccountStatus(ctx context.Context, userID string) (AccountStatus, error) {
	st, err := m.store.AccountStatus(ctx, strings.TrimSpace(userID))
	if err != nil {
		return "", wrapStore("load account status", err)
	}
	return st, nil
}

// Stats counts cases per status.
func (m *Manager) Stats(ctx context.Context) (map[Status]int, error) {
	counts, err := m.store.CountByStatus(ctx)
	if err != nil {
		return nil, wrapStore("count cases", err)
	}
	return counts, nil
}

func (m *Manager) record(ctx context.Context, tx Store, c Case, actor, action string, old Status, note string, now time.Time) (string, error) {
	entry := AuditEntry{
		ID:         ids.NewAt(now),
		CaseID:     c.ID,
		ActorID:    actor,
		Action:     action,
		OldStatus:  old,
		NewStatus:  c.Status,
		Note:       note,
		OccurredAt: now,
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return "", wrapStore("append audit", err)
	}
	return entry.ID, nil
}

func (m *Manager) notify(ctx context.Context, tx Store, c Case, typ NotificationType, now time.Time) error {
	msg := MessageFor(typ, c.RejectionReason)
	n := Notification{
		ID:        ids.NewAt(now),
		UserID:    c.UserID,
		CaseID:    c.ID,
		Type:      typ,
		Title:     msg.Title,
		Body:      msg.Body,
		CreatedAt: now,
	}
	if err := tx.CreateNotification(ctx, n); err != nil {
		return wrapStore("create notification", err)
	}
	return nil
}

func (m *Manager) emit(ctx context.Context, evt Event, c Case, actor string, now time.Time) {
	evt.CaseID = c.ID
	evt.UserID = c.UserID
	evt.ActorID = actor
	evt.NewStatus = c.Status
	evt.OccurredAt = now
	if evt.ID == "" {
		evt.ID = ids.NewAt(now)
	}
	if c.ID != "" {
		obs.RecordTransition(evt.Action, string(c.Status))
	}
	for _, o := range m.observers {
		if err := o.obs.Observe(ctx, evt); err != nil {
			obs.RecordObserverFailure(o.name)
			m.logger.Warn("observer failed",
				zap.String("observer", o.name),
				zap.String("case_id", evt.CaseID),
				zap.String("action", evt.Action),
				zap.Error(err))
		}
	}
}

func normalizeDocuments(d Documents) (Documents, error) {
	d.PassportURL = strings.TrimSpace(d.PassportURL)
	d.SelfieURL = strings.TrimSpace(d.SelfieURL)
	if d.NationalID != nil {
		id := TwoSided{
			FrontURL: strings.TrimSpace(d.NationalID.FrontURL),
			BackURL:  strings.TrimSpace(d.NationalID.BackURL),
		}
		switch {
		case id.FrontURL == "" && id.BackURL == "":
			d.NationalID = nil
		case id.FrontURL == "":
			return Documents{}, &ValidationError{Field: "national_id.front_url", Reason: "both sides of the national id are required"}
		case id.BackURL == "":
			return Documents{}, &ValidationError{Field: "national_id.back_url", Reason: "both sides of the national id are required"}
		default:
			d.NationalID = &id
		}
	}
	if d.NationalID == nil && d.PassportURL == "" {
		return Documents{}, &ValidationError{Field: "documents", Reason: "a national id pair or a passport is required"}
	}
	if d.NationalID != nil && d.PassportURL != "" {
		return Documents{}, &ValidationError{Field: "documents", Reason: "provide either a national id or a passport, not both"}
	}
	if d.SelfieURL == "" {
		return Documents{}, &ValidationError{Field: "selfie_url", Reason: "is required"}
	}

	refs := map[string]string{"selfie_url": d.SelfieURL}
	if d.NationalID != nil {
		refs["national_id.front_url"] = d.NationalID.FrontURL
		refs["national_id.back_url"] = d.NationalID.BackURL
	} else {
		refs["passport_url"] = d.PassportURL
	}
	for field, ref := range refs {
		if !validReference(ref) {
			return Documents{}, &ValidationError{Field: field, Reason: "must be an http(s) URL or an object key"}
		}
	}
	return d, nil
}

// validReference accepts absolute http(s) URLs and relative object keys such
// as "u1/selfie.jpg".
func validReference(ref string) bool {
	if len(ref) > 2048 || strings.ContainsAny(ref, " \t\r\n|") {
		return false
	}
	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	}
	if strings.HasPrefix(ref, "/") {
		return false
	}
	for _, seg := range strings.Split(ref, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}
