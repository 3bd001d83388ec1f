package kyc

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tasdeeq.app/internal/auth"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func nationalIDDocs(user string) Documents {
	return Documents{
		NationalID: &TwoSided{FrontURL: user + "/f.jpg", BackURL: user + "/b.jpg"},
		SelfieURL:  user + "/s.jpg",
	}
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *MemoryStore, *recorder) {
	t.Helper()
	store := NewMemoryStore()
	rec := &recorder{}
	base := []Option{WithClock(newClock().Now), WithObserver("recorder", rec)}
	return NewManager(store, append(base, opts...)...), store, rec
}

func snapshotCounts(t *testing.T, s *MemoryStore, caseID, userID string) (audits, notes int) {
	t.Helper()
	ctx := context.Background()
	a, err := s.ListAudit(ctx, caseID)
	require.NoError(t, err)
	n, err := s.ListNotifications(ctx, NotificationFilter{UserID: userID})
	require.NoError(t, err)
	return len(a), len(n)
}

func TestSubmitCreatesPendingCase(t *testing.T) {
	m, store, rec := newTestManager(t)
	ctx := context.Background()

	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)
	require.Equal(t, StatusPending, c.Status)
	require.Equal(t, "u1", c.UserID)
	require.NotEmpty(t, c.ID)

	notes, err := store.ListNotifications(ctx, NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, NotificationSubmissionReceived, notes[0].Type)
	require.Equal(t, "تم استلام طلب التحقق", notes[0].Title)

	entries, err := store.ListAudit(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ActionSubmissionCreated, entries[0].Action)
	require.Equal(t, StatusPending, entries[0].NewStatus)
	require.Equal(t, "u1", entries[0].ActorID)

	require.Len(t, rec.events, 1)
	require.Equal(t, ActionSubmissionCreated, rec.events[0].Action)
	require.True(t, rec.events[0].Notified)
}

func TestSubmitValidation(t *testing.T) {
	cases := map[string]Documents{
		"empty":              {},
		"selfie only":        {SelfieURL: "u1/s.jpg"},
		"missing selfie":     {PassportURL: "u1/p.jpg"},
		"half national id":   {NationalID: &TwoSided{FrontURL: "u1/f.jpg"}, SelfieURL: "u1/s.jpg"},
		"id and passport":    {NationalID: &TwoSided{FrontURL: "u1/f.jpg", BackURL: "u1/b.jpg"}, PassportURL: "u1/p.jpg", SelfieURL: "u1/s.jpg"},
		"legacy pair string": {PassportURL: "u1/f.jpg|u1/b.jpg", SelfieURL: "u1/s.jpg"},
		"absolute path":      {PassportURL: "/etc/passwd", SelfieURL: "u1/s.jpg"},
		"ftp url":            {PassportURL: "ftp://host/p.jpg", SelfieURL: "u1/s.jpg"},
	}
	for name, docs := range cases {
		t.Run(name, func(t *testing.T) {
			m, store, rec := newTestManager(t)
			_, err := m.Submit(context.Background(), "u1", docs)
			require.ErrorIs(t, err, ErrValidation)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))

			_, found, err := m.GetCurrentCase(context.Background(), "u1")
			require.NoError(t, err)
			require.False(t, found)
			notes, _ := store.ListNotifications(context.Background(), NotificationFilter{UserID: "u1"})
			require.Empty(t, notes)
			require.Empty(t, rec.events)
		})
	}
}

func TestSubmitAcceptsPassportAndURLs(t *testing.T) {
	m, _, _ := newTestManager(t)
	c, err := m.Submit(context.Background(), "u2", Documents{
		PassportURL: "https://cdn.example.com/u2/passport.jpg",
		SelfieURL:   "u2/selfie.jpg",
	})
	require.NoError(t, err)
	require.Nil(t, c.Documents.NationalID)
	require.Equal(t, "https://cdn.example.com/u2/passport.jpg", c.Documents.PassportURL)
}

func TestSubmitByAdministratorRecordsActor(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := auth.ContextWithPrincipal(context.Background(), auth.NewPrincipal("admin@x.com", "admin@x.com", []string{auth.RoleAdmin}))

	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)
	entries, err := store.ListAudit(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, "admin@x.com", entries[0].ActorID)
	require.Equal(t, "u1", c.UserID)
}

func TestMarkUnderReview(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)

	reviewed, err := m.MarkUnderReview(ctx, c.ID, "admin@x.com")
	require.NoError(t, err)
	require.Equal(t, StatusUnderReview, reviewed.Status)
	require.Equal(t, "admin@x.com", reviewed.ReviewerID)

	entries, err := store.ListAudit(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, StatusPending, entries[1].OldStatus)
	require.Equal(t, StatusUnderReview, entries[1].NewStatus)

	_, err = m.MarkUnderReview(ctx, c.ID, "admin@x.com")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.MarkUnderReview(ctx, "missing", "admin@x.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkUnderReviewRespectsNotifyPolicy(t *testing.T) {
	m, store, _ := newTestManager(t, WithPolicy(Policy{NotifyOnReview: false}))
	ctx := context.Background()
	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)

	_, err = m.MarkUnderReview(ctx, c.ID, "admin@x.com")
	require.NoError(t, err)
	audits, notes := snapshotCounts(t, store, c.ID, "u1")
	require.Equal(t, 2, audits)
	require.Equal(t, 1, notes)
}

func TestMarkUnderReviewRejectsTerminal(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)
	_, err = m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "admin@x.com", Decision: StatusApproved})
	require.NoError(t, err)

	_, err = m.MarkUnderReview(ctx, c.ID, "admin@x.com")
	var te *InvalidTransitionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, StatusApproved, te.From)
	require.Equal(t, StatusUnderReview, te.To)
}

func TestDecideApproved(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)

	decided, err := m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "admin@x.com", Decision: StatusApproved, Notes: "looks good"})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedAt)
	require.Equal(t, "looks good", decided.ReviewerNotes)

	st, err := m.AccountStatus(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, AccountActive, st)

	entries, err := store.ListAudit(ctx, c.ID)
	require.NoError(t, err)
	approvals := 0
	for _, e := range entries {
		if e.NewStatus == StatusApproved {
			approvals++
		}
	}
	require.Equal(t, 1, approvals)

	notes, err := store.ListNotifications(ctx, NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, NotificationApproved, notes[0].Type)
	require.Equal(t, MessageFor(NotificationApproved, "").Title, notes[0].Title)
}

func TestDecideRejectedRequiresReason(t *testing.T) {
	m, store, rec := newTestManager(t)
	ctx := context.Background()
	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)
	audits, notes := snapshotCounts(t, store, c.ID, "u1")
	events := len(rec.events)

	_, err = m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "admin@x.com", Decision: StatusRejected})
	require.ErrorIs(t, err, ErrValidation)

	after, err := m.GetCase(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c, after)
	_, err = m.AccountStatus(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)
	a2, n2 := snapshotCounts(t, store, c.ID, "u1")
	require.Equal(t, audits, a2)
	require.Equal(t, notes, n2)
	require.Len(t, rec.events, events)
}

func TestDecideRejectedSuspendsAndQuotesReason(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)

	decided, err := m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "admin@x.com", Decision: StatusRejected, RejectionReason: "R"})
	require.NoError(t, err)
	require.Equal(t, "R", decided.RejectionReason)

	st, err := m.AccountStatus(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, AccountSuspended, st)

	notes, err := store.ListNotifications(ctx, NotificationFilter{UserID: "u1", Limit: 1})
	require.NoError(t, err)
	require.Equal(t, NotificationRejected, notes[0].Type)
	require.Contains(t, notes[0].Body, "R")

	entries, err := store.ListAudit(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "R", entries[len(entries)-1].Note)
}

func TestDecideKeepsRejectionReasonVerbatim(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)

	_, err = m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusRejected, RejectionReason: "   "})
	require.ErrorIs(t, err, ErrValidation)

	reason := "  صورة الهوية غير واضحة \n"
	decided, err := m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusRejected, RejectionReason: reason})
	require.NoError(t, err)
	require.Equal(t, reason, decided.RejectionReason)

	notes, err := store.ListNotifications(ctx, NotificationFilter{UserID: "u1", Limit: 1})
	require.NoError(t, err)
	require.Equal(t, MessageFor(NotificationRejected, reason).Body, notes[0].Body)
}

func TestDecideUnknownDecision(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Decide(context.Background(), DecideRequest{CaseID: "c", ReviewerID: "a", Decision: StatusUnderReview})
	require.ErrorIs(t, err, ErrValidation)

	_, err = m.Decide(context.Background(), DecideRequest{CaseID: "missing", ReviewerID: "a", Decision: StatusApproved})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedecisionPolicy(t *testing.T) {
	ctx := context.Background()

	strict, _, _ := newTestManager(t)
	c, err := strict.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)
	_, err = strict.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusRejected, RejectionReason: "blurry"})
	require.NoError(t, err)
	_, err = strict.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusApproved})
	require.ErrorIs(t, err, ErrInvalidTransition)

	lenient, _, _ := newTestManager(t, WithPolicy(Policy{AllowRedecision: true}))
	c, err = lenient.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)
	_, err = lenient.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusRejected, RejectionReason: "blurry"})
	require.NoError(t, err)
	overridden, err := lenient.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusApproved})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, overridden.Status)
	require.Empty(t, overridden.RejectionReason)
	st, err := lenient.AccountStatus(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, AccountActive, st)
}

func TestResubmitRejectedKeepsCaseID(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)
	_, err = m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusRejected, RejectionReason: "Image not legible"})
	require.NoError(t, err)

	fresh := Documents{
		NationalID: &TwoSided{FrontURL: "u1/f2.jpg", BackURL: "u1/b2.jpg"},
		SelfieURL:  "u1/s2.jpg",
	}
	again, err := m.Submit(ctx, "u1", fresh)
	require.NoError(t, err)
	require.Equal(t, c.ID, again.ID)
	require.Equal(t, StatusPending, again.Status)
	require.Equal(t, fresh, again.Documents)
	require.Empty(t, again.RejectionReason)
	require.Nil(t, again.DecidedAt)

	all, err := m.ListCases(ctx, CaseFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 1)

	entries, err := store.ListAudit(ctx, c.ID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	require.Equal(t, ActionSubmissionUpdated, last.Action)
	require.Equal(t, StatusRejected, last.OldStatus)
	require.Equal(t, StatusPending, last.NewStatus)
}

func TestResubmitRefusedWhileInReviewOrApproved(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)
	_, err = m.MarkUnderReview(ctx, c.ID, "a")
	require.NoError(t, err)

	_, err = m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusApproved})
	require.NoError(t, err)
	_, err = m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGetCurrentCasePicksLatestSubmission(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)
	require.NoError(t, store.CreateCase(ctx, Case{ID: "b-old", UserID: "u1", Status: StatusRejected, SubmittedAt: early, UpdatedAt: early}))
	require.NoError(t, store.CreateCase(ctx, Case{ID: "a-new", UserID: "u1", Status: StatusPending, SubmittedAt: late, UpdatedAt: late}))
	m := NewManager(store)

	c, found, err := m.GetCurrentCase(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a-new", c.ID)

	_, found, err = m.GetCurrentCase(ctx, "nobody")
	require.NoError(t, err)
	require.False(t, found)
}

func TestStatusAlwaysValid(t *testing.T) {
	m, store, _ := newTestManager(t, WithPolicy(Policy{AllowRedecision: true}))
	ctx := context.Background()
	c, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)

	steps := []func() error{
		func() error { _, err := m.MarkUnderReview(ctx, c.ID, "a"); return err },
		func() error { _, err := m.MarkUnderReview(ctx, c.ID, "a"); return err },
		func() error {
			_, err := m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusRejected})
			return err
		},
		func() error {
			_, err := m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusRejected, RejectionReason: "x"})
			return err
		},
		func() error { _, err := m.Submit(ctx, "u1", Documents{}); return err },
		func() error { _, err := m.Submit(ctx, "u1", nationalIDDocs("u1")); return err },
		func() error {
			_, err := m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusApproved})
			return err
		},
	}
	for _, step := range steps {
		_ = step()
		got, err := store.GetCase(ctx, c.ID)
		require.NoError(t, err)
		require.True(t, got.Status.Valid(), "invalid status %q", got.Status)
	}
}

type failingNotifications struct {
	*MemoryStore
}

func (f failingNotifications) InTx(ctx context.Context, fn func(tx Store) error) error {
	return f.MemoryStore.InTx(ctx, func(tx Store) error { return fn(failingNotificationsTx{tx}) })
}

type failingNotificationsTx struct {
	Store
}

func (f failingNotificationsTx) CreateNotification(context.Context, Notification) error {
	return errors.New("document store unavailable")
}

func TestDecideRollsBackOnCollaboratorFailure(t *testing.T) {
	inner := NewMemoryStore()
	ctx := context.Background()
	seed := NewManager(inner)
	c, err := seed.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)
	audits, _ := snapshotCounts(t, inner, c.ID, "u1")

	m := NewManager(failingNotifications{inner})
	_, err = m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: "a", Decision: StatusApproved})
	require.ErrorIs(t, err, ErrCollaborator)

	got, err := inner.GetCase(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	_, err = inner.AccountStatus(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)
	a2, _ := snapshotCounts(t, inner, c.ID, "u1")
	require.Equal(t, audits, a2)
}

func TestObserverFailureDoesNotFailOperation(t *testing.T) {
	failing := ObserverFunc(func(context.Context, Event) error { return errors.New("broker down") })
	m, _, _ := newTestManager(t, WithObserver("broken", failing))
	_, err := m.Submit(context.Background(), "u1", nationalIDDocs("u1"))
	require.NoError(t, err)
}

func TestNotificationsAndReadFlag(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	_, err := m.Submit(ctx, "u1", nationalIDDocs("u1"))
	require.NoError(t, err)

	unread, err := m.Notifications(ctx, NotificationFilter{UserID: "u1", UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.ErrorIs(t, m.MarkNotificationRead(ctx, "u2", unread[0].ID), ErrNotFound)
	require.NoError(t, m.MarkNotificationRead(ctx, "u1", unread[0].ID))

	unread, err = m.Notifications(ctx, NotificationFilter{UserID: "u1", UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread)

	all, err := m.Notifications(ctx, NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	require.True(t, all[0].Read)
	require.NotNil(t, all[0].ReadAt)

	_, err = m.Notifications(ctx, NotificationFilter{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestListCasesAndStats(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := m.Submit(ctx, u, nationalIDDocs(u))
		require.NoError(t, err)
	}
	c, _, err := m.GetCurrentCase(ctx, "u2")
	require.NoError(t, err)
	_, err = m.MarkUnderReview(ctx, c.ID, "a")
	require.NoError(t, err)

	pending, err := m.ListCases(ctx, CaseFilter{Status: StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "u3", pending[0].UserID)

	found, err := m.ListCases(ctx, CaseFilter{Search: "U2"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = m.ListCases(ctx, CaseFilter{Status: "bogus"})
	require.ErrorIs(t, err, ErrValidation)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats[StatusPending])
	require.Equal(t, 1, stats[StatusUnderReview])
	require.Equal(t, 0, stats[StatusApproved])
}

func TestAuditTrailUnknownCase(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.AuditTrail(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEndToEndScenario(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	admin := "admin@x.com"

	c, err := m.Submit(ctx, "u1", Documents{
		NationalID: &TwoSided{FrontURL: "u1/f.jpg", BackURL: "u1/b.jpg"},
		SelfieURL:  "u1/s.jpg",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, c.Status)

	c, err = m.MarkUnderReview(ctx, c.ID, admin)
	require.NoError(t, err)
	require.Equal(t, StatusUnderReview, c.Status)

	c, err = m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: admin, Decision: StatusRejected, Notes: "blurry", RejectionReason: "Image not legible"})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, c.Status)
	st, _ := m.AccountStatus(ctx, "u1")
	require.Equal(t, AccountSuspended, st)
	notes, _ := m.Notifications(ctx, NotificationFilter{UserID: "u1", Limit: 1})
	require.True(t, strings.Contains(notes[0].Body, "Image not legible"))

	resubmitted, err := m.Submit(ctx, "u1", Documents{
		NationalID: &TwoSided{FrontURL: "u1/f-new.jpg", BackURL: "u1/b-new.jpg"},
		SelfieURL:  "u1/s.jpg",
	})
	require.NoError(t, err)
	require.Equal(t, c.ID, resubmitted.ID)
	require.Equal(t, StatusPending, resubmitted.Status)

	approved, err := m.Decide(ctx, DecideRequest{CaseID: c.ID, ReviewerID: admin, Decision: StatusApproved})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	st, _ = m.AccountStatus(ctx, "u1")
	require.Equal(t, AccountActive, st)

	trail, err := m.AuditTrail(ctx, c.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(trail))
	for _, e := range trail {
		actions = append(actions, e.Action)
	}
	require.Equal(t, []string{
		ActionSubmissionCreated,
		ActionMarkedUnderReview,
		ActionRejected,
		ActionSubmissionUpdated,
		ActionApproved,
	}, actions)

	notes, err = store.ListNotifications(ctx, NotificationFilter{UserID: "u1", Limit: 1})
	require.NoError(t, err)
	require.Equal(t, MessageFor(NotificationApproved, "").Title, notes[0].Title)
}
