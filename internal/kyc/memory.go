package kyc

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process concurrency safety.
type MemoryStore struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	cases    map[string]Case
	audit    []AuditEntry
	notes    []Notification
	accounts map[string]AccountStatus
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cases:    make(map[string]Case),
		accounts: make(map[string]AccountStatus),
	}
}

func (s *MemoryStore) createCase(ctx context.Context, c Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; ok {
		return &CollaboratorError{Op: "create case", Err: errDuplicate(c.ID)}
	}
	s.cases[c.ID] = copyCase(c)
	return nil
}

func (s *MemoryStore) updateCase(ctx context.Context, c Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; !ok {
		return &NotFoundError{Kind: "case", ID: c.ID}
	}
	s.cases[c.ID] = copyCase(c)
	return nil
}

func (s *MemoryStore) GetCase(ctx context.Context, id string) (Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return Case{}, &NotFoundError{Kind: "case", ID: id}
	}
	return copyCase(c), nil
}

func (s *MemoryStore) LatestCaseForUser(ctx context.Context, userID string) (Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest Case
		found  bool
	)
	for _, c := range s.cases {
		if c.UserID != userID {
			continue
		}
		if !found || c.SubmittedAt.After(latest.SubmittedAt) ||
			(c.SubmittedAt.Equal(latest.SubmittedAt) && c.ID > latest.ID) {
			latest = c
			found = true
		}
	}
	if !found {
		return Case{}, &NotFoundError{Kind: "case for user", ID: userID}
	}
	return copyCase(latest), nil
}

func (s *MemoryStore) ListCases(ctx context.Context, filter CaseFilter) ([]Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []Case
	for _, c := range s.cases {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && c.UserID != filter.UserID {
			continue
		}
		if search != "" && !strings.HasPrefix(strings.ToLower(c.ID), search) &&
			!strings.HasPrefix(strings.ToLower(c.UserID), search) {
			continue
		}
		out = append(out, copyCase(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if limit := clampLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		counts[st] = 0
	}
	for _, c := range s.cases {
		counts[c.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) appendAudit(ctx context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *MemoryStore) ListAudit(ctx context.Context, caseID string) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AuditEntry
	for _, e := range s.audit {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) createNotification(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, filter NotificationFilter) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	// newest first
	for i := len(s.notes) - 1; i >= 0; i-- {
		n := s.notes[i]
		if filter.UserID != "" && n.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	if limit := clampLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) markNotificationRead(ctx context.Context, userID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID != id || s.notes[i].UserID != userID {
			continue
		}
		if !s.notes[i].Read {
			s.notes[i].Read = true
			readAt := at
			s.notes[i].ReadAt = &readAt
		}
		return nil
	}
	return &NotFoundError{Kind: "notification", ID: id}
}

func (s *MemoryStore) setAccountStatus(ctx context.Context, userID string, status AccountStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID] = status
	return nil
}

func (s *MemoryStore) AccountStatus(ctx context.Context, userID string) (AccountStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.accounts[userID]
	if !ok {
		return "", &NotFoundError{Kind: "account", ID: userID}
	}
	return st, nil
}

func (s *MemoryStore) CreateCase(ctx context.Context, c Case) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.createCase(ctx, c)
}

func (s *MemoryStore) UpdateCase(ctx context.Context, c Case) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.updateCase(ctx, c)
}

func (s *MemoryStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.appendAudit(ctx, entry)
}

func (s *MemoryStore) CreateNotification(ctx context.Context, n Notification) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.createNotification(ctx, n)
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.markNotificationRead(ctx, userID, id, at)
}

func (s *MemoryStore) SetAccountStatus(ctx context.Context, userID string, status AccountStatus, at time.Time) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.setAccountStatus(ctx, userID, status, at)
}

// InTx holds the writer lock for the whole of fn, so every other write waits
// and a failed fn can restore the contents it started from.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(memoryTx{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// memoryTx writes without taking txMu, which its InTx already holds.
type memoryTx struct {
	*MemoryStore
}

func (t memoryTx) CreateCase(ctx context.Context, c Case) error { return t.createCase(ctx, c) }

func (t memoryTx) UpdateCase(ctx context.Context, c Case) error { return t.updateCase(ctx, c) }

func (t memoryTx) AppendAudit(ctx context.Context, e AuditEntry) error { return t.appendAudit(ctx, e) }

func (t memoryTx) CreateNotification(ctx context.Context, n Notification) error {
	return t.createNotification(ctx, n)
}

func (t memoryTx) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error {
	return t.markNotificationRead(ctx, userID, id, at)
}

func (t memoryTx) SetAccountStatus(ctx context.Context, userID string, status AccountStatus, at time.Time) error {
	return t.setAccountStatus(ctx, userID, status, at)
}

// InTx joins the enclosing transaction.
func (t memoryTx) InTx(ctx context.Context, fn func(tx Store) error) error { return fn(t) }

type memorySnapshot struct {
	cases    map[string]Case
	audit    []AuditEntry
	notes    []Notification
	accounts map[string]AccountStatus
}

func (s *MemoryStore) snapshot() memorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := memorySnapshot{
		cases:    make(map[string]Case, len(s.cases)),
		audit:    append([]AuditEntry(nil), s.audit...),
		notes:    append([]Notification(nil), s.notes...),
		accounts: make(map[string]AccountStatus, len(s.accounts)),
	}
	for k, v := range s.cases {
		snap.cases[k] = copyCase(v)
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = snap.cases
	s.audit = snap.audit
	s.notes = snap.notes
	s.accounts = snap.accounts
}

func copyCase(c Case) Case {
	out := c
	if c.Documents.NationalID != nil {
		id := *c.Documents.NationalID
		out.Documents.NationalID = &id
	}
	if c.DecidedAt != nil {
		at := *c.DecidedAt
		out.DecidedAt = &at
	}
	return out
}

type errDuplicate string

func (e errDuplicate) Error() string { return "duplicate id " + string(e) }
