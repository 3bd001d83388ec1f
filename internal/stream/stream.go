// Package stream keeps live views of verification records up to date for
// connected clients. A subscriber registers a Query and receives a full
// Snapshot immediately and again after every change that can affect it.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tasdeeq.app/internal/kyc"
	"tasdeeq.app/internal/obs"
)

// Collection names a live view.
type Collection string

const (
	// CollectionCases is the review dashboard listing.
	CollectionCases Collection = "cases"
	// CollectionCurrentCase is one user's latest case.
	CollectionCurrentCase Collection = "current_case"
	// CollectionNotifications is one user's notification inbox.
	CollectionNotifications Collection = "notifications"
	// CollectionStats is the per-status case count.
	CollectionStats Collection = "stats"
)

var ErrInvalidQuery = errors.New("stream: invalid query")

// Query describes a live view.
type Query struct {
	Collection Collection `json:"collection"`
	UserID     string     `json:"user_id,omitempty"`
	Status     kyc.Status `json:"status,omitempty"`
	UnreadOnly bool       `json:"unread_only,omitempty"`
	Limit      int        `json:"limit,omitempty"`
}

// Validate checks that the query names a known collection with the keys it needs.
func (q Query) Validate() error {
	switch q.Collection {
	case CollectionCases, CollectionStats:
	case CollectionCurrentCase, CollectionNotifications:
		if strings.TrimSpace(q.UserID) == "" {
			return fmt.Errorf("%w: %s requires user_id", ErrInvalidQuery, q.Collection)
		}
	default:
		return fmt.Errorf("%w: unknown collection %q", ErrInvalidQuery, q.Collection)
	}
	if q.Status != "" && !q.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidQuery, q.Status)
	}
	return nil
}

// Snapshot is the full current result of a Query.
type Snapshot struct {
	Collection    Collection         `json:"collection"`
	Version       uint64             `json:"version"`
	Cases         []kyc.Case         `json:"cases,omitempty"`
	Case          *kyc.Case          `json:"case,omitempty"`
	Notifications []kyc.Notification `json:"notifications,omitempty"`
	Stats         map[kyc.Status]int `json:"stats,omitempty"`
	At            time.Time          `json:"at"`
}

// Source answers live queries. *kyc.Manager satisfies it.
type Source interface {
	ListCases(ctx context.Context, filter kyc.CaseFilter) ([]kyc.Case, error)
	GetCurrentCase(ctx context.Context, userID string) (kyc.Case, bool, error)
	Notifications(ctx context.Context, filter kyc.NotificationFilter) ([]kyc.Notification, error)
	Stats(ctx context.Context) (map[kyc.Status]int, error)
}

type subscriber struct {
	q      Query
	mu     sync.Mutex
	ch     chan Snapshot
	closed bool
	// ready is false until the initial snapshot is queued; refreshes that
	// arrive before that only mark the initial query stale.
	ready bool
	stale bool
}

// prime queues the initial snapshot unless a change landed while it was
// being read, in which case the caller must query again.
func (s *subscriber) prime(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		s.stale = false
		return false
	}
	s.ready = true
	if !s.closed {
		s.ch <- snap
	}
	return true
}

// deliver keeps only the newest snapshot for slow readers.
func (s *subscriber) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !s.ready {
		s.stale = true
		return
	}
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Hub fans record changes out to live query subscribers.
type Hub struct {
	source  Source
	logger  *zap.Logger
	timeout time.Duration
	version atomic.Uint64

	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

type HubOption func(*Hub)

func WithLogger(l *zap.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithQueryTimeout bounds each snapshot query.
func WithQueryTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewHub creates a hub answering queries from source.
func NewHub(source Source, opts ...HubOption) *Hub {
	h := &Hub{
		source:  source,
		logger:  obs.Logger().Named("stream"),
		timeout: 5 * time.Second,
		subs:    make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers q and returns a channel that carries the initial
// snapshot followed by refreshed ones. The channel is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sub := &subscriber{q: q, ch: make(chan Snapshot, 1)}

	// Register before the first read so no committed change can slip
	// between the initial snapshot and the first refresh.
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = sub
	h.mu.Unlock()

	for {
		snap, err := h.run(ctx, q)
		if err != nil {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			return nil, err
		}
		if sub.prime(snap) {
			break
		}
	}

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		sub.close()
	}()
	return sub.ch, nil
}

// Subscribers reports the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Observe refreshes the views affected by a committed operation.
func (h *Hub) Observe(ctx context.Context, evt kyc.Event) error {
	h.Refresh(context.WithoutCancel(ctx), evt)
	return nil
}

// Refresh re-runs every query evt can affect and delivers the new results.
func (h *Hub) Refresh(ctx context.Context, evt kyc.Event) {
	h.mu.RLock()
	var affected []*subscriber
	for _, sub := range h.subs {
		if Affects(sub.q, evt) {
			affected = append(affected, sub)
		}
	}
	h.mu.RUnlock()

	cache := make(map[Query]Snapshot, len(affected))
	for _, sub := range affected {
		snap, ok := cache[sub.q]
		if !ok {
			var err error
			snap, err = h.run(ctx, sub.q)
			if err != nil {
				h.logger.Warn("refresh failed",
					zap.String("collection", string(sub.q.Collection)),
					zap.String("case_id", evt.CaseID),
					zap.Error(err))
				continue
			}
			cache[sub.q] = snap
		}
		sub.deliver(snap)
	}
}

// Affects reports whether evt can change the result of q.
func Affects(q Query, evt kyc.Event) bool {
	switch q.Collection {
	case CollectionCases:
		return evt.CaseID != "" && (q.UserID == "" || q.UserID == evt.UserID)
	case CollectionStats:
		return evt.CaseID != ""
	case CollectionCurrentCase:
		return evt.CaseID != "" && q.UserID == evt.UserID
	case CollectionNotifications:
		return q.UserID == evt.UserID && (evt.Notified || evt.CaseID == "")
	}
	return false
}

func (h *Hub) run(ctx context.Context, q Query) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	snap := Snapshot{Collection: q.Collection, At: time.Now().UTC()}
	var err error
	switch q.Collection {
	case CollectionCases:
		snap.Cases, err = h.source.ListCases(ctx, kyc.CaseFilter{Status: q.Status, UserID: q.UserID, Limit: q.Limit})
	case CollectionCurrentCase:
		var (
			c     kyc.Case
			found bool
		)
		c, found, err = h.source.GetCurrentCase(ctx, q.UserID)
		if found {
			snap.Case = &c
		}
	case CollectionNotifications:
		snap.Notifications, err = h.source.Notifications(ctx, kyc.NotificationFilter{
			UserID: q.UserID, UnreadOnly: q.UnreadOnly, Limit: q.Limit,
		})
	case CollectionStats:
		snap.Stats, err = h.source.Stats(ctx)
	}
	if err != nil {
		return Snapshot{}, err
	}
	snap.Version = h.version.Add(1)
	return snap, nil
}
