package kyc

import (
	"context"
	"time"
)

// Store persists cases, audit entries, notifications and linked account
// statuses. Implementations return *NotFoundError (or an error matching
// ErrNotFound) for missing records.
type Store interface {
	CreateCase(ctx context.Context, c Case) error
	UpdateCase(ctx context.Context, c Case) error
	GetCase(ctx context.Context, id string) (Case, error)
	// LatestCaseForUser returns the case with the greatest SubmittedAt.
	LatestCaseForUser(ctx context.Context, userID string) (Case, error)
	ListCases(ctx context.Context, filter CaseFilter) ([]Case, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)

	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, caseID string) ([]AuditEntry, error)

	CreateNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error

	SetAccountStatus(ctx context.Context, userID string, status AccountStatus, at time.Time) error
	AccountStatus(ctx context.Context, userID string) (AccountStatus, error)

	// InTx runs fn against a store whose writes commit together or not at all.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// Observer is told about committed operations.
type Observer interface {
	Observe(ctx context.Context, evt Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, evt Event) error

func (f ObserverFunc) Observe(ctx context.Context, evt Event) error { return f(ctx, evt) }
