package kyc

import (
	"strings"
	"time"
)

// Status is the review state of a verification case.
type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusPending, StatusUnderReview, StatusApproved, StatusRejected}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s is a decision status.
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

// ParseStatus normalises user input into a Status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// TwoSided holds the object-store references of a document scanned on both sides.
type TwoSided struct {
	FrontURL string `json:"front_url"`
	BackURL  string `json:"back_url"`
}

// Documents are the object-store references attached to a case.
// Either NationalID or PassportURL identifies the person; SelfieURL is always required.
type Documents struct {
	NationalID  *TwoSided `json:"national_id,omitempty"`
	PassportURL string    `json:"passport_url,omitempty"`
	SelfieURL   string    `json:"selfie_url"`
}

// Case is one user's identity-verification attempt.
type Case struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Documents       Documents  `json:"documents"`
	Status          Status     `json:"status"`
	ReviewerID      string     `json:"reviewer_id,omitempty"`
	ReviewerNotes   string     `json:"reviewer_notes,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
}

// Audit actions.
const (
	ActionSubmissionCreated = "submission_created"
	ActionSubmissionUpdated = "submission_updated"
	ActionMarkedUnderReview = "marked_under_review"
	ActionApproved          = "approved"
	ActionRejected          = "rejected"
)

// AuditEntry is an immutable record of one status change.
type AuditEntry struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"case_id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	OldStatus  Status    `json:"old_status,omitempty"`
	NewStatus  Status    `json:"new_status"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NotificationType mirrors the case status plus submission_received.
type NotificationType string

const (
	NotificationSubmissionReceived NotificationType = "submission_received"
	NotificationUnderReview        NotificationType = NotificationType(StatusUnderReview)
	NotificationApproved           NotificationType = NotificationType(StatusApproved)
	NotificationRejected           NotificationType = NotificationType(StatusRejected)
)

// Notification is a user-facing message about a case.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	CaseID    string           `json:"case_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
}

// AccountStatus is the status of the account linked to a user. Decisions
// only ever write Active or Suspended; Pending comes from account
// provisioning outside the verification workflow.
type AccountStatus string

const (
	AccountPending   AccountStatus = "Pending"
	AccountActive    AccountStatus = "Active"
	AccountSuspended AccountStatus = "Suspended"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountPending, AccountActive, AccountSuspended:
		return true
	}
	return false
}

// CaseFilter narrows dashboard listings.
type CaseFilter struct {
	Status Status
	UserID string
	// Search matches case id or user id prefixes.
	Search string
	Limit  int
}

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}

// Event describes a committed operation. Observers receive it after the
// records are durable.
type Event struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	CaseID     string    `json:"case_id"`
	UserID     string    `json:"user_id"`
	ActorID    string    `json:"actor_id"`
	OldStatus  Status    `json:"old_status,omitempty"`
	NewStatus  Status    `json:"new_status"`
	Notified   bool      `json:"notified"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
