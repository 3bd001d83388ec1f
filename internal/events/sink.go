package events

import (
	"context"
	"errors"
	"time"

	"tasdeeq.app/internal/audit"
	"tasdeeq.app/internal/kyc"
)

const (
	DefaultTopic = "kyc.case.events"
	eventVersion = 1
)

// CaseEvent is the message published for every committed case transition.
type CaseEvent struct {
	EventID       string     `json:"event_id"`
	EventType     string     `json:"event_type"`
	EventVersion  int        `json:"event_version"`
	Timestamp     time.Time  `json:"timestamp"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	CaseID        string     `json:"case_id"`
	UserID        string     `json:"user_id"`
	ActorID       string     `json:"actor_id"`
	OldStatus     kyc.Status `json:"old_status,omitempty"`
	NewStatus     kyc.Status `json:"new_status"`
	// AccountStatus is set for decisions.
	AccountStatus kyc.AccountStatus `json:"account_status,omitempty"`
}

// Sink is a kyc.Observer publishing case transitions keyed by case id, so
// all events of a case land on one partition in order.
type Sink struct {
	publisher Publisher
	topic     string
}

func NewSink(publisher Publisher, topic string) *Sink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Sink{publisher: publisher, topic: topic}
}

func (s *Sink) Topic() string { return s.topic }

// Observe publishes evt. Events without a case (notification reads) are skipped.
func (s *Sink) Observe(ctx context.Context, evt kyc.Event) error {
	if s == nil || s.publisher == nil {
		return errors.New("kafka producer not configured")
	}
	if evt.CaseID == "" {
		return nil
	}
	_, _, err := s.publisher.PublishJSON(ctx, s.topic, evt.CaseID, NewCaseEvent(ctx, evt))
	return err
}

// NewCaseEvent builds the wire message for evt.
func NewCaseEvent(ctx context.Context, evt kyc.Event) CaseEvent {
	out := CaseEvent{
		EventID:       evt.ID,
		EventType:     "kyc.case." + evt.Action,
		EventVersion:  eventVersion,
		Timestamp:     evt.OccurredAt.UTC(),
		CorrelationID: audit.RequestIDFromContext(ctx),
		CaseID:        evt.CaseID,
		UserID:        evt.UserID,
		ActorID:       evt.ActorID,
		OldStatus:     evt.OldStatus,
		NewStatus:     evt.NewStatus,
	}
	switch evt.NewStatus {
	case kyc.StatusApproved:
		out.AccountStatus = kyc.AccountActive
	case kyc.StatusRejected:
		out.AccountStatus = kyc.AccountSuspended
	}
	return out
}
