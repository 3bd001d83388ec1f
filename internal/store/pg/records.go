package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tasdeeq.app/internal/kyc"
)

func (s *Store) AppendAudit(ctx context.Context, e kyc.AuditEntry) error {
	_, err := s.q.ExecContext(ctx, `
		insert into kyc_audit_entries (id, case_id, actor_id, action, old_status, new_status, note, occurred_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, e.ID, e.CaseID, e.ActorID, e.Action, string(e.OldStatus), string(e.NewStatus), e.Note, e.OccurredAt)
	return err
}

func (s *Store) ListAudit(ctx context.Context, caseID string) ([]kyc.AuditEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		select id, case_id, actor_id, action, old_status, new_status, note, occurred_at
		from kyc_audit_entries
		where case_id=$1
		order by occurred_at asc, id asc
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kyc.AuditEntry
	for rows.Next() {
		var (
			e        kyc.AuditEntry
			prev, next string
		)
		if err := rows.Scan(&e.ID, &e.CaseID, &e.ActorID, &e.Action, &prev, &next, &e.Note, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.OldStatus = kyc.Status(prev)
		e.NewStatus = kyc.Status(next)
		e.OccurredAt = e.OccurredAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreateNotification(ctx context.Context, n kyc.Notification) error {
	_, err := s.q.ExecContext(ctx, `
		insert into kyc_notifications (id, user_id, case_id, type, title, body, read, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, n.ID, n.UserID, n.CaseID, string(n.Type), n.Title, n.Body, n.Read, n.CreatedAt)
	return err
}

func (s *Store) ListNotifications(ctx context.Context, filter kyc.NotificationFilter) ([]kyc.Notification, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.QueryContext(ctx, `
		select id, user_id, case_id, type, title, body, read, created_at, read_at
		from kyc_notifications
		where user_id=$1 and (not $2 or not read)
		order by created_at desc, id desc
		limit $3
	`, filter.UserID, filter.UnreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kyc.Notification
	for rows.Next() {
		var (
			n      kyc.Notification
			typ    string
			readAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.CaseID, &typ, &n.Title, &n.Body, &n.Read, &n.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		n.Type = kyc.NotificationType(typ)
		n.CreatedAt = n.CreatedAt.UTC()
		if readAt.Valid {
			at := readAt.Time.UTC()
			n.ReadAt = &at
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		update kyc_notifications
		set read=true, read_at=coalesce(read_at, $3)
		where id=$1 and user_id=$2
	`, id, userID, at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &kyc.NotFoundError{Kind: "notification", ID: id}
	}
	return nil
}

func (s *Store) SetAccountStatus(ctx context.Context, userID string, status kyc.AccountStatus, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		insert into account_statuses (user_id, status, updated_at)
		values ($1,$2,$3)
		on conflict (user_id) do update
		set status = excluded.status, updated_at = excluded.updated_at
	`, userID, string(status), at)
	return err
}

func (s *Store) AccountStatus(ctx context.Context, userID string) (kyc.AccountStatus, error) {
	var status string
	err := s.q.QueryRowContext(ctx, `select status from account_statuses where user_id=$1`, userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &kyc.NotFoundError{Kind: "account", ID: userID}
	}
	if err != nil {
		return "", err
	}
	st := kyc.AccountStatus(status)
	if !st.Valid() {
		return "", fmt.Errorf("account %s: unknown status %q", userID, status)
	}
	return st, nil
}
