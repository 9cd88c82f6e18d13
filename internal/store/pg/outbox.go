package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"polyvox.org/internal/outbox"
)

var _ outbox.Store = (*Store)(nil)

// DueMessages returns queued outbox rows whose send_after has passed,
// oldest first.
func (s *Store) DueMessages(ctx context.Context, now time.Time, limit int) ([]outbox.Message, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if limit <= 0 {
		limit = outbox.DefaultBatchLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, coalesce(contact_id, ''), to_email, subject, template, payload, coalesce(attempts, 0)
		from email_outbox
		where status = 'queued' and send_after <= $1
		order by send_after asc
		limit $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []outbox.Message
	for rows.Next() {
		var (
			msg        outbox.Message
			rawPayload []byte
		)
		if err := rows.Scan(&msg.ID, &msg.ContactID, &msg.ToEmail, &msg.Subject, &msg.Template, &rawPayload, &msg.Attempts); err != nil {
			return nil, err
		}
		msg.Payload = map[string]any{}
		if len(rawPayload) > 0 {
			if err := json.Unmarshal(rawPayload, &msg.Payload); err != nil {
				return nil, fmt.Errorf("decode payload for %s: %w", msg.ID, err)
			}
		}
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSent records a successful delivery.
func (s *Store) MarkSent(ctx context.Context, id string, attempts int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update email_outbox
		set status = 'sent', attempts = $2, sent_at = $3, last_error = null, updated_at = $3
		where id = $1
	`, id, attempts, at)
	return err
}

// MarkRetry requeues the row for a later attempt.
func (s *Store) MarkRetry(ctx context.Context, id string, attempts int, lastError string, sendAfter time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update email_outbox
		set status = 'queued', attempts = $2, last_error = $3, send_after = $4, updated_at = now()
		where id = $1
	`, id, attempts, lastError, sendAfter)
	return err
}

// MarkFailed retires the row permanently.
func (s *Store) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	_, err := s.db.ExecContext(ctx, `
		update email_outbox
		set status = 'failed', attempts = $2, last_error = $3, updated_at = now()
		where id = $1
	`, id, attempts, lastError)
	return err
}

// SuppressContact sets the contact's suppression flag. Unknown contact
// ids are reported so an unsubscribe for a deleted contact is visible.
func (s *Store) SuppressContact(ctx context.Context, contactID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update public_entity_contacts
		set email_suppressed = true, updated_at = now()
		where id = $1
	`, contactID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordContactBounce suppresses the contact and bumps its bounce count.
func (s *Store) RecordContactBounce(ctx context.Context, contactID string) error {
	_, err := s.db.ExecContext(ctx, `
		update public_entity_contacts
		set email_suppressed = true, bounce_count = bounce_count + 1, updated_at = now()
		where id = $1
	`, contactID)
	return err
}

// MarkContactEmailed stamps the contact's last delivery time.
func (s *Store) MarkContactEmailed(ctx context.Context, contactID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update public_entity_contacts
		set last_emailed_at = $2, updated_at = $2
		where id = $1
	`, contactID, at)
	return err
}
