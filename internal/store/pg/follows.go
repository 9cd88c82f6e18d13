package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"polyvox.org/internal/follow"
	"polyvox.org/internal/ids"
	"polyvox.org/internal/notify"
)

var (
	_ follow.Store = (*Store)(nil)
	_ notify.Store = (*Store)(nil)
)

// Upsert inserts the follow relation, keeping the existing row on
// conflict. The unique (user_id, target_type, target_id) constraint owns
// the concurrent-toggle race.
func (s *Store) Upsert(ctx context.Context, rel follow.Relation) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into follows (id, user_id, target_type, target_id, created_at)
		values ($1, $2, $3, $4, $5)
		on conflict (user_id, target_type, target_id) do nothing
	`, ids.New(), rel.SubjectID, string(rel.TargetType), rel.TargetID, rel.CreatedAt)
	return err
}

// Delete removes the relation by key. Absent rows delete to zero rows,
// which is fine.
func (s *Store) Delete(ctx context.Context, subjectID string, target follow.Target) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		delete from follows
		where user_id = $1 and target_type = $2 and target_id = $3
	`, subjectID, string(target.Type), target.ID)
	return err
}

// Exists reports whether the subject follows the target.
func (s *Store) Exists(ctx context.Context, subjectID string, target follow.Target) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1 from follows
			where user_id = $1 and target_type = $2 and target_id = $3
		)
	`, subjectID, string(target.Type), target.ID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// FollowerIDs returns follower subject ids, newest follower first.
func (s *Store) FollowerIDs(ctx context.Context, target follow.Target, limit int) ([]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if limit <= 0 {
		limit = notify.MaxRecipients + 1
	}
	rows, err := s.db.QueryContext(ctx, `
		select user_id from follows
		where target_type = $1 and target_id = $2
		order by created_at desc
		limit $3
	`, string(target.Type), target.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// InsertNotifications inserts the batch with one multi-row statement, so
// the whole batch lands or none of it does.
func (s *Store) InsertNotifications(ctx context.Context, records []notify.Record) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if len(records) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args = make([]any, 0, len(records)*6)
	)
	sb.WriteString(`insert into user_notifications (id, user_id, type, title, body, url) values `)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, rec.ID, rec.SubjectID, rec.Type, rec.Title, nullableText(rec.Body), rec.URL)
	}

	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func nullableText(v string) any {
	if v == "" {
		return nil
	}
	return v
}
