// Package notify fans one notification intent out to the followers of a
// target. Fan-out is a best-effort side channel: it never fails the
// primary action that triggered it, and it caps the recipient set so a
// popular target cannot flood the store or the delivery path.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"polyvox.org/internal/follow"
	"polyvox.org/internal/ids"
	"polyvox.org/internal/obs"
)

// MaxRecipients caps one fan-out. When truncating, the newest followers
// win the tie-break: they are the most recently engaged subjects.
const MaxRecipients = 200

// Intent describes what to tell each recipient. It is ephemeral; it only
// persists once expanded into per-recipient records.
type Intent struct {
	Type  string
	Title string
	Body  string
	URL   string
}

// Record is one persisted notification for one recipient.
type Record struct {
	ID        string
	SubjectID string
	Type      string
	Title     string
	Body      string
	URL       string
}

// Result summarizes one fan-out.
type Result struct {
	Recipients int  `json:"recipients"`
	Inserted   int  `json:"inserted"`
	Truncated  bool `json:"truncated"`
}

// Store is the persistence surface the fan-out needs.
type Store interface {
	// FollowerIDs returns subject ids following the target, newest
	// follower first, up to limit rows.
	FollowerIDs(ctx context.Context, target follow.Target, limit int) ([]string, error)
	// InsertNotifications inserts the batch in one call, all or nothing.
	InsertNotifications(ctx context.Context, records []Record) error
}

// Fanout resolves followers and emits one notification record each.
type Fanout struct {
	store Store
}

// NewFanout constructs a Fanout.
func NewFanout(store Store) (*Fanout, error) {
	if store == nil {
		return nil, errors.New("notify store is required")
	}
	return &Fanout{store: store}, nil
}

// Notify expands the intent to every follower of the target, capped at
// MaxRecipients. Store failures degrade to a zero-effect result with a
// warning; the caller's success path is never blocked.
func (f *Fanout) Notify(ctx context.Context, target follow.Target, intent Intent) Result {
	if strings.TrimSpace(intent.Type) == "" || strings.TrimSpace(intent.Title) == "" {
		obs.Warn("fanout: intent missing type or title", map[string]any{
			"target": targetLabel(target),
		})
		return Result{}
	}

	// One extra row cheaply reveals whether the true count exceeds the
	// cap, without a separate count query.
	followerIDs, err := f.store.FollowerIDs(ctx, target, MaxRecipients+1)
	if err != nil {
		obs.Warn("fanout: failed to load followers", map[string]any{
			"target": targetLabel(target),
			"error":  err.Error(),
		})
		return Result{}
	}

	truncated := len(followerIDs) > MaxRecipients
	if truncated {
		obs.Warn("fanout: recipient cap hit", map[string]any{
			"target": targetLabel(target),
			"count":  len(followerIDs),
			"cap":    MaxRecipients,
		})
		followerIDs = followerIDs[:MaxRecipients]
	}

	if len(followerIDs) == 0 {
		return Result{Truncated: truncated}
	}

	records := make([]Record, 0, len(followerIDs))
	for _, subjectID := range followerIDs {
		records = append(records, Record{
			ID:        ids.New(),
			SubjectID: subjectID,
			Type:      intent.Type,
			Title:     intent.Title,
			Body:      intent.Body,
			URL:       intent.URL,
		})
	}

	if err := f.store.InsertNotifications(ctx, records); err != nil {
		obs.Warn("fanout: notification insert failed", map[string]any{
			"target": targetLabel(target),
			"error":  err.Error(),
		})
		return Result{Recipients: len(records), Truncated: truncated}
	}

	obs.CountFanout(string(target.Type), len(records), truncated)
	return Result{Recipients: len(records), Inserted: len(records), Truncated: truncated}
}

func targetLabel(target follow.Target) string {
	return fmt.Sprintf("%s:%s", target.Type, target.ID)
}
