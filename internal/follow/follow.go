// Package follow manages follow relations between subjects and the
// targets they watch. A subject follows a given target at most once; the
// storage layer's uniqueness constraint owns that invariant, so follow is
// an insert-if-absent rather than a check-then-insert.
package follow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTarget = errors.New("follow: invalid target")
	ErrNoSession     = errors.New("follow: sign in required")
)

// TargetType classifies what a follow relation points at.
type TargetType string

const (
	TargetJurisdiction TargetType = "jurisdiction"
	TargetEntity       TargetType = "entity"
	TargetIssue        TargetType = "issue"
	TargetUser         TargetType = "user"
)

var knownTargetTypes = map[TargetType]struct{}{
	TargetJurisdiction: {},
	TargetEntity:       {},
	TargetIssue:        {},
	TargetUser:         {},
}

// Relation is one follow edge.
type Relation struct {
	SubjectID  string     `json:"subject_id"`
	TargetType TargetType `json:"target_type"`
	TargetID   string     `json:"target_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Target identifies one followable thing.
type Target struct {
	Type TargetType
	ID   string
}

// ParseTarget validates the enum value and the identifier shape.
func ParseTarget(targetType, targetID string) (Target, error) {
	tt := TargetType(strings.TrimSpace(strings.ToLower(targetType)))
	if _, ok := knownTargetTypes[tt]; !ok {
		return Target{}, fmt.Errorf("%w: unknown target type %q", ErrInvalidTarget, targetType)
	}
	targetID = strings.TrimSpace(targetID)
	if _, err := uuid.Parse(targetID); err != nil {
		return Target{}, fmt.Errorf("%w: target id must be a UUID", ErrInvalidTarget)
	}
	return Target{Type: tt, ID: targetID}, nil
}

// Store persists follow relations.
type Store interface {
	// Upsert inserts the relation, silently keeping the existing row on
	// conflict. The (subject, target type, target id) key is unique.
	Upsert(ctx context.Context, rel Relation) error
	// Delete removes the relation by key. Deleting an absent row is not
	// an error.
	Delete(ctx context.Context, subjectID string, target Target) error
	// Exists reports whether the subject currently follows the target.
	Exists(ctx context.Context, subjectID string, target Target) (bool, error)
}

// Result is the caller-facing outcome of a follow action.
type Result struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	IsFollowing *bool  `json:"is_following,omitempty"`
}

// Service exposes follow, unfollow, and state queries for the signed-in
// subject.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("follow store is required")
	}
	return &Service{store: store}, nil
}

// Follow records that the subject follows the target. Calling it twice is
// a no-op, not an error.
func (s *Service) Follow(ctx context.Context, subjectID string, target Target) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return ErrNoSession
	}
	rel := Relation{
		SubjectID:  subjectID,
		TargetType: target.Type,
		TargetID:   target.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.Upsert(ctx, rel); err != nil {
		return fmt.Errorf("follow %s:%s: %w", target.Type, target.ID, err)
	}
	return nil
}

// Unfollow removes the relation if present.
func (s *Service) Unfollow(ctx context.Context, subjectID string, target Target) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return ErrNoSession
	}
	if err := s.store.Delete(ctx, subjectID, target); err != nil {
		return fmt.Errorf("unfollow %s:%s: %w", target.Type, target.ID, err)
	}
	return nil
}

// State reports whether the subject follows the target. An anonymous
// caller is simply not following anything.
func (s *Service) State(ctx context.Context, subjectID string, target Target) (bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return false, nil
	}
	following, err := s.store.Exists(ctx, subjectID, target)
	if err != nil {
		return false, fmt.Errorf("follow state %s:%s: %w", target.Type, target.ID, err)
	}
	return following, nil
}
