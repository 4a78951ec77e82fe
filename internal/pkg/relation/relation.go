// Package relation maintains symmetric membership between two entities
// (follow, track, like).
package relation

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a relation between a subject (always a user) and an object.
type Kind string

const (
	Follow      Kind = "follow"       // user -> user
	Track       Kind = "track"        // user -> mission
	LikeUpdate  Kind = "like_update"  // user -> mission update
	LikeComment Kind = "like_comment" // user -> comment
)

var (
	ErrSelfRelation = errors.New("cannot relate an entity to itself")
	ErrUnknownKind  = errors.New("unknown relation kind")
)

// Valid reports whether k is a known relation.
func (k Kind) Valid() bool {
	switch k {
	case Follow, Track, LikeUpdate, LikeComment:
		return true
	}
	return false
}

// Reflexive reports whether subject and object live in the same id space,
// in which case subject == object is forbidden.
func (k Kind) Reflexive() bool {
	return k == Follow
}

// Store persists relation links. Link and Unlink update both directions of
// the relation (e.g. A.following and B.followers) as a single write.
type Store interface {
	Related(ctx context.Context, kind Kind, subject, object uint) (bool, error)
	Link(ctx context.Context, kind Kind, subject, object uint) error
	Unlink(ctx context.Context, kind Kind, subject, object uint) error
}

// Toggle flips the relation between subject and object and returns the
// resulting state: true when they are now related.
func Toggle(ctx context.Context, s Store, kind Kind, subject, object uint) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if kind.Reflexive() && subject == object {
		return false, ErrSelfRelation
	}

	related, err := s.Related(ctx, kind, subject, object)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", kind, err)
	}
	if related {
		if err := s.Unlink(ctx, kind, subject, object); err != nil {
			return true, fmt.Errorf("unlink %s: %w", kind, err)
		}
		return false, nil
	}
	if err := s.Link(ctx, kind, subject, object); err != nil {
		return false, fmt.Errorf("link %s: %w", kind, err)
	}
	return true, nil
}
