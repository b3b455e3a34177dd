package chat

import (
	"context"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/types"
)

// ResolveKey returns the conversation key a submission from actorID to
// target would land in, without writing anything.
func (s *Service) ResolveKey(ctx context.Context, actorID string, target types.Participant, hint string) (types.ConversationKey, error) {
	return s.resolveKey(ctx, s.db, actorID, target, hint)
}

func (s *Service) resolveKey(ctx context.Context, conn db.DBTX, actorID string, target types.Participant, hint string) (types.ConversationKey, error) {
	switch t := target.(type) {
	case types.GroupTarget:
		return types.GroupKey{GroupID: t.GroupID}, nil
	case types.UserTarget:
		return resolveDirectKey(ctx, conn, actorID, t.UserID, hint)
	default:
		return nil, apperr.Validationf("unsupported participant %T", target)
	}
}

// resolveDirectKey reuses whatever key the pair already talks on and only
// mints the deterministic key for a first contact. A client hint is honored
// when it is the canonical key or already carries this pair's messages.
func resolveDirectKey(ctx context.Context, conn db.DBTX, a, b, hint string) (types.ConversationKey, error) {
	canonical := core.DirectConversationKey(a, b)
	if hint != "" {
		if hint == canonical {
			return types.DirectKey{Key: hint}, nil
		}
		if core.IsDirectConversationKey(hint) {
			return nil, apperr.Validationf("conversation key %s belongs to another pair", hint)
		}
		used, err := db.DirectKeyUsedBetween(ctx, conn, hint, a, b)
		if err != nil {
			return nil, apperr.Internal("check conversation key", err)
		}
		if !used {
			return nil, apperr.Validationf("conversation key %s does not belong to %s and %s", hint, a, b)
		}
		return types.DirectKey{Key: hint}, nil
	}

	existing, err := db.GetDirectConversationKey(ctx, conn, a, b)
	if err != nil {
		return nil, apperr.Internal("lookup conversation key", err)
	}
	if existing != "" {
		return types.DirectKey{Key: existing}, nil
	}
	return types.DirectKey{Key: canonical}, nil
}
