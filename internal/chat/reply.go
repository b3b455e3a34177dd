package chat

import (
	"context"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/metrics"
	"github.com/adamavenir/parley/internal/types"
	"go.uber.org/zap"
)

// ResolveThread renders the parent quote of msg for readerID, translated
// into the reader's chat language. It returns nil when msg is not a reply or
// the parent is gone or unreadable, and falls back to the original text when
// translation fails. It never returns an error.
func (s *Service) ResolveThread(ctx context.Context, msg types.Message, readerID string) *types.ThreadPreview {
	if msg.ThreadParentID == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.PreviewTimeout)
	defer cancel()

	parentID := *msg.ThreadParentID
	log := s.logger.With(zap.String("message", msg.ID), zap.String("parent", parentID))

	parent, err := db.GetMessage(ctx, s.db, parentID)
	if err != nil {
		log.Warn("thread parent lookup failed", zap.Error(err))
		metrics.PreviewDegraded.WithLabelValues("lookup").Inc()
		return nil
	}
	if parent == nil || parent.DeletedAt != nil {
		metrics.PreviewDegraded.WithLabelValues("deleted").Inc()
		return nil
	}

	plain, err := s.enc.Decrypt(ctx, parent.Body)
	if err != nil {
		log.Warn("thread parent unreadable", zap.Error(apperr.Decryption(err)))
		metrics.PreviewDegraded.WithLabelValues("decrypt").Inc()
		return nil
	}
	text := string(plain)

	readerLang := s.readerLanguage(ctx, readerID)
	translated, err := s.tr.Translate(ctx, text, parent.SourceLanguage, readerLang)
	if err != nil {
		log.Info("thread preview left untranslated", zap.Error(apperr.TranslationUnavailable(err)))
		metrics.PreviewDegraded.WithLabelValues("translate").Inc()
		translated = text
	}

	return &types.ThreadPreview{
		ParentMessageID: parent.ID,
		ParentSenderID:  parent.SenderID,
		IsOwnMessage:    parent.SenderID == readerID,
		TranslatedText:  translated,
	}
}

func (s *Service) readerLanguage(ctx context.Context, readerID string) string {
	user, err := s.dir.User(ctx, readerID)
	if err != nil || user == nil || user.ChatLanguage == "" {
		return core.DefaultLanguage
	}
	return user.ChatLanguage
}
