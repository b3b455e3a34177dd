package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/db"
	"github.com/adamavenir/parley/internal/metrics"
	"github.com/adamavenir/parley/internal/realtime"
	"github.com/adamavenir/parley/internal/types"
	"go.uber.org/zap"
)

// DefaultFileKind is stored for file messages submitted without a file kind.
const DefaultFileKind = "other"

// Deps are the collaborators the engine talks to.
type Deps struct {
	Directory  Directory
	Encrypter  Encrypter
	Translator Translator
	Publisher  realtime.Publisher
	Notifier   Notifier
	Logger     *zap.Logger
}

// Options bound the engine's best-effort work.
type Options struct {
	PreviewTimeout   time.Duration
	BroadcastTimeout time.Duration
	NotifyTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		PreviewTimeout:   2 * time.Second,
		BroadcastTimeout: 5 * time.Second,
		NotifyTimeout:    10 * time.Second,
	}
}

// Service is the conversation engine. It holds no per-conversation state;
// all coordination goes through the database.
type Service struct {
	db       *sql.DB
	dir      Directory
	enc      Encrypter
	tr       Translator
	pub      realtime.Publisher
	notifier Notifier
	logger   *zap.Logger
	opts     Options
	now      func() time.Time

	wg sync.WaitGroup
}

func NewService(conn *sql.DB, deps Deps, opts Options) *Service {
	defaults := DefaultOptions()
	if opts.PreviewTimeout <= 0 {
		opts.PreviewTimeout = defaults.PreviewTimeout
	}
	if opts.BroadcastTimeout <= 0 {
		opts.BroadcastTimeout = defaults.BroadcastTimeout
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaults.NotifyTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       conn,
		dir:      deps.Directory,
		enc:      deps.Encrypter,
		tr:       deps.Translator,
		pub:      deps.Publisher,
		notifier: deps.Notifier,
		logger:   logger.Named("chat"),
		opts:     opts,
		now:      time.Now,
	}
}

// Wait blocks until background fan-out and notifications have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// SubmitRequest is one message submission. ActorID is the authenticated
// sender; ConnectionID, when set, is excluded from the realtime echo.
type SubmitRequest struct {
	ActorID        string
	ConnectionID   string
	Target         types.Participant
	KeyHint        string
	Body           string
	Kind           types.MessageKind
	FileKind       *string
	Flags          types.MessageFlags
	ThreadParentID *string
	TagUserID      *string
	ExpireAt       *int64
	CallState      types.CallState
	CallDuration   int64
}

// submission is a validated request with its resolved parties.
type submission struct {
	req      SubmitRequest
	sender   types.User
	receiver types.Party
}

// Submit persists a message, updates both inbox indexes and the call log in
// one transaction, and returns the rendered message. Realtime fan-out and
// call notifications run after commit and never fail the submission.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (types.SubmitResult, error) {
	result, err := s.submit(ctx, req)
	if err != nil {
		metrics.SubmitFailures.WithLabelValues(string(apperr.CodeOf(err))).Inc()
		return types.SubmitResult{}, err
	}
	return result, nil
}

func (s *Service) submit(ctx context.Context, req SubmitRequest) (types.SubmitResult, error) {
	sub, err := s.validate(ctx, req)
	if err != nil {
		return types.SubmitResult{}, err
	}
	req = sub.req

	ciphertext, err := s.enc.Encrypt(ctx, []byte(req.Body))
	if err != nil {
		return types.SubmitResult{}, apperr.Encryption(err)
	}

	var (
		message types.Message
		call    *types.CallRecord
		key     types.ConversationKey
	)
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		key, err = s.resolveKey(ctx, tx, req.ActorID, req.Target, req.KeyHint)
		if err != nil {
			return err
		}

		draft := types.Message{
			SenderID:         req.ActorID,
			ConversationKey:  key.String(),
			ConversationKind: req.Target.Kind(),
			Kind:             req.Kind,
			FileKind:         req.FileKind,
			Body:             ciphertext,
			ReadState:        types.ReadStateUnread,
			Flags:            req.Flags,
			ExpireAt:         req.ExpireAt,
			ThreadParentID:   req.ThreadParentID,
			TagUserID:        req.TagUserID,
			SourceLanguage:   sub.sender.ChatLanguage,
			CreatedAt:        s.now().UnixMilli(),
		}
		if target, ok := req.Target.(types.UserTarget); ok {
			recipient := target.UserID
			draft.RecipientID = &recipient
		}

		message, err = db.CreateMessage(ctx, tx, draft)
		if err != nil {
			return err
		}
		if message.Kind == types.MessageKindCall {
			record, err := s.recordCall(ctx, tx, message, req)
			if err != nil {
				return err
			}
			call = &record
		}
		return db.TouchIndex(ctx, tx, message)
	})
	if err != nil {
		var appErr *apperr.AppError
		if errors.As(err, &appErr) {
			return types.SubmitResult{}, err
		}
		return types.SubmitResult{}, apperr.Internal("persist message", err)
	}

	metrics.MessagesSubmitted.WithLabelValues(string(message.Kind), string(message.ConversationKind)).Inc()
	s.logger.Debug("message committed",
		zap.String("message", message.ID),
		zap.String("conversation", message.ConversationKey),
		zap.String("kind", string(message.Kind)))

	thread := s.ResolveThread(ctx, message, req.ActorID)
	senderParty := userParty(sub.sender)
	view := buildView(message, req.Body, senderParty, sub.receiver, call, thread, req.ActorID)

	s.background(s.opts.BroadcastTimeout, func(ctx context.Context) {
		s.fanOut(ctx, message, view, senderParty, sub.receiver, req.ConnectionID)
	})
	if call != nil {
		s.background(s.opts.NotifyTimeout, func(ctx context.Context) {
			s.notifyCall(ctx, *call, sub.sender)
		})
	}

	return types.SubmitResult{
		Meta: types.ConversationMeta{
			CounterpartID:   req.Target.ID(),
			ConversationKey: key.String(),
			Kind:            req.Target.Kind(),
		},
		View: view,
	}, nil
}

// validate rejects a request before anything is written.
func (s *Service) validate(ctx context.Context, req SubmitRequest) (submission, error) {
	req.ActorID = strings.TrimSpace(req.ActorID)
	if req.ActorID == "" {
		return submission{}, apperr.Validation("sender is required")
	}
	if req.Target == nil || strings.TrimSpace(req.Target.ID()) == "" {
		return submission{}, apperr.Validation("target is required")
	}
	if req.Kind == "" {
		req.Kind = types.MessageKindText
	}
	if !req.Kind.Valid() {
		return submission{}, apperr.InvalidKind(string(req.Kind))
	}
	if req.Kind == types.MessageKindText && strings.TrimSpace(req.Body) == "" {
		return submission{}, apperr.Validation("message body is required")
	}
	if req.Kind == types.MessageKindFile && req.FileKind == nil {
		fileKind := DefaultFileKind
		req.FileKind = &fileKind
	}
	if req.Kind != types.MessageKindFile {
		req.FileKind = nil
	}
	if req.Kind == types.MessageKindCall && req.CallState != "" && !req.CallState.Valid() {
		return submission{}, apperr.Validationf("unknown call state %q", req.CallState)
	}
	if req.Kind == types.MessageKindCall && req.CallDuration < 0 {
		return submission{}, apperr.Validation("call duration cannot be negative")
	}

	sender, err := s.dir.User(ctx, req.ActorID)
	if err != nil {
		return submission{}, apperr.Internal("load sender", err)
	}
	if sender == nil {
		return submission{}, apperr.Validationf("sender %s does not exist", req.ActorID)
	}

	receiver, err := s.resolveReceiver(ctx, req.ActorID, req.Target)
	if err != nil {
		return submission{}, err
	}

	if req.ThreadParentID != nil {
		if err := s.validateParent(ctx, req.ActorID, req.Target, *req.ThreadParentID); err != nil {
			return submission{}, err
		}
	}
	if req.TagUserID != nil {
		tagged, err := s.dir.User(ctx, *req.TagUserID)
		if err != nil {
			return submission{}, apperr.Internal("load tagged user", err)
		}
		if tagged == nil {
			return submission{}, apperr.Validationf("tagged user %s does not exist", *req.TagUserID)
		}
	}

	return submission{req: req, sender: *sender, receiver: receiver}, nil
}

func (s *Service) resolveReceiver(ctx context.Context, actorID string, target types.Participant) (types.Party, error) {
	switch t := target.(type) {
	case types.UserTarget:
		if t.UserID == actorID {
			return types.Party{}, apperr.Validation("cannot send a direct message to yourself")
		}
		user, err := s.dir.User(ctx, t.UserID)
		if err != nil {
			return types.Party{}, apperr.Internal("load target user", err)
		}
		if user == nil {
			return types.Party{}, apperr.Validationf("target user %s does not exist", t.UserID)
		}
		return userParty(*user), nil
	case types.GroupTarget:
		group, err := s.dir.Group(ctx, t.GroupID)
		if err != nil {
			return types.Party{}, apperr.Internal("load target group", err)
		}
		if group == nil {
			return types.Party{}, apperr.Validationf("target group %s does not exist", t.GroupID)
		}
		member, err := s.dir.IsGroupMember(ctx, t.GroupID, actorID)
		if err != nil {
			return types.Party{}, apperr.Internal("check membership", err)
		}
		if !member {
			return types.Party{}, apperr.Forbidden(fmt.Sprintf("%s is not a member of %s", actorID, t.GroupID))
		}
		return groupParty(*group), nil
	default:
		return types.Party{}, apperr.Validationf("unsupported participant %T", target)
	}
}

// validateParent requires the thread parent to exist in the same conversation.
// A soft-deleted parent is still a valid reference.
func (s *Service) validateParent(ctx context.Context, actorID string, target types.Participant, parentID string) error {
	parent, err := db.GetMessage(ctx, s.db, parentID)
	if err != nil {
		return apperr.Internal("load thread parent", err)
	}
	if parent == nil {
		return apperr.Validationf("thread parent %s does not exist", parentID)
	}

	switch t := target.(type) {
	case types.GroupTarget:
		if parent.ConversationKind != types.ConversationGroup || parent.ConversationKey != t.GroupID {
			return apperr.Validationf("thread parent %s belongs to another conversation", parentID)
		}
	case types.UserTarget:
		if parent.ConversationKind != types.ConversationDirect || parent.RecipientID == nil ||
			!samePair(parent.SenderID, *parent.RecipientID, actorID, t.UserID) {
			return apperr.Validationf("thread parent %s belongs to another conversation", parentID)
		}
	}
	return nil
}

func samePair(a1, b1, a2, b2 string) bool {
	return (a1 == a2 && b1 == b2) || (a1 == b2 && b1 == a2)
}

// background runs fn detached from the request, bounded by timeout.
func (s *Service) background(timeout time.Duration, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fn(ctx)
	}()
}

func userParty(user types.User) types.Party {
	return types.Party{ID: user.ID, Name: user.Name, Email: user.Email, Phone: user.Phone}
}

func groupParty(group types.Group) types.Party {
	return types.Party{ID: group.ID, Name: group.Name}
}
