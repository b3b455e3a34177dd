package api

import (
	"strconv"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/adamavenir/parley/internal/chat"
	"github.com/adamavenir/parley/internal/types"
	"github.com/gofiber/fiber/v2"
)

type submitBody struct {
	TargetKind      string             `json:"target_kind"`
	TargetID        string             `json:"target_id"`
	ConversationKey string             `json:"conversation_key"`
	Body            string             `json:"body"`
	Kind            types.MessageKind  `json:"kind"`
	FileKind        *string            `json:"file_kind"`
	Flags           types.MessageFlags `json:"flags"`
	ThreadParentID  *string            `json:"thread_parent_id"`
	TagUserID       *string            `json:"tag_user_id"`
	ExpireAt        *int64             `json:"expire_at"`
	CallState       types.CallState    `json:"call_state"`
	CallDuration    int64              `json:"call_duration"`
}

func (s *Server) submit(c *fiber.Ctx) error {
	var body submitBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if body.TargetKind == "" {
		body.TargetKind = "user"
	}
	target, err := types.ParseParticipant(body.TargetKind, body.TargetID)
	if err != nil {
		return apperr.Validation(err.Error())
	}

	result, err := s.engine.Submit(c.UserContext(), chat.SubmitRequest{
		ActorID:        actorID(c),
		ConnectionID:   c.Get(ConnectionIDHeader),
		Target:         target,
		KeyHint:        body.ConversationKey,
		Body:           body.Body,
		Kind:           body.Kind,
		FileKind:       body.FileKind,
		Flags:          body.Flags,
		ThreadParentID: body.ThreadParentID,
		TagUserID:      body.TagUserID,
		ExpireAt:       body.ExpireAt,
		CallState:      body.CallState,
		CallDuration:   body.CallDuration,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	summaries := []types.ConversationSummary{}
	for summary, err := range s.engine.ListConversations(c.UserContext(), actorID(c)) {
		if err != nil {
			return err
		}
		summaries = append(summaries, summary)
		if limit > 0 && len(summaries) >= limit {
			break
		}
	}
	return c.JSON(fiber.Map{"conversations": summaries})
}

func (s *Server) history(c *fiber.Ctx) error {
	counterpart, err := counterpartParam(c)
	if err != nil {
		return err
	}
	opts := &types.MessageQueryOptions{Limit: c.QueryInt("limit", 0)}
	if before := c.Query("before_created_at"); before != "" {
		createdAt, err := strconv.ParseInt(before, 10, 64)
		if err != nil {
			return apperr.Validation("before_created_at must be an integer")
		}
		seq, err := strconv.ParseInt(c.Query("before_seq", "0"), 10, 64)
		if err != nil {
			return apperr.Validation("before_seq must be an integer")
		}
		opts.Before = &types.MessageCursor{CreatedAt: createdAt, Seq: seq}
	}

	views, err := s.engine.ConversationMessages(c.UserContext(), actorID(c), counterpart, opts)
	if err != nil {
		return err
	}
	if views == nil {
		views = []types.MessageView{}
	}
	return c.JSON(fiber.Map{"messages": views})
}

func (s *Server) readConversation(c *fiber.Ctx) error {
	counterpart, err := counterpartParam(c)
	if err != nil {
		return err
	}
	marked, err := s.engine.MarkConversationRead(c.UserContext(), actorID(c), counterpart)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"marked": marked})
}

func (s *Server) markRead(c *fiber.Ctx) error {
	if err := s.engine.MarkRead(c.UserContext(), actorID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) setFlags(c *fiber.Ctx) error {
	var flags types.MessageFlags
	if err := c.BodyParser(&flags); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if err := s.engine.SetFlags(c.UserContext(), actorID(c), c.Params("id"), flags); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) deleteMessage(c *fiber.Ctx) error {
	if err := s.engine.DeleteMessage(c.UserContext(), actorID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type callBody struct {
	Duration int64           `json:"duration"`
	State    types.CallState `json:"state"`
}

func (s *Server) updateCall(c *fiber.Ctx) error {
	var body callBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	record, err := s.engine.UpdateCall(c.UserContext(), actorID(c), c.Params("id"), body.Duration, body.State)
	if err != nil {
		return err
	}
	return c.JSON(record)
}

func counterpartParam(c *fiber.Ctx) (types.Participant, error) {
	kind := c.Query("kind", "user")
	counterpart, err := types.ParseParticipant(kind, c.Params("counterpart"))
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return counterpart, nil
}
