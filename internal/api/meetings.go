package api

import (
	"github.com/adamavenir/parley/internal/types"
	"github.com/gofiber/fiber/v2"
)

type meetingBody struct {
	Title    string `json:"title"`
	StartsAt int64  `json:"starts_at"`
}

func (s *Server) scheduleMeeting(c *fiber.Ctx) error {
	var body meetingBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	meeting, err := s.engine.ScheduleMeeting(c.UserContext(), actorID(c), body.Title, body.StartsAt)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(meeting)
}

type inviteBody struct {
	UserIDs  []string `json:"user_ids"`
	GroupIDs []string `json:"group_ids"`
}

func (s *Server) inviteToMeeting(c *fiber.Ctx) error {
	var body inviteBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	invitees := make([]types.Participant, 0, len(body.UserIDs)+len(body.GroupIDs))
	for _, id := range body.UserIDs {
		invitees = append(invitees, types.UserTarget{UserID: id})
	}
	for _, id := range body.GroupIDs {
		invitees = append(invitees, types.GroupTarget{GroupID: id})
	}
	invites, err := s.engine.InviteToMeeting(c.UserContext(), actorID(c), c.Params("id"), invitees...)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"invites": invites})
}

type answerBody struct {
	Status types.JoinStatus `json:"status"`
}

func (s *Server) respondToMeeting(c *fiber.Ctx) error {
	var body answerBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	invite, err := s.engine.RespondToMeeting(c.UserContext(), actorID(c), c.Params("id"), body.Status)
	if err != nil {
		return err
	}
	return c.JSON(invite)
}

func (s *Server) meetingInvites(c *fiber.Ctx) error {
	invites, err := s.engine.MeetingInvites(c.UserContext(), actorID(c))
	if err != nil {
		return err
	}
	if invites == nil {
		invites = []types.MeetingInvite{}
	}
	return c.JSON(fiber.Map{"invites": invites})
}
