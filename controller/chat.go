package controller

import (
	"strconv"
	"time"

	"chat-service/apperror"
	"chat-service/chat"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var engine *chat.Engine

// SetEngine wires the chat engine the handlers delegate to.
func SetEngine(e *chat.Engine) {
	engine = e
}

type AddParticipantInput struct {
	UserID uint `json:"user_id"`
}

func currentUserID(c *fiber.Ctx) uint {
	user := c.Locals("user").(*jwt.Token)
	claims := user.Claims.(jwt.MapClaims)
	id, _ := strconv.ParseUint(claims["id"].(string), 10, 64)
	return uint(id)
}

func paramUint(c *fiber.Ctx, name string) (uint, error) {
	value, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil {
		return 0, apperror.NewValidation("Invalid " + name)
	}
	return uint(value), nil
}

func ok(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(apperror.StatusCode(err)).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

// ChatRoomCreate handles POST /v1/chat
func ChatRoomCreate(c *fiber.Ctx) error {
	input := new(chat.CreateRoomInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, apperror.NewValidation("Review your input"))
	}

	room, err := engine.CreateRoom(c.Context(), currentUserID(c), *input)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "Chat room created", room)
}

// ChatRoomList handles GET /v1/chat
func ChatRoomList(c *fiber.Ctx) error {
	rooms, err := engine.ListRoomsForUser(c.Context(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", rooms)
}

// ChatRoomGet handles GET /v1/chat/:id
func ChatRoomGet(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, err)
	}

	room, err := engine.GetRoom(c.Context(), currentUserID(c), roomID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", room)
}

// ChatRoomUpdate handles PUT /v1/chat/:id
func ChatRoomUpdate(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, err)
	}

	input := new(chat.UpdateRoomInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, apperror.NewValidation("Review your input"))
	}

	room, err := engine.UpdateRoom(c.Context(), currentUserID(c), roomID, *input)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Chat room updated", room)
}

// ChatMessages handles GET /v1/chat/:id/messages with either ?page&limit or
// ?before=<RFC3339 timestamp> paging.
func ChatMessages(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, err)
	}

	input := chat.FetchMessagesInput{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 50),
	}
	if before := c.Query("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return fail(c, apperror.NewValidation("Invalid before timestamp"))
		}
		input.Before = &parsed
	}

	messages, err := engine.FetchMessages(c.Context(), roomID, currentUserID(c), input)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", messages)
}

// ChatParticipantAdd handles POST /v1/chat/:id/participants
func ChatParticipantAdd(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, err)
	}

	input := new(AddParticipantInput)
	if err := c.BodyParser(input); err != nil || input.UserID == 0 {
		return fail(c, apperror.NewValidation("Review your input"))
	}

	participant, err := engine.AddParticipant(c.Context(), roomID, currentUserID(c), input.UserID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "Participant added", participant)
}

// ChatParticipantList handles GET /v1/chat/:id/participants
func ChatParticipantList(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, err)
	}

	participants, err := engine.ListParticipants(c.Context(), roomID, currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", participants)
}

// ChatParticipantRemove handles DELETE /v1/chat/:id/participants/:userId
func ChatParticipantRemove(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, err)
	}
	targetID, err := paramUint(c, "userId")
	if err != nil {
		return fail(c, err)
	}

	if err := engine.RemoveParticipant(c.Context(), roomID, currentUserID(c), targetID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Participant removed", nil)
}

// ChatAdminPromote handles PUT /v1/chat/:id/admins/:userId
func ChatAdminPromote(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, err)
	}
	targetID, err := paramUint(c, "userId")
	if err != nil {
		return fail(c, err)
	}

	if err := engine.PromoteAdmin(c.Context(), roomID, currentUserID(c), targetID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Admin promoted", nil)
}

// ChatAdminDemote handles DELETE /v1/chat/:id/admins/:userId
func ChatAdminDemote(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, err)
	}
	targetID, err := paramUint(c, "userId")
	if err != nil {
		return fail(c, err)
	}

	if err := engine.DemoteAdmin(c.Context(), roomID, currentUserID(c), targetID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Admin demoted", nil)
}

// ChatMessagePin handles POST /v1/chat/:chatRoomId/pin/:messageId
func ChatMessagePin(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "chatRoomId")
	if err != nil {
		return fail(c, err)
	}
	messageID, err := paramUint(c, "messageId")
	if err != nil {
		return fail(c, err)
	}

	pin, err := engine.PinMessage(c.Context(), roomID, currentUserID(c), messageID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "Message pinned", pin)
}

// ChatMessageUnpin handles DELETE /v1/chat/:chatRoomId/pin/:messageId
func ChatMessageUnpin(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "chatRoomId")
	if err != nil {
		return fail(c, err)
	}
	messageID, err := paramUint(c, "messageId")
	if err != nil {
		return fail(c, err)
	}

	if err := engine.UnpinMessage(c.Context(), roomID, currentUserID(c), messageID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Message unpinned", nil)
}

// ChatPinnedList handles GET /v1/chat/:id/pinned
func ChatPinnedList(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, err)
	}

	pins, err := engine.ListPinned(c.Context(), roomID, currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", pins)
}

// AdminRoomList handles GET /v1/admin/rooms, the moderation surface.
func AdminRoomList(c *fiber.Ctx) error {
	rooms, err := engine.ListAllRooms(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", rooms)
}
