package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"chat-service/apperror"
	"chat-service/cache"
	"chat-service/directory"
	"chat-service/model"

	"gorm.io/gorm"
)

// Broadcaster fans a domain event out to every socket subscribed to a room
// channel. The realtime gateway implements it; tests record the calls.
type Broadcaster interface {
	Emit(roomID uint, event string, payload any)
}

// Engine owns the room/participant/message lifecycle and enforces the
// permission and invariant rules. All mutations that span more than one row
// run inside a single transaction against the database; cache writes stay
// outside the transaction and are best-effort.
type Engine struct {
	db        *gorm.DB
	cache     *cache.Cache
	directory *directory.Directory
	broadcast Broadcaster
}

func NewEngine(db *gorm.DB, c *cache.Cache, dir *directory.Directory, b Broadcaster) *Engine {
	return &Engine{db: db, cache: c, directory: dir, broadcast: b}
}

func (e *Engine) emit(roomID uint, event string, payload any) {
	if e.broadcast != nil {
		e.broadcast.Emit(roomID, event, payload)
	}
}

func (e *Engine) roomByID(roomID uint) (*model.ChatRoom, error) {
	room := new(model.ChatRoom)
	if err := e.db.First(room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("Chat room not found")
		}
		return nil, apperror.NewUnexpected(err)
	}
	return room, nil
}

func (e *Engine) messageByID(messageID uint) (*model.ChatMessage, error) {
	message := new(model.ChatMessage)
	if err := e.db.Preload("Sender").First(message, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("Message not found")
		}
		return nil, apperror.NewUnexpected(err)
	}
	return message, nil
}

// participantOf returns the participant record regardless of status, or nil.
func participantOf(db *gorm.DB, roomID, userID uint) (*model.ChatParticipant, error) {
	participant := new(model.ChatParticipant)
	err := db.Where(&model.ChatParticipant{ChatRoomID: roomID, UserID: userID}).First(participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.NewUnexpected(err)
	}
	return participant, nil
}

// requireParticipant fails with Forbidden unless userID is an ACTIVE
// participant of the room.
func (e *Engine) requireParticipant(roomID, userID uint) (*model.ChatParticipant, error) {
	participant, err := participantOf(e.db, roomID, userID)
	if err != nil {
		return nil, err
	}
	if participant == nil || participant.Status != model.ParticipantActive {
		return nil, apperror.NewForbidden("You are not a participant of this chat room")
	}
	return participant, nil
}

// requireAdmin fails with Forbidden unless userID is an ACTIVE admin.
func (e *Engine) requireAdmin(roomID, userID uint) (*model.ChatParticipant, error) {
	participant, err := e.requireParticipant(roomID, userID)
	if err != nil {
		return nil, err
	}
	if !participant.IsAdmin {
		return nil, apperror.NewForbidden("Admin access required")
	}
	return participant, nil
}

// ActiveRoomIDs lists every room where the user holds an ACTIVE participant
// record; the realtime gateway subscribes its sockets to these channels.
func (e *Engine) ActiveRoomIDs(userID uint) []uint {
	var ids []uint
	e.db.Model(&model.ChatParticipant{}).
		Where("user_id = ? AND status = ?", userID, model.ParticipantActive).
		Pluck("chat_room_id", &ids)
	return ids
}

// VerifyParticipant fails with Forbidden unless userID is an ACTIVE
// participant of the room.
func (e *Engine) VerifyParticipant(roomID, userID uint) error {
	_, err := e.requireParticipant(roomID, userID)
	return err
}

func (e *Engine) activeParticipantIDs(roomID uint) []uint {
	var ids []uint
	e.db.Model(&model.ChatParticipant{}).
		Where("chat_room_id = ? AND status = ?", roomID, model.ParticipantActive).
		Pluck("user_id", &ids)
	return ids
}

func activeAdminCount(tx *gorm.DB, roomID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.ChatParticipant{}).
		Where("chat_room_id = ? AND status = ? AND is_admin = ?", roomID, model.ParticipantActive, true).
		Count(&count).Error
	return count, err
}

// systemMessage writes an engine-authored message narrating a membership or
// admin change and advances the room's lastMessageAt, inside the caller's
// transaction.
func systemMessage(tx *gorm.DB, room *model.ChatRoom, actorID uint, content string, meta map[string]any) (*model.ChatMessage, error) {
	metadata := ""
	if meta != nil {
		raw, err := json.Marshal(meta)
		if err != nil {
			return nil, err
		}
		metadata = string(raw)
	}

	message := &model.ChatMessage{
		ChatRoomID:  room.ID,
		SenderID:    actorID,
		Content:     content,
		ContentType: model.ContentSystem,
		Metadata:    metadata,
	}
	if err := tx.Create(message).Error; err != nil {
		return nil, err
	}

	room.LastMessageAt = &message.CreatedAt
	if err := tx.Model(room).Update("last_message_at", message.CreatedAt).Error; err != nil {
		return nil, err
	}
	return message, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// invalidateAfterMessage drops every cache entry a message mutation can
// affect: all message pages for the room, the room snapshot (lastMessageAt
// moved) and the room list of every active participant.
func (e *Engine) invalidateAfterMessage(ctx context.Context, roomID uint) {
	e.cache.InvalidateRoomMessages(ctx, roomID)
	e.cache.Delete(ctx, cache.RoomKey(roomID))
	e.cache.InvalidateRoomLists(ctx, e.activeParticipantIDs(roomID))
}

func now() time.Time {
	return time.Now().UTC()
}
