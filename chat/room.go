package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"chat-service/apperror"
	"chat-service/cache"
	"chat-service/model"

	"gorm.io/gorm"
)

type CreateRoomInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	EntityType  string `json:"entity_type"`
	EntityID    uint   `json:"entity_id"`
}

type UpdateRoomInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsArchived  *bool   `json:"is_archived"`
}

func validRoomType(t string) bool {
	switch t {
	case model.RoomTypeGroup, model.RoomTypeDirect, model.RoomTypeChannel:
		return true
	}
	return false
}

func validEntityType(t string) bool {
	switch t {
	case model.EntityOrganization, model.EntityDepartment, model.EntityTeam,
		model.EntityProject, model.EntityTask:
		return true
	}
	return false
}

// CreateRoom creates the room, the creator's admin participant, the seeded
// member roster and the welcome message as one atomic unit. A room created
// without its admin participant is a correctness bug, not a degraded state.
func (e *Engine) CreateRoom(ctx context.Context, creatorID uint, in CreateRoomInput) (*RoomDetail, error) {
	if in.Name == "" {
		return nil, apperror.NewValidation("Room name is required")
	}
	if in.Type == "" {
		in.Type = model.RoomTypeGroup
	}
	if !validRoomType(in.Type) {
		return nil, apperror.NewValidation("Invalid room type")
	}
	if !validEntityType(in.EntityType) {
		return nil, apperror.NewValidation("Invalid entity type")
	}

	existing := new(model.ChatRoom)
	err := e.db.Where(&model.ChatRoom{EntityType: in.EntityType, EntityID: in.EntityID}).First(existing).Error
	if err == nil {
		return nil, apperror.NewConflict("Chat room already exists for this entity")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NewUnexpected(err)
	}

	members, err := e.directory.ResolveMembers(in.EntityType, in.EntityID)
	if err != nil {
		return nil, err
	}

	room := &model.ChatRoom{
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		EntityType:  in.EntityType,
		EntityID:    in.EntityID,
		IsActive:    true,
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}

		creator := &model.ChatParticipant{
			ChatRoomID: room.ID,
			UserID:     creatorID,
			IsAdmin:    true,
			Status:     model.ParticipantActive,
		}
		if err := tx.Create(creator).Error; err != nil {
			return err
		}

		for _, userID := range members {
			if userID == creatorID {
				continue
			}
			participant := &model.ChatParticipant{
				ChatRoomID: room.ID,
				UserID:     userID,
				IsAdmin:    false,
				Status:     model.ParticipantActive,
			}
			if err := tx.Create(participant).Error; err != nil {
				return err
			}
		}

		_, err := systemMessage(tx, room, creatorID,
			fmt.Sprintf("Welcome to %s", room.Name),
			map[string]any{"action": ActionRoomCreated})
		return err
	})
	if err != nil {
		// A concurrent creation for the same entity loses on the unique index.
		if isUniqueViolation(err) {
			return nil, apperror.NewConflict("Chat room already exists for this entity")
		}
		return nil, apperror.NewUnexpected(err)
	}

	e.cache.InvalidateRoomLists(ctx, e.activeParticipantIDs(room.ID))

	return e.loadRoomDetail(ctx, room.ID)
}

// EnsureRoomForEntity backs the entity-creation hooks. An already existing
// room is not an error for the producing service. Events without an owner in
// the body fall back to the entity's resolved owner, so the creating admin is
// always a real user.
func (e *Engine) EnsureRoomForEntity(ctx context.Context, entityType string, entityID uint, name string, ownerID uint) (uint, error) {
	if ownerID == 0 {
		resolved, err := e.directory.ResolveOwner(entityType, entityID)
		if err != nil {
			return 0, err
		}
		ownerID = resolved
	}

	room, err := e.CreateRoom(ctx, ownerID, CreateRoomInput{
		Name:       name,
		Type:       model.RoomTypeGroup,
		EntityType: entityType,
		EntityID:   entityID,
	})
	if err == nil {
		return room.ID, nil
	}

	if apperror.IsKind(err, apperror.KindConflict) {
		// The room already exists, most likely from a redelivered event.
		existing := new(model.ChatRoom)
		if lookupErr := e.db.
			Where(&model.ChatRoom{EntityType: entityType, EntityID: entityID}).
			First(existing).Error; lookupErr != nil {
			return 0, apperror.NewUnexpected(lookupErr)
		}
		return existing.ID, nil
	}
	return 0, err
}

// ListRoomsForUser returns the caller's active rooms ordered by lastMessageAt
// descending, each with a last-message preview and an unread count. The unread
// count excludes messages the caller authored, system messages included.
func (e *Engine) ListRoomsForUser(ctx context.Context, userID uint) ([]RoomSummary, error) {
	var cached []RoomSummary
	if e.cache.GetJSON(ctx, cache.RoomListKey(userID), &cached) {
		return cached, nil
	}

	var participants []model.ChatParticipant
	if err := e.db.Where(&model.ChatParticipant{UserID: userID, Status: model.ParticipantActive}).
		Find(&participants).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	summaries := make([]RoomSummary, 0, len(participants))
	for _, participant := range participants {
		room := new(model.ChatRoom)
		if err := e.db.First(room, participant.ChatRoomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, apperror.NewUnexpected(err)
		}
		if !room.IsActive {
			continue
		}

		summary := RoomSummary{
			ID:            room.ID,
			Name:          room.Name,
			Description:   room.Description,
			Type:          room.Type,
			EntityType:    room.EntityType,
			EntityID:      room.EntityID,
			IsArchived:    room.IsArchived,
			LastMessageAt: room.LastMessageAt,
		}

		last := new(model.ChatMessage)
		err := e.db.Preload("Sender").
			Where(&model.ChatMessage{ChatRoomID: room.ID}).
			Order("created_at DESC").First(last).Error
		if err == nil {
			view := messageView(*last)
			summary.LastMessage = &view
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewUnexpected(err)
		}

		// Unread counts everything the caller did not author, deleted
		// placeholders included.
		unread := e.db.Model(&model.ChatMessage{}).
			Where("chat_room_id = ? AND sender_id <> ?", room.ID, userID)
		if participant.LastReadAt != nil {
			unread = unread.Where("created_at > ?", *participant.LastReadAt)
		}
		if err := unread.Count(&summary.UnreadCount).Error; err != nil {
			return nil, apperror.NewUnexpected(err)
		}

		summaries = append(summaries, summary)
	}

	// Newest activity first; rooms without any message sort last.
	sort.SliceStable(summaries, func(i, j int) bool {
		return laterThan(summaries[i].LastMessageAt, summaries[j].LastMessageAt)
	})

	e.cache.SetJSON(ctx, cache.RoomListKey(userID), summaries, cache.RoomListTTL)
	return summaries, nil
}

// GetRoom returns the room with its participant roster. Only active
// participants may read it.
func (e *Engine) GetRoom(ctx context.Context, userID, roomID uint) (*RoomDetail, error) {
	if _, err := e.requireParticipant(roomID, userID); err != nil {
		return nil, err
	}

	cached := new(RoomDetail)
	if e.cache.GetJSON(ctx, cache.RoomKey(roomID), cached) {
		return cached, nil
	}

	return e.loadRoomDetail(ctx, roomID)
}

func (e *Engine) loadRoomDetail(ctx context.Context, roomID uint) (*RoomDetail, error) {
	room, err := e.roomByID(roomID)
	if err != nil {
		return nil, err
	}

	var participants []model.ChatParticipant
	if err := e.db.Preload("User").
		Where(&model.ChatParticipant{ChatRoomID: roomID}).
		Order("created_at ASC").Find(&participants).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	detail := roomDetail(*room, participants)
	e.cache.SetJSON(ctx, cache.RoomKey(roomID), detail, cache.RoomTTL)
	return &detail, nil
}

// UpdateRoom renames, re-describes or archives a room. Admin only.
func (e *Engine) UpdateRoom(ctx context.Context, userID, roomID uint, in UpdateRoomInput) (*RoomDetail, error) {
	if _, err := e.requireAdmin(roomID, userID); err != nil {
		return nil, err
	}

	room, err := e.roomByID(roomID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, apperror.NewValidation("Room name is required")
		}
		updates["name"] = *in.Name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.IsArchived != nil && *in.IsArchived != room.IsArchived {
		updates["is_archived"] = *in.IsArchived
		if *in.IsArchived {
			updates["archived_at"] = now()
		} else {
			updates["archived_at"] = nil
		}
	}

	if len(updates) > 0 {
		if err := e.db.WithContext(ctx).Model(room).Updates(updates).Error; err != nil {
			return nil, apperror.NewUnexpected(err)
		}
		e.cache.Delete(ctx, cache.RoomKey(roomID))
		e.cache.InvalidateRoomLists(ctx, e.activeParticipantIDs(roomID))
	}

	detail, err := e.loadRoomDetail(ctx, roomID)
	if err != nil {
		return nil, err
	}

	e.emit(roomID, EventRoomUpdated, detail)
	return detail, nil
}

// ListAllRooms backs the moderation surface; includes archived rooms.
func (e *Engine) ListAllRooms(ctx context.Context) ([]RoomDetail, error) {
	var rooms []model.ChatRoom
	if err := e.db.WithContext(ctx).Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	details := make([]RoomDetail, 0, len(rooms))
	for _, room := range rooms {
		var participants []model.ChatParticipant
		if err := e.db.Preload("User").
			Where(&model.ChatParticipant{ChatRoomID: room.ID}).
			Find(&participants).Error; err != nil {
			return nil, apperror.NewUnexpected(err)
		}
		details = append(details, roomDetail(room, participants))
	}
	return details, nil
}

func laterThan(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}
