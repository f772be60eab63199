package chat

import (
	"context"
	"errors"
	"fmt"

	"chat-service/apperror"
	"chat-service/cache"
	"chat-service/model"

	"gorm.io/gorm"
)

func userByID(db *gorm.DB, userID uint) (*model.User, error) {
	user := new(model.User)
	if err := db.First(user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("User not found")
		}
		return nil, apperror.NewUnexpected(err)
	}
	return user, nil
}

// AddParticipant adds targetUserID to the room, or reactivates their LEFT
// record. Admin only. A participant record is never duplicated per user.
func (e *Engine) AddParticipant(ctx context.Context, roomID, actingUserID, targetUserID uint) (*ParticipantView, error) {
	if _, err := e.requireAdmin(roomID, actingUserID); err != nil {
		return nil, err
	}

	room, err := e.roomByID(roomID)
	if err != nil {
		return nil, err
	}

	target, err := userByID(e.db, targetUserID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive {
		return nil, apperror.NewNotFound("User not found or inactive")
	}

	existing, err := participantOf(e.db, roomID, targetUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == model.ParticipantActive {
		return nil, apperror.NewConflict("User is already a participant")
	}

	participant := existing
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		content := fmt.Sprintf("%s was added to the chat", target.Username)
		action := ActionParticipantAdded

		if existing != nil {
			// Rejoining members come back without admin rights.
			content = fmt.Sprintf("%s was added back to the chat", target.Username)
			action = ActionParticipantReadded
			if err := tx.Model(existing).
				Updates(map[string]any{"status": model.ParticipantActive, "is_admin": false}).Error; err != nil {
				return err
			}
		} else {
			participant = &model.ChatParticipant{
				ChatRoomID: roomID,
				UserID:     targetUserID,
				IsAdmin:    false,
				Status:     model.ParticipantActive,
			}
			if err := tx.Create(participant).Error; err != nil {
				return err
			}
		}

		_, err := systemMessage(tx, room, actingUserID, content,
			map[string]any{"action": action, "targetUserId": targetUserID})
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.NewConflict("User is already a participant")
		}
		return nil, apperror.NewUnexpected(err)
	}

	e.cache.InvalidateRoom(ctx, roomID)
	e.invalidateAfterMessage(ctx, roomID)

	participant.User = *target
	view := participantView(*participant)
	e.emit(roomID, EventParticipantAdded, view)
	return &view, nil
}

// RemoveParticipant soft-removes targetUserID from the room by flipping their
// status to LEFT. Self-removal is always permitted; removing someone else
// requires admin rights. The admin-count floor is re-checked inside the
// transaction so two concurrent removals cannot drop the last admin.
func (e *Engine) RemoveParticipant(ctx context.Context, roomID, actingUserID, targetUserID uint) error {
	if actingUserID != targetUserID {
		if _, err := e.requireAdmin(roomID, actingUserID); err != nil {
			return err
		}
	} else {
		if _, err := e.requireParticipant(roomID, actingUserID); err != nil {
			return err
		}
	}

	room, err := e.roomByID(roomID)
	if err != nil {
		return err
	}

	target, err := userByID(e.db, targetUserID)
	if err != nil {
		return err
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participant, err := participantOf(tx, roomID, targetUserID)
		if err != nil {
			return err
		}
		if participant == nil || participant.Status != model.ParticipantActive {
			return apperror.NewNotFound("User is not a participant of this chat room")
		}

		if participant.IsAdmin {
			admins, err := activeAdminCount(tx, roomID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return apperror.NewConflict("Cannot remove the last admin")
			}
		}

		if err := tx.Model(participant).Update("status", model.ParticipantLeft).Error; err != nil {
			return err
		}

		content := fmt.Sprintf("%s was removed from the chat", target.Username)
		action := ActionParticipantRemoved
		if actingUserID == targetUserID {
			content = fmt.Sprintf("%s left the chat", target.Username)
			action = ActionParticipantLeft
		}

		_, err = systemMessage(tx, room, actingUserID, content,
			map[string]any{"action": action, "targetUserId": targetUserID})
		return err
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.NewUnexpected(err)
	}

	e.cache.InvalidateRoom(ctx, roomID)
	e.cache.Delete(ctx, cache.RoomListKey(targetUserID))
	e.invalidateAfterMessage(ctx, roomID)

	e.emit(roomID, EventParticipantRemoved, map[string]any{
		"chat_room_id": roomID,
		"user_id":      targetUserID,
		"removed_by":   actingUserID,
	})
	return nil
}

// ListParticipants returns the room's roster, earliest joiner first, LEFT
// members included. Served read-through from the participants cache key.
func (e *Engine) ListParticipants(ctx context.Context, roomID, userID uint) ([]ParticipantView, error) {
	if _, err := e.requireParticipant(roomID, userID); err != nil {
		return nil, err
	}

	var views []ParticipantView
	if e.cache.GetJSON(ctx, cache.ParticipantsKey(roomID), &views) {
		return views, nil
	}

	var participants []model.ChatParticipant
	if err := e.db.WithContext(ctx).Preload("User").
		Where(&model.ChatParticipant{ChatRoomID: roomID}).
		Order("created_at ASC").Find(&participants).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	views = make([]ParticipantView, 0, len(participants))
	for _, p := range participants {
		views = append(views, participantView(p))
	}

	e.cache.SetJSON(ctx, cache.ParticipantsKey(roomID), views, cache.ParticipantsTTL)
	return views, nil
}

// PromoteAdmin grants admin rights to an active participant. Admin only.
func (e *Engine) PromoteAdmin(ctx context.Context, roomID, actingUserID, targetUserID uint) error {
	if _, err := e.requireAdmin(roomID, actingUserID); err != nil {
		return err
	}

	room, err := e.roomByID(roomID)
	if err != nil {
		return err
	}

	target, err := userByID(e.db, targetUserID)
	if err != nil {
		return err
	}

	participant, err := participantOf(e.db, roomID, targetUserID)
	if err != nil {
		return err
	}
	if participant == nil || participant.Status != model.ParticipantActive {
		return apperror.NewNotFound("User is not a participant of this chat room")
	}
	if participant.IsAdmin {
		return apperror.NewConflict("User is already an admin")
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(participant).Update("is_admin", true).Error; err != nil {
			return err
		}
		_, err := systemMessage(tx, room, actingUserID,
			fmt.Sprintf("%s was promoted to admin", target.Username),
			map[string]any{"action": ActionAdminPromoted, "targetUserId": targetUserID})
		return err
	})
	if err != nil {
		return apperror.NewUnexpected(err)
	}

	e.cache.InvalidateRoom(ctx, roomID)
	e.invalidateAfterMessage(ctx, roomID)

	e.emit(roomID, EventParticipantUpdated, map[string]any{
		"chat_room_id": roomID,
		"user_id":      targetUserID,
		"is_admin":     true,
	})
	return nil
}

// DemoteAdmin revokes admin rights. A room never drops below one active
// admin; the count is re-checked inside the transaction so two concurrent
// mutual demotions cannot clear the floor.
func (e *Engine) DemoteAdmin(ctx context.Context, roomID, actingUserID, targetUserID uint) error {
	if _, err := e.requireAdmin(roomID, actingUserID); err != nil {
		return err
	}

	room, err := e.roomByID(roomID)
	if err != nil {
		return err
	}

	target, err := userByID(e.db, targetUserID)
	if err != nil {
		return err
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participant, err := participantOf(tx, roomID, targetUserID)
		if err != nil {
			return err
		}
		if participant == nil || participant.Status != model.ParticipantActive {
			return apperror.NewNotFound("User is not a participant of this chat room")
		}
		if !participant.IsAdmin {
			return apperror.NewConflict("User is not an admin")
		}

		admins, err := activeAdminCount(tx, roomID)
		if err != nil {
			return err
		}
		// A count of one means the target is the only admin left, whoever
		// the actor's pre-transaction check believed itself to be.
		if admins <= 1 {
			return apperror.NewConflict("Cannot demote the last admin")
		}

		if err := tx.Model(participant).Update("is_admin", false).Error; err != nil {
			return err
		}

		_, err = systemMessage(tx, room, actingUserID,
			fmt.Sprintf("%s is no longer an admin", target.Username),
			map[string]any{"action": ActionAdminDemoted, "targetUserId": targetUserID})
		return err
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.NewUnexpected(err)
	}

	e.cache.InvalidateRoom(ctx, roomID)
	e.invalidateAfterMessage(ctx, roomID)

	e.emit(roomID, EventParticipantUpdated, map[string]any{
		"chat_room_id": roomID,
		"user_id":      targetUserID,
		"is_admin":     false,
	})
	return nil
}
