package chat

import (
	"context"
	"errors"
	"sort"

	"chat-service/apperror"
	"chat-service/model"

	"gorm.io/gorm"
)

// ReactToMessage is an idempotent toggle: re-sending the same
// (message, user, reaction) triple removes the existing row. The full
// recomputed reaction set is broadcast after each toggle so clients never
// reconcile deltas.
func (e *Engine) ReactToMessage(ctx context.Context, messageID, userID uint, reaction string) ([]ReactionView, error) {
	if reaction == "" {
		return nil, apperror.NewValidation("Reaction is required")
	}

	message, err := e.messageByID(messageID)
	if err != nil {
		return nil, err
	}
	if _, err := e.requireParticipant(message.ChatRoomID, userID); err != nil {
		return nil, err
	}

	existing := new(model.MessageReaction)
	err = e.db.Where(&model.MessageReaction{MessageID: messageID, UserID: userID, Reaction: reaction}).
		First(existing).Error
	switch {
	case err == nil:
		if err := e.db.WithContext(ctx).Delete(existing).Error; err != nil {
			return nil, apperror.NewUnexpected(err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := &model.MessageReaction{MessageID: messageID, UserID: userID, Reaction: reaction}
		if err := e.db.WithContext(ctx).Create(row).Error; err != nil {
			// A concurrent identical toggle already inserted the row; the
			// target state is reached either way.
			if !isUniqueViolation(err) {
				return nil, apperror.NewUnexpected(err)
			}
		}
	default:
		return nil, apperror.NewUnexpected(err)
	}

	reactions, err := e.reactionSet(messageID)
	if err != nil {
		return nil, err
	}

	e.emit(message.ChatRoomID, EventReactionUpdate, map[string]any{
		"message_id": messageID,
		"reactions":  reactions,
	})
	return reactions, nil
}

func (e *Engine) reactionSet(messageID uint) ([]ReactionView, error) {
	var rows []model.MessageReaction
	if err := e.db.Where(&model.MessageReaction{MessageID: messageID}).
		Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	grouped := map[string][]uint{}
	order := []string{}
	for _, row := range rows {
		if _, ok := grouped[row.Reaction]; !ok {
			order = append(order, row.Reaction)
		}
		grouped[row.Reaction] = append(grouped[row.Reaction], row.UserID)
	}
	sort.Strings(order)

	views := make([]ReactionView, 0, len(order))
	for _, reaction := range order {
		views = append(views, ReactionView{
			Reaction: reaction,
			Count:    len(grouped[reaction]),
			UserIDs:  grouped[reaction],
		})
	}
	return views, nil
}

// PinMessage highlights a message in its room. Admin only; a message can be
// pinned at most once per room.
func (e *Engine) PinMessage(ctx context.Context, roomID, actingUserID, messageID uint) (*PinView, error) {
	if _, err := e.requireAdmin(roomID, actingUserID); err != nil {
		return nil, err
	}

	message, err := e.messageByID(messageID)
	if err != nil {
		return nil, err
	}
	if message.ChatRoomID != roomID {
		return nil, apperror.NewNotFound("Message not found in this chat room")
	}

	existing := new(model.PinnedMessage)
	err = e.db.Where(&model.PinnedMessage{ChatRoomID: roomID, MessageID: messageID}).First(existing).Error
	if err == nil {
		return nil, apperror.NewConflict("Message is already pinned")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NewUnexpected(err)
	}

	pin := &model.PinnedMessage{
		ChatRoomID: roomID,
		MessageID:  messageID,
		PinnedBy:   actingUserID,
		PinnedAt:   now(),
	}
	if err := e.db.WithContext(ctx).Create(pin).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.NewConflict("Message is already pinned")
		}
		return nil, apperror.NewUnexpected(err)
	}

	view := &PinView{
		ID:       pin.ID,
		PinnedBy: pin.PinnedBy,
		PinnedAt: pin.PinnedAt,
		Message:  messageView(*message),
	}
	e.emit(roomID, EventMessagePinned, view)
	return view, nil
}

// UnpinMessage removes a pin. Allowed for admins and for the original pinner.
func (e *Engine) UnpinMessage(ctx context.Context, roomID, actingUserID, messageID uint) error {
	participant, err := e.requireParticipant(roomID, actingUserID)
	if err != nil {
		return err
	}

	pin := new(model.PinnedMessage)
	err = e.db.Where(&model.PinnedMessage{ChatRoomID: roomID, MessageID: messageID}).First(pin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NewNotFound("Pinned message not found")
		}
		return apperror.NewUnexpected(err)
	}

	if !participant.IsAdmin && pin.PinnedBy != actingUserID {
		return apperror.NewForbidden("Only an admin or the original pinner can unpin a message")
	}

	if err := e.db.WithContext(ctx).Delete(pin).Error; err != nil {
		return apperror.NewUnexpected(err)
	}

	e.emit(roomID, EventMessageUnpinned, map[string]any{
		"chat_room_id": roomID,
		"message_id":   messageID,
		"unpinned_by":  actingUserID,
	})
	return nil
}

// ListPinned returns the room's pins, newest pin first.
func (e *Engine) ListPinned(ctx context.Context, roomID, userID uint) ([]PinView, error) {
	if _, err := e.requireParticipant(roomID, userID); err != nil {
		return nil, err
	}

	var pins []model.PinnedMessage
	if err := e.db.WithContext(ctx).Preload("Message").Preload("Message.Sender").
		Where(&model.PinnedMessage{ChatRoomID: roomID}).
		Order("pinned_at DESC").Find(&pins).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	views := make([]PinView, 0, len(pins))
	for _, pin := range pins {
		views = append(views, PinView{
			ID:       pin.ID,
			PinnedBy: pin.PinnedBy,
			PinnedAt: pin.PinnedAt,
			Message:  messageView(pin.Message),
		})
	}
	return views, nil
}
