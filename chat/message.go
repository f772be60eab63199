package chat

import (
	"context"
	"errors"
	"time"

	"chat-service/apperror"
	"chat-service/cache"
	"chat-service/model"

	"gorm.io/gorm"
)

type SendMessageInput struct {
	ChatRoomID  uint   `json:"chat_room_id"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	ReplyToID   *uint  `json:"reply_to_id"`
	Metadata    string `json:"metadata"`
}

type FetchMessagesInput struct {
	Page   int        `json:"page"`
	Limit  int        `json:"limit"`
	Before *time.Time `json:"before"`
}

func validContentType(t string) bool {
	switch t {
	case model.ContentText, model.ContentImage, model.ContentFile,
		model.ContentVideo, model.ContentAudio:
		return true
	}
	return false
}

// SendMessage persists the message, advances the room's lastMessageAt and the
// sender's read pointer in one transaction, then invalidates the message-page
// and room-list caches for every participant.
func (e *Engine) SendMessage(ctx context.Context, senderID uint, in SendMessageInput) (*MessageView, error) {
	sender, err := e.requireParticipant(in.ChatRoomID, senderID)
	if err != nil {
		return nil, err
	}

	room, err := e.roomByID(in.ChatRoomID)
	if err != nil {
		return nil, err
	}
	if room.IsArchived {
		return nil, apperror.NewConflict("Chat room is archived")
	}

	if in.Content == "" {
		return nil, apperror.NewValidation("Message content is required")
	}
	if in.ContentType == "" {
		in.ContentType = model.ContentText
	}
	if !validContentType(in.ContentType) {
		return nil, apperror.NewValidation("Invalid content type")
	}

	if in.ReplyToID != nil {
		replyTo := new(model.ChatMessage)
		if err := e.db.First(replyTo, *in.ReplyToID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NewNotFound("Message to reply to not found")
			}
			return nil, apperror.NewUnexpected(err)
		}
		if replyTo.ChatRoomID != in.ChatRoomID {
			return nil, apperror.NewValidation("Cannot reply to a message from another room")
		}
	}

	message := &model.ChatMessage{
		ChatRoomID:  in.ChatRoomID,
		SenderID:    senderID,
		Content:     in.Content,
		ContentType: in.ContentType,
		ReplyToID:   in.ReplyToID,
		Metadata:    in.Metadata,
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		if err := tx.Model(room).Update("last_message_at", message.CreatedAt).Error; err != nil {
			return err
		}
		// The sender has implicitly read their own message.
		return tx.Model(sender).Updates(map[string]any{
			"last_read_message_id": message.ID,
			"last_read_at":         message.CreatedAt,
		}).Error
	})
	if err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	e.invalidateAfterMessage(ctx, in.ChatRoomID)

	if err := e.db.Preload("Sender").Preload("ReplyTo").Preload("ReplyTo.Sender").
		First(message, message.ID).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	view := messageView(*message)
	e.emit(in.ChatRoomID, EventNewMessage, view)
	return &view, nil
}

// FetchMessages returns a window of messages in chronological order. Paging
// is by (page, limit) offset or by a `before` timestamp cursor; the query
// runs newest-first and the window is reversed for delivery. A non-empty
// result advances the caller's read pointer to the newest fetched message.
func (e *Engine) FetchMessages(ctx context.Context, roomID, userID uint, in FetchMessagesInput) ([]MessageView, error) {
	participant, err := e.requireParticipant(roomID, userID)
	if err != nil {
		return nil, err
	}

	if in.Limit <= 0 {
		in.Limit = 50
	}
	if in.Limit > 100 {
		in.Limit = 100
	}
	if in.Page <= 0 {
		in.Page = 1
	}

	var page []MessageView
	cacheable := in.Before == nil
	key := cache.MessagePageKey(roomID, in.Page, in.Limit)

	if !cacheable || !e.cache.GetJSON(ctx, key, &page) {
		query := e.db.Preload("Sender").Preload("ReplyTo").Preload("ReplyTo.Sender").
			Where(&model.ChatMessage{ChatRoomID: roomID}).
			Order("created_at DESC").Limit(in.Limit)
		if in.Before != nil {
			query = query.Where("created_at < ?", *in.Before)
		} else {
			query = query.Offset((in.Page - 1) * in.Limit)
		}

		var messages []model.ChatMessage
		if err := query.Find(&messages).Error; err != nil {
			return nil, apperror.NewUnexpected(err)
		}

		page = make([]MessageView, 0, len(messages))
		for _, m := range messages {
			page = append(page, messageView(m))
		}

		if cacheable {
			e.cache.SetJSON(ctx, key, page, cache.MessagePageTTL)
		}
	}

	if len(page) > 0 {
		newest := page[0]
		// Fetching an older window never moves the pointer backwards.
		if participant.LastReadAt == nil || newest.Created.After(*participant.LastReadAt) {
			e.db.Model(participant).Updates(map[string]any{
				"last_read_message_id": newest.ID,
				"last_read_at":         newest.Created,
			})
			// The pointer is baked into the room snapshot, the roster and
			// the caller's unread counts.
			e.cache.Delete(ctx,
				cache.RoomKey(roomID),
				cache.ParticipantsKey(roomID),
				cache.RoomListKey(userID))
		}
	}

	// Reverse to chronological order for the client.
	ordered := make([]MessageView, len(page))
	for i, m := range page {
		ordered[len(page)-1-i] = m
	}
	return ordered, nil
}

// EditMessage updates the content of the caller's own message.
func (e *Engine) EditMessage(ctx context.Context, messageID, userID uint, content string) (*MessageView, error) {
	if content == "" {
		return nil, apperror.NewValidation("Message content is required")
	}

	message, err := e.messageByID(messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != userID {
		return nil, apperror.NewForbidden("Only the sender can edit a message")
	}
	if message.IsDeleted {
		return nil, apperror.NewConflict("Cannot edit a deleted message")
	}

	editedAt := now()
	if err := e.db.WithContext(ctx).Model(message).Updates(map[string]any{
		"content":   content,
		"is_edited": true,
		"edited_at": editedAt,
	}).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	e.invalidateAfterMessage(ctx, message.ChatRoomID)

	if err := e.db.Preload("Sender").Preload("ReplyTo").Preload("ReplyTo.Sender").
		First(message, message.ID).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	view := messageView(*message)
	e.emit(message.ChatRoomID, EventMessageUpdated, view)
	return &view, nil
}

// DeleteMessage soft-deletes: the row stays, flagged, its content replaced by
// a placeholder. The sender or a room admin may delete.
func (e *Engine) DeleteMessage(ctx context.Context, messageID, userID uint) error {
	message, err := e.messageByID(messageID)
	if err != nil {
		return err
	}
	if message.IsDeleted {
		return apperror.NewNotFound("Message not found")
	}

	if message.SenderID != userID {
		participant, err := participantOf(e.db, message.ChatRoomID, userID)
		if err != nil {
			return err
		}
		if participant == nil || participant.Status != model.ParticipantActive || !participant.IsAdmin {
			return apperror.NewForbidden("Only the sender or an admin can delete a message")
		}
	}

	deletedAt := now()
	if err := e.db.WithContext(ctx).Model(message).Updates(map[string]any{
		"is_deleted":        true,
		"message_delete_at": deletedAt,
		"deleted_by":        userID,
		"content":           model.DeletedPlaceholder,
	}).Error; err != nil {
		return apperror.NewUnexpected(err)
	}

	e.invalidateAfterMessage(ctx, message.ChatRoomID)

	e.emit(message.ChatRoomID, EventMessageDeleted, map[string]any{
		"id":           message.ID,
		"chat_room_id": message.ChatRoomID,
	})
	return nil
}

// MarkRead moves the caller's read pointer to messageID and returns the
// receipt other participants should render.
func (e *Engine) MarkRead(ctx context.Context, roomID, userID, messageID uint) (*ReadReceipt, error) {
	participant, err := e.requireParticipant(roomID, userID)
	if err != nil {
		return nil, err
	}

	message, err := e.messageByID(messageID)
	if err != nil {
		return nil, err
	}
	if message.ChatRoomID != roomID {
		return nil, apperror.NewNotFound("Message not found in this chat room")
	}

	readAt := now()
	if err := e.db.WithContext(ctx).Model(participant).Updates(map[string]any{
		"last_read_message_id": messageID,
		"last_read_at":         readAt,
	}).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}

	e.cache.Delete(ctx,
		cache.RoomKey(roomID),
		cache.ParticipantsKey(roomID),
		cache.RoomListKey(userID))

	return &ReadReceipt{
		ChatRoomID: roomID,
		UserID:     userID,
		MessageID:  messageID,
		ReadAt:     readAt,
	}, nil
}

// NotifyAttachment announces uploaded attachment metadata for a message.
// Storage itself lives elsewhere; this only validates and fans out.
func (e *Engine) NotifyAttachment(ctx context.Context, roomID, userID, messageID uint, attachments any) error {
	if _, err := e.requireParticipant(roomID, userID); err != nil {
		return err
	}

	message, err := e.messageByID(messageID)
	if err != nil {
		return err
	}
	if message.ChatRoomID != roomID {
		return apperror.NewNotFound("Message not found in this chat room")
	}

	e.emit(roomID, EventAttachmentAdded, map[string]any{
		"chat_room_id": roomID,
		"message_id":   messageID,
		"attachments":  attachments,
	})
	return nil
}
