package chat

import (
	"time"

	"chat-service/model"
)

// Response shapes returned by the engine and serialized as-is by the REST
// controllers and the socket handlers.

type UserView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type MessagePreview struct {
	ID          uint     `json:"id"`
	Sender      UserView `json:"sender"`
	Content     string   `json:"content"`
	ContentType string   `json:"content_type"`
}

type MessageView struct {
	ID          uint            `json:"id"`
	Created     time.Time       `json:"created"`
	ChatRoomID  uint            `json:"chat_room_id"`
	Sender      UserView        `json:"sender"`
	Content     string          `json:"content"`
	ContentType string          `json:"content_type"`
	ReplyTo     *MessagePreview `json:"reply_to,omitempty"`
	Metadata    string          `json:"metadata,omitempty"`
	IsEdited    bool            `json:"is_edited"`
	EditedAt    *time.Time      `json:"edited_at,omitempty"`
	IsDeleted   bool            `json:"is_deleted"`
}

type ParticipantView struct {
	UserID            uint       `json:"user_id"`
	Username          string     `json:"username"`
	IsAdmin           bool       `json:"is_admin"`
	Status            string     `json:"status"`
	JoinedAt          time.Time  `json:"joined_at"`
	LastReadMessageID *uint      `json:"last_read_message_id,omitempty"`
	LastReadAt        *time.Time `json:"last_read_at,omitempty"`
}

type RoomSummary struct {
	ID            uint         `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	Type          string       `json:"type"`
	EntityType    string       `json:"entity_type"`
	EntityID      uint         `json:"entity_id"`
	IsArchived    bool         `json:"is_archived"`
	LastMessageAt *time.Time   `json:"last_message_at,omitempty"`
	LastMessage   *MessageView `json:"last_message,omitempty"`
	UnreadCount   int64        `json:"unread_count"`
}

type RoomDetail struct {
	ID            uint              `json:"id"`
	Created       time.Time         `json:"created"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Type          string            `json:"type"`
	EntityType    string            `json:"entity_type"`
	EntityID      uint              `json:"entity_id"`
	IsActive      bool              `json:"is_active"`
	IsArchived    bool              `json:"is_archived"`
	ArchivedAt    *time.Time        `json:"archived_at,omitempty"`
	LastMessageAt *time.Time        `json:"last_message_at,omitempty"`
	Participants  []ParticipantView `json:"participants"`
}

type ReactionView struct {
	Reaction string `json:"reaction"`
	Count    int    `json:"count"`
	UserIDs  []uint `json:"user_ids"`
}

type PinView struct {
	ID       uint        `json:"id"`
	PinnedBy uint        `json:"pinned_by"`
	PinnedAt time.Time   `json:"pinned_at"`
	Message  MessageView `json:"message"`
}

type ReadReceipt struct {
	ChatRoomID uint      `json:"chat_room_id"`
	UserID     uint      `json:"user_id"`
	MessageID  uint      `json:"message_id"`
	ReadAt     time.Time `json:"read_at"`
}

func userView(u model.User) UserView {
	return UserView{ID: u.ID, Username: u.Username}
}

func messageView(m model.ChatMessage) MessageView {
	view := MessageView{
		ID:          m.ID,
		Created:     m.CreatedAt,
		ChatRoomID:  m.ChatRoomID,
		Sender:      userView(m.Sender),
		Content:     m.Content,
		ContentType: m.ContentType,
		Metadata:    m.Metadata,
		IsEdited:    m.IsEdited,
		EditedAt:    m.EditedAt,
		IsDeleted:   m.IsDeleted,
	}
	if m.ReplyTo != nil {
		view.ReplyTo = &MessagePreview{
			ID:          m.ReplyTo.ID,
			Sender:      userView(m.ReplyTo.Sender),
			Content:     m.ReplyTo.Content,
			ContentType: m.ReplyTo.ContentType,
		}
	}
	return view
}

func participantView(p model.ChatParticipant) ParticipantView {
	return ParticipantView{
		UserID:            p.UserID,
		Username:          p.User.Username,
		IsAdmin:           p.IsAdmin,
		Status:            p.Status,
		JoinedAt:          p.CreatedAt,
		LastReadMessageID: p.LastReadMessageID,
		LastReadAt:        p.LastReadAt,
	}
}

func roomDetail(room model.ChatRoom, participants []model.ChatParticipant) RoomDetail {
	detail := RoomDetail{
		ID:            room.ID,
		Created:       room.CreatedAt,
		Name:          room.Name,
		Description:   room.Description,
		Type:          room.Type,
		EntityType:    room.EntityType,
		EntityID:      room.EntityID,
		IsActive:      room.IsActive,
		IsArchived:    room.IsArchived,
		ArchivedAt:    room.ArchivedAt,
		LastMessageAt: room.LastMessageAt,
		Participants:  make([]ParticipantView, 0, len(participants)),
	}
	for _, p := range participants {
		detail.Participants = append(detail.Participants, participantView(p))
	}
	return detail
}
