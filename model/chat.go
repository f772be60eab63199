package model

import (
	"time"

	"gorm.io/gorm"
)

// Chat room types
const (
	RoomTypeGroup   = "GROUP"
	RoomTypeDirect  = "DIRECT"
	RoomTypeChannel = "CHANNEL"
)

// Entity kinds a room can be bound to
const (
	EntityOrganization = "ORGANIZATION"
	EntityDepartment   = "DEPARTMENT"
	EntityTeam         = "TEAM"
	EntityProject      = "PROJECT"
	EntityTask         = "TASK"
)

// Participant status
const (
	ParticipantActive = "ACTIVE"
	ParticipantLeft   = "LEFT"
)

// Message content types
const (
	ContentText   = "TEXT"
	ContentImage  = "IMAGE"
	ContentFile   = "FILE"
	ContentVideo  = "VIDEO"
	ContentAudio  = "AUDIO"
	ContentSystem = "SYSTEM"
)

// DeletedPlaceholder replaces the content of soft-deleted messages.
const DeletedPlaceholder = "This message was deleted"

type ChatRoom struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Type        string `gorm:"not null;default:'GROUP'" json:"type"`

	// At most one room per backing entity.
	EntityType string `gorm:"not null;uniqueIndex:idx_chat_room_entity" json:"entity_type"`
	EntityID   uint   `gorm:"not null;uniqueIndex:idx_chat_room_entity" json:"entity_id"`

	IsActive      bool       `gorm:"not null;default:true" json:"is_active"`
	IsArchived    bool       `gorm:"not null;default:false" json:"is_archived"`
	ArchivedAt    *time.Time `json:"archived_at"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at"`

	Participants []ChatParticipant `gorm:"foreignKey:ChatRoomID" json:"participants,omitempty"`
}

type ChatParticipant struct {
	gorm.Model
	ChatRoomID uint `gorm:"not null;uniqueIndex:idx_chat_participant" json:"chat_room_id"`
	UserID     uint `gorm:"not null;uniqueIndex:idx_chat_participant" json:"user_id"`

	IsAdmin bool   `gorm:"not null;default:false" json:"is_admin"`
	Status  string `gorm:"not null;default:'ACTIVE'" json:"status"`

	LastReadMessageID *uint      `json:"last_read_message_id"`
	LastReadAt        *time.Time `json:"last_read_at"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

type ChatMessage struct {
	gorm.Model
	ChatRoomID  uint   `gorm:"not null;index" json:"chat_room_id"`
	SenderID    uint   `gorm:"not null" json:"sender_id"`
	Content     string `gorm:"not null" json:"content"`
	ContentType string `gorm:"not null;default:'TEXT'" json:"content_type"`

	ReplyToID *uint  `json:"reply_to_id"`
	Metadata  string `json:"metadata"`

	IsDeleted       bool       `gorm:"not null;default:false" json:"is_deleted"`
	MessageDeleteAt *time.Time `json:"deleted_at"`
	DeletedBy       *uint      `json:"deleted_by"`
	IsEdited        bool       `gorm:"not null;default:false" json:"is_edited"`
	EditedAt        *time.Time `json:"edited_at"`

	Sender  User         `gorm:"foreignKey:SenderID" json:"sender"`
	ReplyTo *ChatMessage `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
}

// MessageReaction rows are hard-deleted on toggle, so no gorm.Model soft
// delete here: a soft-deleted row would still occupy the unique triple.
type MessageReaction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_message_reaction" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_message_reaction" json:"user_id"`
	Reaction  string    `gorm:"not null;uniqueIndex:idx_message_reaction" json:"reaction"`
}

// PinnedMessage rows are hard-deleted on unpin for the same reason.
type PinnedMessage struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ChatRoomID uint      `gorm:"not null;uniqueIndex:idx_pinned_message" json:"chat_room_id"`
	MessageID  uint      `gorm:"not null;uniqueIndex:idx_pinned_message" json:"message_id"`
	PinnedBy   uint      `gorm:"not null" json:"pinned_by"`
	PinnedAt   time.Time `gorm:"not null" json:"pinned_at"`

	Message ChatMessage `gorm:"foreignKey:MessageID" json:"message"`
}
