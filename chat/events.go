package chat

// Outbound event names, addressed to the room-id channel.
const (
	EventNewMessage         = "new_message"
	EventMessageUpdated     = "message_updated"
	EventMessageDeleted     = "message_deleted"
	EventReactionUpdate     = "message_reaction_update"
	EventReadStatusUpdate   = "read_status_update"
	EventTypingStatus       = "typing_status"
	EventParticipantAdded   = "participant_added"
	EventParticipantRemoved = "participant_removed"
	EventParticipantUpdated = "participant_updated"
	EventMessagePinned      = "message_pinned"
	EventMessageUnpinned    = "message_unpinned"
	EventAttachmentAdded    = "attachment_added"
	EventRoomUpdated        = "room_updated"
)

// System message actions carried in ChatMessage.Metadata.
const (
	ActionRoomCreated        = "room_created"
	ActionParticipantAdded   = "participant_added"
	ActionParticipantReadded = "participant_readded"
	ActionParticipantLeft    = "participant_left"
	ActionParticipantRemoved = "participant_removed"
	ActionAdminPromoted      = "admin_promoted"
	ActionAdminDemoted       = "admin_demoted"
)
