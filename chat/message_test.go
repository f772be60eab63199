package chat

import (
	"context"
	"fmt"
	"testing"

	"chat-service/apperror"
	"chat-service/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	f := newRoomFixture(t)

	view, err := f.engine.SendMessage(context.Background(), f.bob.ID, SendMessageInput{
		ChatRoomID: f.room.ID,
		Content:    "hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", view.Content)
	assert.Equal(t, model.ContentText, view.ContentType)
	assert.Equal(t, "bob", view.Sender.Username)

	// The room preview and the sender's read pointer both advance.
	room := new(model.ChatRoom)
	require.NoError(t, f.db.First(room, f.room.ID).Error)
	require.NotNil(t, room.LastMessageAt)
	assert.Equal(t, view.Created.Unix(), room.LastMessageAt.Unix())

	sender := f.participant(t, f.bob.ID)
	require.NotNil(t, sender.LastReadMessageID)
	assert.Equal(t, view.ID, *sender.LastReadMessageID)

	events := f.rec.named(EventNewMessage)
	require.Len(t, events, 1)
	assert.Equal(t, *view, events[0].Payload)
}

func TestSendMessageRejections(t *testing.T) {
	f := newRoomFixture(t)
	outsider := seedUser(t, f.db, "dave")

	_, err := f.engine.SendMessage(context.Background(), outsider.ID, SendMessageInput{
		ChatRoomID: f.room.ID, Content: "hi",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	_, err = f.engine.SendMessage(context.Background(), f.bob.ID, SendMessageInput{
		ChatRoomID: f.room.ID,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	// SYSTEM is reserved for the engine itself.
	_, err = f.engine.SendMessage(context.Background(), f.bob.ID, SendMessageInput{
		ChatRoomID: f.room.ID, Content: "hi", ContentType: model.ContentSystem,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestSendMessageReply(t *testing.T) {
	f := newRoomFixture(t)
	original := f.send(t, f.bob.ID, "original")

	view, err := f.engine.SendMessage(context.Background(), f.carol.ID, SendMessageInput{
		ChatRoomID: f.room.ID,
		Content:    "replying",
		ReplyToID:  &original.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, view.ReplyTo)
	assert.Equal(t, original.ID, view.ReplyTo.ID)
	assert.Equal(t, "bob", view.ReplyTo.Sender.Username)

	missing := uint(9999)
	_, err = f.engine.SendMessage(context.Background(), f.carol.ID, SendMessageInput{
		ChatRoomID: f.room.ID, Content: "x", ReplyToID: &missing,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	// A reply target has to live in the same room.
	otherTeam := seedTeam(t, f.db, f.alice)
	otherRoom, err := f.engine.CreateRoom(context.Background(), f.alice.ID, CreateRoomInput{
		Name: "Other", EntityType: model.EntityTeam, EntityID: otherTeam.ID,
	})
	require.NoError(t, err)
	foreign, err := f.engine.SendMessage(context.Background(), f.alice.ID, SendMessageInput{
		ChatRoomID: otherRoom.ID, Content: "elsewhere",
	})
	require.NoError(t, err)

	_, err = f.engine.SendMessage(context.Background(), f.carol.ID, SendMessageInput{
		ChatRoomID: f.room.ID, Content: "x", ReplyToID: &foreign.ID,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestFetchMessagesPagination(t *testing.T) {
	f := newRoomFixture(t)
	for i := 1; i <= 5; i++ {
		f.send(t, f.bob.ID, fmt.Sprintf("message %d", i))
	}

	// Six messages total including the welcome message. The first page holds
	// the newest three in chronological order.
	page1, err := f.engine.FetchMessages(context.Background(), f.room.ID, f.carol.ID, FetchMessagesInput{
		Page: 1, Limit: 3,
	})
	require.NoError(t, err)
	require.Len(t, page1, 3)
	assert.Equal(t, "message 3", page1[0].Content)
	assert.Equal(t, "message 4", page1[1].Content)
	assert.Equal(t, "message 5", page1[2].Content)

	carol := f.participant(t, f.carol.ID)
	require.NotNil(t, carol.LastReadMessageID)
	newestID := *carol.LastReadMessageID
	assert.Equal(t, page1[2].ID, newestID)

	page2, err := f.engine.FetchMessages(context.Background(), f.room.ID, f.carol.ID, FetchMessagesInput{
		Page: 2, Limit: 3,
	})
	require.NoError(t, err)
	require.Len(t, page2, 3)
	assert.Equal(t, model.ContentSystem, page2[0].ContentType)
	assert.Equal(t, "message 1", page2[1].Content)
	assert.Equal(t, "message 2", page2[2].Content)

	// Ordering holds across the page boundary.
	assert.True(t, page2[2].Created.Before(page1[0].Created))

	// Reading an older page never rewinds the pointer.
	carol = f.participant(t, f.carol.ID)
	require.NotNil(t, carol.LastReadMessageID)
	assert.Equal(t, newestID, *carol.LastReadMessageID)
}

func TestFetchMessagesBeforeCursor(t *testing.T) {
	f := newRoomFixture(t)
	for i := 1; i <= 4; i++ {
		f.send(t, f.bob.ID, fmt.Sprintf("message %d", i))
	}
	latest := f.send(t, f.bob.ID, "latest")

	window, err := f.engine.FetchMessages(context.Background(), f.room.ID, f.carol.ID, FetchMessagesInput{
		Limit:  2,
		Before: &latest.Created,
	})
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "message 3", window[0].Content)
	assert.Equal(t, "message 4", window[1].Content)
}

func TestEditMessage(t *testing.T) {
	f := newRoomFixture(t)
	message := f.send(t, f.bob.ID, "typo")
	f.rec.reset()

	_, err := f.engine.EditMessage(context.Background(), message.ID, f.carol.ID, "fixed")
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	view, err := f.engine.EditMessage(context.Background(), message.ID, f.bob.ID, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", view.Content)
	assert.True(t, view.IsEdited)
	assert.NotNil(t, view.EditedAt)

	// Every subscriber sees exactly what the editor got back.
	events := f.rec.named(EventMessageUpdated)
	require.Len(t, events, 1)
	assert.Equal(t, *view, events[0].Payload)
}

func TestDeleteMessage(t *testing.T) {
	f := newRoomFixture(t)
	message := f.send(t, f.bob.ID, "regret")
	f.rec.reset()

	err := f.engine.DeleteMessage(context.Background(), message.ID, f.carol.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	require.NoError(t, f.engine.DeleteMessage(context.Background(), message.ID, f.bob.ID))

	stored := new(model.ChatMessage)
	require.NoError(t, f.db.First(stored, message.ID).Error)
	assert.True(t, stored.IsDeleted)
	assert.Equal(t, model.DeletedPlaceholder, stored.Content)
	require.NotNil(t, stored.DeletedBy)
	assert.Equal(t, f.bob.ID, *stored.DeletedBy)

	events := f.rec.named(EventMessageDeleted)
	require.Len(t, events, 1)

	// Deleting twice and editing afterwards both fail.
	err = f.engine.DeleteMessage(context.Background(), message.ID, f.bob.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = f.engine.EditMessage(context.Background(), message.ID, f.bob.ID, "resurrect")
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
}

func TestAdminCanDeleteOthersMessages(t *testing.T) {
	f := newRoomFixture(t)
	message := f.send(t, f.bob.ID, "off topic")

	require.NoError(t, f.engine.DeleteMessage(context.Background(), message.ID, f.alice.ID))

	stored := new(model.ChatMessage)
	require.NoError(t, f.db.First(stored, message.ID).Error)
	require.NotNil(t, stored.DeletedBy)
	assert.Equal(t, f.alice.ID, *stored.DeletedBy)
}

func TestMarkRead(t *testing.T) {
	f := newRoomFixture(t)
	message := f.send(t, f.bob.ID, "read me")

	receipt, err := f.engine.MarkRead(context.Background(), f.room.ID, f.carol.ID, message.ID)
	require.NoError(t, err)
	assert.Equal(t, f.room.ID, receipt.ChatRoomID)
	assert.Equal(t, f.carol.ID, receipt.UserID)
	assert.Equal(t, message.ID, receipt.MessageID)

	carol := f.participant(t, f.carol.ID)
	require.NotNil(t, carol.LastReadMessageID)
	assert.Equal(t, message.ID, *carol.LastReadMessageID)

	// A message from another room cannot be acknowledged here.
	otherTeam := seedTeam(t, f.db, f.carol)
	otherRoom, err := f.engine.CreateRoom(context.Background(), f.carol.ID, CreateRoomInput{
		Name: "Other", EntityType: model.EntityTeam, EntityID: otherTeam.ID,
	})
	require.NoError(t, err)
	foreign, err := f.engine.SendMessage(context.Background(), f.carol.ID, SendMessageInput{
		ChatRoomID: otherRoom.ID, Content: "elsewhere",
	})
	require.NoError(t, err)

	_, err = f.engine.MarkRead(context.Background(), f.room.ID, f.carol.ID, foreign.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestNotifyAttachment(t *testing.T) {
	f := newRoomFixture(t)
	message := f.send(t, f.bob.ID, "see attached")
	f.rec.reset()

	attachments := []map[string]any{{"name": "report.pdf", "url": "https://files.local/report.pdf"}}
	require.NoError(t, f.engine.NotifyAttachment(context.Background(), f.room.ID, f.bob.ID, message.ID, attachments))

	events := f.rec.named(EventAttachmentAdded)
	require.Len(t, events, 1)
	payload, ok := events[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, message.ID, payload["message_id"])

	outsider := seedUser(t, f.db, "dave")
	err := f.engine.NotifyAttachment(context.Background(), f.room.ID, outsider.ID, message.ID, attachments)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}

// Acknowledging a message must show up in the next room snapshot even when
// the previous one was cached.
func TestMarkReadRefreshesCachedRoom(t *testing.T) {
	f := newCachedRoomFixture(t)
	message := f.send(t, f.bob.ID, "read me")

	// Warm the snapshot with carol's pointer still unset.
	before, err := f.engine.GetRoom(context.Background(), f.carol.ID, f.room.ID)
	require.NoError(t, err)
	for _, p := range before.Participants {
		if p.UserID == f.carol.ID {
			assert.Nil(t, p.LastReadMessageID)
		}
	}

	_, err = f.engine.MarkRead(context.Background(), f.room.ID, f.carol.ID, message.ID)
	require.NoError(t, err)

	after, err := f.engine.GetRoom(context.Background(), f.carol.ID, f.room.ID)
	require.NoError(t, err)
	var carol *ParticipantView
	for i, p := range after.Participants {
		if p.UserID == f.carol.ID {
			carol = &after.Participants[i]
		}
	}
	require.NotNil(t, carol)
	require.NotNil(t, carol.LastReadMessageID)
	assert.Equal(t, message.ID, *carol.LastReadMessageID)
}

// Fetching the latest page advances the read pointer and drops the cached
// snapshot and room list, so unread counts reset immediately.
func TestFetchMessagesRefreshesReadState(t *testing.T) {
	f := newCachedRoomFixture(t)
	f.send(t, f.bob.ID, "one")
	f.send(t, f.bob.ID, "two")
	latest := f.send(t, f.bob.ID, "three")

	rooms, err := f.engine.ListRoomsForUser(context.Background(), f.carol.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, int64(4), rooms[0].UnreadCount)

	_, err = f.engine.FetchMessages(context.Background(), f.room.ID, f.carol.ID, FetchMessagesInput{})
	require.NoError(t, err)

	detail, err := f.engine.GetRoom(context.Background(), f.carol.ID, f.room.ID)
	require.NoError(t, err)
	for _, p := range detail.Participants {
		if p.UserID == f.carol.ID {
			require.NotNil(t, p.LastReadMessageID)
			assert.Equal(t, latest.ID, *p.LastReadMessageID)
		}
	}

	rooms, err = f.engine.ListRoomsForUser(context.Background(), f.carol.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, int64(0), rooms[0].UnreadCount)
}
