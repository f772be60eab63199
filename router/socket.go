package router

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"chat-service/chat"
	"chat-service/socketio"
	"chat-service/utils"

	"github.com/zishang520/socket.io/v2/socket"
)

// Inbound payload shapes. socket.io delivers JSON objects as
// map[string]any, so payloads are rebound through encoding/json.

type JoinRoomPayload struct {
	ChatRoomID uint `json:"chat_room_id"`
}

type SendMessagePayload struct {
	ChatRoomID  uint   `json:"chat_room_id"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	ReplyToID   *uint  `json:"reply_to_id"`
	Metadata    string `json:"metadata"`
}

type TypingPayload struct {
	ChatRoomID uint `json:"chat_room_id"`
	IsTyping   bool `json:"is_typing"`
}

type ReactPayload struct {
	MessageID uint   `json:"message_id"`
	Reaction  string `json:"reaction"`
}

type MarkReadPayload struct {
	ChatRoomID uint `json:"chat_room_id"`
	MessageID  uint `json:"message_id"`
}

type DeleteMessagePayload struct {
	MessageID uint `json:"message_id"`
}

type EditMessagePayload struct {
	MessageID uint   `json:"message_id"`
	Content   string `json:"content"`
}

type AttachmentPayload struct {
	ChatRoomID  uint  `json:"chat_room_id"`
	MessageID   uint  `json:"message_id"`
	Attachments []any `json:"attachments"`
}

func Socket(server *socket.Server, engine *chat.Engine) {
	server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		// Every ACTIVE room of the user becomes a subscription for the
		// lifetime of the connection; reconnects rebuild the set here.
		if userID, ok := socketUser(client); ok {
			for _, roomID := range engine.ActiveRoomIDs(userID) {
				client.Join(socketio.ChatRoom(roomID))
			}
		}

		on(client, "join_chat_rooms", func(userID uint, args []any) (any, error) {
			roomIDs := engine.ActiveRoomIDs(userID)
			for _, roomID := range roomIDs {
				client.Join(socketio.ChatRoom(roomID))
			}
			return map[string]any{"chat_room_ids": roomIDs}, nil
		})

		on(client, "join_chat_room", func(userID uint, args []any) (any, error) {
			payload := new(JoinRoomPayload)
			if err := decode(args, payload); err != nil {
				return nil, err
			}
			if err := engine.VerifyParticipant(payload.ChatRoomID, userID); err != nil {
				return nil, err
			}
			client.Join(socketio.ChatRoom(payload.ChatRoomID))
			return map[string]any{"chat_room_id": payload.ChatRoomID}, nil
		})

		on(client, "leave_chat_room", func(userID uint, args []any) (any, error) {
			payload := new(JoinRoomPayload)
			if err := decode(args, payload); err != nil {
				return nil, err
			}
			client.Leave(socketio.ChatRoom(payload.ChatRoomID))
			return map[string]any{"chat_room_id": payload.ChatRoomID}, nil
		})

		on(client, "send_message", func(userID uint, args []any) (any, error) {
			payload := new(SendMessagePayload)
			if err := decode(args, payload); err != nil {
				return nil, err
			}
			return engine.SendMessage(context.Background(), userID, chat.SendMessageInput{
				ChatRoomID:  payload.ChatRoomID,
				Content:     payload.Content,
				ContentType: payload.ContentType,
				ReplyToID:   payload.ReplyToID,
				Metadata:    payload.Metadata,
			})
		})

		on(client, "typing_status", func(userID uint, args []any) (any, error) {
			payload := new(TypingPayload)
			if err := decode(args, payload); err != nil {
				return nil, err
			}
			if err := engine.VerifyParticipant(payload.ChatRoomID, userID); err != nil {
				return nil, err
			}
			// Ephemeral: never persisted, never echoed back to the sender.
			client.To(socketio.ChatRoom(payload.ChatRoomID)).Emit(chat.EventTypingStatus, map[string]any{
				"chat_room_id": payload.ChatRoomID,
				"user_id":      userID,
				"is_typing":    payload.IsTyping,
				"at":           time.Now().UTC(),
			})
			return map[string]any{"chat_room_id": payload.ChatRoomID}, nil
		})

		on(client, "react_to_message", func(userID uint, args []any) (any, error) {
			payload := new(ReactPayload)
			if err := decode(args, payload); err != nil {
				return nil, err
			}
			reactions, err := engine.ReactToMessage(context.Background(), payload.MessageID, userID, payload.Reaction)
			if err != nil {
				return nil, err
			}
			return map[string]any{"message_id": payload.MessageID, "reactions": reactions}, nil
		})

		on(client, "mark_as_read", func(userID uint, args []any) (any, error) {
			payload := new(MarkReadPayload)
			if err := decode(args, payload); err != nil {
				return nil, err
			}
			receipt, err := engine.MarkRead(context.Background(), payload.ChatRoomID, userID, payload.MessageID)
			if err != nil {
				return nil, err
			}
			// Seen-state is for the others; the reader already knows.
			client.To(socketio.ChatRoom(payload.ChatRoomID)).Emit(chat.EventReadStatusUpdate, receipt)
			return receipt, nil
		})

		on(client, "delete_message", func(userID uint, args []any) (any, error) {
			payload := new(DeleteMessagePayload)
			if err := decode(args, payload); err != nil {
				return nil, err
			}
			if err := engine.DeleteMessage(context.Background(), payload.MessageID, userID); err != nil {
				return nil, err
			}
			return map[string]any{"message_id": payload.MessageID}, nil
		})

		on(client, "edit_message", func(userID uint, args []any) (any, error) {
			payload := new(EditMessagePayload)
			if err := decode(args, payload); err != nil {
				return nil, err
			}
			return engine.EditMessage(context.Background(), payload.MessageID, userID, payload.Content)
		})

		on(client, "notify_attachment", func(userID uint, args []any) (any, error) {
			payload := new(AttachmentPayload)
			if err := decode(args, payload); err != nil {
				return nil, err
			}
			err := engine.NotifyAttachment(context.Background(), payload.ChatRoomID, userID, payload.MessageID, payload.Attachments)
			if err != nil {
				return nil, err
			}
			return map[string]any{"message_id": payload.MessageID}, nil
		})
	})
}

// on registers a socket event handler that resolves the acknowledgment
// exactly once: with the handler's payload, with an {error} shape, or with a
// generic error if the handler panicked.
func on(client *socket.Socket, event string, handler func(userID uint, args []any) (any, error)) {
	client.On(event, func(args ...interface{}) {
		callback, payload := extractAck(args)

		defer func() {
			if r := recover(); r != nil {
				log.Printf("socket handler %s panicked: %v", event, r)
				reply(callback, nil, errors.New("Internal server error"))
			}
		}()

		userID, ok := socketUser(client)
		if !ok {
			reply(callback, nil, errors.New("Authentication required"))
			return
		}

		result, err := handler(userID, payload)
		reply(callback, result, err)
	})
}

func socketUser(client *socket.Socket) (uint, bool) {
	claims, ok := client.Data().(*utils.TokenMetadata)
	if !ok || claims == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(claims.Id, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func extractAck(args []any) (func([]any, error), []any) {
	if len(args) == 0 {
		return nil, args
	}
	if callback, ok := args[len(args)-1].(func([]any, error)); ok {
		return callback, args[:len(args)-1]
	}
	return nil, args
}

func reply(callback func([]any, error), payload any, err error) {
	if callback == nil {
		return
	}
	if err != nil {
		callback([]any{map[string]any{"error": err.Error()}}, nil)
		return
	}
	callback([]any{payload}, nil)
}

// decode rebinds the first event argument onto a typed payload.
func decode(args []any, dest any) error {
	if len(args) == 0 {
		return errors.New("Missing event payload")
	}
	raw, err := json.Marshal(args[0])
	if err != nil {
		return errors.New("Malformed event payload")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return errors.New("Malformed event payload")
	}
	return nil
}
