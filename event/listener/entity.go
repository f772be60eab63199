package listener

import (
	"context"
	"encoding/json"
	"log"

	"chat-service/chat"
	"chat-service/event"
	"chat-service/model"
)

var (
	EntityChannel = make(chan event.EventChannelData)

	engine *chat.Engine
)

// SetEngine wires the chat engine the hooks delegate to.
func SetEngine(e *chat.Engine) {
	engine = e
}

// EntityCreated is the body of every *.created event on the chat queue.
type EntityCreated struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	OwnerID uint   `json:"owner_id"`
}

// RoomReady is published to the notification queue once a backing room exists.
type RoomReady struct {
	EntityType string `json:"entity_type"`
	EntityID   uint   `json:"entity_id"`
	RoomID     uint   `json:"room_id"`
}

var entityActions = map[string]string{
	"organization.created": model.EntityOrganization,
	"department.created":   model.EntityDepartment,
	"team.created":         model.EntityTeam,
	"project.created":      model.EntityProject,
	"task.created":         model.EntityTask,
}

// EntityHooks consumes entity-creation events and opens the backing chat room
// for each one. Failures are logged and swallowed: entity creation in the
// producing service never depends on chat.
func EntityHooks() {
	for evt := range EntityChannel {
		entityType, known := entityActions[evt.Action]
		if !known {
			continue
		}

		payload := EntityCreated{}
		if err := json.Unmarshal(evt.Data, &payload); err != nil {
			log.Printf("entity hook: unreadable %s payload: %v", evt.Action, err)
			continue
		}

		roomID, err := engine.EnsureRoomForEntity(context.Background(), entityType, payload.ID, payload.Name, payload.OwnerID)
		if err != nil {
			log.Printf("entity hook: chat room for %s %d not created: %v", entityType, payload.ID, err)
			continue
		}

		if evt.Out.Send {
			body, _ := json.Marshal(RoomReady{
				EntityType: entityType,
				EntityID:   payload.ID,
				RoomID:     roomID,
			})
			event.Emit("notification", "chat.room.ready", body, evt.Out.Log)
		}
	}
}
