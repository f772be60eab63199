package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL per key class. Room metadata outlives message pages, which shift on
// every send.
const (
	RoomTTL         = 10 * time.Minute
	RoomListTTL     = 2 * time.Minute
	MessagePageTTL  = 1 * time.Minute
	ParticipantsTTL = 5 * time.Minute
)

// Cache is a best-effort read-through mirror of persisted chat state. Every
// method tolerates a nil client and any redis failure by degrading to a miss;
// callers always fall back to the database.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func RoomKey(roomID uint) string {
	return fmt.Sprintf("chat:room:%d", roomID)
}

func RoomListKey(userID uint) string {
	return fmt.Sprintf("user:%d:chatrooms", userID)
}

func MessagePageKey(roomID uint, page, limit int) string {
	return fmt.Sprintf("chat:room:%d:messages:%d:%d", roomID, page, limit)
}

func ParticipantsKey(roomID uint) string {
	return fmt.Sprintf("chat:room:%d:participants", roomID)
}

// GetJSON loads key into dest. Returns false on miss, unreachable redis or a
// payload that no longer unmarshals.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache read failed for %s: %v", key, err)
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		log.Printf("cache entry %s is unreadable, dropping: %v", key, err)
		c.rdb.Del(ctx, key)
		return false
	}

	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.rdb == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache marshal failed for %s: %v", key, err)
		return
	}

	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("cache write failed for %s: %v", key, err)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return
	}

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("cache delete failed for %v: %v", keys, err)
	}
}

// DeletePattern removes every key matching pattern via SCAN. Page boundaries
// shift on any message mutation, so message pages are dropped wholesale.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) {
	if c == nil || c.rdb == nil {
		return
	}

	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("cache delete failed for %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("cache scan failed for %s: %v", pattern, err)
	}
}

// InvalidateRoom drops the room snapshot and its participant roster.
func (c *Cache) InvalidateRoom(ctx context.Context, roomID uint) {
	c.Delete(ctx, RoomKey(roomID), ParticipantsKey(roomID))
}

// InvalidateRoomMessages drops every cached message page for the room.
func (c *Cache) InvalidateRoomMessages(ctx context.Context, roomID uint) {
	c.DeletePattern(ctx, fmt.Sprintf("chat:room:%d:messages:*", roomID))
}

// InvalidateRoomLists drops the room-list entry for each user. A new message
// changes the preview and ordering for every participant, not just the actor.
func (c *Cache) InvalidateRoomLists(ctx context.Context, userIDs []uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, RoomListKey(id))
	}
	c.Delete(ctx, keys...)
}
