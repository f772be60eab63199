package chat

import (
	"context"
	"fmt"
	"testing"

	"chat-service/cache"
	"chat-service/directory"
	"chat-service/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordedEvent struct {
	RoomID  uint
	Event   string
	Payload any
}

// recorder stands in for the socket gateway.
type recorder struct {
	events []recordedEvent
}

func (r *recorder) Emit(roomID uint, event string, payload any) {
	r.events = append(r.events, recordedEvent{RoomID: roomID, Event: event, Payload: payload})
}

func (r *recorder) named(event string) []recordedEvent {
	var out []recordedEvent
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.events = nil
}

func newTestEngine(t *testing.T) (*Engine, *recorder, *gorm.DB) {
	t.Helper()
	return newTestEngineWithCache(t, cache.New(nil))
}

// newTestCache backs the cache with a real in-process redis so invalidation
// behavior is observable.
func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func newTestEngineWithCache(t *testing.T, c *cache.Cache) (*Engine, *recorder, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every pooled connection to :memory: gets its own database, so the
	// whole test shares one connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Organization{}, &model.OrganizationMember{},
		&model.Department{}, &model.DepartmentMember{},
		&model.Team{}, &model.TeamMember{},
		&model.Project{}, &model.ProjectMember{},
		&model.Task{},
		&model.ChatRoom{}, &model.ChatParticipant{}, &model.ChatMessage{},
		&model.MessageReaction{}, &model.PinnedMessage{},
	))

	rec := &recorder{}
	return NewEngine(db, c, directory.New(db), rec), rec, db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret",
		Role:     "user",
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedTeam(t *testing.T, db *gorm.DB, leader *model.User, members ...*model.User) *model.Team {
	t.Helper()
	team := &model.Team{Name: fmt.Sprintf("%s's team", leader.Username), LeaderID: leader.ID}
	require.NoError(t, db.Create(team).Error)
	for _, m := range members {
		require.NoError(t, db.Create(&model.TeamMember{TeamID: team.ID, UserID: m.ID}).Error)
	}
	return team
}

// fixture is a team room with alice as creating admin and bob/carol as
// regular members.
type fixture struct {
	engine *Engine
	rec    *recorder
	db     *gorm.DB
	alice  *model.User
	bob    *model.User
	carol  *model.User
	team   *model.Team
	room   *RoomDetail
}

func newRoomFixture(t *testing.T) *fixture {
	t.Helper()
	engine, rec, db := newTestEngine(t)
	return buildRoomFixture(t, engine, rec, db)
}

// newCachedRoomFixture is the same room but served through a live cache, for
// tests that assert invalidation rather than just database state.
func newCachedRoomFixture(t *testing.T) *fixture {
	t.Helper()
	engine, rec, db := newTestEngineWithCache(t, newTestCache(t))
	return buildRoomFixture(t, engine, rec, db)
}

func buildRoomFixture(t *testing.T, engine *Engine, rec *recorder, db *gorm.DB) *fixture {
	t.Helper()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")
	team := seedTeam(t, db, alice, bob, carol)

	room, err := engine.CreateRoom(context.Background(), alice.ID, CreateRoomInput{
		Name:       "Team chat",
		EntityType: model.EntityTeam,
		EntityID:   team.ID,
	})
	require.NoError(t, err)
	rec.reset()

	return &fixture{
		engine: engine, rec: rec, db: db,
		alice: alice, bob: bob, carol: carol,
		team: team, room: room,
	}
}

func (f *fixture) participant(t *testing.T, userID uint) *model.ChatParticipant {
	t.Helper()
	p, err := participantOf(f.db, f.room.ID, userID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) send(t *testing.T, senderID uint, content string) *MessageView {
	t.Helper()
	view, err := f.engine.SendMessage(context.Background(), senderID, SendMessageInput{
		ChatRoomID: f.room.ID,
		Content:    content,
	})
	require.NoError(t, err)
	return view
}

func TestActiveRoomIDs(t *testing.T) {
	f := newRoomFixture(t)

	assert.Equal(t, []uint{f.room.ID}, f.engine.ActiveRoomIDs(f.bob.ID))

	require.NoError(t, f.engine.RemoveParticipant(context.Background(), f.room.ID, f.bob.ID, f.bob.ID))
	assert.Empty(t, f.engine.ActiveRoomIDs(f.bob.ID))
}

func TestVerifyParticipant(t *testing.T) {
	f := newRoomFixture(t)
	outsider := seedUser(t, f.db, "dave")

	assert.NoError(t, f.engine.VerifyParticipant(f.room.ID, f.bob.ID))
	assert.Error(t, f.engine.VerifyParticipant(f.room.ID, outsider.ID))
}
