package handlers

import (
	"context"
	"encoding/json"
	"log"
	"testing"
	"time"

	"realtime-pollchat-backend/auth"
	"realtime-pollchat-backend/cache"
	"realtime-pollchat-backend/database"
	"realtime-pollchat-backend/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestEnvironment sets up the Gin router, hub and in-memory SQLite database for testing.
func SetupTestEnvironment(t *testing.T) (*gin.Engine, *gorm.DB) {
	testing.Init()
	gin.SetMode(gin.TestMode)

	// Redis is never available in unit tests, force mock mode
	t.Setenv("REDIS_MOCK", "true")
	_ = cache.InitRedis()
	cache.ResetMock()
	t.Cleanup(cache.ResetMock)

	// Use in-memory SQLite for testing
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	// SQLite tolerates concurrent writers poorly; serialize at the pool
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	database.DB = db

	// Migrate the schema
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		ClearTables(db)
	})

	// Fresh hub per test so broadcasts from earlier tests cannot leak in
	InitHub()
	SetVoteMode(VoteModeMulti)

	// Setup Router
	router := gin.New()
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	router.Use(cors.New(config))

	router.POST("/register", Register)
	router.POST("/login", Login)
	router.POST("/createPoll", AuthRequired(), CreatePoll)
	router.GET("/polls", GetPolls)

	return router, db
}

// ClearTables clears all tables between tests.
func ClearTables(db *gorm.DB) {
	db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Message{})
	db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.UserVote{})
	db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.PollOption{})
	db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Poll{})
	db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.User{})
}

// createTestUser inserts a user with a known password ("secret123").
func createTestUser(t *testing.T, username string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)

	user := models.User{
		PublicID:     uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		Mobile:       uuid.NewString()[:10],
		PasswordHash: hash,
	}
	require.NoError(t, database.CreateUser(context.Background(), &user))
	return &user
}

// createTestPoll inserts a poll with the given options.
func createTestPoll(t *testing.T, question string, options ...string) *models.Poll {
	t.Helper()

	opts := make([]models.PollOption, len(options))
	for i, text := range options {
		opts[i] = models.PollOption{Text: text}
	}
	poll := models.Poll{Question: question, Options: opts}
	require.NoError(t, database.CreatePoll(context.Background(), &poll))
	return &poll
}

// newTestClient registers a fake client on the hub; no real websocket needed
// because handlers only ever touch the send channel.
func newTestClient(t *testing.T) *Client {
	t.Helper()

	c := &Client{
		hub:  GetHub(),
		send: make(chan []byte, 64),
		id:   uuid.NewString(),
	}
	c.hub.register <- c
	return c
}

// bindSession binds a client to a user the way the session binder would.
func bindSession(c *Client, user *models.User) {
	c.hub.Sessions().Bind(c.id, user)
}

// testEvent mirrors the wire envelope with the payload left raw.
type testEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// waitForEvent drains the client's send channel until an event with the given
// name arrives or the timeout expires.
func waitForEvent(t *testing.T, c *Client, name string) testEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-c.send:
			var evt testEvent
			require.NoError(t, json.Unmarshal(raw, &evt))
			if evt.Event == name {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", name)
			return testEvent{}
		}
	}
}

// expectNoEvent asserts that no event with the given name arrives within the window.
func expectNoEvent(t *testing.T, c *Client, name string) {
	t.Helper()

	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case raw := <-c.send:
			var evt testEvent
			require.NoError(t, json.Unmarshal(raw, &evt))
			require.NotEqual(t, name, evt.Event, "unexpected event %q", name)
		case <-deadline:
			return
		}
	}
}
