package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"realtime-pollchat-backend/auth"
	"realtime-pollchat-backend/cache"
	"realtime-pollchat-backend/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authPayloadJSON(token string) json.RawMessage {
	data, _ := json.Marshal(authenticatePayload{Token: token})
	return data
}

// expiredToken 用与服务端相同的签名方式构造一个已过期的令牌
func expiredToken(t *testing.T, userID uint) string {
	t.Setenv("JWT_SECRET", "session-test-secret")
	claims := auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-25 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("session-test-secret"))
	require.NoError(t, err)
	return signed
}

func TestAuthenticate_Success(t *testing.T) {
	_, db := SetupTestEnvironment(t)
	ClearTables(db)

	bob := createTestUser(t, "bob")
	token, err := auth.GenerateToken(bob.ID)
	require.NoError(t, err)

	// 预置一条聊天记录，认证后应随历史快照下发
	msg := models.Message{UserID: bob.ID, Text: "earlier"}
	require.NoError(t, db.Create(&msg).Error)

	client := newTestClient(t)
	handleAuthenticate(client, authPayloadJSON(token))

	waitForEvent(t, client, "authenticated")

	evt := waitForEvent(t, client, "chatHistory")
	var history []MessagePayload
	require.NoError(t, json.Unmarshal(evt.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "earlier", history[0].Text)
	assert.Equal(t, "bob", history[0].User)

	// 会话注册表里能查到该连接
	user, ok := hub.Sessions().Lookup(client.id)
	require.True(t, ok)
	assert.Equal(t, bob.ID, user.ID)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	_, db := SetupTestEnvironment(t)
	ClearTables(db)

	client := newTestClient(t)
	handleAuthenticate(client, authPayloadJSON("not-a-token"))

	evt := waitForEvent(t, client, "unauthorized")
	assert.Contains(t, string(evt.Data), "Invalid token")

	_, ok := hub.Sessions().Lookup(client.id)
	assert.False(t, ok)
}

func TestAuthenticate_EmptyToken(t *testing.T) {
	_, db := SetupTestEnvironment(t)
	ClearTables(db)

	client := newTestClient(t)
	handleAuthenticate(client, json.RawMessage(`{"token":""}`))

	evt := waitForEvent(t, client, "unauthorized")
	assert.Contains(t, string(evt.Data), "Invalid token")
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	_, db := SetupTestEnvironment(t)
	ClearTables(db)

	bob := createTestUser(t, "bob")
	token := expiredToken(t, bob.ID)

	client := newTestClient(t)
	handleAuthenticate(client, authPayloadJSON(token))

	evt := waitForEvent(t, client, "unauthorized")
	assert.Contains(t, string(evt.Data), "Token expired")

	_, ok := hub.Sessions().Lookup(client.id)
	assert.False(t, ok)
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	_, db := SetupTestEnvironment(t)
	ClearTables(db)

	bob := createTestUser(t, "bob")
	token, err := auth.GenerateToken(bob.ID)
	require.NoError(t, err)
	require.NoError(t, db.Unscoped().Delete(&models.User{}, bob.ID).Error)

	client := newTestClient(t)
	handleAuthenticate(client, authPayloadJSON(token))

	evt := waitForEvent(t, client, "error")
	assert.Contains(t, string(evt.Data), "User not found")

	_, ok := hub.Sessions().Lookup(client.id)
	assert.False(t, ok)
}

// 快照票数优先来自缓存，缓存没有的选项回落到数据库值
func TestPollSnapshot_ServesCachedTallies(t *testing.T) {
	_, db := SetupTestEnvironment(t)
	ClearTables(db)

	poll := createTestPoll(t, "Tabs or spaces?", "Tabs", "Spaces")
	require.NoError(t, db.Model(&models.PollOption{}).
		Where("poll_id = ? AND text = ?", poll.ID, "Spaces").
		Update("votes", int64(2)).Error)

	// 只为Tabs写缓存，Spaces走数据库回落
	require.NoError(t, cache.SetVoteCount(poll.ID, poll.Options[0].ID, 7))

	client := newTestClient(t)
	sendPollSnapshot(client)

	evt := waitForEvent(t, client, "allPolls")
	var polls []PollPayload
	require.NoError(t, json.Unmarshal(evt.Data, &polls))
	require.Len(t, polls, 1)
	require.Len(t, polls[0].Options, 2)

	counts := map[string]int64{}
	for _, opt := range polls[0].Options {
		counts[opt.Option] = opt.Count
	}
	assert.Equal(t, int64(7), counts["Tabs"])
	assert.Equal(t, int64(2), counts["Spaces"])
}

func TestPollSnapshot_NoAuthRequired(t *testing.T) {
	_, db := SetupTestEnvironment(t)
	ClearTables(db)

	poll := createTestPoll(t, "Tabs or spaces?", "Tabs", "Spaces")

	// 未认证的连接也能收到投票快照
	client := newTestClient(t)
	sendPollSnapshot(client)

	evt := waitForEvent(t, client, "allPolls")
	var polls []PollPayload
	require.NoError(t, json.Unmarshal(evt.Data, &polls))
	require.Len(t, polls, 1)
	assert.Equal(t, poll.ID, polls[0].ID)
	assert.Equal(t, "Tabs or spaces?", polls[0].Question)
	assert.Len(t, polls[0].Options, 2)
}
