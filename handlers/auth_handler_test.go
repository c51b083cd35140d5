package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"realtime-pollchat-backend/auth"
	"realtime-pollchat-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegister_Success(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	w := postJSON(t, router, "/register", RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Mobile:   "1234567890",
		Password: "secret123",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp["username"])
	assert.NotEmpty(t, resp["userId"])
	assert.NotZero(t, resp["id"])

	var user models.User
	require.NoError(t, db.Where("username = ?", "alice").First(&user).Error)
	// 明文口令绝不落库
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.True(t, auth.CheckPassword(user.PasswordHash, "secret123"))
}

func TestRegister_Validation(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"缺少用户名", RegisterInput{Email: "a@b.com", Mobile: "1234567890", Password: "secret123"}},
		{"邮箱格式错误", RegisterInput{Username: "alice", Email: "not-an-email", Mobile: "1234567890", Password: "secret123"}},
		{"手机号过短", RegisterInput{Username: "alice", Email: "a@b.com", Mobile: "12345", Password: "secret123"}},
		{"手机号非数字", RegisterInput{Username: "alice", Email: "a@b.com", Mobile: "12345abcde", Password: "secret123"}},
		{"口令过短", RegisterInput{Username: "alice", Email: "a@b.com", Mobile: "1234567890", Password: "short"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, router, "/register", tc.input)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Zero(t, count)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	first := RegisterInput{Username: "alice", Email: "alice@example.com", Mobile: "1234567890", Password: "secret123"}
	w := postJSON(t, router, "/register", first)
	require.Equal(t, http.StatusOK, w.Code)

	second := RegisterInput{Username: "alice", Email: "other@example.com", Mobile: "0987654321", Password: "secret123"}
	w = postJSON(t, router, "/register", second)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Username is already taken")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	first := RegisterInput{Username: "alice", Email: "alice@example.com", Mobile: "1234567890", Password: "secret123"}
	w := postJSON(t, router, "/register", first)
	require.Equal(t, http.StatusOK, w.Code)

	second := RegisterInput{Username: "bob", Email: "alice@example.com", Mobile: "0987654321", Password: "secret123"}
	w = postJSON(t, router, "/register", second)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "User email or mobile already exists")
}

func TestLogin_Success(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	user := createTestUser(t, "alice")

	w := postJSON(t, router, "/login", LoginInput{Username: "alice", Password: "secret123"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp["username"])

	// 返回的令牌必须能解析回同一个用户
	token, ok := resp["token"].(string)
	require.True(t, ok)
	userID, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestLogin_WrongPassword(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	createTestUser(t, "alice")

	w := postJSON(t, router, "/login", LoginInput{Username: "alice", Password: "wrongpass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password")
}

func TestLogin_UnknownUser(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	w := postJSON(t, router, "/login", LoginInput{Username: "nobody", Password: "secret123"})
	// 不区分用户不存在和口令错误，避免用户名枚举
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password")
}
