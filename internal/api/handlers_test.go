package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley/chat-app/internal/auth"
	"github.com/parley/chat-app/internal/chat"
	"github.com/parley/chat-app/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore is an in-memory Store with scripted failures.
type fakeStore struct {
	users        map[string]*store.Account // by id
	byEmail      map[string]*store.Account
	rooms        map[string]*chat.Room
	messages     map[string]*chat.Message // by id
	participants map[string]map[string]bool

	toggleIsLiked bool
	toggleTotal   int

	createUserErr error
	getRoomErr    error
	listMsgErr    error
	insertErr     error
	deleteErr     error
	toggleErr     error
	joinErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        map[string]*store.Account{},
		byEmail:      map[string]*store.Account{},
		rooms:        map[string]*chat.Room{},
		messages:     map[string]*chat.Message{},
		participants: map[string]map[string]bool{},
	}
}

func (f *fakeStore) addUser(id, email, nickname, password string) *store.Account {
	hash, _ := auth.HashPassword(password)
	acct := &store.Account{
		User:         chat.User{ID: id, Email: email, Nickname: nickname},
		PasswordHash: hash,
	}
	f.users[id] = acct
	f.byEmail[email] = acct
	return acct
}

func (f *fakeStore) addRoom(id string, active bool) *chat.Room {
	room := &chat.Room{ID: id, Name: "room " + id, IsActive: active, CreatedAt: time.Now()}
	f.rooms[id] = room
	return room
}

func (f *fakeStore) addMessage(id, roomID, userID string) *chat.Message {
	m := &chat.Message{
		ID: id, RoomID: roomID, UserID: userID,
		Content: "hello", Type: chat.MessageTypeText,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.messages[id] = m
	return m
}

func (f *fakeStore) CreateUser(ctx context.Context, email, nickname, passwordHash string) (*chat.User, error) {
	if f.createUserErr != nil {
		return nil, f.createUserErr
	}
	if _, ok := f.byEmail[email]; ok {
		return nil, store.ErrEmailTaken
	}
	acct := &store.Account{
		User:         chat.User{ID: "u-" + nickname, Email: email, Nickname: nickname},
		PasswordHash: passwordHash,
	}
	f.users[acct.ID] = acct
	f.byEmail[email] = acct
	return &acct.User, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*store.Account, error) {
	if acct, ok := f.byEmail[email]; ok {
		return acct, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*chat.User, error) {
	if acct, ok := f.users[id]; ok {
		return &acct.User, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetAccountByID(ctx context.Context, id string) (*store.Account, error) {
	if acct, ok := f.users[id]; ok {
		return acct, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpdateNickname(ctx context.Context, userID, nickname string) error {
	if acct, ok := f.users[userID]; ok {
		acct.Nickname = nickname
		return nil
	}
	return store.ErrNotFound
}

func (f *fakeStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if acct, ok := f.users[userID]; ok {
		acct.PasswordHash = passwordHash
		return nil
	}
	return store.ErrNotFound
}

func (f *fakeStore) CreateRoom(ctx context.Context, name, creatorID string) (*chat.Room, error) {
	room := &chat.Room{ID: "r-" + name, Name: name, IsActive: true, CreatedAt: time.Now(), ParticipantCount: 1}
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeStore) GetRoom(ctx context.Context, roomID string) (*chat.Room, error) {
	if f.getRoomErr != nil {
		return nil, f.getRoomErr
	}
	if room, ok := f.rooms[roomID]; ok {
		return room, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListRooms(ctx context.Context) ([]chat.Room, error) {
	out := make([]chat.Room, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]chat.Message, bool, int, error) {
	if f.listMsgErr != nil {
		return nil, false, 0, f.listMsgErr
	}
	out := []chat.Message{}
	for _, m := range f.messages {
		if m.RoomID == roomID {
			out = append(out, *m)
		}
	}
	return out, false, len(out), nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, roomID, userID, content string, msgType chat.MessageType, parentMessageID *string) (*chat.Message, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	m := &chat.Message{
		ID: "m-new", RoomID: roomID, UserID: userID,
		Content: content, Type: msgType, ParentMessageID: parentMessageID,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.messages[m.ID] = m
	return m, nil
}

func (f *fakeStore) GetMessage(ctx context.Context, roomID, messageID string) (*chat.Message, error) {
	if m, ok := f.messages[messageID]; ok && m.RoomID == roomID {
		return m, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) SoftDeleteMessage(ctx context.Context, roomID, messageID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if m, ok := f.messages[messageID]; ok {
		m.IsDeleted = true
		m.Content = ""
		return nil
	}
	return store.ErrNotFound
}

func (f *fakeStore) ToggleReaction(ctx context.Context, messageID, userID string, reactionType chat.ReactionType) (bool, int, error) {
	if f.toggleErr != nil {
		return false, 0, f.toggleErr
	}
	return f.toggleIsLiked, f.toggleTotal, nil
}

func (f *fakeStore) JoinRoom(ctx context.Context, roomID, userID string) (bool, error) {
	if f.joinErr != nil {
		return false, f.joinErr
	}
	if f.participants[roomID] == nil {
		f.participants[roomID] = map[string]bool{}
	}
	already := f.participants[roomID][userID]
	f.participants[roomID][userID] = true
	return already, nil
}

func (f *fakeStore) ListParticipants(ctx context.Context, roomID string) ([]chat.Participant, error) {
	out := []chat.Participant{}
	for userID := range f.participants[roomID] {
		out = append(out, chat.Participant{ID: "p-" + userID, UserID: userID})
	}
	return out, nil
}

// fakePublisher records server-side broadcasts.
type fakePublisher struct {
	events []string
}

func (f *fakePublisher) PublishRoom(roomID, senderID, event string, payload any) error {
	f.events = append(f.events, event)
	return nil
}

type fakePresence struct {
	count int
	err   error
}

func (f *fakePresence) Count(ctx context.Context, roomID string) (int, error) {
	return f.count, f.err
}

type testEnv struct {
	store    *fakeStore
	pub      *fakePublisher
	presence *fakePresence
	tokens   *auth.TokenIssuer
	router   *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := newFakeStore()
	pub := &fakePublisher{}
	pres := &fakePresence{}
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	h := NewHandler(st, tokens, nil, pub, pres)
	return &testEnv{store: st, pub: pub, presence: pres, tokens: tokens, router: NewRouter(h)}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.tokens.Issue(userID, userID+"@example.com")
	require.NoError(t, err)
	return token
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/auth/register", "", gin.H{
		"email": "alice@example.com", "nickname": "alice", "password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp authResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Nickname)

	// Duplicate email.
	w = env.request(t, http.MethodPost, "/auth/register", "", gin.H{
		"email": "alice@example.com", "nickname": "alice2", "password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, chat.CodeUserExists, errCode(t, w))

	// Login with the right password.
	w = env.request(t, http.MethodPost, "/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// And the wrong one.
	w = env.request(t, http.MethodPost, "/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, chat.CodeInvalidCredentials, errCode(t, w))
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	for name, body := range map[string]gin.H{
		"missing email":  {"nickname": "a", "password": "hunter2hunter2"},
		"bad email":      {"email": "not-an-email", "nickname": "a", "password": "hunter2hunter2"},
		"short password": {"email": "a@b.c", "nickname": "a", "password": "short"},
		"no nickname":    {"email": "a@b.c", "password": "hunter2hunter2"},
	} {
		w := env.request(t, http.MethodPost, "/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Equal(t, chat.CodeInvalidRequest, errCode(t, w), name)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/auth/me", "/rooms"} {
		w := env.request(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, chat.CodeUnauthorized, errCode(t, w), path)
	}

	w := env.request(t, http.MethodGet, "/rooms", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetRoom(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser("u1", "u1@example.com", "alice", "hunter2hunter2")
	env.store.addRoom("r1", true)
	token := env.tokenFor(t, "u1")

	w := env.request(t, http.MethodGet, "/rooms/r1", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodGet, "/rooms/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, chat.CodeRoomNotFound, errCode(t, w))
}

func TestJoinRoom(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser("u1", "u1@example.com", "alice", "hunter2hunter2")
	env.store.addRoom("r1", true)
	env.store.addRoom("r2", false)
	token := env.tokenFor(t, "u1")

	w := env.request(t, http.MethodPost, "/rooms/r1/join", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		AlreadyJoined bool `json:"alreadyJoined"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.AlreadyJoined)
	assert.Equal(t, []string{chat.EventUserJoined}, env.pub.events, "first join is announced")

	w = env.request(t, http.MethodPost, "/rooms/r1/join", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.AlreadyJoined)
	assert.Len(t, env.pub.events, 1, "repeat joins are not announced")

	// Inactive room.
	w = env.request(t, http.MethodPost, "/rooms/r2/join", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, chat.CodeRoomInactive, errCode(t, w))
}

func TestListParticipantsReportsOnlineCount(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser("u1", "u1@example.com", "alice", "hunter2hunter2")
	env.store.addRoom("r1", true)
	env.store.participants["r1"] = map[string]bool{"u1": true}
	env.presence.count = 3
	token := env.tokenFor(t, "u1")

	w := env.request(t, http.MethodGet, "/rooms/r1/participants", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Participants []chat.Participant `json:"participants"`
		Online       int                `json:"online"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Participants, 1)
	assert.Equal(t, 3, resp.Online)

	// A presence backend failure never fails the participant list.
	env.presence.err = errors.New("redis down")
	w = env.request(t, http.MethodGet, "/rooms/r1/participants", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Online)
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser("u1", "u1@example.com", "alice", "hunter2hunter2")
	env.store.addRoom("r1", true)
	token := env.tokenFor(t, "u1")

	w := env.request(t, http.MethodPost, "/rooms/r1/messages", token, gin.H{
		"content": "hello", "type": "text",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.store.participants["r1"]["u1"], "sender auto-joins the room")

	// Validation failures.
	w = env.request(t, http.MethodPost, "/rooms/r1/messages", token, gin.H{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.request(t, http.MethodPost, "/rooms/r1/messages", token, gin.H{
		"content": "x", "type": "video",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown parent.
	w = env.request(t, http.MethodPost, "/rooms/r1/messages", token, gin.H{
		"content": "re", "parentMessageId": "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, chat.CodeMessageNotFound, errCode(t, w))
}

func TestDeleteMessageOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser("u1", "u1@example.com", "alice", "hunter2hunter2")
	env.store.addUser("u2", "u2@example.com", "bob", "hunter2hunter2")
	env.store.addRoom("r1", true)
	env.store.addMessage("m1", "r1", "u1")

	// Not the author.
	w := env.request(t, http.MethodDelete, "/rooms/r1/messages/m1", env.tokenFor(t, "u2"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, chat.CodeUnauthorizedDelete, errCode(t, w))
	assert.False(t, env.store.messages["m1"].IsDeleted)

	// The author.
	w = env.request(t, http.MethodDelete, "/rooms/r1/messages/m1", env.tokenFor(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.store.messages["m1"].IsDeleted)

	// Unknown message.
	w = env.request(t, http.MethodDelete, "/rooms/r1/messages/missing", env.tokenFor(t, "u1"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, chat.CodeMessageNotFound, errCode(t, w))
}

func TestToggleReaction(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser("u1", "u1@example.com", "alice", "hunter2hunter2")
	env.store.addUser("u2", "u2@example.com", "bob", "hunter2hunter2")
	env.store.addRoom("r1", true)
	env.store.addMessage("m1", "r1", "u1")
	env.store.toggleIsLiked = true
	env.store.toggleTotal = 3

	// Self-reaction is rejected before any store call.
	w := env.request(t, http.MethodPost, "/rooms/r1/messages/m1/reactions", env.tokenFor(t, "u1"), gin.H{"type": "like"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, chat.CodeSelfReactionNotAllowed, errCode(t, w))

	// Another user's toggle returns the server-side aggregate.
	w = env.request(t, http.MethodPost, "/rooms/r1/messages/m1/reactions", env.tokenFor(t, "u2"), gin.H{"type": "like"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		IsLiked    bool `json:"isLiked"`
		TotalLikes int  `json:"totalLikes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsLiked)
	assert.Equal(t, 3, resp.TotalLikes)

	// Unknown reaction type.
	w = env.request(t, http.MethodPost, "/rooms/r1/messages/m1/reactions", env.tokenFor(t, "u2"), gin.H{"type": "dislike"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMessagesRequiresActiveRoom(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser("u1", "u1@example.com", "alice", "hunter2hunter2")
	env.store.addRoom("r1", false)
	token := env.tokenFor(t, "u1")

	w := env.request(t, http.MethodGet, "/rooms/r1/messages", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, chat.CodeRoomInactive, errCode(t, w))
}

func TestProfileUpdates(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser("u1", "u1@example.com", "alice", "hunter2hunter2")
	token := env.tokenFor(t, "u1")

	w := env.request(t, http.MethodPatch, "/profile/nickname", token, gin.H{"nickname": "alicia"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alicia", env.store.users["u1"].Nickname)

	// Wrong current password.
	w = env.request(t, http.MethodPatch, "/profile/password", token, gin.H{
		"currentPassword": "wrong", "newPassword": "newpassword123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.request(t, http.MethodPatch, "/profile/password", token, gin.H{
		"currentPassword": "hunter2hunter2", "newPassword": "newpassword123",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, auth.CheckPassword(env.store.users["u1"].PasswordHash, "newpassword123"))
}

func TestCreateAndListRooms(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser("u1", "u1@example.com", "alice", "hunter2hunter2")
	token := env.tokenFor(t, "u1")

	w := env.request(t, http.MethodPost, "/rooms", token, gin.H{"name": "general"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.request(t, http.MethodPost, "/rooms", token, gin.H{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.request(t, http.MethodGet, "/rooms", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Rooms []chat.Room `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Rooms, 1)
}
