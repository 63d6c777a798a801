package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley/chat-app/internal/chat"
)

func TestClientDecodesStructuredErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"ROOM_NOT_FOUND","message":"room not found"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	_, err := c.GetRoom(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *chat.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, chat.CodeRoomNotFound, apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClientUnstructuredErrorFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.ListRooms(context.Background())
	require.Error(t, err)

	var apiErr *chat.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rooms":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token")
	_, err := c.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestClientRoomAPIRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rooms/r1/join":
			w.Write([]byte(`{"alreadyJoined":true}`))
		case r.Method == http.MethodGet && r.URL.Path == "/rooms/r1/messages":
			assert.Equal(t, "25", r.URL.Query().Get("limit"))
			assert.Equal(t, "50", r.URL.Query().Get("offset"))
			w.Write([]byte(`{"messages":[{"id":"m1"}],"hasMore":true,"total":51}`))
		case r.Method == http.MethodPost && r.URL.Path == "/rooms/r1/messages/m1/reactions":
			w.Write([]byte(`{"isLiked":true,"totalLikes":2}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	ctx := context.Background()

	already, err := c.JoinRoom(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, already)

	messages, hasMore, err := c.ListMessages(ctx, "r1", 25, 50)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.True(t, hasMore)

	isLiked, total, err := c.ToggleReaction(ctx, "r1", "m1")
	require.NoError(t, err)
	assert.True(t, isLiked)
	assert.Equal(t, 2, total)
}
