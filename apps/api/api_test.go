package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/commune-chat/pkg/auth"
	"github.com/mahaj/commune-chat/pkg/directory"
	"github.com/mahaj/commune-chat/pkg/metrics"
	"github.com/mahaj/commune-chat/pkg/model"
	"github.com/mahaj/commune-chat/pkg/snowflake"
	"github.com/mahaj/commune-chat/pkg/store/memory"
)

type fakePresence map[string][]int64

func (f fakePresence) Members(_ context.Context, room string) ([]int64, error) {
	return f[room], nil
}

type apiFixture struct {
	store    *memory.Store
	verifier *auth.Verifier
	handler  http.Handler
	chatID   int64
}

// newAPIFixture seeds commune 10 with admin 1 and members 3 and 7, plus user 9
// outside the commune. Users 1 and 3 are in the commune chat.
func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()

	ids, err := snowflake.NewNode(1)
	req.NoError(err)
	st := memory.New(ids)
	for id, name := range map[int64]string{1: "ada", 3: "cy", 7: "grace", 9: "gus"} {
		req.NoError(st.PutUser(ctx, model.User{ID: id, Username: name}))
	}
	req.NoError(st.PutCommuneMember(ctx, 10, 1, model.RoleAdmin, true))
	req.NoError(st.PutCommuneMember(ctx, 10, 3, model.RoleMember, true))
	req.NoError(st.PutCommuneMember(ctx, 10, 7, model.RoleMember, true))
	chatID, err := st.CreateGroupChat(ctx, 10, 1, "garden")
	req.NoError(err)
	req.NoError(st.AddParticipants(ctx, chatID, []int64{3}))

	v, err := auth.NewVerifier("api-test-secret-value", "commune-chat")
	req.NoError(err)
	log := logs.GetLoggerFromString("ERROR")
	online := fakePresence{fmt.Sprintf("group:%d", chatID): {1, 3}}
	api := NewAPI(directory.New(st, online, log), v, metrics.NewUnregistered(), log)

	return apiFixture{store: st, verifier: v, handler: api.Routes([]string{"*"}), chatID: chatID}
}

func (f apiFixture) do(t *testing.T, userID int64, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if userID != 0 {
		token, err := f.verifier.GenerateToken(userID, time.Minute)
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestAuthentication(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("should require a token on chat routes", func(t *testing.T) {
		rec := f.do(t, 0, http.MethodGet, "/chats", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("should leave the health check open", func(t *testing.T) {
		rec := f.do(t, 0, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequestLogging(t *testing.T) {
	t.Run("should log requests through the injected logger", func(t *testing.T) {
		req := require.New(t)
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))
		f := newAPIFixture(t)
		v, err := auth.NewVerifier("api-test-secret-value", "commune-chat")
		req.NoError(err)
		handler := NewAPI(directory.New(f.store, nil, log), v, metrics.NewUnregistered(), log).Routes(nil)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

		var entry map[string]any
		req.NoError(json.NewDecoder(&buf).Decode(&entry))
		req.Equal("Served request", entry["msg"])
		req.Equal("/healthz", entry["path"])
		req.EqualValues(http.StatusOK, entry["status"])
	})
}

func TestListChats(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAPIFixture(t)
	_, err := f.store.Persist(ctx, 1, model.Individual(1, 9), "hello gus")
	req.NoError(err)

	rec := f.do(t, 1, http.MethodGet, "/chats", nil)
	req.Equal(http.StatusOK, rec.Code)
	convs := decode[model.Conversations](t, rec)
	req.Len(convs.Groups, 1)
	req.Equal(f.chatID, convs.Groups[0].ChatID)
	req.Len(convs.Individuals, 1)
	req.Equal(int64(9), convs.Individuals[0].Peer.ID)
	req.Equal("dm:1-9", convs.Individuals[0].Room)

	rec = f.do(t, 7, http.MethodGet, "/chats", nil)
	req.Equal(http.StatusOK, rec.Code)
	req.JSONEq(`{"groupConversations":[],"individualConversations":[]}`, rec.Body.String())
}

func TestHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("should return messages oldest first", func(t *testing.T) {
		req := require.New(t)
		f := newAPIFixture(t)
		for _, text := range []string{"one", "two", "three"} {
			_, err := f.store.Persist(ctx, 7, model.Individual(7, 9), text)
			req.NoError(err)
		}

		rec := f.do(t, 9, http.MethodGet, "/chats/individual/7/messages?limit=2", nil)
		req.Equal(http.StatusOK, rec.Code)
		msgs := decode[[]model.Message](t, rec)
		req.Len(msgs, 2)
		req.Equal("two", msgs[0].Text)
		req.Equal("three", msgs[1].Text)
	})

	t.Run("should refuse a group the caller is not in", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, 7, http.MethodGet, fmt.Sprintf("/chats/group/%d/messages", f.chatID), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("should report an unknown group", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, 1, http.MethodGet, "/chats/group/123/messages", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("should reject malformed descriptors", func(t *testing.T) {
		f := newAPIFixture(t)
		for _, path := range []string{"/chats/channel/1/messages", "/chats/group/abc/messages", "/chats/individual/9/messages?limit=x"} {
			rec := f.do(t, 1, http.MethodGet, path, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, path)
		}
	})

	t.Run("should report a store outage as unavailable", func(t *testing.T) {
		f := newAPIFixture(t)
		f.store.FailWith(errors.New("connection refused"))
		rec := f.do(t, 1, http.MethodGet, fmt.Sprintf("/chats/group/%d/messages", f.chatID), nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestAddParticipants(t *testing.T) {
	ctx := context.Background()

	t.Run("should add participants idempotently", func(t *testing.T) {
		req := require.New(t)
		f := newAPIFixture(t)
		path := fmt.Sprintf("/chats/%d/participants", f.chatID)

		for range 2 {
			rec := f.do(t, 1, http.MethodPost, path, AddParticipantsRequest{UserIDs: []int64{7, 7}})
			req.Equal(http.StatusNoContent, rec.Code)
		}
		ok, err := f.store.IsGroupParticipant(ctx, f.chatID, 7)
		req.NoError(err)
		req.True(ok)
	})

	t.Run("should forbid plain members", func(t *testing.T) {
		req := require.New(t)
		f := newAPIFixture(t)
		rec := f.do(t, 3, http.MethodPost, fmt.Sprintf("/chats/%d/participants", f.chatID), AddParticipantsRequest{UserIDs: []int64{7}})
		req.Equal(http.StatusForbidden, rec.Code)

		ok, err := f.store.IsGroupParticipant(ctx, f.chatID, 7)
		req.NoError(err)
		req.False(ok)
	})

	t.Run("should report unknown users and non members", func(t *testing.T) {
		req := require.New(t)
		f := newAPIFixture(t)
		path := fmt.Sprintf("/chats/%d/participants", f.chatID)
		for _, ids := range [][]int64{{7, 999}, {7, 9}} {
			rec := f.do(t, 1, http.MethodPost, path, AddParticipantsRequest{UserIDs: ids})
			req.Equal(http.StatusNotFound, rec.Code)
		}

		ok, err := f.store.IsGroupParticipant(ctx, f.chatID, 7)
		req.NoError(err)
		req.False(ok)
	})

	t.Run("should validate the body", func(t *testing.T) {
		f := newAPIFixture(t)
		path := fmt.Sprintf("/chats/%d/participants", f.chatID)
		for _, body := range []any{AddParticipantsRequest{}, AddParticipantsRequest{UserIDs: []int64{-1}}, "nope"} {
			rec := f.do(t, 1, http.MethodPost, path, body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		}
	})
}

func TestSearchUsers(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	rec := f.do(t, 7, http.MethodGet, "/users/search?username=GU", nil)
	req.Equal(http.StatusOK, rec.Code)
	users := decode[[]model.User](t, rec)
	req.Len(users, 1)
	req.Equal("gus", users[0].Username)

	rec = f.do(t, 7, http.MethodGet, "/users/search", nil)
	req.Equal(http.StatusBadRequest, rec.Code)
}

func TestOnline(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	rec := f.do(t, 3, http.MethodGet, fmt.Sprintf("/chats/group/%d/online", f.chatID), nil)
	req.Equal(http.StatusOK, rec.Code)
	req.Equal([]int64{1, 3}, decode[[]int64](t, rec))
}
