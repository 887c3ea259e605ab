package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWM-FIRE/modoco-backend-sub000/modules/lifecycle"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/messages"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/rooms"
)

func roomsRequest(title string, total int, moderator string) rooms.CreateRoomRequest {
	return rooms.CreateRoomRequest{Title: title, Capacity: total, ModeratorUID: moderator}
}

func do(t *testing.T, app *fiber.App, method, target, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestModule_Health(t *testing.T) {
	f := newFixture(t)
	app := f.module.buildApp()

	resp, body := do(t, app, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ready", health.Details["phase"])

	f.life.SetDegraded("redis: connection refused")
	resp, body = do(t, app, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "unavailable", health.Status)
	assert.Equal(t, "redis: connection refused", health.Details["degraded"])

	f.life.SetDegraded("")
	f.life.Advance(lifecycle.Draining)
	resp, _ = do(t, app, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestModule_Metrics(t *testing.T) {
	f := newFixture(t)
	app := f.module.buildApp()

	resp, _ := do(t, app, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestModule_WebsocketRoutesRequireUpgrade(t *testing.T) {
	f := newFixture(t)
	app := f.module.buildApp()

	for _, ns := range []string{NamespaceRoom, NamespaceLobby, NamespaceChat} {
		resp, _ := do(t, app, http.MethodGet, "/ws/"+ns+"?token=good-u1", "", "")
		assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode, ns)
	}
}

func TestIdentityMiddleware(t *testing.T) {
	f := newFixture(t)
	app := f.module.buildApp()

	tests := []struct {
		name   string
		target string
		token  string
		status int
	}{
		{name: "missing token", target: "/api/v1/rooms", status: http.StatusUnauthorized},
		{name: "bad token", target: "/api/v1/rooms", token: "forged", status: http.StatusUnauthorized},
		{name: "bearer token", target: "/api/v1/rooms", token: "good-u1", status: http.StatusOK},
		{name: "query token", target: "/api/v1/rooms?token=good-u1", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodGet, tt.target, tt.token, "")
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusUnauthorized {
				var e ErrorResponse
				require.NoError(t, json.Unmarshal(body, &e))
				assert.Equal(t, "invalid_credentials", e.Error)
			}
		})
	}
}

func TestModule_RoomRoutes(t *testing.T) {
	f := newFixture(t)
	app := f.module.buildApp()

	resp, body := do(t, app, http.MethodPost, "/api/v1/rooms", "good-u1", `{"title":"Study","total":4,"moderator":"someone-else"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created rooms.RoomView
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "u1", created.Moderator, "moderator comes from the token")

	resp, _ = do(t, app, http.MethodPost, "/api/v1/rooms", "good-u1", `{"total":4}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/v1/rooms", "good-u1", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/api/v1/rooms/"+created.ID, "good-u2", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got rooms.RoomView
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Study", got.Title)

	resp, body = do(t, app, http.MethodGet, "/api/v1/rooms", "good-u2", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var list ListRoomsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Rooms, 1)

	resp, _ = do(t, app, http.MethodDelete, "/api/v1/rooms/"+created.ID, "good-u2", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, app, http.MethodDelete, "/api/v1/rooms/"+created.ID, "good-u1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/api/v1/rooms/"+created.ID, "good-u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "room not found", e.Message)
}

func TestModule_SessionAndMessageRoutes(t *testing.T) {
	f := newFixture(t)
	app := f.module.buildApp()

	resp, body := do(t, app, http.MethodGet, "/api/v1/sessions/u1", "good-u2", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"uid":"u1","nickname":"nick-u1","status":"online"}`, string(body))

	resp, _ = do(t, app, http.MethodGet, "/api/v1/sessions/nobody", "good-u2", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.messages.AppendMessage(t.Context(), messagesRequest("u2", "u1", text))
		require.NoError(t, err)
	}

	resp, body = do(t, app, http.MethodGet, "/api/v1/messages?limit=2", "good-u1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var list ListMessagesResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Messages, 2)
	assert.Equal(t, "two", list.Messages[0].Body)
	assert.Equal(t, "three", list.Messages[1].Body)
}

func messagesRequest(from, to, text string) messages.AppendRequest {
	return messages.AppendRequest{From: from, To: to, Message: text}
}
