package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/message"
	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
	domainsession "github.com/SWM-FIRE/modoco-backend-sub000/domain/session"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/auth"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/coordinator"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/fanout"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/lifecycle"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/messages"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/metrics"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/registry"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/rooms"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/signaling"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)          {}
func (m *mockLogger) Info(msg string, args ...any)           {}
func (m *mockLogger) Warn(msg string, args ...any)           {}
func (m *mockLogger) Error(msg string, args ...any)          {}
func (m *mockLogger) With(args ...any) types.Logger          { return m }
func (m *mockLogger) WithError(err error) types.Logger       { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// fakeSocket records written frames.
type fakeSocket struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (s *fakeSocket) WriteMessage(_ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return assert.AnError
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) written() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Frame, 0, len(s.frames))
	for _, raw := range s.frames {
		var f Frame
		if err := json.Unmarshal(raw, &f); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// fakeCoordinator records calls and returns a preset error.
type fakeCoordinator struct {
	mu    sync.Mutex
	calls []string
	err   error
	chats []any
}

func (f *fakeCoordinator) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeCoordinator) Connect(_ context.Context, _ *registry.Connection, _ fanout.Sink) error {
	return f.record("connect")
}

func (f *fakeCoordinator) Disconnect(_ context.Context, sid string) (*registry.Connection, bool) {
	_ = f.record("disconnect")
	return nil, false
}

func (f *fakeCoordinator) Join(_ context.Context, _, roomID, _ string) error {
	return f.record("join:" + roomID)
}

func (f *fakeCoordinator) Leave(_ context.Context, _, roomID string) error {
	return f.record("leave:" + roomID)
}

func (f *fakeCoordinator) Kick(_ context.Context, _, roomID string, target coordinator.KickTarget) error {
	return f.record("kick:" + roomID + ":" + target.ConnectionID)
}

func (f *fakeCoordinator) Chat(_ context.Context, _, roomID string, payload any) error {
	f.mu.Lock()
	f.chats = append(f.chats, payload)
	f.mu.Unlock()
	return f.record("chat:" + roomID)
}

func (f *fakeCoordinator) MediaState(_ context.Context, _, roomID, kind string, enabled bool) error {
	state := "off"
	if enabled {
		state = "on"
	}
	return f.record("media:" + roomID + ":" + kind + ":" + state)
}

func (f *fakeCoordinator) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeRelay records relayed events.
type fakeRelay struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeRelay) Relay(_ context.Context, _, event string, msg signaling.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event+":"+msg.Target())
	return nil
}

// fakeLobby records lobby and user deliveries.
type fakeLobby struct {
	mu    sync.Mutex
	lobby []fanout.Envelope
	users map[string][]fanout.Envelope
}

func newFakeLobby() *fakeLobby {
	return &fakeLobby{users: make(map[string][]fanout.Envelope)}
}

func (f *fakeLobby) JoinLobby(string) error { return nil }

func (f *fakeLobby) PublishLobby(_ context.Context, env fanout.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lobby = append(f.lobby, env)
	return nil
}

func (f *fakeLobby) SendToUser(_ context.Context, uid string, env fanout.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[uid] = append(f.users[uid], env)
	return nil
}

// fakeRooms is an in-memory RoomsPort.
type fakeRooms struct {
	mu    sync.Mutex
	rooms map[string]rooms.RoomView
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: make(map[string]rooms.RoomView)}
}

func (f *fakeRooms) CreateRoom(_ context.Context, req rooms.CreateRoomRequest) (*rooms.RoomView, error) {
	if req.Title == "" {
		return nil, room.Validation("title is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	view := rooms.RoomView{ID: "r1", Title: req.Title, Total: req.Capacity, Moderator: req.ModeratorUID}
	f.rooms[view.ID] = view
	return &view, nil
}

func (f *fakeRooms) GetRoom(_ context.Context, id string) (*rooms.RoomView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	view, ok := f.rooms[id]
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	return &view, nil
}

func (f *fakeRooms) ListRooms(context.Context) ([]rooms.RoomView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rooms.RoomView, 0, len(f.rooms))
	for _, v := range f.rooms {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeRooms) DeleteRoom(_ context.Context, id, requester string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	view, ok := f.rooms[id]
	if !ok {
		return room.ErrRoomNotFound
	}
	if view.Moderator != requester {
		return room.ErrNotModerator
	}
	delete(f.rooms, id)
	return nil
}

// fakeSessions is an in-memory SessionPort.
type fakeSessions struct {
	sessions map[string]*domainsession.Session
}

func (f *fakeSessions) FindSession(_ context.Context, id string) (*domainsession.Session, bool, error) {
	s, ok := f.sessions[id]
	return s, ok, nil
}

func (f *fakeSessions) SaveSession(context.Context, string, domainsession.Update) error {
	return nil
}

// fakeMessages is an in-memory MessagesPort.
type fakeMessages struct {
	mu   sync.Mutex
	logs map[string][]message.Message
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{logs: make(map[string][]message.Message)}
}

func (f *fakeMessages) AppendMessage(_ context.Context, req messages.AppendRequest) (*message.Message, error) {
	msg, err := messages.NewMessage(req)
	if err != nil {
		return nil, room.Validation(err.Error())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, uid := range msg.Participants() {
		f.logs[uid] = append(f.logs[uid], msg)
	}
	return &msg, nil
}

func (f *fakeMessages) ListMessages(_ context.Context, uid string, limit int) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.logs[uid]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return append([]message.Message{}, list...), nil
}

// staticVerifier accepts "good-<uid>" tokens.
type staticVerifier struct{}

func (staticVerifier) ValidateToken(token string) (*auth.Claims, error) {
	const prefix = "good-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return nil, assert.AnError
	}
	uid := token[len(prefix):]
	return &auth.Claims{UserID: uid, Nickname: "nick-" + uid}, nil
}

type fixture struct {
	module   *Module
	coord    *fakeCoordinator
	relay    *fakeRelay
	lobby    *fakeLobby
	rooms    *fakeRooms
	messages *fakeMessages
	life     *lifecycle.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		coord:    &fakeCoordinator{},
		relay:    &fakeRelay{},
		lobby:    newFakeLobby(),
		rooms:    newFakeRooms(),
		messages: newFakeMessages(),
		life:     lifecycle.NewController(),
	}
	require.True(t, f.life.Advance(lifecycle.Ready))

	cfg := DefaultConfig()
	cfg.RequestTimeout = time.Second
	f.module = NewModule(cfg, Deps{
		Coordinator: f.coord,
		Relay:       f.relay,
		Bus:         f.lobby,
		Registry:    registry.New(),
		Lifecycle:   f.life,
		Verifier:    staticVerifier{},
		Metrics:     metrics.New(),
		Logger:      &mockLogger{},
	})
	f.module.rooms = f.rooms
	f.module.sessions = &fakeSessions{sessions: map[string]*domainsession.Session{
		"u1": {UserID: "u1", Nickname: "nick-u1", Status: domainsession.StatusOnline},
	}}
	f.module.messages = f.messages
	return f
}

// newTestClient returns a client whose frames are written to a fake socket.
func newTestClient(uid, namespace string) (*client, *fakeSocket) {
	ws := &fakeSocket{}
	conn := registry.NewConnection("sid-"+uid, uid, "nick-"+uid, namespace)
	return newClient(conn, ws, 16, &mockLogger{}), ws
}

// drain closes the client and returns what it wrote.
func drain(cl *client, ws *fakeSocket) []Frame {
	go cl.writePump(time.Second, time.Hour)
	cl.close()
	cl.wait()
	return ws.written()
}

func frame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(Frame{Event: event, Data: data})
	require.NoError(t, err)
	return raw
}

func exceptionMessage(t *testing.T, f Frame) string {
	t.Helper()
	require.Equal(t, EventException, f.Event)
	var e Exception
	require.NoError(t, json.Unmarshal(f.Data, &e))
	return e.Message
}
