package gateway

import (
	"context"
	"errors"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/coordinator"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/fanout"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/messages"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/registry"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/signaling"
)

// roomTable is the dispatch table of the room namespace.
func (m *Module) roomTable() Table {
	return Table{
		EventJoinRoom:    On(m.joinRoom),
		EventLeaveRoom:   On(m.leaveRoom),
		EventKickUser:    On(m.kickUser),
		EventChatMessage: On(m.chatMessage),
		EventCallUser: On(func(ctx context.Context, cl *client, p signaling.CallUser) error {
			return m.relay.Relay(ctx, cl.conn.ID, signaling.EventCallUser, p)
		}),
		EventMakeAnswer: On(func(ctx context.Context, cl *client, p signaling.MakeAnswer) error {
			return m.relay.Relay(ctx, cl.conn.ID, signaling.EventMakeAnswer, p)
		}),
		EventICECandidate: On(func(ctx context.Context, cl *client, p signaling.ICECandidate) error {
			return m.relay.Relay(ctx, cl.conn.ID, signaling.EventICECandidate, p)
		}),
		EventVideoStateChange: On(m.mediaState(registry.MediaVideo)),
		EventAudioStateChange: On(m.mediaState(registry.MediaAudio)),
	}
}

// lobbyTable is the dispatch table of the lobby namespace.
func (m *Module) lobbyTable() Table {
	return Table{
		EventGetRooms: On(m.getRooms),
	}
}

// chatTable is the dispatch table of the chat namespace.
func (m *Module) chatTable() Table {
	return Table{
		EventDirectMessage:  On(m.directMessage),
		EventMessageHistory: On(m.messageHistory),
	}
}

func (m *Module) joinRoom(ctx context.Context, cl *client, p JoinRoom) error {
	err := m.coord.Join(ctx, cl.conn.ID, p.Room, p.UID)
	switch {
	case errors.Is(err, room.ErrAlreadyJoined):
		cl.emit(coordinator.EventAlreadyJoinedRoom, coordinator.RoomPayload{Room: p.Room})
		return nil
	case errors.Is(err, room.ErrRoomFull):
		cl.emit(coordinator.EventRoomFull, coordinator.RoomPayload{Room: p.Room})
		return nil
	}
	return err
}

func (m *Module) leaveRoom(ctx context.Context, cl *client, p LeaveRoom) error {
	return m.coord.Leave(ctx, cl.conn.ID, p.Room)
}

func (m *Module) kickUser(ctx context.Context, cl *client, p KickUser) error {
	return m.coord.Kick(ctx, cl.conn.ID, p.Room, p.UserToKick)
}

func (m *Module) chatMessage(ctx context.Context, cl *client, p ChatMessage) error {
	return m.coord.Chat(ctx, cl.conn.ID, p.Room, p)
}

func (m *Module) mediaState(kind string) func(context.Context, *client, MediaStateChange) error {
	return func(ctx context.Context, cl *client, p MediaStateChange) error {
		return m.coord.MediaState(ctx, cl.conn.ID, p.Room, kind, *p.Enabled)
	}
}

func (m *Module) getRooms(ctx context.Context, cl *client, _ GetRooms) error {
	list, err := m.rooms.ListRooms(ctx)
	if err != nil {
		return err
	}
	cl.emit(EventRooms, RoomsPayload{Rooms: list})
	return nil
}

func (m *Module) directMessage(ctx context.Context, cl *client, p DirectMessage) error {
	msg, err := m.messages.AppendMessage(ctx, messages.AppendRequest{
		From:      cl.conn.UserID,
		To:        p.To,
		Message:   p.Message,
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		return err
	}

	env, err := fanout.NewEnvelope(string(EventDirectMessage), DirectMessageOut{
		From:      msg.From,
		Message:   msg.Body,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return err
	}
	if err := m.bus.SendToUser(ctx, p.To, env); err != nil {
		m.logger.Warn("Failed to deliver direct message", "to", p.To, "error", err)
	}
	return nil
}

func (m *Module) messageHistory(ctx context.Context, cl *client, p MessageHistory) error {
	list, err := m.messages.ListMessages(ctx, cl.conn.UserID, p.Limit)
	if err != nil {
		return err
	}
	cl.emit(string(EventMessageHistory), MessageHistoryPayload{Messages: list})
	return nil
}
