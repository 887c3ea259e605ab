package messages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/message"
	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// MessagesPort defines the message log operations other modules use.
type MessagesPort interface {
	AppendMessage(ctx context.Context, req AppendRequest) (*message.Message, error)
	ListMessages(ctx context.Context, uid string, limit int) ([]message.Message, error)
}

// MessagesAdapter implements MessagesPort using the service container.
type MessagesAdapter struct {
	container mono.ServiceContainer
}

// NewMessagesAdapter creates a new MessagesAdapter.
func NewMessagesAdapter(container mono.ServiceContainer) *MessagesAdapter {
	return &MessagesAdapter{container: container}
}

// AppendMessage stores a direct message.
func (a *MessagesAdapter) AppendMessage(ctx context.Context, req AppendRequest) (*message.Message, error) {
	var resp AppendResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceAppend,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceAppend, err)
	}
	if resp.Error != "" {
		return nil, room.Validation(resp.Error)
	}
	return resp.Message, nil
}

// ListMessages returns a user's log.
func (a *MessagesAdapter) ListMessages(ctx context.Context, uid string, limit int) ([]message.Message, error) {
	req := ListRequest{UserID: uid, Limit: limit}
	var resp ListResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceList,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceList, err)
	}
	return resp.Messages, nil
}
