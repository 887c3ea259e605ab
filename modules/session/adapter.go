package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/SWM-FIRE/modoco-backend-sub000/domain/session"
)

// SessionPort defines the session operations other modules use.
type SessionPort interface {
	FindSession(ctx context.Context, id string) (*domain.Session, bool, error)
	SaveSession(ctx context.Context, id string, update domain.Update) error
}

// SessionAdapter implements SessionPort using the service container.
type SessionAdapter struct {
	container mono.ServiceContainer
}

// NewSessionAdapter creates a new SessionAdapter.
func NewSessionAdapter(container mono.ServiceContainer) *SessionAdapter {
	return &SessionAdapter{container: container}
}

// FindSession looks up a session.
func (a *SessionAdapter) FindSession(ctx context.Context, id string) (*domain.Session, bool, error) {
	req := FindRequest{ID: id}
	var resp FindResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceFind,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, false, fmt.Errorf("%s request failed: %w", ServiceFind, err)
	}
	return resp.Session, resp.Found, nil
}

// SaveSession merges update into the session.
func (a *SessionAdapter) SaveSession(ctx context.Context, id string, update domain.Update) error {
	req := SaveRequest{ID: id, Update: update}
	var resp SaveResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSave,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", ServiceSave, err)
	}
	if !resp.Saved {
		return errors.New(resp.Error)
	}
	return nil
}
