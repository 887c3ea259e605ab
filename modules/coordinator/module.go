package coordinator

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/SWM-FIRE/modoco-backend-sub000/events"
)

// Module hosts the coordinator in the mono application so it receives the
// event bus and can declare the membership events it emits.
type Module struct {
	coordinator *Coordinator
	logger      types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
)

// NewModule creates a new coordinator module.
func NewModule(d Deps) *Module {
	return &Module{coordinator: New(d), logger: d.Logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "coordinator"
}

// Coordinator returns the wrapped coordinator.
func (m *Module) Coordinator() *Coordinator {
	return m.coordinator
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.coordinator.SetEventBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MemberJoinedV1.ToBase(),
		events.MemberLeftV1.ToBase(),
		events.MemberKickedV1.ToBase(),
	}
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Coordinator module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Coordinator module stopped")
	return nil
}
