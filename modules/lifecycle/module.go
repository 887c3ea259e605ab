package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Checker pings one shared dependency.
type Checker func(ctx context.Context) error

// Module runs the dependency monitor that marks the process degraded when a
// shared store or the fan-out bus stops answering.
type Module struct {
	controller *Controller
	interval   time.Duration
	logger     types.Logger

	mu       sync.Mutex
	checkers map[string]Checker
	failures map[string]string
	cancel   context.CancelFunc
	done     chan struct{}
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new lifecycle module.
func NewModule(controller *Controller, interval time.Duration, logger types.Logger) *Module {
	return &Module{
		controller: controller,
		interval:   interval,
		logger:     logger,
		checkers:   make(map[string]Checker),
		failures:   make(map[string]string),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "lifecycle"
}

// Watch registers a dependency checker. It must be called before Start.
func (m *Module) Watch(name string, check Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = check
}

// Controller returns the lifecycle controller.
func (m *Module) Controller() *Controller {
	return m.controller
}

// Start runs one check synchronously and then starts the monitor loop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	m.CheckNow(ctx)

	go m.run(ctx)
	m.logger.Info("Lifecycle monitor started", "interval", m.interval.String())
	return nil
}

// Stop halts the monitor loop.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.logger.Info("Lifecycle monitor stopped", "phase", m.controller.Snapshot().Phase.String())
	return nil
}

// Health reports the lifecycle phase and degraded state.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	s := m.controller.Snapshot()
	status := mono.HealthStatus{
		Healthy: !s.Degraded,
		Message: s.Phase.String(),
		Details: map[string]any{
			"phase":    s.Phase.String(),
			"degraded": s.Degraded,
		},
	}
	if s.Degraded {
		status.Message = "degraded: " + s.DegradedReason
	}
	return status
}

func (m *Module) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow pings every dependency once and updates the degraded flag.
func (m *Module) CheckNow(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, check := range m.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, m.interval)
		err := check(checkCtx)
		cancel()
		if err != nil {
			if _, seen := m.failures[name]; !seen {
				m.logger.Error("Dependency check failed", "dependency", name, "error", err)
			}
			m.failures[name] = err.Error()
			continue
		}
		if _, seen := m.failures[name]; seen {
			m.logger.Info("Dependency recovered", "dependency", name)
			delete(m.failures, name)
		}
	}

	reason := ""
	if len(m.failures) > 0 {
		names := make([]string, 0, len(m.failures))
		for name, msg := range m.failures {
			names = append(names, fmt.Sprintf("%s: %s", name, msg))
		}
		sort.Strings(names)
		reason = strings.Join(names, "; ")
	}
	if m.controller.SetDegraded(reason) {
		m.logger.Warn("Degraded state changed", "degraded", reason != "", "reason", reason)
	}
}
