package approval

import (
	"log/slog"
	"time"

	"github.com/viant/accessflow/service/messaging"
	"github.com/viant/accessflow/service/provision"
)

const (
	// DefaultProvisionTimeout bounds a single provisioning call.
	DefaultProvisionTimeout = 10 * time.Second
	// DefaultPublishTimeout bounds publishing one event.
	DefaultPublishTimeout = time.Second
)

type Option func(*Engine)

// WithProvisioner sets the hook invoked after a request is approved.
func WithProvisioner(hook provision.Hook) Option {
	return func(e *Engine) { e.provisioner = hook }
}

// WithProvisionTimeout bounds the provisioning call.
func WithProvisionTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.provisionTimeout = timeout
		}
	}
}

// WithQueue replaces the default in-memory event queue.
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(e *Engine) { e.events = queue }
}

// WithPublishTimeout bounds publishing one event.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.publishTimeout = timeout
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
