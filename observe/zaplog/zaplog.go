// Package zaplog provides a zap-backed logging observer for the scope
// library. Scope and task lifecycle events are logged structured, with
// cancellations at debug level and failures at error level.
package zaplog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/weftrun/weft/scope"
)

// Observer implements scope.Observer on a zap logger.
type Observer struct {
	log *zap.Logger
}

// New wraps log. A nil logger is replaced with zap.NewNop().
func New(log *zap.Logger) *Observer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Observer{log: log}
}

func (o *Observer) ScopeCreated(_ context.Context) {
	o.log.Debug("scope created")
}

func (o *Observer) ScopeCancelled(_ context.Context, cause error) {
	o.log.Debug("scope cancelled", zap.NamedError("cause", cause))
}

func (o *Observer) ScopeJoined(_ context.Context, wait time.Duration) {
	o.log.Debug("scope joined", zap.Duration("wait", wait))
}

func (o *Observer) TaskStarted(_ context.Context, info scope.TaskInfo) {
	o.log.Debug("task started", zap.String("task", info.Name))
}

func (o *Observer) TaskFinished(_ context.Context, info scope.TaskInfo, dur time.Duration, err error, panicked bool) {
	fields := []zap.Field{
		zap.String("task", info.Name),
		zap.Duration("duration", dur),
	}
	switch {
	case panicked:
		o.log.Error("task panicked", append(fields, zap.Error(err))...)
	case err != nil && !scope.IsCancellation(err):
		o.log.Error("task failed", append(fields, zap.Error(err))...)
	case err != nil:
		o.log.Debug("task cancelled", append(fields, zap.NamedError("cause", err))...)
	default:
		o.log.Debug("task completed", fields...)
	}
}
