// Package groutine starts named goroutines that carry pprof labels and never
// take the process down on panic.
package groutine

import (
	"context"
	"runtime/debug"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts fn on a new goroutine labelled with name.
//
//	groutine.Go(ctx, "conn-watch", logger, func(ctx context.Context) {
//	    <-conn.Disconnected()
//	})
//
// If parentCtx is nil, context.Background() is used. A panic in fn is
// recovered and logged at error level when logger is not nil.
func Go(parentCtx context.Context, name string, logger logrus.FieldLogger, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.WithFields(logrus.Fields{
					"goroutine": name,
					"panic":     r,
				}).Errorf("goroutine panicked\n%s", debug.Stack())
			}
		}()

		fn(context.WithValue(ctx, goroutineNameKey, name))
	})
}

// Name retrieves the goroutine name from the context.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(goroutineNameKey).(string); ok {
		return v
	}
	return ""
}
