package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eculver/environment-url/pkg/environment"
)

// DefaultWriteTimeout bounds a single background audit write.
const DefaultWriteTimeout = 10 * time.Second

// AsyncEmitter hands each event to a goroutine and returns immediately.
// Write failures are logged at debug level and otherwise dropped.
type AsyncEmitter struct {
	writer  Writer
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

// NewAsyncEmitter creates an emitter around writer. A nil logger discards logs.
func NewAsyncEmitter(writer Writer, logger *zap.Logger, timeout time.Duration) *AsyncEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &AsyncEmitter{
		writer:  writer,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

func (e *AsyncEmitter) WriteAndForget(ctx context.Context, rc environment.RequestContext, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	if event.Actor == "" {
		event.Actor = rc.Principal
	}

	// The request context may be cancelled as soon as the caller returns.
	writeCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Debug("audit writer panicked", zap.String("action", event.Action), zap.String("panic", fmt.Sprint(r)))
			}
		}()

		ctx, cancel := context.WithTimeout(writeCtx, e.timeout)
		defer cancel()

		if err := e.writer.Write(ctx, event); err != nil {
			e.logger.Debug("audit write failed", zap.String("action", event.Action), zap.Error(err))
		}
	}()
}

// Wait blocks until all in-flight writes finish.
func (e *AsyncEmitter) Wait() {
	e.wg.Wait()
}
