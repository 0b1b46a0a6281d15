// Package audit records which environment URLs were requested and by whom.
// Events carry identifiers only, never credentials or URLs.
package audit

import (
	"context"
	"time"

	"github.com/eculver/environment-url/pkg/environment"
)

const (
	ActionEnvironmentURLRequested       = "environment-url-requested"
	ActionNotebookPresignedURLRequested = "notebook-presigned-url-requested"
)

// Event is a single audit record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor,omitempty"`
	Body      map[string]string `json:"body"`
}

// Writer persists audit events.
type Writer interface {
	Write(ctx context.Context, event Event) error
}

// Emitter records events without blocking or failing the caller.
type Emitter interface {
	WriteAndForget(ctx context.Context, rc environment.RequestContext, event Event)
}
