// Package notifier reports the outcome of a run.
package notifier

import (
	"context"

	"github.com/amishk599/jobreach/internal/pipeline"
)

// Notifier delivers a run summary somewhere a human will see it.
type Notifier interface {
	Notify(ctx context.Context, s pipeline.Summary) error
}
