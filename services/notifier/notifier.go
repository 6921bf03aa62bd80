package notifier

import (
	"context"
	stderrors "errors"

	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/logger"
)

// Notifier delivers the new jobs of a run. Implementations send nothing for an empty list.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, jobs []crawler.Job) error
}

// Multi fans a notification out to every configured notifier
type Multi []Notifier

// Name returns the notifier name
func (m Multi) Name() string {
	return "multi"
}

// Notify calls every notifier even when an earlier one fails
func (m Multi) Notify(ctx context.Context, jobs []crawler.Job) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, jobs); err != nil {
			logger.ForNotifier().Error().Err(err).Str("notifier", n.Name()).Msg("Notification failed")
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
