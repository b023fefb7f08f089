package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/opencourt/courtwatch/internal/model"
)

// LogDispatcher writes digests to the log instead of delivering them.
// Default for development runs.
type LogDispatcher struct {
	log zerolog.Logger
}

// NewLogDispatcher returns a dispatcher that logs digest contents.
func NewLogDispatcher(log zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

// SendDigest implements Dispatcher.
func (d *LogDispatcher) SendDigest(_ context.Context, dg *model.Digest) error {
	d.log.Info().
		Str("recipient", dg.Recipient).
		Str("subscription", dg.SubscriptionID).
		Int("windows", len(dg.Windows)).
		Str("body", RenderDigest(dg)).
		Msg("digest dispatched (log only)")
	return nil
}
