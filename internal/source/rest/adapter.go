// Package rest implements a source.Adapter for booking systems that expose
// their availability grid as a JSON feed over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/source"
)

// Config holds the per-source HTTP settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Adapter fetches availability from a JSON feed:
//
//	GET {base}/availability?from=2026-03-02&to=2026-03-09
//	{"courts":[{"id":"court-1","slots":[{"start":...,"end":...,"status":"OPEN"}]}]}
type Adapter struct {
	client *resty.Client
	log    zerolog.Logger
}

type feedResponse struct {
	Courts []feedCourt `json:"courts"`
}

type feedCourt struct {
	ID    string     `json:"id"`
	Slots []feedSlot `json:"slots"`
}

type feedSlot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Status   string    `json:"status"`
	Price    *float64  `json:"price,omitempty"`
	Currency string    `json:"currency,omitempty"`
}

// New constructs an Adapter for one feed endpoint.
func New(cfg Config, log zerolog.Logger) *Adapter {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		c.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Adapter{client: c, log: log}
}

// FetchSnapshot implements source.Adapter.
func (a *Adapter) FetchSnapshot(ctx context.Context, sourceID string, rng source.DateRange) (*model.Snapshot, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("from", rng.From.Format("2006-01-02")).
		SetQueryParam("to", rng.To.Format("2006-01-02")).
		Get("/availability")
	if err != nil {
		if isTimeout(err) {
			return nil, source.Timeout(sourceID, err)
		}
		return nil, source.Unavailable(sourceID, err)
	}
	if resp.StatusCode() >= 500 {
		return nil, source.Unavailable(sourceID, fmt.Errorf("upstream returned %s", resp.Status()))
	}
	if !resp.IsSuccess() {
		return nil, source.DataInvalid(sourceID, fmt.Errorf("upstream returned %s", resp.Status()))
	}

	// Decode the body ourselves so a 2xx with garbage, or with a wrong
	// content type, still classifies as DATA_INVALID.
	var feed feedResponse
	if err := json.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, source.DataInvalid(sourceID, err)
	}

	snap := &model.Snapshot{
		SourceID:     sourceID,
		CapturedAt:   time.Now().UTC(),
		From:         rng.From,
		To:           rng.To,
		SlotsByCourt: make(map[string][]model.Slot, len(feed.Courts)),
	}
	for _, c := range feed.Courts {
		slots := make([]model.Slot, 0, len(c.Slots))
		for _, s := range c.Slots {
			slots = append(slots, model.Slot{
				CourtID:  c.ID,
				Start:    s.Start,
				End:      s.End,
				Status:   model.SlotStatus(s.Status),
				Price:    s.Price,
				Currency: s.Currency,
			})
		}
		snap.SlotsByCourt[c.ID] = slots
	}

	if err := source.ValidateSnapshot(snap); err != nil {
		return nil, source.DataInvalid(sourceID, err)
	}
	a.log.Debug().
		Str("source", sourceID).
		Int("courts", len(snap.SlotsByCourt)).
		Msg("snapshot fetched")
	return snap, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
