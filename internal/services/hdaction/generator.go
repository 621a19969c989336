package hdaction

import (
	"context"
	"fmt"
	"time"
)

// Counter counts the actions of an npk created in [from, to).
type Counter interface {
	CountActionsCreatedBetween(ctx context.Context, npk string, from, to time.Time) (int, error)
}

// Generator builds action ids of the form HDREQ-<npk>-<YYYYMMDD>-<seq>,
// where seq is one more than the number of actions the npk created today.
// Two calls without an insert in between return the same id; uniqueness is
// left to the primary key.
type Generator struct {
	counter Counter
	now     func() time.Time
}

// NewGenerator returns a Generator using the server's local clock.
func NewGenerator(counter Counter) *Generator {
	return &Generator{counter: counter, now: time.Now}
}

// Generate returns the next candidate id for npk.
func (g *Generator) Generate(ctx context.Context, npk string) (string, error) {
	const op = "hdaction.Generate"

	now := g.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	count, err := g.counter.CountActionsCreatedBetween(ctx, npk, dayStart, dayEnd)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Sprintf("HDREQ-%s-%s-%04d", npk, now.Format("20060102"), count+1), nil
}
