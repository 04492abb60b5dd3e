// Package offsetcron implements a cron trigger carrying a signed
// sub-minute-or-larger offset, composed with a standard 5-field cron
// expression. Field parsing and the "next fire after a given instant"
// primitive are delegated to github.com/robfig/cron/v3.
package offsetcron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// OffsetCron fires at a signed offset from a base 5-field cron
// expression: positive offsets delay the fire time, negative offsets
// bring it forward while preserving the invariant that the returned
// instant is strictly after "now".
type OffsetCron struct {
	expr     string
	offset   time.Duration
	schedule cron.Schedule
}

// New parses a standard 5-field crontab expression and pairs it with an
// offset in seconds (may be negative).
func New(expr string, offsetSeconds int) (*OffsetCron, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("offsetcron: parsing %q: %w", expr, err)
	}
	return &OffsetCron{
		expr:     expr,
		offset:   time.Duration(offsetSeconds) * time.Second,
		schedule: schedule,
	}, nil
}

// Expr returns the base cron expression this trigger was built from.
func (o *OffsetCron) Expr() string { return o.expr }

// OffsetSeconds returns the signed offset in seconds.
func (o *OffsetCron) OffsetSeconds() int { return int(o.offset / time.Second) }

// Next returns the next fire instant strictly after now.
//
// For δ ≥ 0: base = cron_next(now); return base + δ.
// For δ < 0: let d = |δ|; base = cron_next(now + d); return base − d.
//
// Shifting the search window forward by d for negative offsets is what
// preserves "the returned instant sits at offset δ from the base cron
// instant, and is strictly > now" — a cron occurrence that the base
// trigger would otherwise consider already past (because it fired d
// seconds before the nominal base instant) is still found, since the
// search is anchored past it.
func (o *OffsetCron) Next(now time.Time) time.Time {
	if o.offset >= 0 {
		base := o.schedule.Next(now)
		return base.Add(o.offset)
	}

	d := -o.offset
	base := o.schedule.Next(now.Add(d))
	return base.Add(-d)
}
