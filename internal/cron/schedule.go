package cron

import (
	"fmt"
	"time"
)

// ParseSchedule builds a Schedule from CLI-style flags. Exactly one of at
// (RFC 3339), every (Go duration, at least one minute) or expr must be set.
func ParseSchedule(at, every, expr string) (Schedule, error) {
	set := 0
	for _, v := range []string{at, every, expr} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return Schedule{}, fmt.Errorf("exactly one of --at, --every or --cron is required")
	}

	switch {
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return Schedule{}, fmt.Errorf("parse --at: %w", err)
		}
		ms := t.UnixMilli()
		return Schedule{Kind: KindAt, AtMS: &ms}, nil
	case every != "":
		d, err := time.ParseDuration(every)
		if err != nil {
			return Schedule{}, fmt.Errorf("parse --every: %w", err)
		}
		if d < time.Minute {
			return Schedule{}, fmt.Errorf("--every must be at least 1m, got %s", d)
		}
		ms := d.Milliseconds()
		return Schedule{Kind: KindEvery, EveryMS: &ms}, nil
	default:
		s := Schedule{Kind: KindCron, Expr: expr}
		if err := validateSchedule(&s); err != nil {
			return Schedule{}, err
		}
		return s, nil
	}
}

// Describe renders a schedule for listings.
func (s Schedule) Describe() string {
	switch s.Kind {
	case KindAt:
		if s.AtMS != nil {
			return "at " + time.UnixMilli(*s.AtMS).UTC().Format(time.RFC3339)
		}
	case KindEvery:
		if s.EveryMS != nil {
			return "every " + (time.Duration(*s.EveryMS) * time.Millisecond).String()
		}
	case KindCron:
		return "cron " + s.Expr
	}
	return s.Kind
}
