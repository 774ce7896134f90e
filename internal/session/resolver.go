// Package session maps bar timestamps onto futures trading days.
//
// Chinese futures markets run an evening session (e.g. 21:00 through 02:30
// the next morning) that belongs to the following calendar date's trading
// day, and a day session that closes at a fixed wall-clock cutoff. The
// Resolver encodes those boundaries so daily aggregation can group a night
// session with the day session that follows it.
package session

import (
	"fmt"
	"time"

	"github.com/navid-fn/barpipe/configs"
	"github.com/navid-fn/barpipe/internal/model"
)

// Resolver classifies bar timestamps against the configured session
// boundaries.
type Resolver struct {
	dayEnd     int // seconds since midnight
	nightStart int
	nightEnd   int
	newDay     int
	dailyStamp time.Duration
}

// New builds a Resolver from the session configuration. All five
// boundaries must parse as HH:MM:SS wall-clock times.
func New(cfg configs.SessionConfig) (*Resolver, error) {
	dayEnd, err := secondsOfDay(cfg.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: day end: %v", model.ErrConfiguration, err)
	}
	nightStart, err := secondsOfDay(cfg.NightStart)
	if err != nil {
		return nil, fmt.Errorf("%w: night start: %v", model.ErrConfiguration, err)
	}
	nightEnd, err := secondsOfDay(cfg.NightEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: night end: %v", model.ErrConfiguration, err)
	}
	newDay, err := secondsOfDay(cfg.NewDay)
	if err != nil {
		return nil, fmt.Errorf("%w: new day: %v", model.ErrConfiguration, err)
	}
	dailyStamp, err := secondsOfDay(cfg.DailyStamp)
	if err != nil {
		return nil, fmt.Errorf("%w: daily stamp: %v", model.ErrConfiguration, err)
	}

	return &Resolver{
		dayEnd:     dayEnd,
		nightStart: nightStart,
		nightEnd:   nightEnd,
		newDay:     newDay,
		dailyStamp: time.Duration(dailyStamp) * time.Second,
	}, nil
}

// TradingDay returns the trading-day label for a bar timestamp, truncated
// to midnight. Everything strictly after the day-end cutoff, including the
// pre-evening settlement window and the evening session before midnight,
// belongs to the next calendar date's trading day. Post-midnight bars
// before the night end already carry the right calendar date and keep it,
// as do ordinary day-session bars at or after the new-day boundary.
func (r *Resolver) TradingDay(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if secOf(t) > r.dayEnd {
		return day.AddDate(0, 0, 1)
	}
	return day
}

// IsDayEnd reports whether the bar at t is the day-close bar.
func (r *Resolver) IsDayEnd(t time.Time) bool {
	return secOf(t) == r.dayEnd
}

// IsNightSession reports whether t falls inside the evening session,
// either before midnight or in its continuation before the night end.
func (r *Resolver) IsNightSession(t time.Time) bool {
	s := secOf(t)
	return s >= r.nightStart || s < r.nightEnd
}

// DailyStamp returns the canonical timestamp for a completed trading day
// closed by the cutoff bar at t: the cutoff bar's calendar date at the
// configured stamp time, one minute after the cutoff.
func (r *Resolver) DailyStamp(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).Add(r.dailyStamp)
}

func secOf(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

func secondsOfDay(s string) (int, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}
