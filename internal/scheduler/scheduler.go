// Package scheduler triggers a job at startup and then once a week at a
// fixed local time. Runs never overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrBusy is returned by Trigger when a run is already in progress.
var ErrBusy = errors.New("run already in progress")

// Weekly is a fixed weekday and time of day in Location.
type Weekly struct {
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

// Next returns the first trigger strictly after t.
func (w Weekly) Next(t time.Time) time.Time {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	days := (int(w.Weekday) - int(t.Weekday()) + 7) % 7
	next := time.Date(t.Year(), t.Month(), t.Day()+days, w.Hour, w.Minute, 0, 0, loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+days+7, w.Hour, w.Minute, 0, 0, loc)
	}
	return next
}

func (w Weekly) String() string {
	loc := "Local"
	if w.Location != nil {
		loc = w.Location.String()
	}
	return fmt.Sprintf("%s %02d:%02d %s", w.Weekday, w.Hour, w.Minute, loc)
}

// ParseWeekly builds a schedule from a weekday name ("monday", "Mon"), a
// 24-hour "HH:MM" time and an IANA zone name ("" or "Local" for the host zone).
func ParseWeekly(weekday, clock, zone string) (Weekly, error) {
	day, err := parseWeekday(weekday)
	if err != nil {
		return Weekly{}, err
	}

	hh, mm, ok := strings.Cut(strings.TrimSpace(clock), ":")
	hour, herr := strconv.Atoi(hh)
	minute, merr := strconv.Atoi(mm)
	if !ok || herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Weekly{}, fmt.Errorf("invalid time of day %q, want HH:MM", clock)
	}

	loc := time.Local
	if zone != "" && !strings.EqualFold(zone, "local") {
		if loc, err = time.LoadLocation(zone); err != nil {
			return Weekly{}, fmt.Errorf("invalid time zone %q: %w", zone, err)
		}
	}
	return Weekly{Weekday: day, Hour: hour, Minute: minute, Location: loc}, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			if strings.HasPrefix(strings.ToLower(d.String()), s) {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs a job immediately and then at every trigger until its
// context is cancelled.
type Scheduler struct {
	name     string
	schedule Weekly
	job      Job
	clock    clockwork.Clock
	logger   *slog.Logger
	mu       sync.Mutex
}

// New creates a scheduler. A nil clock uses real time.
func New(name string, schedule Weekly, job Job, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		name:     name,
		schedule: schedule,
		job:      job,
		clock:    clock,
		logger:   logger,
	}
}

// Run executes the job once and passes the result to onStartup, then waits
// for triggers until ctx is cancelled. A non-nil error from onStartup stops
// the scheduler with that error, which lets the caller treat a failed
// startup run as fatal.
//
// Jobs run on a context detached from ctx's cancellation: shutdown is
// honoured between runs, never during one.
func (s *Scheduler) Run(ctx context.Context, onStartup func(error) error) error {
	err := s.Trigger(ctx)
	if onStartup != nil {
		if err := onStartup(err); err != nil {
			return err
		}
	}

	for {
		next := s.schedule.Next(s.clock.Now())
		s.logger.Info("next run scheduled", "job", s.name, "at", next)

		timer := s.clock.NewTimer(next.Sub(s.clock.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopping", "job", s.name, "reason", ctx.Err())
			return nil
		case <-timer.Chan():
		}

		// Failures are logged by Trigger; the next trigger tries again.
		_ = s.Trigger(ctx)
	}
}

// Trigger runs the job now unless a run is already in progress, in which
// case the trigger is skipped with ErrBusy.
func (s *Scheduler) Trigger(ctx context.Context) error {
	if !s.mu.TryLock() {
		s.logger.Warn("run already in progress, trigger skipped", "job", s.name)
		return ErrBusy
	}
	defer s.mu.Unlock()

	if err := s.job(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("scheduled run failed", "job", s.name, "error", err)
		return err
	}
	return nil
}
