package cron

import (
	"context"
	"time"
)

// Job is one maintenance task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry pairs a job with its cadence. A zero Every uses the schedule default.
type Entry struct {
	Job   Job
	Every time.Duration
}

// Schedule decides which jobs are due on each tick.
type Schedule struct {
	entries []Entry
	tick    time.Duration
}

func NewSchedule(defaultEvery time.Duration, entries ...Entry) *Schedule {
	if defaultEvery <= 0 {
		defaultEvery = time.Hour
	}
	s := &Schedule{tick: defaultEvery}
	for _, e := range entries {
		if e.Job == nil {
			continue
		}
		if e.Every <= 0 {
			e.Every = defaultEvery
		}
		if e.Every < s.tick {
			s.tick = e.Every
		}
		s.entries = append(s.entries, e)
	}
	return s
}

// Tick is the loop period: the shortest cadence of any entry.
func (s *Schedule) Tick() time.Duration {
	return s.tick
}

// Due lists jobs whose cadence elapsed since lastRun. Jobs that never ran are
// always due. Order follows registration.
func (s *Schedule) Due(now time.Time, lastRun map[string]time.Time) []Job {
	var due []Job
	for _, e := range s.entries {
		last, ok := lastRun[e.Job.Name()]
		// Half a tick of slack keeps timer drift from pushing a job a whole period late.
		if !ok || now.Sub(last) >= e.Every-s.tick/2 {
			due = append(due, e.Job)
		}
	}
	return due
}

func (s *Schedule) Jobs() []Job {
	jobs := make([]Job, 0, len(s.entries))
	for _, e := range s.entries {
		jobs = append(jobs, e.Job)
	}
	return jobs
}
