// Package scheduler runs dispatch jobs at their due time on a background
// worker pool, decoupled from the request that scheduled them. Each job id
// is accepted at most once for the lifetime of the process; re-submission
// is a silent no-op. Jobs get a single attempt.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Kind distinguishes the initial invitation send from reminders.
type Kind string

const (
	KindInvite   Kind = "invite"
	KindReminder Kind = "reminder"
)

// State is the per-job lifecycle: Scheduled -> Fired -> Completed|Failed.
// Both end states are terminal; there is no retry path.
type State int

const (
	StateScheduled State = iota
	StateFired
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateFired:
		return "fired"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Payload is the rendered, channel-ready message content.
type Payload struct {
	Subject string
	HTML    string
	Text    string
	Header  string
}

// Job is one scheduled unit of channel delivery work.
type Job struct {
	ID           string
	InvitationID uuid.UUID
	Channel      Channel
	Kind         Kind
	Recipients   []string
	Payload      Payload
	DueAt        time.Time
}

// JobID derives the deterministic idempotency key from invitation,
// channel, recipient-set fingerprint and due time, so re-submitting the
// same logical job is a no-op at the scheduler boundary.
func JobID(invitationID uuid.UUID, channel Channel, recipients []string, dueAt time.Time) string {
	sorted := make([]string, len(recipients))
	copy(sorted, recipients)
	sort.Strings(sorted)
	h := fnv.New64a()
	for _, r := range sorted {
		h.Write([]byte(r))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:%s:%x:%d", channel, invitationID, h.Sum64(), dueAt.Unix())
}

// Runner executes one fired job (the actual channel delivery).
type Runner func(ctx context.Context, job Job) error

// DoneFunc receives the terminal outcome of a job. It replaces the old
// arbitrary post-send callbacks with one typed completion event.
type DoneFunc func(job Job, err error)

// Queue is the narrow scheduling surface the orchestrator depends on.
type Queue interface {
	Schedule(job Job) error
	Cancel(id string) bool
}

// ErrShutdown is returned by Schedule after Shutdown has begun.
var ErrShutdown = errors.New("scheduler: shutting down")

type entry struct {
	job   Job
	state State
	timer *time.Timer
}

// Scheduler is an explicitly constructed service: build it in main, start
// scheduling, drain with Shutdown. No process-global instance.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*entry
	runner Runner
	onDone DoneFunc
	sem    chan struct{}
	wg     sync.WaitGroup
	closed bool
}

type Options struct {
	Workers int
	OnDone  DoneFunc
}

func New(runner Runner, opts Options) *Scheduler {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Scheduler{
		jobs:   make(map[string]*entry),
		runner: runner,
		onDone: opts.OnDone,
		sem:    make(chan struct{}, workers),
	}
}

// Schedule enqueues the job to run at or after job.DueAt. A job id already
// seen (in any state) is not enqueued again.
func (s *Scheduler) Schedule(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrShutdown
	}
	if _, ok := s.jobs[job.ID]; ok {
		log.Debug().Str("job_id", job.ID).Msg("Job already scheduled, skipping")
		return nil
	}
	e := &entry{job: job, state: StateScheduled}
	delay := time.Until(job.DueAt)
	if delay < 0 {
		delay = 0
	}
	e.timer = time.AfterFunc(delay, func() { s.fire(job.ID) })
	s.jobs[job.ID] = e
	log.Info().
		Str("job_id", job.ID).
		Str("channel", string(job.Channel)).
		Str("kind", string(job.Kind)).
		Int("recipients", len(job.Recipients)).
		Time("due_at", job.DueAt).
		Msg("Job scheduled")
	return nil
}

// Cancel stops a job that has not fired yet. Fired jobs run to completion.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok || e.state != StateScheduled {
		return false
	}
	e.timer.Stop()
	e.state = StateCompleted
	log.Debug().Str("job_id", id).Msg("Job cancelled")
	return true
}

// JobState reports the current state of a job id.
func (s *Scheduler) JobState(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return 0, false
	}
	return e.state, true
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if !ok || e.state != StateScheduled || s.closed {
		s.mu.Unlock()
		return
	}
	e.state = StateFired
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		err := s.runner(context.Background(), e.job)

		s.mu.Lock()
		if err != nil {
			e.state = StateFailed
		} else {
			e.state = StateCompleted
		}
		s.mu.Unlock()

		if err != nil {
			log.Error().Err(err).Str("job_id", id).Str("channel", string(e.job.Channel)).Msg("Job failed")
		} else {
			log.Info().Str("job_id", id).Str("channel", string(e.job.Channel)).Msg("Job completed")
		}
		if s.onDone != nil {
			s.onDone(e.job, err)
		}
	}()
}

// Shutdown stops accepting work, cancels jobs that have not fired and
// waits for in-flight jobs until ctx expires.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, e := range s.jobs {
		if e.state == StateScheduled {
			e.timer.Stop()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
