// Package scheduler runs pipeline jobs at fixed intervals.
//
// A Registry owns the job list, persists it through a Store and, once
// started, checks for due jobs on every tick. Due jobs run in their own
// goroutine; a job still running from its previous tick is skipped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownJob     = errors.New("scheduler: unknown job")
	ErrAlreadyRunning = errors.New("scheduler: already running")
)

// Unit is the interval unit of a job.
type Unit string

const (
	Minutes Unit = "minutes"
	Hours   Unit = "hours"
	Days    Unit = "days"
)

// Interval returns every units as a duration.
func (u Unit) Interval(every int) (time.Duration, error) {
	if every <= 0 {
		return 0, fmt.Errorf("scheduler: interval must be positive, got %d", every)
	}
	switch u {
	case Minutes:
		return time.Duration(every) * time.Minute, nil
	case Hours:
		return time.Duration(every) * time.Hour, nil
	case Days:
		return time.Duration(every) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("scheduler: unknown unit %q", u)
}

// Job is one scheduled pipeline run.
type Job struct {
	Name       string            `json:"-"`
	Every      int               `json:"interval"`
	Unit       Unit              `json:"unit"`
	Params     map[string]string `json:"params,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	LastRun    *time.Time        `json:"last_run,omitempty"`
	LastStatus string            `json:"last_status,omitempty"`
	NextRun    time.Time         `json:"next_run"`
}

// Runner executes a job.
type Runner interface {
	RunJob(ctx context.Context, j Job) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, j Job) error

func (f RunnerFunc) RunJob(ctx context.Context, j Job) error { return f(ctx, j) }

// DefaultTick is how often a started registry looks for due jobs.
const DefaultTick = time.Minute

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

// WithTick sets the polling resolution.
func WithTick(d time.Duration) Option { return func(r *Registry) { r.tick = d } }

// Registry is an explicit, mutex-guarded job registry.
type Registry struct {
	store  Store
	runner Runner
	log    logrus.FieldLogger
	now    func() time.Time
	tick   time.Duration

	mu      sync.Mutex
	jobs    map[string]*Job
	running map[string]bool
	cancel  context.CancelFunc
	loop    sync.WaitGroup
	work    sync.WaitGroup
}

// New builds a registry and loads the stored jobs.
func New(store Store, runner Runner, log logrus.FieldLogger, opts ...Option) (*Registry, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Registry{
		store:   store,
		runner:  runner,
		log:     log,
		now:     time.Now,
		tick:    DefaultTick,
		jobs:    make(map[string]*Job),
		running: make(map[string]bool),
	}
	for _, o := range opts {
		o(r)
	}
	jobs, err := store.Load()
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		j := j
		if j.NextRun.IsZero() {
			if d, err := j.Unit.Interval(j.Every); err == nil {
				j.NextRun = r.now().Add(d)
			}
		}
		r.jobs[j.Name] = &j
	}
	r.log.WithField("jobs", len(jobs)).Info("loaded scheduled jobs")
	return r, nil
}

// Add schedules j, replacing any job of the same name. The first run is one
// interval from now.
func (r *Registry) Add(ctx context.Context, j Job) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	if j.Name == "" {
		return Job{}, errors.New("scheduler: job name is required")
	}
	d, err := j.Unit.Interval(j.Every)
	if err != nil {
		return Job{}, err
	}
	now := r.now()
	j.CreatedAt = now
	j.LastRun = nil
	j.LastStatus = ""
	j.NextRun = now.Add(d)

	r.mu.Lock()
	r.jobs[j.Name] = &j
	err = r.saveLocked()
	r.mu.Unlock()
	if err != nil {
		return Job{}, err
	}
	r.log.WithFields(logrus.Fields{"job": j.Name, "every": j.Every, "unit": j.Unit}).Info("job scheduled")
	return j, nil
}

// Remove unschedules the named job.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	delete(r.jobs, name)
	if err := r.saveLocked(); err != nil {
		return err
	}
	r.log.WithField("job", name).Info("job removed")
	return nil
}

// Jobs returns a snapshot sorted by name.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []Job {
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (r *Registry) saveLocked() error {
	return r.store.Save(r.snapshotLocked())
}

// Start launches the polling loop. It returns ErrAlreadyRunning when the
// registry is already started.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		r.log.Warn("scheduler already running")
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.loop.Add(1)
	go func() {
		defer r.loop.Done()
		t := time.NewTicker(r.tick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.RunPending(ctx)
			}
		}
	}()
	r.log.WithField("tick", r.tick).Info("scheduler started")
	return nil
}

// Stop ends the polling loop and waits for in-flight jobs.
func (r *Registry) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.loop.Wait()
	r.work.Wait()
	r.log.Info("scheduler stopped")
}

// RunPending starts every job whose next run is due and returns the names
// it started. It does not wait for them.
func (r *Registry) RunPending(ctx context.Context) []string {
	now := r.now()
	var started []string

	r.mu.Lock()
	for name, j := range r.jobs {
		if now.Before(j.NextRun) {
			continue
		}
		d, err := j.Unit.Interval(j.Every)
		if err != nil {
			r.log.WithError(err).WithField("job", name).Error("invalid job interval")
			continue
		}
		for !now.Before(j.NextRun) {
			j.NextRun = j.NextRun.Add(d)
		}
		if r.running[name] {
			r.log.WithField("job", name).Warn("previous run still in progress, skipping")
			continue
		}
		r.running[name] = true
		started = append(started, name)
		snapshot := *j
		r.work.Add(1)
		go r.execute(ctx, snapshot)
	}
	r.mu.Unlock()
	sort.Strings(started)
	return started
}

func (r *Registry) execute(ctx context.Context, j Job) {
	defer r.work.Done()
	log := r.log.WithField("job", j.Name)
	log.Info("scheduled run starting")
	err := r.runner.RunJob(ctx, j)
	at := r.now()

	status := "success"
	if err != nil {
		status = "failed"
		log.WithError(err).Error("scheduled run failed")
	} else {
		log.Info("scheduled run finished")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, j.Name)
	if cur, ok := r.jobs[j.Name]; ok {
		cur.LastRun = &at
		cur.LastStatus = status
	}
	if err := r.saveLocked(); err != nil {
		log.WithError(err).Warn("could not persist schedule")
	}
}

// Wait blocks until every started job has finished.
func (r *Registry) Wait() { r.work.Wait() }

// DefaultName is the job name used when the caller does not pick one.
func DefaultName(every int, u Unit) string {
	return fmt.Sprintf("etl_schedule_%d_%s", every, u)
}
