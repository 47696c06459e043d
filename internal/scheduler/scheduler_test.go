package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func TestInterval(t *testing.T) {
	cases := []struct {
		unit  Unit
		every int
		want  time.Duration
		err   bool
	}{
		{Minutes, 5, 5 * time.Minute, false},
		{Hours, 2, 2 * time.Hour, false},
		{Days, 1, 24 * time.Hour, false},
		{Minutes, 0, 0, true},
		{Hours, -1, 0, true},
		{Unit("weeks"), 1, 0, true},
	}
	for _, c := range cases {
		got, err := c.unit.Interval(c.every)
		if (err != nil) != c.err {
			t.Errorf("%d %s: err = %v", c.every, c.unit, err)
			continue
		}
		if got != c.want {
			t.Errorf("%d %s = %v, want %v", c.every, c.unit, got, c.want)
		}
	}
}

func TestAddReplaceRemove(t *testing.T) {
	clk := newClock()
	store := &MemStore{}
	r, err := New(store, RunnerFunc(func(context.Context, Job) error { return nil }), quietLogger(), WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}

	j, err := r.Add(context.Background(), Job{Name: "nightly", Every: 1, Unit: Days, Params: map[string]string{"mode": "strict"}})
	if err != nil {
		t.Fatal(err)
	}
	if !j.NextRun.Equal(clk.Now().Add(24 * time.Hour)) {
		t.Errorf("next run = %v", j.NextRun)
	}
	if _, err := r.Add(context.Background(), Job{Name: "nightly", Every: 6, Unit: Hours}); err != nil {
		t.Fatal(err)
	}
	jobs := r.Jobs()
	if len(jobs) != 1 || jobs[0].Every != 6 || jobs[0].Unit != Hours {
		t.Fatalf("jobs = %+v", jobs)
	}
	if _, err := r.Add(context.Background(), Job{Name: "bad", Every: 0, Unit: Hours}); err == nil {
		t.Error("zero interval accepted")
	}
	if _, err := r.Add(context.Background(), Job{Name: "bad", Every: 1, Unit: "fortnights"}); err == nil {
		t.Error("unknown unit accepted")
	}

	if err := r.Remove("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("remove missing: %v", err)
	}
	if err := r.Remove("nightly"); err != nil {
		t.Fatal(err)
	}
	if len(r.Jobs()) != 0 {
		t.Error("job not removed")
	}
	stored, _ := store.Load()
	if len(stored) != 0 {
		t.Errorf("store still has %d jobs", len(stored))
	}
}

func TestRunPending(t *testing.T) {
	clk := newClock()
	var mu sync.Mutex
	var ran []string
	runner := RunnerFunc(func(_ context.Context, j Job) error {
		mu.Lock()
		ran = append(ran, j.Name)
		mu.Unlock()
		if j.Name == "broken" {
			return errors.New("boom")
		}
		return nil
	})
	r, err := New(&MemStore{}, runner, quietLogger(), WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}
	r.Add(context.Background(), Job{Name: "fast", Every: 5, Unit: Minutes})
	r.Add(context.Background(), Job{Name: "broken", Every: 5, Unit: Minutes})
	r.Add(context.Background(), Job{Name: "slow", Every: 1, Unit: Hours})

	if got := r.RunPending(context.Background()); len(got) != 0 {
		t.Fatalf("nothing should be due yet, started %v", got)
	}
	clk.Advance(5 * time.Minute)
	got := r.RunPending(context.Background())
	r.Wait()
	if len(got) != 2 || got[0] != "broken" || got[1] != "fast" {
		t.Fatalf("started %v", got)
	}

	byName := map[string]Job{}
	for _, j := range r.Jobs() {
		byName[j.Name] = j
	}
	if byName["fast"].LastStatus != "success" || byName["fast"].LastRun == nil {
		t.Errorf("fast = %+v", byName["fast"])
	}
	if byName["broken"].LastStatus != "failed" {
		t.Errorf("broken status = %q", byName["broken"].LastStatus)
	}
	if byName["slow"].LastRun != nil {
		t.Error("slow ran early")
	}
	if want := clk.Now().Add(5 * time.Minute); !byName["fast"].NextRun.Equal(want) {
		t.Errorf("next run = %v, want %v", byName["fast"].NextRun, want)
	}
}

func TestOverlappingRunSkipped(t *testing.T) {
	clk := newClock()
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	runner := RunnerFunc(func(context.Context, Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return nil
	})
	log, hook := test.NewNullLogger()
	r, err := New(&MemStore{}, runner, log, WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}
	r.Add(context.Background(), Job{Name: "etl", Every: 1, Unit: Minutes})

	clk.Advance(time.Minute)
	if got := r.RunPending(context.Background()); len(got) != 1 {
		t.Fatalf("first tick started %v", got)
	}
	clk.Advance(time.Minute)
	if got := r.RunPending(context.Background()); len(got) != 0 {
		t.Fatalf("second tick started %v while first still running", got)
	}
	close(release)
	r.Wait()

	if calls != 1 {
		t.Errorf("runner called %d times", calls)
	}
	warned := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning for the skipped run")
	}
}

func TestStartStop(t *testing.T) {
	done := make(chan struct{}, 1)
	runner := RunnerFunc(func(context.Context, Job) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})
	r, err := New(&MemStore{}, runner, quietLogger(), WithTick(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	r.mu.Lock()
	r.jobs["now"] = &Job{Name: "now", Every: 1, Unit: Minutes, NextRun: time.Now().Add(-time.Second)}
	r.mu.Unlock()

	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second start: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	r.Stop()
	r.Stop()
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "schedule.json")
	fs := FileStore{Path: path}

	jobs, err := fs.Load()
	if err != nil || len(jobs) != 0 {
		t.Fatalf("missing file: %v %v", jobs, err)
	}

	clk := newClock()
	r, err := New(fs, RunnerFunc(func(context.Context, Job) error { return nil }), quietLogger(), WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}
	r.Add(context.Background(), Job{Name: "etl_schedule_2_hours", Every: 2, Unit: Hours, Params: map[string]string{"input_dir": "data/raw"}})

	again, err := New(fs, RunnerFunc(func(context.Context, Job) error { return nil }), quietLogger(), WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}
	got := again.Jobs()
	if len(got) != 1 {
		t.Fatalf("reloaded %d jobs", len(got))
	}
	j := got[0]
	if j.Name != "etl_schedule_2_hours" || j.Every != 2 || j.Unit != Hours || j.Params["input_dir"] != "data/raw" {
		t.Errorf("reloaded = %+v", j)
	}
}

func TestDefaultName(t *testing.T) {
	if got := DefaultName(30, Minutes); got != "etl_schedule_30_minutes" {
		t.Errorf("got %q", got)
	}
}
