package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ledger/internal/domain/recurring"
)

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ScheduleTime
		wantErr bool
	}{
		{"03:00", ScheduleTime{3, 0}, false},
		{"23:59", ScheduleTime{23, 59}, false},
		{"7:5", ScheduleTime{7, 5}, false},
		{"24:00", ScheduleTime{}, true},
		{"12:60", ScheduleTime{}, true},
		{"noon", ScheduleTime{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScheduleTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseScheduleTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func noJobs(context.Context) ([]Job, error) { return nil, nil }

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{JobProvider: noJobs}); err == nil {
		t.Error("New() without schedule times succeeded")
	}
	if _, err := New(Config{ScheduleTimes: []string{"25:00"}, JobProvider: noJobs}); err == nil {
		t.Error("New() with invalid time succeeded")
	}
	if _, err := New(Config{ScheduleTimes: []string{"03:00"}}); err == nil {
		t.Error("New() without job provider succeeded")
	}
}

func TestShouldRunOncePerMinute(t *testing.T) {
	s, err := New(Config{ScheduleTimes: []string{"03:00", "15:30"}, JobProvider: noJobs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	at := time.Date(2024, 3, 10, 3, 0, 12, 0, time.UTC)
	if !s.shouldRun(at) {
		t.Error("shouldRun at 03:00 = false")
	}
	if s.shouldRun(at.Add(30 * time.Second)) {
		t.Error("shouldRun fired twice in the same minute")
	}
	if s.shouldRun(at.Add(time.Minute)) {
		t.Error("shouldRun fired at 03:01")
	}
	if !s.shouldRun(at.AddDate(0, 0, 1)) {
		t.Error("shouldRun did not fire the next day")
	}
}

func TestNextRun(t *testing.T) {
	s, err := New(Config{ScheduleTimes: []string{"15:30", "03:00"}, JobProvider: noJobs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before both", time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)},
		{"between", time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)},
		{"after both", time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC)},
		{"exactly at", time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC), time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.now = func() time.Time { return tt.now }
			if got := s.NextRun(); !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWorkerPoolRunsJobs(t *testing.T) {
	wp := NewWorkerPool(3, 0, 10)
	wp.Start()

	var ran atomic.Int32
	jobs := make([]Job, 8)
	for i := range jobs {
		jobs[i] = JobFunc{User: int64(i), Name: "count", Fn: func(ctx context.Context) error {
			ran.Add(1)
			if i%2 == 0 {
				return errors.New("boom")
			}
			return nil
		}}
	}

	if got := wp.SubmitBatch(jobs); got != len(jobs) {
		t.Fatalf("SubmitBatch() = %d, want %d", got, len(jobs))
	}
	wp.Shutdown()

	if got := ran.Load(); got != int32(len(jobs)) {
		t.Errorf("ran %d jobs, want %d", got, len(jobs))
	}
	if err := wp.Submit(jobs[0]); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit() after shutdown error = %v, want ErrPoolClosed", err)
	}
}

func TestWorkerPoolQueueFull(t *testing.T) {
	wp := NewWorkerPool(1, 0, 1)
	// Workers are not started, so the single slot stays occupied.
	job := JobFunc{User: 1, Name: "noop", Fn: func(context.Context) error { return nil }}

	if err := wp.Submit(job); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	if err := wp.Submit(job); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second Submit() error = %v, want ErrQueueFull", err)
	}
}

func TestWorkerPoolShutdownTimeoutCancelsJobs(t *testing.T) {
	wp := NewWorkerPool(1, 0, 1)
	wp.Start()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	_ = wp.Submit(JobFunc{User: 1, Name: "slow", Fn: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}})

	<-started
	wp.ShutdownWithTimeout(10 * time.Millisecond)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running job was not cancelled after the shutdown timeout")
	}
}

type fakeProcessor struct {
	mu    sync.Mutex
	users []int64
	calls map[int64]time.Time
	fail  map[int64]recurring.Result
	err   error
}

func (f *fakeProcessor) UsersWithDue(ctx context.Context, today time.Time) ([]int64, error) {
	return f.users, f.err
}

func (f *fakeProcessor) ProcessUser(ctx context.Context, userID int64, today time.Time) (recurring.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[int64]time.Time)
	}
	f.calls[userID] = today
	if res, ok := f.fail[userID]; ok {
		return res, nil
	}
	return recurring.Result{Templates: 1, Materialized: 1}, nil
}

func TestRecurringJobs(t *testing.T) {
	proc := &fakeProcessor{
		users: []int64{1, 2},
		fail:  map[int64]recurring.Result{2: {Templates: 2, Materialized: 1, Failed: 1}},
	}
	now := time.Date(2024, 3, 10, 3, 0, 5, 0, time.UTC)

	jobs, err := RecurringJobs(proc, func() time.Time { return now })(context.Background())
	if err != nil {
		t.Fatalf("provider error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("provider returned %d jobs, want 2", len(jobs))
	}

	if err := jobs[0].Execute(context.Background()); err != nil {
		t.Errorf("Execute() user 1 error = %v", err)
	}
	if err := jobs[1].Execute(context.Background()); err == nil {
		t.Error("Execute() user 2 succeeded despite a failed template")
	}

	want := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := proc.calls[1]; !got.Equal(want) {
		t.Errorf("processed with today = %v, want %v", got, want)
	}
	if jobs[0].UserID() != 1 || jobs[0].Description() != "recurring materialization for 2024-03-10" {
		t.Errorf("job = %d %q", jobs[0].UserID(), jobs[0].Description())
	}
}

func TestRecurringJobsListFailure(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("db down")}
	if _, err := RecurringJobs(proc, time.Now)(context.Background()); err == nil {
		t.Error("provider swallowed the listing error")
	}
}

func TestSchedulerTriggerNow(t *testing.T) {
	proc := &fakeProcessor{users: []int64{5}}
	s, err := New(Config{
		ScheduleTimes: []string{"03:00"},
		WorkerCount:   1,
		QueueSize:     4,
		JobProvider:   RecurringJobs(proc, time.Now),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Start()
	s.TriggerNow()

	deadline := time.After(2 * time.Second)
	for {
		proc.mu.Lock()
		_, done := proc.calls[5]
		proc.mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("triggered run never processed user 5")
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Shutdown(time.Second)
}
