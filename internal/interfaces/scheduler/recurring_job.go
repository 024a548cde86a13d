package scheduler

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/domain/recurring"
	"ledger/internal/shared/logging"
	"ledger/internal/shared/period"
)

// RecurringProcessor materializes due recurring occurrences.
type RecurringProcessor interface {
	UsersWithDue(ctx context.Context, today time.Time) ([]int64, error)
	ProcessUser(ctx context.Context, userID int64, today time.Time) (recurring.Result, error)
}

// RecurringJob catches up every due template of one user.
type RecurringJob struct {
	userID    int64
	today     time.Time
	processor RecurringProcessor
}

func NewRecurringJob(userID int64, today time.Time, processor RecurringProcessor) *RecurringJob {
	return &RecurringJob{userID: userID, today: period.Day(today), processor: processor}
}

// Execute fails when any template failed so the run is reported as an error.
// Materialized occurrences are kept; the next run retries the rest.
func (j *RecurringJob) Execute(ctx context.Context) error {
	result, err := j.processor.ProcessUser(ctx, j.userID, j.today)
	if err != nil {
		return fmt.Errorf("failed to process recurring templates: %w", err)
	}

	logging.Component(logging.ComponentScheduler).InfoContext(ctx, "recurring templates processed",
		logging.FieldUserID, j.userID,
		"templates", result.Templates,
		logging.FieldMaterialize, result.Materialized,
		"skipped", result.Skipped,
		"expired", result.Expired,
		"failed", result.Failed)

	if result.Failed > 0 {
		return fmt.Errorf("%d of %d templates failed", result.Failed, result.Templates)
	}
	return nil
}

func (j *RecurringJob) UserID() int64 { return j.userID }

func (j *RecurringJob) Description() string {
	return fmt.Sprintf("recurring materialization for %s", j.today.Format(time.DateOnly))
}

// RecurringJobs returns a JobProvider submitting one RecurringJob per user
// with a due template. today is evaluated on every run.
func RecurringJobs(processor RecurringProcessor, now func() time.Time) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		today := period.Day(now())
		users, err := processor.UsersWithDue(ctx, today)
		if err != nil {
			return nil, fmt.Errorf("failed to list users with due templates: %w", err)
		}

		jobs := make([]Job, 0, len(users))
		for _, userID := range users {
			jobs = append(jobs, NewRecurringJob(userID, today, processor))
		}
		return jobs, nil
	}
}
