/*
aging.go - The lifecycle aging job

PURPOSE:
  Moves pregnancy diagnoses forward through the states that depend only on
  elapsed calendar time:

    sweep 1: New(7)      -> Pending(1)        when today - aiDate       >= pdDays - 5
    sweep 2: Pregnant(3) -> LateGestation(6)  when today - pregnantDate >= pregnantDays - 30

  Both sweeps run inside ONE transaction, so a failure in sweep 2 never
  leaves sweep 1 half applied. Re-running with an unchanged "today" is a
  no-op: records that moved are no longer in the swept state.

CONFIGURATION:
  Thresholds come from the system_settings table (pdDays, pregnantDays).
  A missing or non-numeric pdDays skips the entire run; a missing
  pregnantDays skips only sweep 2 and lets sweep 1 commit. Neither case
  propagates an error - the job has no caller to answer to, so it logs and
  waits for the next cadence.

SINGLE FLIGHT:
  A mutex guard rejects a run that starts while the previous one is still in
  flight (slow disks, manual trigger racing the cron tick).

AUDIT:
  Every run writes an aging_runs row (uuid id, counts, outcome) in its own
  small transactions around the sweep, so skipped and failed runs are
  visible too.
*/
package herd

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Threshold leads: sweep 1 fires 5 days before pdDays elapse, sweep 2 fires
// 30 days before pregnantDays elapse.
const (
	pdDaysLead       = 5
	pregnantDaysLead = 30
)

// AgingJob is the periodic sweep. Safe for a cron tick and a manual trigger
// to race; the loser is rejected with ErrRunInProgress.
type AgingJob struct {
	Store Store
	Now   Clock
	Log   *zap.Logger

	mu sync.Mutex
}

func NewAgingJob(store Store, log *zap.Logger) *AgingJob {
	if log == nil {
		log = zap.NewNop()
	}
	return &AgingJob{Store: store, Now: time.Now, Log: log}
}

// Run executes one full sweep and returns its audit record.
func (j *AgingJob) Run(ctx context.Context) (*AgingRun, error) {
	if !j.mu.TryLock() {
		j.Log.Warn("aging run rejected, previous run still in flight")
		return nil, ErrRunInProgress
	}
	defer j.mu.Unlock()

	run := &AgingRun{
		ID:        uuid.NewString(),
		StartedAt: j.Now(),
		Status:    "running",
	}
	if err := j.Store.RunInTx(ctx, func(tx Tx) error {
		return tx.InsertAgingRun(ctx, run)
	}); err != nil {
		return nil, err
	}

	err := j.sweep(ctx, run)

	done := j.Now()
	run.CompletedAt = &done
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		run.Status = "skipped"
		run.Error = err.Error()
		j.Log.Warn("aging run skipped", zap.String("reason", err.Error()))
		err = nil
	case err != nil:
		run.Status = "failed"
		run.Error = err.Error()
		j.Log.Error("aging run failed", zap.Error(err))
	default:
		run.Status = "completed"
		j.Log.Info("aging run completed",
			zap.Int("moved_to_pending", run.MovedToPending),
			zap.Int("moved_to_late_gestation", run.MovedToLateGestation))
	}

	if uerr := j.Store.RunInTx(ctx, func(tx Tx) error {
		return tx.UpdateAgingRun(ctx, run)
	}); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// sweep is the single transaction holding both sweeps.
func (j *AgingJob) sweep(ctx context.Context, run *AgingRun) error {
	today := DateOf(j.Now())

	return j.Store.RunInTx(ctx, func(tx Tx) error {
		pdDays, err := j.readThreshold(ctx, tx, SettingPdDays)
		if err != nil {
			// No pdDays, no run at all.
			return err
		}

		newPds, err := tx.ListPdByStatus(ctx, PdStatusNew)
		if err != nil {
			return err
		}
		for _, pd := range newPds {
			if DaysBetween(pd.AiDate, today) < pdDays-pdDaysLead {
				continue
			}
			if err := tx.SetPdStatus(ctx, pd.ID, PdStatusPending, pd.DiagnosisByID, pd.PregnantDate); err != nil {
				return err
			}
			run.MovedToPending++
		}

		pregnantDays, err := j.readThreshold(ctx, tx, SettingPregnantDays)
		if err != nil {
			// Sweep 1 stands; only the late-gestation sweep is skipped.
			j.Log.Warn("late-gestation sweep skipped", zap.String("reason", err.Error()))
			return nil
		}

		pregnant, err := tx.ListPdByStatus(ctx, PdStatusPregnant)
		if err != nil {
			return err
		}
		for _, pd := range pregnant {
			if pd.PregnantDate == nil {
				continue
			}
			if DaysBetween(*pd.PregnantDate, today) < pregnantDays-pregnantDaysLead {
				continue
			}
			if err := tx.SetPdStatus(ctx, pd.ID, PdStatusLateGestation, pd.DiagnosisByID, pd.PregnantDate); err != nil {
				return err
			}
			run.MovedToLateGestation++
		}
		return nil
	})
}

func (j *AgingJob) readThreshold(ctx context.Context, tx Tx, name string) (int, error) {
	value, ok, err := tx.GetSettingValue(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &ConfigurationMissingError{Name: name, Reason: "not found"}
	}
	days, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigurationMissingError{Name: name, Reason: "is not a number"}
	}
	return days, nil
}
