/*
assignment.go - Generic time-bounded assignment-history engine

PURPOSE:
  Maintains an append-only history of subject<->resource occupancy where the
  only mutation ever applied to an existing row is closing it. The engine is
  instantiated twice by the herd package: cow x feedlot and cow x transponder.

INVARIANT:
  For every subject, at most one interval with a nil close timestamp exists
  at any time. In ResourceExclusive mode the same holds per resource.

MOVE SEMANTICS:
  Assigning never fails because the subject is busy - it relocates. The
  subject's open interval (whatever the resource) is closed at now and a new
  one is opened. Re-assigning the exact same pair is rejected, not a no-op.

WHY RESULTS?
  The caller keeps denormalized "current" pointers on the subject (and, in
  exclusive mode, on the resource). Assign/Unassign return every interval
  they closed so the caller can clear the matching pointers in the same
  transaction and the cache can never disagree with the ledger.

SEE ALSO:
  - herd/placement.go: the two instantiations and their pointer upkeep
  - store/sqlite: HistoryStore implementations
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// TYPES
// =============================================================================

// Interval is one time-bounded occupancy row. ClosedAt nil means open.
type Interval struct {
	ID         int64
	SubjectID  int64
	ResourceID int64
	OpenedAt   time.Time
	ClosedAt   *time.Time
}

// Open reports whether the interval is still current.
func (iv Interval) Open() bool { return iv.ClosedAt == nil }

// HistoryStore is the persistence surface the engine drives. Implementations
// are expected to be scoped to the caller's transaction.
type HistoryStore interface {
	// OpenBySubject returns the subject's open interval, or nil.
	OpenBySubject(ctx context.Context, subjectID int64) (*Interval, error)

	// OpenByResource returns the resource's open interval, or nil.
	OpenByResource(ctx context.Context, resourceID int64) (*Interval, error)

	// OpenBySubjects returns the open intervals for a set of subjects in one
	// query, keyed by subject id. Subjects with no open interval are absent.
	OpenBySubjects(ctx context.Context, subjectIDs []int64) (map[int64]*Interval, error)

	// Close stamps the interval's close timestamp. Closing is the only
	// mutation ever applied to an existing row.
	Close(ctx context.Context, intervalID int64, at time.Time) error

	// Open appends a new open interval and returns its id.
	Open(ctx context.Context, subjectID, resourceID int64, at time.Time) (int64, error)
}

// Engine applies the one-open-interval rules over a HistoryStore.
type Engine struct {
	History HistoryStore

	// ResourceExclusive makes the resource side single-occupancy too: an
	// assign closes the resource's open interval, and UnassignResource is
	// keyed by resource. Transponders are exclusive; feedlot pens are not.
	ResourceExclusive bool
}

// Result reports what an Assign changed, beyond the row it opened.
type Result struct {
	// ClosedSubject is the subject's previous open interval, if it was
	// relocated from another resource.
	ClosedSubject *Interval

	// ClosedResource is the resource's previous open interval, if the engine
	// is resource-exclusive and the resource was held by another subject.
	ClosedResource *Interval

	Opened Interval
}

// BulkResult reports a bulk assign. Skipped lists subjects that already had
// an open interval on the target resource and were left untouched.
type BulkResult struct {
	Results []Result
	Skipped []int64
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrAlreadyAssigned = errors.New("already assigned")
	ErrNotAssigned     = errors.New("not assigned")
)

// AlreadyAssignedError rejects re-assigning an exact open pair.
type AlreadyAssignedError struct {
	SubjectID  int64
	ResourceID int64
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("subject %d is already assigned to resource %d", e.SubjectID, e.ResourceID)
}

func (e *AlreadyAssignedError) Unwrap() error { return ErrAlreadyAssigned }

// NotAssignedError rejects unassigning a key with no open interval.
type NotAssignedError struct {
	SubjectID  int64 // set when keyed by subject
	ResourceID int64 // set when keyed by resource
}

func (e *NotAssignedError) Error() string {
	if e.ResourceID != 0 {
		return fmt.Sprintf("resource %d is not currently assigned", e.ResourceID)
	}
	return fmt.Sprintf("subject %d is not currently assigned", e.SubjectID)
}

func (e *NotAssignedError) Unwrap() error { return ErrNotAssigned }

// =============================================================================
// OPERATIONS
// =============================================================================

// Assign opens an interval for (subject, resource) at now, closing whatever
// open intervals would violate the occupancy rules. Callers run it inside
// one transaction together with their pointer updates.
func (e *Engine) Assign(ctx context.Context, resourceID, subjectID int64, now time.Time) (*Result, error) {
	current, err := e.History.OpenBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.ResourceID == resourceID {
		return nil, &AlreadyAssignedError{SubjectID: subjectID, ResourceID: resourceID}
	}

	res := &Result{}

	if e.ResourceExclusive {
		held, err := e.History.OpenByResource(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		if held != nil {
			if err := e.History.Close(ctx, held.ID, now); err != nil {
				return nil, err
			}
			closed := *held
			closed.ClosedAt = &now
			res.ClosedResource = &closed
		}
	}

	// Relocate: the subject's stay elsewhere ends now.
	if current != nil {
		if err := e.History.Close(ctx, current.ID, now); err != nil {
			return nil, err
		}
		closed := *current
		closed.ClosedAt = &now
		res.ClosedSubject = &closed
	}

	id, err := e.History.Open(ctx, subjectID, resourceID, now)
	if err != nil {
		return nil, err
	}
	res.Opened = Interval{ID: id, SubjectID: subjectID, ResourceID: resourceID, OpenedAt: now}
	return res, nil
}

// AssignBulk applies Assign's close/open sequence to each subject, skipping
// subjects already on the target resource instead of failing the batch. Open
// intervals are fetched in a single query up front.
//
// In ResourceExclusive mode each assign evicts the resource's current holder,
// exactly as the equivalent sequence of single Assign calls would: a
// multi-subject batch leaves only its last subject on the resource.
func (e *Engine) AssignBulk(ctx context.Context, resourceID int64, subjectIDs []int64, now time.Time) (*BulkResult, error) {
	open, err := e.History.OpenBySubjects(ctx, subjectIDs)
	if err != nil {
		return nil, err
	}

	bulk := &BulkResult{}
	seen := make(map[int64]bool, len(subjectIDs))
	for _, subjectID := range subjectIDs {
		if seen[subjectID] {
			continue
		}
		seen[subjectID] = true

		current := open[subjectID]
		if current != nil && current.ResourceID == resourceID {
			bulk.Skipped = append(bulk.Skipped, subjectID)
			continue
		}

		res := Result{}

		if e.ResourceExclusive {
			held, err := e.History.OpenByResource(ctx, resourceID)
			if err != nil {
				return nil, err
			}
			if held != nil {
				if err := e.History.Close(ctx, held.ID, now); err != nil {
					return nil, err
				}
				closed := *held
				closed.ClosedAt = &now
				res.ClosedResource = &closed
				// The prefetched map must not hand out an interval the
				// eviction just closed.
				if prior := open[held.SubjectID]; prior != nil && prior.ID == held.ID {
					delete(open, held.SubjectID)
				}
			}
		}

		if current != nil {
			if err := e.History.Close(ctx, current.ID, now); err != nil {
				return nil, err
			}
			closed := *current
			closed.ClosedAt = &now
			res.ClosedSubject = &closed
		}

		id, err := e.History.Open(ctx, subjectID, resourceID, now)
		if err != nil {
			return nil, err
		}
		res.Opened = Interval{ID: id, SubjectID: subjectID, ResourceID: resourceID, OpenedAt: now}
		bulk.Results = append(bulk.Results, res)
	}
	return bulk, nil
}

// UnassignSubject closes the subject's open interval.
func (e *Engine) UnassignSubject(ctx context.Context, subjectID int64, now time.Time) (*Interval, error) {
	current, err := e.History.OpenBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &NotAssignedError{SubjectID: subjectID}
	}
	if err := e.History.Close(ctx, current.ID, now); err != nil {
		return nil, err
	}
	closed := *current
	closed.ClosedAt = &now
	return &closed, nil
}

// UnassignResource closes the resource's open interval. Only meaningful for
// resource-exclusive ledgers.
func (e *Engine) UnassignResource(ctx context.Context, resourceID int64, now time.Time) (*Interval, error) {
	current, err := e.History.OpenByResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &NotAssignedError{ResourceID: resourceID}
	}
	if err := e.History.Close(ctx, current.ID, now); err != nil {
		return nil, err
	}
	closed := *current
	closed.ClosedAt = &now
	return &closed, nil
}
