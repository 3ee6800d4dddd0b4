/*
placement.go - Feedlot and transponder placement over the history ledgers

PURPOSE:
  Instantiates the generic assignment engine twice and keeps the denormalized
  "current" pointers consistent with the ledger inside the same transaction.

  Feedlot: subject-exclusive only. A cow stands in at most one pen; a pen
  holds many cows. Assigning always relocates (the previous stay is closed).

  Transponder: exclusive on both sides. The cow's pointer and the
  transponder's pointer must never disagree about who wears what, so every
  interval the engine closes gets its matching pointer cleared here.
*/
package herd

import (
	"context"
	"time"

	"github.com/manfad/cowcard/ledger"
)

// PlacementService moves cows between pens and tags.
type PlacementService struct {
	Store Store
	Now   Clock
}

func NewPlacementService(store Store) *PlacementService {
	return &PlacementService{Store: store, Now: time.Now}
}

func (s *PlacementService) feedlotEngine(tx Tx) *ledger.Engine {
	return &ledger.Engine{History: tx.FeedlotHistories()}
}

func (s *PlacementService) transponderEngine(tx Tx) *ledger.Engine {
	return &ledger.Engine{History: tx.TransponderHistories(), ResourceExclusive: true}
}

// =============================================================================
// FEEDLOT
// =============================================================================

// AssignFeedlot moves a cow into a pen, closing any stay elsewhere.
func (s *PlacementService) AssignFeedlot(ctx context.Context, feedlotID, cowID int64) (*Feedlot, error) {
	var feedlot *Feedlot
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		var err error
		feedlot, err = tx.GetFeedlot(ctx, feedlotID)
		if err != nil {
			return err
		}
		if feedlot == nil {
			return &NotFoundError{Kind: "feedlot", ID: feedlotID}
		}

		cow, err := tx.GetCow(ctx, cowID)
		if err != nil {
			return err
		}
		if cow == nil {
			return &NotFoundError{Kind: "cow", ID: cowID}
		}

		if _, err := s.feedlotEngine(tx).Assign(ctx, feedlotID, cowID, s.Now()); err != nil {
			return err
		}
		return tx.SetCowFeedlot(ctx, cowID, &feedlotID)
	})
	if err != nil {
		return nil, err
	}
	return feedlot, nil
}

// UnassignFeedlot ends a cow's current stay and returns the pen it left.
func (s *PlacementService) UnassignFeedlot(ctx context.Context, cowID int64) (*Feedlot, error) {
	var feedlot *Feedlot
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		cow, err := tx.GetCow(ctx, cowID)
		if err != nil {
			return err
		}
		if cow == nil {
			return &NotFoundError{Kind: "cow", ID: cowID}
		}

		closed, err := s.feedlotEngine(tx).UnassignSubject(ctx, cowID, s.Now())
		if err != nil {
			return err
		}
		if err := tx.SetCowFeedlot(ctx, cowID, nil); err != nil {
			return err
		}
		feedlot, err = tx.GetFeedlot(ctx, closed.ResourceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return feedlot, nil
}

// BulkAssignResult summarizes a bulk move.
type BulkAssignResult struct {
	Assigned []int64
	Skipped  []int64 // already in the target pen, left untouched
}

// AssignFeedlotBulk moves a list of cows into one pen. Cows already in the
// pen are skipped rather than failing the batch; open stays are fetched in
// a single query.
func (s *PlacementService) AssignFeedlotBulk(ctx context.Context, feedlotID int64, cowIDs []int64) (*BulkAssignResult, error) {
	result := &BulkAssignResult{}
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		feedlot, err := tx.GetFeedlot(ctx, feedlotID)
		if err != nil {
			return err
		}
		if feedlot == nil {
			return &NotFoundError{Kind: "feedlot", ID: feedlotID}
		}

		for _, cowID := range cowIDs {
			cow, err := tx.GetCow(ctx, cowID)
			if err != nil {
				return err
			}
			if cow == nil {
				return &NotFoundError{Kind: "cow", ID: cowID}
			}
		}

		bulk, err := s.feedlotEngine(tx).AssignBulk(ctx, feedlotID, cowIDs, s.Now())
		if err != nil {
			return err
		}

		for _, r := range bulk.Results {
			if err := tx.SetCowFeedlot(ctx, r.Opened.SubjectID, &feedlotID); err != nil {
				return err
			}
			result.Assigned = append(result.Assigned, r.Opened.SubjectID)
		}
		result.Skipped = bulk.Skipped
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// TRANSPONDER
// =============================================================================

// AssignTransponder attaches a tag to a cow. Whatever the tag was on and
// whatever the cow was wearing are both detached first, pointers included.
func (s *PlacementService) AssignTransponder(ctx context.Context, transponderID, cowID int64) (*Transponder, error) {
	var transponder *Transponder
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		var err error
		transponder, err = tx.GetTransponder(ctx, transponderID)
		if err != nil {
			return err
		}
		if transponder == nil {
			return &NotFoundError{Kind: "transponder", ID: transponderID}
		}

		cow, err := tx.GetCow(ctx, cowID)
		if err != nil {
			return err
		}
		if cow == nil {
			return &NotFoundError{Kind: "cow", ID: cowID}
		}

		res, err := s.transponderEngine(tx).Assign(ctx, transponderID, cowID, s.Now())
		if err != nil {
			return err
		}

		// The tag's previous wearer loses its pointer.
		if res.ClosedResource != nil {
			if err := tx.SetCowTransponder(ctx, res.ClosedResource.SubjectID, nil); err != nil {
				return err
			}
		}
		// The cow's previous tag is released symmetrically.
		if res.ClosedSubject != nil {
			if err := tx.SetTransponderCow(ctx, res.ClosedSubject.ResourceID, nil, nil); err != nil {
				return err
			}
		}

		assignedDate := DateOf(s.Now())
		if err := tx.SetTransponderCow(ctx, transponderID, &cowID, &assignedDate); err != nil {
			return err
		}
		if err := tx.SetCowTransponder(ctx, cowID, &transponderID); err != nil {
			return err
		}

		transponder.CurrentCowID = &cowID
		transponder.AssignedDate = &assignedDate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transponder, nil
}

// UnassignTransponder detaches a tag from whoever wears it.
func (s *PlacementService) UnassignTransponder(ctx context.Context, transponderID int64) (*Transponder, error) {
	var transponder *Transponder
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		var err error
		transponder, err = tx.GetTransponder(ctx, transponderID)
		if err != nil {
			return err
		}
		if transponder == nil {
			return &NotFoundError{Kind: "transponder", ID: transponderID}
		}

		closed, err := s.transponderEngine(tx).UnassignResource(ctx, transponderID, s.Now())
		if err != nil {
			return err
		}

		if err := tx.SetCowTransponder(ctx, closed.SubjectID, nil); err != nil {
			return err
		}
		if err := tx.SetTransponderCow(ctx, transponderID, nil, nil); err != nil {
			return err
		}

		transponder.CurrentCowID = nil
		transponder.AssignedDate = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transponder, nil
}
