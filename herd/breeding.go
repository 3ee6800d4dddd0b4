/*
breeding.go - The breeding lifecycle state machine

PURPOSE:
  Orchestrates the AiRecord -> PregnancyDiagnosis -> CalfRecord chain:
  creation of an insemination attempt (consuming straw inventory and
  enforcing the per-dam quota), status transitions with the AI-failure
  cascade, and calf registration that materializes a new animal.

TRANSACTION BOUNDARY:
  Every public method is exactly one Store.RunInTx call. CreateAiRecord in
  particular must never leave a straw deducted without its AI record, or an
  AI record without its owned diagnosis.

CODE GENERATION:
  Codes are "YYYYMMDD-N" where N is 1 + the count of codes sharing today's
  prefix. The count and the insert happen in the same transaction and the
  column carries a unique constraint, so two same-day creations cannot both
  claim the same N: one of them fails and the caller resubmits.

SEE ALSO:
  - status.go: the transition tables this file enforces
  - aging.go: the scheduler-owned PD transitions
*/
package herd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const codePrefixLayout = "20060102"

// BreedingService drives the AI/PD/calf lifecycle.
type BreedingService struct {
	Store Store
	Now   Clock
}

// NewBreedingService wires the service with the wall clock unless a test
// injects its own.
func NewBreedingService(store Store) *BreedingService {
	return &BreedingService{Store: store, Now: time.Now}
}

// =============================================================================
// AI RECORD CREATION
// =============================================================================

// CreateAiRecordInput carries one insemination event.
type CreateAiRecordInput struct {
	DamID        int64
	SemenID      int64
	AiByID       *int64
	PreparedByID *int64
	AiDate       time.Time
	AiTime       string
	Remark       string
}

// CreateAiRecord registers an insemination attempt and its owned diagnosis.
//
// Non-bull semen is quota-checked (at most NonBullAiLimit attempts per dam)
// and costs one straw. Bull semen is exempt from both. Any failure rolls the
// record, the diagnosis and the deduction back together.
func (s *BreedingService) CreateAiRecord(ctx context.Context, in CreateAiRecordInput) (*AiRecord, error) {
	var created *AiRecord
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		semen, err := tx.GetSemen(ctx, in.SemenID)
		if err != nil {
			return err
		}
		if semen == nil {
			return &NotFoundError{Kind: "semen", ID: in.SemenID}
		}

		if !semen.Bull {
			count, err := tx.CountNonBullAiRecords(ctx, in.DamID)
			if err != nil {
				return err
			}
			if count >= NonBullAiLimit {
				return &QuotaExceededError{DamID: in.DamID, Limit: NonBullAiLimit}
			}
		}

		dam, err := tx.GetCow(ctx, in.DamID)
		if err != nil {
			return err
		}
		if dam == nil {
			return &NotFoundError{Kind: "cow", ID: in.DamID}
		}

		code, err := s.nextCode(ctx, tx)
		if err != nil {
			return err
		}

		record := &AiRecord{
			Code:         code,
			DamID:        in.DamID,
			SemenID:      in.SemenID,
			AiByID:       in.AiByID,
			PreparedByID: in.PreparedByID,
			Status:       AiStatusPending,
			AiDate:       DateOf(in.AiDate),
			AiTime:       in.AiTime,
			Remark:       in.Remark,
			CreatedAt:    s.Now(),
		}

		// Snapshot the dam's feedlot NAME; the record keeps saying where the
		// dam stood even after she moves.
		if dam.CurrentFeedlotID != nil {
			feedlot, err := tx.GetFeedlot(ctx, *dam.CurrentFeedlotID)
			if err != nil {
				return err
			}
			if feedlot != nil {
				record.Feedlot = feedlot.Name
			}
		}

		id, err := tx.InsertAiRecord(ctx, record)
		if err != nil {
			return err
		}
		record.ID = id

		pd := &PregnancyDiagnosis{
			AiRecordID: id,
			AiDate:     record.AiDate,
			Status:     PdStatusNew,
		}
		if _, err := tx.InsertPregnancyDiagnosis(ctx, pd); err != nil {
			return err
		}

		if !semen.Bull {
			if err := tx.DeductStraw(ctx, in.SemenID); err != nil {
				return err
			}
		}

		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// NextCode previews the code the next creation would receive today.
func (s *BreedingService) NextCode(ctx context.Context) (string, error) {
	var code string
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		var err error
		code, err = s.nextCode(ctx, tx)
		return err
	})
	return code, err
}

func (s *BreedingService) nextCode(ctx context.Context, tx Tx) (string, error) {
	prefix := DateOf(s.Now()).Format(codePrefixLayout)
	count, err := tx.CountAiRecordsWithCodePrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", prefix, count+1), nil
}

// CountNonBullAiRecords reports how many quota-relevant attempts a dam has.
func (s *BreedingService) CountNonBullAiRecords(ctx context.Context, damID int64) (int, error) {
	var count int
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		var err error
		count, err = tx.CountNonBullAiRecords(ctx, damID)
		return err
	})
	return count, err
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// UpdateAiStatus moves an AI record out of Pending.
//
// Cascade rule: Failed forces the owned diagnosis to Failed as well, whatever
// state it had reached. This is an override, not a table transition.
func (s *BreedingService) UpdateAiStatus(ctx context.Context, id int64, status AiStatus) (*AiRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: ai status %d", ErrInvalidStatus, status)
	}

	var updated *AiRecord
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		record, err := tx.GetAiRecord(ctx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return &NotFoundError{Kind: "ai record", ID: id}
		}
		if !record.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: ai record %d cannot move from %s to %s",
				ErrInvalidStatus, id, record.Status, status)
		}

		if err := tx.SetAiRecordStatus(ctx, id, status); err != nil {
			return err
		}
		record.Status = status

		if status == AiStatusFailed {
			pd, err := tx.GetPdByAiRecord(ctx, id)
			if err != nil {
				return err
			}
			if pd != nil {
				if err := tx.SetPdStatus(ctx, pd.ID, PdStatusFailed, pd.DiagnosisByID, pd.PregnantDate); err != nil {
					return err
				}
			}
		}

		updated = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdatePdStatus applies a user-driven diagnosis transition.
//
// Becoming Pregnant stamps pregnantDate=today, unconditionally: diagnosing a
// pregnant cow as pregnant again simply refreshes the stamp. No transition
// ever clears the stamp.
func (s *BreedingService) UpdatePdStatus(ctx context.Context, id int64, diagnosisByID *int64, status PdStatus) (*PregnancyDiagnosis, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: pd status %d", ErrInvalidStatus, status)
	}

	var updated *PregnancyDiagnosis
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		pd, err := tx.GetPregnancyDiagnosis(ctx, id)
		if err != nil {
			return err
		}
		if pd == nil {
			return &NotFoundError{Kind: "pregnancy diagnosis", ID: id}
		}

		restamp := status == PdStatusPregnant && pd.Status == PdStatusPregnant
		if !restamp && !pd.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: diagnosis %d cannot move from %s to %s",
				ErrInvalidStatus, id, pd.Status, status)
		}

		pregnantDate := pd.PregnantDate
		if status == PdStatusPregnant {
			today := DateOf(s.Now())
			pregnantDate = &today
		}

		if diagnosisByID != nil {
			pd.DiagnosisByID = diagnosisByID
		}
		if err := tx.SetPdStatus(ctx, id, status, pd.DiagnosisByID, pregnantDate); err != nil {
			return err
		}

		pd.Status = status
		pd.PregnantDate = pregnantDate
		updated = pd
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// =============================================================================
// CALF REGISTRATION
// =============================================================================

// RegisterCalfInput carries a birth against a diagnosis.
type RegisterCalfInput struct {
	Tag       string
	Gender    CowGender
	DOB       *time.Time
	Weight    *decimal.Decimal
	ColorID   *int64
	FeedlotID *int64
	Remark    string
	// StillBirth is recorded on the calf record; it does not suppress calf
	// creation or alter the resulting status.
	StillBirth bool
}

// RegisterCalf materializes the calf as a new animal (role Calf, status
// NewBorn, genetic parents copied from the originating AI record) and links
// it to the chain with an immutable CalfRecord.
func (s *BreedingService) RegisterCalf(ctx context.Context, pdID int64, in RegisterCalfInput) (*Cow, error) {
	if !in.Gender.Valid() {
		return nil, fmt.Errorf("%w: gender %d", ErrInvalidStatus, in.Gender)
	}

	var calf *Cow
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		pd, err := tx.GetPregnancyDiagnosis(ctx, pdID)
		if err != nil {
			return err
		}
		if pd == nil {
			return &NotFoundError{Kind: "pregnancy diagnosis", ID: pdID}
		}

		record, err := tx.GetAiRecord(ctx, pd.AiRecordID)
		if err != nil {
			return err
		}
		if record == nil {
			return &NotFoundError{Kind: "ai record", ID: pd.AiRecordID}
		}

		c := &Cow{
			Tag:       in.Tag,
			Gender:    in.Gender,
			Role:      RoleCalf,
			Status:    CowStatusNewBorn,
			ColorID:   in.ColorID,
			Weight:    in.Weight,
			DamID:     &record.DamID,
			SemenID:   &record.SemenID,
			Active:    true,
			Remark:    in.Remark,
			CreatedAt: s.Now(),
		}
		if in.DOB != nil {
			dob := DateOf(*in.DOB)
			c.DOB = &dob
		}

		cowID, err := tx.InsertCow(ctx, c)
		if err != nil {
			return err
		}
		c.ID = cowID

		// Optional initial placement goes through the history ledger so the
		// pointer cache never claims a stay the ledger doesn't know about.
		if in.FeedlotID != nil {
			feedlot, err := tx.GetFeedlot(ctx, *in.FeedlotID)
			if err != nil {
				return err
			}
			if feedlot == nil {
				return &NotFoundError{Kind: "feedlot", ID: *in.FeedlotID}
			}
			if _, err := tx.FeedlotHistories().Open(ctx, cowID, feedlot.ID, s.Now()); err != nil {
				return err
			}
			if err := tx.SetCowFeedlot(ctx, cowID, in.FeedlotID); err != nil {
				return err
			}
			c.CurrentFeedlotID = in.FeedlotID
		}

		_, err = tx.InsertCalfRecord(ctx, &CalfRecord{
			CowID:                cowID,
			AiRecordID:           record.ID,
			PregnancyDiagnosisID: pd.ID,
			StillBirth:           in.StillBirth,
			CreatedAt:            s.Now(),
		})
		if err != nil {
			return err
		}

		calf = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return calf, nil
}

// =============================================================================
// READS
// =============================================================================

// AiRecordDetail is one record with its owned diagnosis and, if registered,
// the resulting calf.
type AiRecordDetail struct {
	Record     AiRecord
	Pd         *PregnancyDiagnosis
	CalfRecord *CalfRecord
	Calf       *Cow
}

// Detail loads an AI record with its diagnosis and calf chain.
func (s *BreedingService) Detail(ctx context.Context, id int64) (*AiRecordDetail, error) {
	var detail *AiRecordDetail
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		record, err := tx.GetAiRecord(ctx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return &NotFoundError{Kind: "ai record", ID: id}
		}

		d := &AiRecordDetail{Record: *record}
		if d.Pd, err = tx.GetPdByAiRecord(ctx, id); err != nil {
			return err
		}
		if d.CalfRecord, err = tx.GetCalfRecordByAiRecord(ctx, id); err != nil {
			return err
		}
		if d.CalfRecord != nil {
			if d.Calf, err = tx.GetCow(ctx, d.CalfRecord.CowID); err != nil {
				return err
			}
		}
		detail = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// AiRecordSummary is the rollup line for one attempt.
type AiRecordSummary struct {
	ID        int64
	Code      string
	AiDate    time.Time
	Status    AiStatus
	SemenName string
}

// DamAiRecord is the per-dam rollup: the quota-relevant attempts (capped at
// the quota), every bull attempt, and the days since the last attempt of any
// kind.
type DamAiRecord struct {
	DamID         int64
	DamTag        string
	AiRecords     []AiRecordSummary
	BullAiRecords []AiRecordSummary
	LastAiDays    *int
}

// DamAiRecords builds the rollup across every dam with at least one attempt.
func (s *BreedingService) DamAiRecords(ctx context.Context) ([]DamAiRecord, error) {
	var views []AiRecordView
	err := s.Store.RunInTx(ctx, func(tx Tx) error {
		var err error
		views, err = tx.ListAiRecordViews(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	today := DateOf(s.Now())
	byDam := make(map[int64]*DamAiRecord)
	var order []int64

	for _, v := range views {
		entry, ok := byDam[v.DamID]
		if !ok {
			entry = &DamAiRecord{DamID: v.DamID, DamTag: v.DamTag}
			byDam[v.DamID] = entry
			order = append(order, v.DamID)
		}

		summary := AiRecordSummary{
			ID:        v.AiRecord.ID,
			Code:      v.Code,
			AiDate:    v.AiDate,
			Status:    v.AiRecord.Status,
			SemenName: v.SemenName,
		}
		if v.SemenBull {
			entry.BullAiRecords = append(entry.BullAiRecords, summary)
		} else if len(entry.AiRecords) < NonBullAiLimit {
			entry.AiRecords = append(entry.AiRecords, summary)
		}

		days := DaysBetween(v.AiDate, today)
		if entry.LastAiDays == nil || days < *entry.LastAiDays {
			entry.LastAiDays = &days
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	result := make([]DamAiRecord, 0, len(order))
	for _, damID := range order {
		result = append(result, *byDam[damID])
	}
	return result, nil
}
