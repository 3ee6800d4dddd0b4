/*
types.go - Domain entities for the breeding pipeline

PURPOSE:
  The entities the core owns: animals, semen batches, AI records with their
  owned pregnancy diagnoses, calf records, and the hardware/placement entities
  (feedlots, transponders) whose occupancy the history ledgers track.

DENORMALIZED POINTERS:
  Cow.CurrentFeedlotID / Cow.CurrentTransponderID and Transponder.CurrentCowID
  duplicate what the open history row already says. The history ledger is the
  source of truth; the pointers are a transactionally-maintained cache, and the
  reconciliation between the two is asserted by tests.

DATES:
  Calendar fields (AiDate, PregnantDate, DOB) are day-granular and stored as
  ISO dates. Interval timestamps (MovedInAt, AssignedAt, ...) carry full time.
*/
package herd

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for day-granular fields.
const DateLayout = "2006-01-02"

// =============================================================================
// ANIMALS
// =============================================================================

// Cow is any tracked animal, whatever its role. Never hard-deleted; Active
// false retires it from pick lists.
type Cow struct {
	ID     int64
	Tag    string
	Gender CowGender
	Role   CowRole
	Status CowStatus

	ColorID *int64
	DOB     *time.Time
	Weight  *decimal.Decimal

	// Genetic parents, populated for animals produced by AI.
	DamID   *int64
	SemenID *int64

	// Cached from the open history rows. See file header.
	CurrentFeedlotID     *int64
	CurrentTransponderID *int64

	Active    bool
	Remark    string
	CreatedAt time.Time
}

// Semen is one batch of semen doses. Straw is the remaining dose count and
// only ever decreases. Bull batches are quota-exempt and never deducted.
type Semen struct {
	ID     int64
	Name   string
	Sire   string
	Date   *time.Time
	Straw  *int
	Bull   bool
	Remark string
}

// Inseminator is a technician referenced by AI records and diagnoses.
type Inseminator struct {
	ID     int64
	Name   string
	Active bool
	Remark string
}

// Color is a coat-color lookup row.
type Color struct {
	ID     int64
	Name   string
	Active bool
}

// =============================================================================
// BREEDING RECORDS
// =============================================================================

// AiRecord is one insemination attempt against a dam.
//
// Code is a daily sequence string "YYYYMMDD-N", generated inside the creation
// transaction and backed by a unique constraint. Feedlot is a point-in-time
// snapshot of the dam's feedlot NAME at creation, not a live reference.
type AiRecord struct {
	ID           int64
	Code         string
	DamID        int64
	SemenID      int64
	Feedlot      string
	AiByID       *int64
	PreparedByID *int64
	Status       AiStatus
	AiDate       time.Time
	AiTime       string
	Remark       string
	CreatedAt    time.Time
}

// PregnancyDiagnosis is the outcome record owned 1:1 by an AiRecord. It is
// created in the same transaction as its owner and lives exactly as long.
type PregnancyDiagnosis struct {
	ID            int64
	AiRecordID    int64
	AiDate        time.Time
	DiagnosisByID *int64
	Status        PdStatus
	// PregnantDate is stamped when the status becomes Pregnant and is never
	// cleared by later transitions.
	PregnantDate *time.Time
}

// CalfRecord links a registered calf to the AI record and diagnosis that
// produced it. Immutable once written.
type CalfRecord struct {
	ID                   int64
	CowID                int64
	AiRecordID           int64
	PregnancyDiagnosisID int64
	// StillBirth is recorded as given; it does not branch calf creation.
	StillBirth bool
	CreatedAt  time.Time
}

// =============================================================================
// PLACEMENT / HARDWARE
// =============================================================================

// Feedlot is a pen. Many cows may occupy it at once; each cow is in at most
// one feedlot.
type Feedlot struct {
	ID     int64
	Name   string
	Active bool
	Remark string
}

// Transponder is a tracking tag. Exclusive on both sides: one cow wears at
// most one transponder and a transponder is worn by at most one cow.
type Transponder struct {
	ID           int64
	Code         string
	CurrentCowID *int64
	AssignedDate *time.Time
	Remark       string
}

// FeedlotHistory is one time-bounded stay of a cow in a feedlot.
// MovedOutAt nil means the stay is still open.
type FeedlotHistory struct {
	ID         int64
	CowID      int64
	FeedlotID  int64
	MovedInAt  time.Time
	MovedOutAt *time.Time
}

// TransponderHistory is one time-bounded attachment of a transponder to a cow.
type TransponderHistory struct {
	ID            int64
	CowID         int64
	TransponderID int64
	AssignedAt    time.Time
	UnassignedAt  *time.Time
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Setting names read by the aging job.
const (
	SettingPdDays       = "pdDays"
	SettingPregnantDays = "pregnantDays"
)

// SystemSetting is a named configuration value. The core only reads the two
// threshold settings above; maintenance is external.
type SystemSetting struct {
	ID     int64
	Name   string
	Value  string
	Remark string
}

// AgingRun is the audit row for one scheduler sweep execution.
type AgingRun struct {
	ID                   string // uuid
	StartedAt            time.Time
	CompletedAt          *time.Time
	Status               string // "running", "completed", "skipped", "failed"
	MovedToPending       int
	MovedToLateGestation int
	Error                string
}
