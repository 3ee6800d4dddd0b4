/*
store.go - Persistence interfaces for the breeding core

PURPOSE:
  The domain services never touch database/sql directly. They open one
  transaction per public operation through Store.RunInTx and compose the
  fine-grained Tx methods inside it, so a failure anywhere rolls back the
  whole command: AI record, owned diagnosis, straw deduction, history rows
  and pointer updates always move together.

IMPLEMENTATIONS:
  store/sqlite: production implementation (also used by tests via ":memory:").

SEE ALSO:
  - breeding.go, placement.go, aging.go: the composers
  - ledger/assignment.go: HistoryStore, served by Tx for both ledgers
*/
package herd

import (
	"context"
	"time"

	"github.com/manfad/cowcard/ledger"
)

// Store opens request-scoped transactions.
type Store interface {
	// RunInTx runs fn inside a single transaction, committing when fn
	// returns nil and rolling back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional data surface the domain services compose.
type Tx interface {
	// --- Cows ---

	GetCow(ctx context.Context, id int64) (*Cow, error)
	GetCowByTag(ctx context.Context, tag string) (*Cow, error)
	InsertCow(ctx context.Context, c *Cow) (int64, error)
	// SetCowFeedlot maintains the denormalized current-feedlot pointer.
	SetCowFeedlot(ctx context.Context, cowID int64, feedlotID *int64) error
	// SetCowTransponder maintains the denormalized current-transponder pointer.
	SetCowTransponder(ctx context.Context, cowID int64, transponderID *int64) error

	// --- Semen inventory ---

	GetSemen(ctx context.Context, id int64) (*Semen, error)
	// DeductStraw atomically decrements the batch's straw count by one.
	// Fails with NotFoundError if the batch is missing and with
	// InsufficientInventoryError if straw is null or <= 0.
	DeductStraw(ctx context.Context, semenID int64) error

	// --- AI records ---

	GetAiRecord(ctx context.Context, id int64) (*AiRecord, error)
	InsertAiRecord(ctx context.Context, r *AiRecord) (int64, error)
	SetAiRecordStatus(ctx context.Context, id int64, status AiStatus) error
	CountNonBullAiRecords(ctx context.Context, damID int64) (int, error)
	CountAiRecordsWithCodePrefix(ctx context.Context, prefix string) (int, error)
	// ListAiRecordViews returns every AI record joined with its dam tag and
	// semen batch, ordered by dam then AI date. Feeds the per-dam rollup.
	ListAiRecordViews(ctx context.Context) ([]AiRecordView, error)

	// --- Pregnancy diagnoses ---

	GetPregnancyDiagnosis(ctx context.Context, id int64) (*PregnancyDiagnosis, error)
	GetPdByAiRecord(ctx context.Context, aiRecordID int64) (*PregnancyDiagnosis, error)
	InsertPregnancyDiagnosis(ctx context.Context, pd *PregnancyDiagnosis) (int64, error)
	// SetPdStatus updates the status and, when non-nil, the diagnosing
	// technician and the pregnant date.
	SetPdStatus(ctx context.Context, id int64, status PdStatus, diagnosisByID *int64, pregnantDate *time.Time) error
	ListPdByStatus(ctx context.Context, status PdStatus) ([]PregnancyDiagnosis, error)

	// --- Calf records ---

	GetCalfRecordByAiRecord(ctx context.Context, aiRecordID int64) (*CalfRecord, error)
	InsertCalfRecord(ctx context.Context, cr *CalfRecord) (int64, error)

	// --- Placement ---

	GetFeedlot(ctx context.Context, id int64) (*Feedlot, error)
	GetTransponder(ctx context.Context, id int64) (*Transponder, error)
	// SetTransponderCow maintains the transponder-side pointer pair
	// (current cow + assigned date); both nil clears it.
	SetTransponderCow(ctx context.Context, transponderID int64, cowID *int64, assignedDate *time.Time) error
	// FeedlotHistories and TransponderHistories expose the two assignment
	// ledgers, scoped to this transaction.
	FeedlotHistories() ledger.HistoryStore
	TransponderHistories() ledger.HistoryStore

	// --- Settings & scheduler audit ---

	GetSettingValue(ctx context.Context, name string) (value string, ok bool, err error)
	InsertAgingRun(ctx context.Context, run *AgingRun) error
	UpdateAgingRun(ctx context.Context, run *AgingRun) error
}

// AiRecordView is an AI record joined with the fields the rollup and list
// endpoints need without chasing foreign keys per row.
type AiRecordView struct {
	AiRecord
	DamTag    string
	SemenName string
	SemenBull bool
}
