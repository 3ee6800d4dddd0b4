package herd_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manfad/cowcard/herd"
	"github.com/manfad/cowcard/ledger"
	"github.com/manfad/cowcard/store/sqlite"
)

func newPlacement(t *testing.T, now time.Time) (*herd.PlacementService, *sqlite.Store) {
	store := newTestStore(t)
	svc := herd.NewPlacementService(store)
	svc.Now = fixedClock(now)
	return svc, store
}

// requireOneOpenStay asserts the one-open-interval invariant for a cow's
// feedlot ledger and returns the open row.
func requireOneOpenStay(t *testing.T, store *sqlite.Store, cowID int64) herd.FeedlotHistory {
	t.Helper()
	stays, err := store.ListFeedlotHistoryByCow(context.Background(), cowID)
	require.NoError(t, err)

	var open []herd.FeedlotHistory
	for _, s := range stays {
		if s.MovedOutAt == nil {
			open = append(open, s)
		}
	}
	require.Len(t, open, 1, "exactly one open stay expected")
	return open[0]
}

// =============================================================================
// FEEDLOT
// =============================================================================

func TestAssignFeedlot_MoveClosesPreviousStay(t *testing.T) {
	// GIVEN: A cow standing in Pen A
	// WHEN: She is moved to Pen B
	// THEN: The Pen A stay is closed, exactly one open stay remains (Pen B),
	//       and the pointer cache agrees with the ledger

	now := day(2025, time.June, 15)
	svc, store := newPlacement(t, now)
	ctx := context.Background()

	cow := seedDam(t, store, "D-001")
	penA := seedFeedlot(t, store, "Pen A")
	penB := seedFeedlot(t, store, "Pen B")

	_, err := svc.AssignFeedlot(ctx, penA.ID, cow.ID)
	require.NoError(t, err)

	svc.Now = fixedClock(now.AddDate(0, 0, 3))
	_, err = svc.AssignFeedlot(ctx, penB.ID, cow.ID)
	require.NoError(t, err)

	stays, err := store.ListFeedlotHistoryByCow(ctx, cow.ID)
	require.NoError(t, err)
	require.Len(t, stays, 2)
	assert.Equal(t, penA.ID, stays[0].FeedlotID)
	require.NotNil(t, stays[0].MovedOutAt, "the Pen A stay must be closed")

	open := requireOneOpenStay(t, store, cow.ID)
	assert.Equal(t, penB.ID, open.FeedlotID)

	after := getCow(t, store, cow.ID)
	require.NotNil(t, after.CurrentFeedlotID)
	assert.Equal(t, penB.ID, *after.CurrentFeedlotID)
}

func TestAssignFeedlot_SamePenRejected(t *testing.T) {
	// GIVEN: A cow already in Pen A
	// WHEN: She is assigned to Pen A again
	// THEN: The exact-pair re-assign is rejected, not silently re-opened

	now := day(2025, time.June, 15)
	svc, store := newPlacement(t, now)
	ctx := context.Background()

	cow := seedDam(t, store, "D-001")
	pen := seedFeedlot(t, store, "Pen A")

	_, err := svc.AssignFeedlot(ctx, pen.ID, cow.ID)
	require.NoError(t, err)

	_, err = svc.AssignFeedlot(ctx, pen.ID, cow.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyAssigned)

	requireOneOpenStay(t, store, cow.ID)
}

func TestAssignFeedlotBulk_SkipsResidentsMovesTheRest(t *testing.T) {
	// GIVEN: Three cows - one already in the target pen, one in another pen,
	//        one unplaced
	// WHEN: All three are bulk-assigned to the target pen
	// THEN: The resident is skipped, the others moved, and every cow ends
	//       with exactly one open stay in the target pen

	now := day(2025, time.June, 15)
	svc, store := newPlacement(t, now)
	ctx := context.Background()

	target := seedFeedlot(t, store, "Target")
	other := seedFeedlot(t, store, "Other")
	resident := seedDam(t, store, "D-001")
	mover := seedDam(t, store, "D-002")
	unplaced := seedDam(t, store, "D-003")

	_, err := svc.AssignFeedlot(ctx, target.ID, resident.ID)
	require.NoError(t, err)
	_, err = svc.AssignFeedlot(ctx, other.ID, mover.ID)
	require.NoError(t, err)

	result, err := svc.AssignFeedlotBulk(ctx, target.ID,
		[]int64{resident.ID, mover.ID, unplaced.ID})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{mover.ID, unplaced.ID}, result.Assigned)
	assert.Equal(t, []int64{resident.ID}, result.Skipped)

	for _, cowID := range []int64{resident.ID, mover.ID, unplaced.ID} {
		open := requireOneOpenStay(t, store, cowID)
		assert.Equal(t, target.ID, open.FeedlotID)

		after := getCow(t, store, cowID)
		require.NotNil(t, after.CurrentFeedlotID)
		assert.Equal(t, target.ID, *after.CurrentFeedlotID)
	}
}

func TestUnassignFeedlot_ClosesStayAndClearsPointer(t *testing.T) {
	// GIVEN: A cow in Pen A
	// WHEN: She is unassigned, and unassigned again
	// THEN: The first call closes the stay and reports the pen left; the
	//       second is rejected because nothing is open

	now := day(2025, time.June, 15)
	svc, store := newPlacement(t, now)
	ctx := context.Background()

	cow := seedDam(t, store, "D-001")
	pen := seedFeedlot(t, store, "Pen A")

	_, err := svc.AssignFeedlot(ctx, pen.ID, cow.ID)
	require.NoError(t, err)

	left, err := svc.UnassignFeedlot(ctx, cow.ID)
	require.NoError(t, err)
	assert.Equal(t, pen.ID, left.ID)

	after := getCow(t, store, cow.ID)
	assert.Nil(t, after.CurrentFeedlotID)

	stays, err := store.ListFeedlotHistoryByCow(ctx, cow.ID)
	require.NoError(t, err)
	require.Len(t, stays, 1)
	assert.NotNil(t, stays[0].MovedOutAt)

	_, err = svc.UnassignFeedlot(ctx, cow.ID)
	assert.ErrorIs(t, err, ledger.ErrNotAssigned)
}

// =============================================================================
// TRANSPONDER
// =============================================================================

func TestAssignTransponder_SetsSymmetricPointers(t *testing.T) {
	// GIVEN: A free tag and a cow
	// WHEN: The tag is assigned
	// THEN: The cow points at the tag, the tag points at the cow, and the
	//       assigned date is today

	now := day(2025, time.June, 15)
	svc, store := newPlacement(t, now)
	ctx := context.Background()

	cow := seedDam(t, store, "D-001")
	tag := seedTransponder(t, store, "T-001")

	assigned, err := svc.AssignTransponder(ctx, tag.ID, cow.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.CurrentCowID)
	assert.Equal(t, cow.ID, *assigned.CurrentCowID)
	require.NotNil(t, assigned.AssignedDate)
	assert.Equal(t, now, *assigned.AssignedDate)

	after := getCow(t, store, cow.ID)
	require.NotNil(t, after.CurrentTransponderID)
	assert.Equal(t, tag.ID, *after.CurrentTransponderID)
}

func TestAssignTransponder_StealsFromPreviousWearer(t *testing.T) {
	// GIVEN: A tag worn by cow A
	// WHEN: The tag is assigned to cow B
	// THEN: A's wear is closed and her pointer cleared; B wears the tag

	now := day(2025, time.June, 15)
	svc, store := newPlacement(t, now)
	ctx := context.Background()

	cowA := seedDam(t, store, "D-001")
	cowB := seedDam(t, store, "D-002")
	tag := seedTransponder(t, store, "T-001")

	_, err := svc.AssignTransponder(ctx, tag.ID, cowA.ID)
	require.NoError(t, err)
	_, err = svc.AssignTransponder(ctx, tag.ID, cowB.ID)
	require.NoError(t, err)

	afterA := getCow(t, store, cowA.ID)
	assert.Nil(t, afterA.CurrentTransponderID, "the previous wearer must be released")

	afterB := getCow(t, store, cowB.ID)
	require.NotNil(t, afterB.CurrentTransponderID)
	assert.Equal(t, tag.ID, *afterB.CurrentTransponderID)

	afterTag := getTransponder(t, store, tag.ID)
	require.NotNil(t, afterTag.CurrentCowID)
	assert.Equal(t, cowB.ID, *afterTag.CurrentCowID)

	wearsA, err := store.ListTransponderHistoryByCow(ctx, cowA.ID)
	require.NoError(t, err)
	require.Len(t, wearsA, 1)
	assert.NotNil(t, wearsA[0].UnassignedAt)
}

func TestAssignTransponder_CowSwappingTagsReleasesTheOld(t *testing.T) {
	// GIVEN: A cow wearing tag T1
	// WHEN: Tag T2 is assigned to her
	// THEN: T1's pointer is cleared and its wear closed; she wears T2

	now := day(2025, time.June, 15)
	svc, store := newPlacement(t, now)
	ctx := context.Background()

	cow := seedDam(t, store, "D-001")
	tag1 := seedTransponder(t, store, "T-001")
	tag2 := seedTransponder(t, store, "T-002")

	_, err := svc.AssignTransponder(ctx, tag1.ID, cow.ID)
	require.NoError(t, err)
	_, err = svc.AssignTransponder(ctx, tag2.ID, cow.ID)
	require.NoError(t, err)

	afterTag1 := getTransponder(t, store, tag1.ID)
	assert.Nil(t, afterTag1.CurrentCowID)
	assert.Nil(t, afterTag1.AssignedDate)

	after := getCow(t, store, cow.ID)
	require.NotNil(t, after.CurrentTransponderID)
	assert.Equal(t, tag2.ID, *after.CurrentTransponderID)

	wears, err := store.ListTransponderHistoryByCow(ctx, cow.ID)
	require.NoError(t, err)
	require.Len(t, wears, 2)
	assert.NotNil(t, wears[0].UnassignedAt)
	assert.Nil(t, wears[1].UnassignedAt)
}

func TestUnassignTransponder_ClearsBothSides(t *testing.T) {
	// GIVEN: A worn tag
	// WHEN: It is unassigned, and unassigned again
	// THEN: Both pointers clear and the wear closes; the second call is
	//       rejected

	now := day(2025, time.June, 15)
	svc, store := newPlacement(t, now)
	ctx := context.Background()

	cow := seedDam(t, store, "D-001")
	tag := seedTransponder(t, store, "T-001")

	_, err := svc.AssignTransponder(ctx, tag.ID, cow.ID)
	require.NoError(t, err)

	released, err := svc.UnassignTransponder(ctx, tag.ID)
	require.NoError(t, err)
	assert.Nil(t, released.CurrentCowID)
	assert.Nil(t, released.AssignedDate)

	after := getCow(t, store, cow.ID)
	assert.Nil(t, after.CurrentTransponderID)

	wears, err := store.ListTransponderHistoryByCow(ctx, cow.ID)
	require.NoError(t, err)
	require.Len(t, wears, 1)
	assert.NotNil(t, wears[0].UnassignedAt)

	_, err = svc.UnassignTransponder(ctx, tag.ID)
	assert.ErrorIs(t, err, ledger.ErrNotAssigned)
}

func TestTransponder_AvailableListTracksAssignment(t *testing.T) {
	// GIVEN: Two tags, one worn
	// WHEN: The available list is read
	// THEN: Only the free tag appears

	now := day(2025, time.June, 15)
	svc, store := newPlacement(t, now)
	ctx := context.Background()

	cow := seedDam(t, store, "D-001")
	worn := seedTransponder(t, store, "T-001")
	free := seedTransponder(t, store, "T-002")

	_, err := svc.AssignTransponder(ctx, worn.ID, cow.ID)
	require.NoError(t, err)

	available, err := store.ListAvailableTransponders(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, free.ID, available[0].ID)
}
