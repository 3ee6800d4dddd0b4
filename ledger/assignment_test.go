package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manfad/cowcard/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// memHistory is an in-memory HistoryStore for exercising the engine rules
// without a database.
type memHistory struct {
	nextID    int64
	intervals []*ledger.Interval
}

func (m *memHistory) OpenBySubject(_ context.Context, subjectID int64) (*ledger.Interval, error) {
	for _, iv := range m.intervals {
		if iv.SubjectID == subjectID && iv.ClosedAt == nil {
			copied := *iv
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memHistory) OpenByResource(_ context.Context, resourceID int64) (*ledger.Interval, error) {
	for _, iv := range m.intervals {
		if iv.ResourceID == resourceID && iv.ClosedAt == nil {
			copied := *iv
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memHistory) OpenBySubjects(ctx context.Context, subjectIDs []int64) (map[int64]*ledger.Interval, error) {
	open := make(map[int64]*ledger.Interval)
	for _, id := range subjectIDs {
		iv, _ := m.OpenBySubject(ctx, id)
		if iv != nil {
			open[id] = iv
		}
	}
	return open, nil
}

func (m *memHistory) Close(_ context.Context, intervalID int64, at time.Time) error {
	for _, iv := range m.intervals {
		if iv.ID == intervalID && iv.ClosedAt == nil {
			closed := at
			iv.ClosedAt = &closed
			return nil
		}
	}
	return assert.AnError
}

func (m *memHistory) Open(_ context.Context, subjectID, resourceID int64, at time.Time) (int64, error) {
	m.nextID++
	m.intervals = append(m.intervals, &ledger.Interval{
		ID:         m.nextID,
		SubjectID:  subjectID,
		ResourceID: resourceID,
		OpenedAt:   at,
	})
	return m.nextID, nil
}

func (m *memHistory) openCount(subjectID int64) int {
	n := 0
	for _, iv := range m.intervals {
		if iv.SubjectID == subjectID && iv.ClosedAt == nil {
			n++
		}
	}
	return n
}

var t0 = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

// =============================================================================
// SHARED-RESOURCE MODE (feedlot semantics)
// =============================================================================

func TestEngine_AssignRelocatesSubject(t *testing.T) {
	// GIVEN: Subject 1 assigned to resource 10
	// WHEN: Subject 1 is assigned to resource 20
	// THEN: The old interval is closed, one interval stays open

	hist := &memHistory{}
	engine := &ledger.Engine{History: hist}
	ctx := context.Background()

	_, err := engine.Assign(ctx, 10, 1, t0)
	require.NoError(t, err)

	res, err := engine.Assign(ctx, 20, 1, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, res.ClosedSubject)
	assert.Equal(t, int64(10), res.ClosedSubject.ResourceID)
	assert.Nil(t, res.ClosedResource)
	assert.Equal(t, int64(20), res.Opened.ResourceID)

	assert.Equal(t, 1, hist.openCount(1))
}

func TestEngine_ExactPairReassignRejected(t *testing.T) {
	hist := &memHistory{}
	engine := &ledger.Engine{History: hist}
	ctx := context.Background()

	_, err := engine.Assign(ctx, 10, 1, t0)
	require.NoError(t, err)

	_, err = engine.Assign(ctx, 10, 1, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ledger.ErrAlreadyAssigned)
	var dup *ledger.AlreadyAssignedError
	assert.ErrorAs(t, err, &dup)
	assert.Equal(t, int64(1), dup.SubjectID)
}

func TestEngine_SharedResourceHoldsManySubjects(t *testing.T) {
	// Non-exclusive mode: assigning a second subject to the same resource
	// must not close the first subject's interval.

	hist := &memHistory{}
	engine := &ledger.Engine{History: hist}
	ctx := context.Background()

	_, err := engine.Assign(ctx, 10, 1, t0)
	require.NoError(t, err)
	res, err := engine.Assign(ctx, 10, 2, t0)
	require.NoError(t, err)

	assert.Nil(t, res.ClosedResource)
	assert.Equal(t, 1, hist.openCount(1))
	assert.Equal(t, 1, hist.openCount(2))
}

func TestEngine_AssignBulkSkipsResidentsAndDedups(t *testing.T) {
	// GIVEN: Subject 1 already on the target, subject 2 elsewhere
	// WHEN: Subjects 1, 2, 3 and a duplicate 3 are bulk-assigned
	// THEN: 1 is skipped, 2 relocated, 3 assigned once

	hist := &memHistory{}
	engine := &ledger.Engine{History: hist}
	ctx := context.Background()

	_, err := engine.Assign(ctx, 10, 1, t0)
	require.NoError(t, err)
	_, err = engine.Assign(ctx, 99, 2, t0)
	require.NoError(t, err)

	bulk, err := engine.AssignBulk(ctx, 10, []int64{1, 2, 3, 3}, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, bulk.Skipped)
	require.Len(t, bulk.Results, 2)
	assert.NotNil(t, bulk.Results[0].ClosedSubject, "subject 2 relocated from 99")
	assert.Nil(t, bulk.Results[1].ClosedSubject, "subject 3 had no prior interval")

	for _, id := range []int64{1, 2, 3} {
		assert.Equal(t, 1, hist.openCount(id))
	}
}

func TestEngine_UnassignSubject(t *testing.T) {
	hist := &memHistory{}
	engine := &ledger.Engine{History: hist}
	ctx := context.Background()

	_, err := engine.Assign(ctx, 10, 1, t0)
	require.NoError(t, err)

	closed, err := engine.UnassignSubject(ctx, 1, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(10), closed.ResourceID)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, 0, hist.openCount(1))

	_, err = engine.UnassignSubject(ctx, 1, t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, ledger.ErrNotAssigned)
}

// =============================================================================
// EXCLUSIVE-RESOURCE MODE (transponder semantics)
// =============================================================================

func TestEngine_ExclusiveResourceEvictsPreviousHolder(t *testing.T) {
	// GIVEN: Resource 10 held by subject 1 in exclusive mode
	// WHEN: Subject 2 takes resource 10
	// THEN: Subject 1's interval is closed and reported

	hist := &memHistory{}
	engine := &ledger.Engine{History: hist, ResourceExclusive: true}
	ctx := context.Background()

	_, err := engine.Assign(ctx, 10, 1, t0)
	require.NoError(t, err)

	res, err := engine.Assign(ctx, 10, 2, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, res.ClosedResource)
	assert.Equal(t, int64(1), res.ClosedResource.SubjectID)

	assert.Equal(t, 0, hist.openCount(1))
	assert.Equal(t, 1, hist.openCount(2))
}

func TestEngine_ExclusiveSwapReportsBothClosures(t *testing.T) {
	// GIVEN: Subject 1 on resource 10, subject 2 on resource 20
	// WHEN: Subject 1 takes resource 20
	// THEN: Both the subject's old interval and the resource's old interval
	//       close, and the caller learns about each

	hist := &memHistory{}
	engine := &ledger.Engine{History: hist, ResourceExclusive: true}
	ctx := context.Background()

	_, err := engine.Assign(ctx, 10, 1, t0)
	require.NoError(t, err)
	_, err = engine.Assign(ctx, 20, 2, t0)
	require.NoError(t, err)

	res, err := engine.Assign(ctx, 20, 1, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, res.ClosedSubject)
	assert.Equal(t, int64(10), res.ClosedSubject.ResourceID)
	require.NotNil(t, res.ClosedResource)
	assert.Equal(t, int64(2), res.ClosedResource.SubjectID)

	assert.Equal(t, 1, hist.openCount(1))
	assert.Equal(t, 0, hist.openCount(2))
}

func TestEngine_AssignBulkExclusiveEvictsHolders(t *testing.T) {
	// GIVEN: Resource 10 held by subject 1 in exclusive mode
	// WHEN: Subjects 2 and 3 are bulk-assigned to resource 10
	// THEN: Each assign evicts the previous holder, so only the last subject
	//       keeps an open interval - the same end state a sequence of single
	//       Assign calls would produce

	hist := &memHistory{}
	engine := &ledger.Engine{History: hist, ResourceExclusive: true}
	ctx := context.Background()

	_, err := engine.Assign(ctx, 10, 1, t0)
	require.NoError(t, err)

	bulk, err := engine.AssignBulk(ctx, 10, []int64{2, 3}, t0.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, bulk.Results, 2)
	require.NotNil(t, bulk.Results[0].ClosedResource)
	assert.Equal(t, int64(1), bulk.Results[0].ClosedResource.SubjectID)
	require.NotNil(t, bulk.Results[1].ClosedResource)
	assert.Equal(t, int64(2), bulk.Results[1].ClosedResource.SubjectID)

	assert.Equal(t, 0, hist.openCount(1))
	assert.Equal(t, 0, hist.openCount(2))
	assert.Equal(t, 1, hist.openCount(3))
}

func TestEngine_AssignBulkExclusiveWithHolderInBatch(t *testing.T) {
	// GIVEN: Subject 1 holding resource 10 and named later in the batch
	// WHEN: Subjects 2 and 1 are bulk-assigned to resource 10
	// THEN: 2's assign evicts 1, and 1's turn must not close the already
	//       closed interval from the stale prefetch - it just takes the
	//       resource back

	hist := &memHistory{}
	engine := &ledger.Engine{History: hist, ResourceExclusive: true}
	ctx := context.Background()

	_, err := engine.Assign(ctx, 10, 1, t0)
	require.NoError(t, err)

	bulk, err := engine.AssignBulk(ctx, 10, []int64{2, 1}, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Empty(t, bulk.Skipped)
	require.Len(t, bulk.Results, 2)
	require.NotNil(t, bulk.Results[0].ClosedResource)
	assert.Equal(t, int64(1), bulk.Results[0].ClosedResource.SubjectID)
	assert.Nil(t, bulk.Results[1].ClosedSubject, "subject 1's old interval was already closed by the eviction")

	assert.Equal(t, 1, hist.openCount(1))
	assert.Equal(t, 0, hist.openCount(2))
}

func TestEngine_UnassignResource(t *testing.T) {
	hist := &memHistory{}
	engine := &ledger.Engine{History: hist, ResourceExclusive: true}
	ctx := context.Background()

	_, err := engine.Assign(ctx, 10, 1, t0)
	require.NoError(t, err)

	closed, err := engine.UnassignResource(ctx, 10, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed.SubjectID)

	_, err = engine.UnassignResource(ctx, 10, t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, ledger.ErrNotAssigned)
	var notAssigned *ledger.NotAssignedError
	assert.ErrorAs(t, err, &notAssigned)
	assert.Equal(t, int64(10), notAssigned.ResourceID)
}
