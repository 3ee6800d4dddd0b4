package herd_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/manfad/cowcard/herd"
	"github.com/manfad/cowcard/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fixedClock(at time.Time) herd.Clock {
	return func() time.Time { return at }
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func seedDam(t *testing.T, store *sqlite.Store, tag string) *herd.Cow {
	t.Helper()
	cow, err := store.SaveCow(context.Background(), &herd.Cow{
		Tag:       tag,
		Gender:    herd.GenderFemale,
		Role:      herd.RoleDam,
		Status:    herd.CowStatusActive,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return cow
}

func seedSemen(t *testing.T, store *sqlite.Store, name string, straw int, bull bool) *herd.Semen {
	t.Helper()
	semen, err := store.SaveSemen(context.Background(), &herd.Semen{
		Name:  name,
		Straw: &straw,
		Bull:  bull,
	})
	require.NoError(t, err)
	return semen
}

func seedFeedlot(t *testing.T, store *sqlite.Store, name string) *herd.Feedlot {
	t.Helper()
	feedlot, err := store.SaveFeedlot(context.Background(), &herd.Feedlot{
		Name:   name,
		Active: true,
	})
	require.NoError(t, err)
	return feedlot
}

func seedTransponder(t *testing.T, store *sqlite.Store, code string) *herd.Transponder {
	t.Helper()
	transponder, err := store.SaveTransponder(context.Background(), &herd.Transponder{Code: code})
	require.NoError(t, err)
	return transponder
}

func seedSetting(t *testing.T, store *sqlite.Store, name, value string) {
	t.Helper()
	_, err := store.SaveSetting(context.Background(), &herd.SystemSetting{
		Name:  name,
		Value: value,
	})
	require.NoError(t, err)
}

// getPd reads the diagnosis owned by an AI record.
func getPd(t *testing.T, store *sqlite.Store, aiRecordID int64) *herd.PregnancyDiagnosis {
	t.Helper()
	var pd *herd.PregnancyDiagnosis
	err := store.RunInTx(context.Background(), func(tx herd.Tx) error {
		var err error
		pd, err = tx.GetPdByAiRecord(context.Background(), aiRecordID)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, pd)
	return pd
}

// setPd force-writes a diagnosis state, bypassing the transition rules, to
// arrange scheduler scenarios.
func setPd(t *testing.T, store *sqlite.Store, id int64, status herd.PdStatus, pregnantDate *time.Time) {
	t.Helper()
	err := store.RunInTx(context.Background(), func(tx herd.Tx) error {
		return tx.SetPdStatus(context.Background(), id, status, nil, pregnantDate)
	})
	require.NoError(t, err)
}

func getCow(t *testing.T, store *sqlite.Store, id int64) *herd.Cow {
	t.Helper()
	var cow *herd.Cow
	err := store.RunInTx(context.Background(), func(tx herd.Tx) error {
		var err error
		cow, err = tx.GetCow(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, cow)
	return cow
}

func getSemen(t *testing.T, store *sqlite.Store, id int64) *herd.Semen {
	t.Helper()
	semen, err := store.GetSemen(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, semen)
	return semen
}

func getTransponder(t *testing.T, store *sqlite.Store, id int64) *herd.Transponder {
	t.Helper()
	var tr *herd.Transponder
	err := store.RunInTx(context.Background(), func(tx herd.Tx) error {
		var err error
		tr, err = tx.GetTransponder(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, tr)
	return tr
}
