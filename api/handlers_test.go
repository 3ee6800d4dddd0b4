package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/manfad/cowcard/api"
	"github.com/manfad/cowcard/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := api.NewHandler(store, zap.NewNop())
	server := httptest.NewServer(api.NewRouter(handler, []string{"*"}))
	t.Cleanup(server.Close)
	return server
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Success bool            `json:"success"`
}

func doJSON(t *testing.T, method, url string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func createDam(t *testing.T, base, tag string) int64 {
	t.Helper()
	status, env := doJSON(t, http.MethodPost, base+"/api/cow/dam", map[string]any{"tag": tag})
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success, env.Message)

	var cow struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cow))
	return cow.ID
}

func createSemen(t *testing.T, base, name string, straw int, bull bool) int64 {
	t.Helper()
	status, env := doJSON(t, http.MethodPost, base+"/api/semen", map[string]any{
		"name": name, "straw": straw, "bull": bull,
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success, env.Message)

	var semen struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &semen))
	return semen.ID
}

// =============================================================================
// BREEDING FLOW
// =============================================================================

func TestAPI_CreateAiRecordFlow(t *testing.T) {
	// GIVEN: A dam and a batch created over the API
	// WHEN: An AI record is created
	// THEN: The envelope carries the record, and the list and detail
	//       endpoints see it with its New diagnosis

	server := newTestServer(t)
	base := server.URL

	damID := createDam(t, base, "D-001")
	semenID := createSemen(t, base, "Batch A", 5, false)

	status, env := doJSON(t, http.MethodPost, base+"/api/ai-record", map[string]any{
		"damId": damID, "semenId": semenID, "aiDate": "2025-06-15", "aiTime": "08:30",
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success, env.Message)

	var record struct {
		ID     int64  `json:"id"`
		Code   string `json:"code"`
		Status int    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &record))
	assert.Equal(t, 3, record.Status, "new records are Pending")
	assert.NotEmpty(t, record.Code)

	status, env = doJSON(t, http.MethodGet, base+"/api/ai-record/all", nil)
	require.Equal(t, http.StatusOK, status)
	var records []struct {
		DamTag string `json:"damTag"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "D-001", records[0].DamTag)

	status, env = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/ai-record/%d/detail", base, record.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var detail struct {
		Diagnosis *struct {
			Status int `json:"status"`
		} `json:"diagnosis"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	require.NotNil(t, detail.Diagnosis)
	assert.Equal(t, 7, detail.Diagnosis.Status, "owned diagnosis starts New")
}

func TestAPI_QuotaFailureRidesTheEnvelope(t *testing.T) {
	// GIVEN: A dam at her non-bull quota
	// WHEN: A fourth attempt is posted
	// THEN: HTTP 200 with success=false and a human-readable message

	server := newTestServer(t)
	base := server.URL

	damID := createDam(t, base, "D-001")
	semenID := createSemen(t, base, "Batch A", 10, false)

	for i := 0; i < 3; i++ {
		status, env := doJSON(t, http.MethodPost, base+"/api/ai-record", map[string]any{
			"damId": damID, "semenId": semenID, "aiDate": "2025-06-15",
		})
		require.Equal(t, http.StatusOK, status)
		require.True(t, env.Success, env.Message)
	}

	status, env := doJSON(t, http.MethodPost, base+"/api/ai-record", map[string]any{
		"damId": damID, "semenId": semenID, "aiDate": "2025-06-15",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)
}

func TestAPI_MalformedBodyIsBadRequest(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/cow",
		bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CreateCowValidatesRoleGenderPairs(t *testing.T) {
	// A male dam is rejected via the envelope, not persisted.

	server := newTestServer(t)

	status, env := doJSON(t, http.MethodPost, server.URL+"/api/cow", map[string]any{
		"tag": "X-001", "gender": 2, "role": 1, "status": 1,
	})
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, env.Success)

	status, env = doJSON(t, http.MethodGet, server.URL+"/api/cow/all", nil)
	require.Equal(t, http.StatusOK, status)
	var cows []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &cows))
	assert.Empty(t, cows)
}

// =============================================================================
// SCHEDULER TRIGGER
// =============================================================================

func TestAPI_ManualCronRunReportsSkippedWithoutConfig(t *testing.T) {
	// GIVEN: No pdDays setting
	// WHEN: The cron is triggered manually
	// THEN: The run is reported as skipped, successfully

	server := newTestServer(t)

	status, env := doJSON(t, http.MethodPost, server.URL+"/api/system-setting/run-cron", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success, env.Message)

	var run struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, "skipped", run.Status)
}

func TestAPI_SettingsRoundTrip(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	status, env := doJSON(t, http.MethodPost, base+"/api/system-setting", map[string]any{
		"name": "pdDays", "value": "30",
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success, env.Message)

	status, env = doJSON(t, http.MethodGet, base+"/api/system-setting/all", nil)
	require.Equal(t, http.StatusOK, status)
	var settings []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	require.Len(t, settings, 1)
	assert.Equal(t, "30", settings[0].Value)
}
