/*
handlers.go - HTTP handlers for the breeding pipeline

PURPOSE:
  Exposes the herd services and the store's read surface over REST. Handlers
  parse and validate the request, call exactly one domain or store operation,
  and wrap the outcome in the response envelope.

ERROR HANDLING:
  Domain precondition failures (quota, inventory, assignment state, unknown
  ids, illegal transitions) return HTTP 200 with success=false and the error
  text as the message - the frontend surfaces the message verbatim. Malformed
  JSON is a 400. Store/infrastructure failures are logged and become a bare
  500 envelope.

SEE ALSO:
  - dto.go: wire shapes and converters
  - server.go: route table
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/manfad/cowcard/herd"
	"github.com/manfad/cowcard/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Breeding  *herd.BreedingService
	Placement *herd.PlacementService
	Aging     *herd.AgingJob
	Log       *zap.Logger
}

// NewHandler wires the handler with the store and the services built on it.
func NewHandler(store *sqlite.Store, log *zap.Logger) *Handler {
	return &Handler{
		Store:     store,
		Breeding:  herd.NewBreedingService(store),
		Placement: herd.NewPlacementService(store),
		Aging:     herd.NewAgingJob(store, log.Named("aging")),
		Log:       log,
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeEnvelope(w http.ResponseWriter, status int, res ServerRes) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(res)
}

func (h *Handler) ok(w http.ResponseWriter, data any, message string) {
	writeEnvelope(w, http.StatusOK, ServerRes{Data: data, Message: message, Success: true})
}

func (h *Handler) fail(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusOK, ServerRes{Message: message, Success: false})
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusBadRequest, ServerRes{Message: message, Success: false})
}

// handleErr routes a failure to the envelope or a 500 depending on whether
// the caller could have done anything about it.
func (h *Handler) handleErr(w http.ResponseWriter, r *http.Request, err error) {
	if herd.IsClientError(err) {
		h.fail(w, err.Error())
		return
	}
	h.Log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeEnvelope(w, http.StatusInternalServerError, ServerRes{Message: "internal error", Success: false})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.badRequest(w, "invalid request body")
		return false
	}
	return true
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func parseDateParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(herd.DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// =============================================================================
// AI RECORDS
// =============================================================================

func (h *Handler) CreateAiRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateAiRecordRequest
	if !h.decode(w, r, &req) {
		return
	}
	aiDate, err := parseDateParam(req.AiDate)
	if err != nil || aiDate == nil {
		h.badRequest(w, "aiDate must be a YYYY-MM-DD date")
		return
	}

	record, err := h.Breeding.CreateAiRecord(r.Context(), herd.CreateAiRecordInput{
		DamID:        req.DamID,
		SemenID:      req.SemenID,
		AiByID:       req.AiByID,
		PreparedByID: req.PreparedByID,
		AiDate:       *aiDate,
		AiTime:       req.AiTime,
		Remark:       req.Remark,
	})
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toAiRecordDTO(*record), "AI record created")
}

func (h *Handler) ListAiRecords(w http.ResponseWriter, r *http.Request) {
	var views []herd.AiRecordView
	err := h.Store.RunInTx(r.Context(), func(tx herd.Tx) error {
		var err error
		views, err = tx.ListAiRecordViews(r.Context())
		return err
	})
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	dtos := make([]AiRecordDTO, len(views))
	for i, v := range views {
		dtos[i] = toAiRecordViewDTO(v)
	}
	h.ok(w, dtos, "")
}

func (h *Handler) AiRecordDetail(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.badRequest(w, "invalid id")
		return
	}
	detail, err := h.Breeding.Detail(r.Context(), id)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}

	dto := AiRecordDetailDTO{Record: toAiRecordDTO(detail.Record)}
	if detail.Pd != nil {
		pd := toPdDTO(*detail.Pd)
		dto.Diagnosis = &pd
	}
	if detail.CalfRecord != nil {
		cr := toCalfRecordDTO(*detail.CalfRecord)
		dto.CalfRecord = &cr
	}
	if detail.Calf != nil {
		calf := toCowDTO(*detail.Calf)
		dto.Calf = &calf
	}
	h.ok(w, dto, "")
}

func (h *Handler) NextAiCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.Breeding.NextCode(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, code, "")
}

func (h *Handler) DamAiRecords(w http.ResponseWriter, r *http.Request) {
	rollup, err := h.Breeding.DamAiRecords(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	dtos := make([]DamAiRecordDTO, len(rollup))
	for i, d := range rollup {
		dtos[i] = toDamAiRecordDTO(d)
	}
	h.ok(w, dtos, "")
}

func (h *Handler) DamAiCount(w http.ResponseWriter, r *http.Request) {
	damID, err := urlID(r, "damId")
	if err != nil {
		h.badRequest(w, "invalid dam id")
		return
	}
	count, err := h.Breeding.CountNonBullAiRecords(r.Context(), damID)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, count, "")
}

func (h *Handler) UpdateAiStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.badRequest(w, "invalid id")
		return
	}
	var req UpdateAiStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	record, err := h.Breeding.UpdateAiStatus(r.Context(), id, herd.AiStatus(req.Status))
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toAiRecordDTO(*record), "AI record status updated")
}

// =============================================================================
// PREGNANCY DIAGNOSES
// =============================================================================

func (h *Handler) ListPregnancyDiagnoses(w http.ResponseWriter, r *http.Request) {
	views, err := h.Store.ListPdViews(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	dtos := make([]PdDTO, len(views))
	for i, v := range views {
		dtos[i] = toPdViewDTO(v)
	}
	h.ok(w, dtos, "")
}

func (h *Handler) UpdatePdStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.badRequest(w, "invalid id")
		return
	}
	var req UpdatePdStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	pd, err := h.Breeding.UpdatePdStatus(r.Context(), id, req.DiagnosisByID, herd.PdStatus(req.Status))
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toPdDTO(*pd), "diagnosis status updated")
}

func (h *Handler) RegisterCalf(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.badRequest(w, "invalid id")
		return
	}
	var req RegisterCalfRequest
	if !h.decode(w, r, &req) {
		return
	}
	dob, err := parseDateParam(req.DOB)
	if err != nil {
		h.badRequest(w, "dob must be a YYYY-MM-DD date")
		return
	}

	calf, err := h.Breeding.RegisterCalf(r.Context(), id, herd.RegisterCalfInput{
		Tag:        req.Tag,
		Gender:     herd.CowGender(req.Gender),
		DOB:        dob,
		Weight:     req.Weight,
		ColorID:    req.ColorID,
		FeedlotID:  req.FeedlotID,
		Remark:     req.Remark,
		StillBirth: req.StillBirth,
	})
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toCowDTO(*calf), "calf registered")
}

// =============================================================================
// COWS
// =============================================================================

func (h *Handler) createCow(w http.ResponseWriter, r *http.Request, req CreateCowRequest) {
	gender := herd.CowGender(req.Gender)
	role := herd.CowRole(req.Role)
	status := herd.CowStatus(req.Status)
	switch {
	case !gender.Valid() || !role.Valid() || !status.Valid():
		h.fail(w, "unknown gender, role or status code")
		return
	case !role.AllowsGender(gender):
		h.fail(w, "role "+role.String()+" does not allow gender "+gender.String())
		return
	case !status.AllowsRole(role):
		h.fail(w, "status "+status.String()+" does not apply to role "+role.String())
		return
	}
	dob, err := parseDateParam(req.DOB)
	if err != nil {
		h.badRequest(w, "dob must be a YYYY-MM-DD date")
		return
	}

	cow := &herd.Cow{
		Tag:       req.Tag,
		Gender:    gender,
		Role:      role,
		Status:    status,
		ColorID:   req.ColorID,
		DOB:       dob,
		Weight:    req.Weight,
		Active:    true,
		Remark:    req.Remark,
		CreatedAt: time.Now().UTC(),
	}
	saved, err := h.Store.SaveCow(r.Context(), cow)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toCowDTO(*saved), "cow created")
}

func (h *Handler) CreateCow(w http.ResponseWriter, r *http.Request) {
	var req CreateCowRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.createCow(w, r, req)
}

// CreateDam is CreateCow with the breeding-female shape forced.
func (h *Handler) CreateDam(w http.ResponseWriter, r *http.Request) {
	var req CreateCowRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Gender = int(herd.GenderFemale)
	req.Role = int(herd.RoleDam)
	req.Status = int(herd.CowStatusActive)
	h.createCow(w, r, req)
}

func (h *Handler) ListCows(w http.ResponseWriter, r *http.Request) {
	cows, err := h.Store.ListCows(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toCowDTOs(cows), "")
}

func (h *Handler) ListDams(w http.ResponseWriter, r *http.Request) {
	dams, err := h.Store.ListDams(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toCowDTOs(dams), "")
}

func (h *Handler) CowDetail(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.badRequest(w, "invalid id")
		return
	}
	detail, err := h.Store.GetCowDetail(r.Context(), id)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toCowDetailDTO(detail), "")
}

// =============================================================================
// FEEDLOTS
// =============================================================================

func (h *Handler) ListFeedlots(w http.ResponseWriter, r *http.Request) {
	feedlots, err := h.Store.ListFeedlots(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	dtos := make([]FeedlotDTO, len(feedlots))
	for i, f := range feedlots {
		dtos[i] = toFeedlotDTO(f)
	}
	h.ok(w, dtos, "")
}

func (h *Handler) CreateFeedlot(w http.ResponseWriter, r *http.Request) {
	var req FeedlotRequest
	if !h.decode(w, r, &req) {
		return
	}
	saved, err := h.Store.SaveFeedlot(r.Context(), &herd.Feedlot{
		Name: req.Name, Active: true, Remark: req.Remark,
	})
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toFeedlotDTO(*saved), "feedlot created")
}

func (h *Handler) AssignFeedlot(w http.ResponseWriter, r *http.Request) {
	feedlotID, err1 := urlID(r, "feedlotId")
	cowID, err2 := urlID(r, "cowId")
	if err1 != nil || err2 != nil {
		h.badRequest(w, "invalid id")
		return
	}
	feedlot, err := h.Placement.AssignFeedlot(r.Context(), feedlotID, cowID)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toFeedlotDTO(*feedlot), "cow moved to feedlot")
}

func (h *Handler) AssignFeedlotBulk(w http.ResponseWriter, r *http.Request) {
	feedlotID, err := urlID(r, "feedlotId")
	if err != nil {
		h.badRequest(w, "invalid feedlot id")
		return
	}
	var req BulkAssignRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.CowIDs) == 0 {
		h.badRequest(w, "cowIds must not be empty")
		return
	}
	result, err := h.Placement.AssignFeedlotBulk(r.Context(), feedlotID, req.CowIDs)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, BulkAssignResultDTO{Assigned: result.Assigned, Skipped: result.Skipped}, "cows moved to feedlot")
}

func (h *Handler) UnassignFeedlot(w http.ResponseWriter, r *http.Request) {
	cowID, err := urlID(r, "cowId")
	if err != nil {
		h.badRequest(w, "invalid cow id")
		return
	}
	feedlot, err := h.Placement.UnassignFeedlot(r.Context(), cowID)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toFeedlotDTO(*feedlot), "cow removed from feedlot")
}

// =============================================================================
// TRANSPONDERS
// =============================================================================

func (h *Handler) ListTransponders(w http.ResponseWriter, r *http.Request) {
	h.listTransponders(w, r, h.Store.ListTransponders)
}

func (h *Handler) ListAvailableTransponders(w http.ResponseWriter, r *http.Request) {
	h.listTransponders(w, r, h.Store.ListAvailableTransponders)
}

func (h *Handler) listTransponders(w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context) ([]herd.Transponder, error)) {
	transponders, err := list(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	dtos := make([]TransponderDTO, len(transponders))
	for i, t := range transponders {
		dtos[i] = toTransponderDTO(t)
	}
	h.ok(w, dtos, "")
}

func (h *Handler) CreateTransponder(w http.ResponseWriter, r *http.Request) {
	var req TransponderRequest
	if !h.decode(w, r, &req) {
		return
	}
	saved, err := h.Store.SaveTransponder(r.Context(), &herd.Transponder{
		Code: req.Code, Remark: req.Remark,
	})
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toTransponderDTO(*saved), "transponder created")
}

func (h *Handler) AssignTransponder(w http.ResponseWriter, r *http.Request) {
	transponderID, err1 := urlID(r, "transponderId")
	cowID, err2 := urlID(r, "cowId")
	if err1 != nil || err2 != nil {
		h.badRequest(w, "invalid id")
		return
	}
	transponder, err := h.Placement.AssignTransponder(r.Context(), transponderID, cowID)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toTransponderDTO(*transponder), "transponder assigned")
}

func (h *Handler) UnassignTransponder(w http.ResponseWriter, r *http.Request) {
	transponderID, err := urlID(r, "transponderId")
	if err != nil {
		h.badRequest(w, "invalid transponder id")
		return
	}
	transponder, err := h.Placement.UnassignTransponder(r.Context(), transponderID)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toTransponderDTO(*transponder), "transponder unassigned")
}

// =============================================================================
// SEMEN
// =============================================================================

func (h *Handler) ListSemens(w http.ResponseWriter, r *http.Request) {
	semens, err := h.Store.ListSemens(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	dtos := make([]SemenDTO, len(semens))
	for i, s := range semens {
		dtos[i] = toSemenDTO(s)
	}
	h.ok(w, dtos, "")
}

func (h *Handler) semenFromRequest(w http.ResponseWriter, req SemenRequest) (*herd.Semen, bool) {
	date, err := parseDateParam(req.Date)
	if err != nil {
		h.badRequest(w, "date must be a YYYY-MM-DD date")
		return nil, false
	}
	return &herd.Semen{
		Name:   req.Name,
		Sire:   req.Sire,
		Date:   date,
		Straw:  req.Straw,
		Bull:   req.Bull,
		Remark: req.Remark,
	}, true
}

func (h *Handler) CreateSemen(w http.ResponseWriter, r *http.Request) {
	var req SemenRequest
	if !h.decode(w, r, &req) {
		return
	}
	semen, ok := h.semenFromRequest(w, req)
	if !ok {
		return
	}
	saved, err := h.Store.SaveSemen(r.Context(), semen)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toSemenDTO(*saved), "semen created")
}

func (h *Handler) UpdateSemen(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.badRequest(w, "invalid id")
		return
	}
	var req SemenRequest
	if !h.decode(w, r, &req) {
		return
	}
	semen, ok := h.semenFromRequest(w, req)
	if !ok {
		return
	}
	semen.ID = id
	if err := h.Store.UpdateSemen(r.Context(), semen); err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toSemenDTO(*semen), "semen updated")
}

func (h *Handler) ToggleBull(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.badRequest(w, "invalid id")
		return
	}
	bull, err := h.Store.ToggleBull(r.Context(), id)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, bull, "bull flag toggled")
}

// =============================================================================
// INSEMINATORS & COLORS
// =============================================================================

func (h *Handler) ListInseminators(w http.ResponseWriter, r *http.Request) {
	inseminators, err := h.Store.ListInseminators(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	dtos := make([]InseminatorDTO, len(inseminators))
	for i, in := range inseminators {
		dtos[i] = InseminatorDTO{ID: in.ID, Name: in.Name, Active: in.Active, Remark: in.Remark}
	}
	h.ok(w, dtos, "")
}

func (h *Handler) CreateInseminator(w http.ResponseWriter, r *http.Request) {
	var req InseminatorRequest
	if !h.decode(w, r, &req) {
		return
	}
	saved, err := h.Store.SaveInseminator(r.Context(), &herd.Inseminator{
		Name: req.Name, Active: true, Remark: req.Remark,
	})
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, InseminatorDTO{ID: saved.ID, Name: saved.Name, Active: saved.Active, Remark: saved.Remark}, "inseminator created")
}

func (h *Handler) ListColors(w http.ResponseWriter, r *http.Request) {
	colors, err := h.Store.ListColors(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	dtos := make([]ColorDTO, len(colors))
	for i, c := range colors {
		dtos[i] = ColorDTO{ID: c.ID, Name: c.Name}
	}
	h.ok(w, dtos, "")
}

func (h *Handler) CreateColor(w http.ResponseWriter, r *http.Request) {
	var req ColorRequest
	if !h.decode(w, r, &req) {
		return
	}
	saved, err := h.Store.SaveColor(r.Context(), &herd.Color{Name: req.Name, Active: true})
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, ColorDTO{ID: saved.ID, Name: saved.Name}, "color created")
}

// =============================================================================
// SYSTEM SETTINGS & SCHEDULER
// =============================================================================

func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Store.ListSettings(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	dtos := make([]SystemSettingDTO, len(settings))
	for i, s := range settings {
		dtos[i] = SystemSettingDTO{ID: s.ID, Name: s.Name, Value: s.Value, Remark: s.Remark}
	}
	h.ok(w, dtos, "")
}

func (h *Handler) SaveSetting(w http.ResponseWriter, r *http.Request) {
	var req SystemSettingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.badRequest(w, "name is required")
		return
	}
	saved, err := h.Store.SaveSetting(r.Context(), &herd.SystemSetting{
		Name: req.Name, Value: req.Value, Remark: req.Remark,
	})
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, SystemSettingDTO{ID: saved.ID, Name: saved.Name, Value: saved.Value, Remark: saved.Remark}, "setting saved")
}

func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.badRequest(w, "invalid id")
		return
	}
	var req SystemSettingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.badRequest(w, "name is required")
		return
	}
	setting := &herd.SystemSetting{ID: id, Name: req.Name, Value: req.Value, Remark: req.Remark}
	if err := h.Store.UpdateSetting(r.Context(), setting); err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, SystemSettingDTO{ID: setting.ID, Name: setting.Name, Value: setting.Value, Remark: setting.Remark}, "setting updated")
}

// RunAgingJob triggers the sweep outside its cron cadence.
func (h *Handler) RunAgingJob(w http.ResponseWriter, r *http.Request) {
	run, err := h.Aging.Run(r.Context())
	if errors.Is(err, herd.ErrRunInProgress) {
		h.fail(w, err.Error())
		return
	}
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	h.ok(w, toAgingRunDTO(*run), "aging run "+run.Status)
}

func (h *Handler) ListAgingRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListAgingRuns(r.Context())
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	dtos := make([]AgingRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toAgingRunDTO(run)
	}
	h.ok(w, dtos, "")
}
