/*
dto.go - Request/response data structures

PURPOSE:
  The JSON shapes of the HTTP API, kept separate from the domain entities so
  the wire contract can stay stable while the core evolves.

ENVELOPE:
  Every response is wrapped in {data, message, success}. Precondition and
  validation failures ride the envelope with success=false and HTTP 200;
  only infrastructure failures produce a 5xx.

DATES:
  Day-granular fields travel as "2006-01-02" strings, timestamps as RFC3339.
  Status/gender/role codes travel as their numeric ids - they are a wire
  contract with the frontend lookup tables.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/manfad/cowcard/herd"
	"github.com/manfad/cowcard/store/sqlite"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// ServerRes is the uniform response envelope.
type ServerRes struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// =============================================================================
// REQUESTS
// =============================================================================

type CreateAiRecordRequest struct {
	DamID        int64  `json:"damId"`
	SemenID      int64  `json:"semenId"`
	AiByID       *int64 `json:"aiBy"`
	PreparedByID *int64 `json:"preparedBy"`
	AiDate       string `json:"aiDate"` // "2006-01-02"
	AiTime       string `json:"aiTime"`
	Remark       string `json:"remark"`
}

type UpdateAiStatusRequest struct {
	Status int `json:"status"`
}

type UpdatePdStatusRequest struct {
	Status        int    `json:"status"`
	DiagnosisByID *int64 `json:"diagnosisBy"`
}

type RegisterCalfRequest struct {
	Tag        string           `json:"tag"`
	Gender     int              `json:"gender"`
	DOB        string           `json:"dob"` // "2006-01-02", optional
	Weight     *decimal.Decimal `json:"weight"`
	ColorID    *int64           `json:"colorId"`
	FeedlotID  *int64           `json:"feedlotId"`
	Remark     string           `json:"remark"`
	StillBirth bool             `json:"stillBirth"`
}

type CreateCowRequest struct {
	Tag     string           `json:"tag"`
	Gender  int              `json:"gender"`
	Role    int              `json:"role"`
	Status  int              `json:"status"`
	ColorID *int64           `json:"colorId"`
	DOB     string           `json:"dob"`
	Weight  *decimal.Decimal `json:"weight"`
	Remark  string           `json:"remark"`
}

type BulkAssignRequest struct {
	CowIDs []int64 `json:"cowIds"`
}

type SemenRequest struct {
	Name   string `json:"name"`
	Sire   string `json:"sire"`
	Date   string `json:"date"` // "2006-01-02", optional
	Straw  *int   `json:"straw"`
	Bull   bool   `json:"bull"`
	Remark string `json:"remark"`
}

type FeedlotRequest struct {
	Name   string `json:"name"`
	Remark string `json:"remark"`
}

type TransponderRequest struct {
	Code   string `json:"code"`
	Remark string `json:"remark"`
}

type InseminatorRequest struct {
	Name   string `json:"name"`
	Remark string `json:"remark"`
}

type ColorRequest struct {
	Name string `json:"name"`
}

type SystemSettingRequest struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Remark string `json:"remark"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type CowDTO struct {
	ID                   int64  `json:"id"`
	Tag                  string `json:"tag"`
	Gender               int    `json:"gender"`
	Role                 int    `json:"role"`
	Status               int    `json:"status"`
	StatusName           string `json:"statusName"`
	ColorID              *int64 `json:"colorId"`
	DOB                  string `json:"dob,omitempty"`
	Weight               string `json:"weight,omitempty"`
	DamID                *int64 `json:"damId"`
	SemenID              *int64 `json:"semenId"`
	CurrentFeedlotID     *int64 `json:"currentFeedlotId"`
	CurrentTransponderID *int64 `json:"currentTransponderId"`
	Active               bool   `json:"active"`
	Remark               string `json:"remark"`
	CreatedAt            string `json:"createdAt"`
}

type SemenDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Sire   string `json:"sire"`
	Date   string `json:"date,omitempty"`
	Straw  *int   `json:"straw"`
	Bull   bool   `json:"bull"`
	Remark string `json:"remark"`
}

type AiRecordDTO struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	DamID        int64  `json:"damId"`
	DamTag       string `json:"damTag,omitempty"`
	SemenID      int64  `json:"semenId"`
	SemenName    string `json:"semenName,omitempty"`
	Feedlot      string `json:"feedlot"`
	AiByID       *int64 `json:"aiBy"`
	PreparedByID *int64 `json:"preparedBy"`
	Status       int    `json:"status"`
	StatusName   string `json:"statusName"`
	AiDate       string `json:"aiDate"`
	AiTime       string `json:"aiTime"`
	Remark       string `json:"remark"`
	CreatedAt    string `json:"createdAt"`
}

type PdDTO struct {
	ID            int64  `json:"id"`
	AiRecordID    int64  `json:"aiRecordId"`
	AiCode        string `json:"aiCode,omitempty"`
	DamID         int64  `json:"damId,omitempty"`
	DamTag        string `json:"damTag,omitempty"`
	AiDate        string `json:"aiDate"`
	DiagnosisByID *int64 `json:"diagnosisBy"`
	Status        int    `json:"status"`
	StatusName    string `json:"statusName"`
	PregnantDate  string `json:"pregnantDate,omitempty"`
}

type CalfRecordDTO struct {
	ID                   int64  `json:"id"`
	CowID                int64  `json:"cowId"`
	AiRecordID           int64  `json:"aiRecordId"`
	PregnancyDiagnosisID int64  `json:"pregnancyDiagnosisId"`
	StillBirth           bool   `json:"stillBirth"`
	CreatedAt            string `json:"createdAt"`
}

type AiRecordDetailDTO struct {
	Record     AiRecordDTO    `json:"record"`
	Diagnosis  *PdDTO         `json:"diagnosis"`
	CalfRecord *CalfRecordDTO `json:"calfRecord"`
	Calf       *CowDTO        `json:"calf"`
}

type AiRecordSummaryDTO struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	AiDate    string `json:"aiDate"`
	Status    int    `json:"status"`
	SemenName string `json:"semenName"`
}

type DamAiRecordDTO struct {
	DamID         int64                `json:"damId"`
	DamTag        string               `json:"damTag"`
	AiRecords     []AiRecordSummaryDTO `json:"aiRecords"`
	BullAiRecords []AiRecordSummaryDTO `json:"bullAiRecords"`
	LastAiDays    *int                 `json:"lastAiDays"`
}

type FeedlotDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Remark string `json:"remark"`
}

type TransponderDTO struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	CurrentCowID *int64 `json:"currentCowId"`
	AssignedDate string `json:"assignedDate,omitempty"`
	Remark       string `json:"remark"`
}

type InseminatorDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Remark string `json:"remark"`
}

type ColorDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type FeedlotHistoryDTO struct {
	ID         int64  `json:"id"`
	FeedlotID  int64  `json:"feedlotId"`
	MovedInAt  string `json:"movedInAt"`
	MovedOutAt string `json:"movedOutAt,omitempty"`
}

type TransponderHistoryDTO struct {
	ID            int64  `json:"id"`
	TransponderID int64  `json:"transponderId"`
	AssignedAt    string `json:"assignedAt"`
	UnassignedAt  string `json:"unassignedAt,omitempty"`
}

type CowDetailDTO struct {
	Cow                CowDTO                  `json:"cow"`
	ColorName          string                  `json:"colorName,omitempty"`
	FeedlotName        string                  `json:"feedlotName,omitempty"`
	TransponderCode    string                  `json:"transponderCode,omitempty"`
	FeedlotHistory     []FeedlotHistoryDTO     `json:"feedlotHistory"`
	TransponderHistory []TransponderHistoryDTO `json:"transponderHistory"`
	AiRecords          []AiRecordDTO           `json:"aiRecords"`
	Calves             []CowDTO                `json:"calves"`
}

type BulkAssignResultDTO struct {
	Assigned []int64 `json:"assigned"`
	Skipped  []int64 `json:"skipped"`
}

type SystemSettingDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Value  string `json:"value"`
	Remark string `json:"remark"`
}

type AgingRunDTO struct {
	ID                   string `json:"id"`
	StartedAt            string `json:"startedAt"`
	CompletedAt          string `json:"completedAt,omitempty"`
	Status               string `json:"status"`
	MovedToPending       int    `json:"movedToPending"`
	MovedToLateGestation int    `json:"movedToLateGestation"`
	Error                string `json:"error,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func fmtDate(t time.Time) string { return t.Format(herd.DateLayout) }

func fmtDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmtDate(*t)
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toCowDTO(c herd.Cow) CowDTO {
	dto := CowDTO{
		ID:                   c.ID,
		Tag:                  c.Tag,
		Gender:               int(c.Gender),
		Role:                 int(c.Role),
		Status:               int(c.Status),
		StatusName:           c.Status.String(),
		ColorID:              c.ColorID,
		DOB:                  fmtDatePtr(c.DOB),
		DamID:                c.DamID,
		SemenID:              c.SemenID,
		CurrentFeedlotID:     c.CurrentFeedlotID,
		CurrentTransponderID: c.CurrentTransponderID,
		Active:               c.Active,
		Remark:               c.Remark,
		CreatedAt:            c.CreatedAt.Format(time.RFC3339),
	}
	if c.Weight != nil {
		dto.Weight = c.Weight.String()
	}
	return dto
}

func toCowDTOs(cows []herd.Cow) []CowDTO {
	dtos := make([]CowDTO, len(cows))
	for i, c := range cows {
		dtos[i] = toCowDTO(c)
	}
	return dtos
}

func toSemenDTO(s herd.Semen) SemenDTO {
	return SemenDTO{
		ID:     s.ID,
		Name:   s.Name,
		Sire:   s.Sire,
		Date:   fmtDatePtr(s.Date),
		Straw:  s.Straw,
		Bull:   s.Bull,
		Remark: s.Remark,
	}
}

func toAiRecordDTO(r herd.AiRecord) AiRecordDTO {
	return AiRecordDTO{
		ID:           r.ID,
		Code:         r.Code,
		DamID:        r.DamID,
		SemenID:      r.SemenID,
		Feedlot:      r.Feedlot,
		AiByID:       r.AiByID,
		PreparedByID: r.PreparedByID,
		Status:       int(r.Status),
		StatusName:   r.Status.String(),
		AiDate:       fmtDate(r.AiDate),
		AiTime:       r.AiTime,
		Remark:       r.Remark,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
}

func toAiRecordViewDTO(v herd.AiRecordView) AiRecordDTO {
	dto := toAiRecordDTO(v.AiRecord)
	dto.DamTag = v.DamTag
	dto.SemenName = v.SemenName
	return dto
}

func toPdDTO(pd herd.PregnancyDiagnosis) PdDTO {
	return PdDTO{
		ID:            pd.ID,
		AiRecordID:    pd.AiRecordID,
		AiDate:        fmtDate(pd.AiDate),
		DiagnosisByID: pd.DiagnosisByID,
		Status:        int(pd.Status),
		StatusName:    pd.Status.String(),
		PregnantDate:  fmtDatePtr(pd.PregnantDate),
	}
}

func toPdViewDTO(v sqlite.PdView) PdDTO {
	dto := toPdDTO(v.PregnancyDiagnosis)
	dto.AiCode = v.AiCode
	dto.DamID = v.DamID
	dto.DamTag = v.DamTag
	return dto
}

func toCalfRecordDTO(cr herd.CalfRecord) CalfRecordDTO {
	return CalfRecordDTO{
		ID:                   cr.ID,
		CowID:                cr.CowID,
		AiRecordID:           cr.AiRecordID,
		PregnancyDiagnosisID: cr.PregnancyDiagnosisID,
		StillBirth:           cr.StillBirth,
		CreatedAt:            cr.CreatedAt.Format(time.RFC3339),
	}
}

func toDamAiRecordDTO(d herd.DamAiRecord) DamAiRecordDTO {
	dto := DamAiRecordDTO{
		DamID:         d.DamID,
		DamTag:        d.DamTag,
		AiRecords:     toSummaryDTOs(d.AiRecords),
		BullAiRecords: toSummaryDTOs(d.BullAiRecords),
		LastAiDays:    d.LastAiDays,
	}
	return dto
}

func toSummaryDTOs(summaries []herd.AiRecordSummary) []AiRecordSummaryDTO {
	dtos := make([]AiRecordSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = AiRecordSummaryDTO{
			ID:        s.ID,
			Code:      s.Code,
			AiDate:    fmtDate(s.AiDate),
			Status:    int(s.Status),
			SemenName: s.SemenName,
		}
	}
	return dtos
}

func toFeedlotDTO(f herd.Feedlot) FeedlotDTO {
	return FeedlotDTO{ID: f.ID, Name: f.Name, Active: f.Active, Remark: f.Remark}
}

func toTransponderDTO(t herd.Transponder) TransponderDTO {
	return TransponderDTO{
		ID:           t.ID,
		Code:         t.Code,
		CurrentCowID: t.CurrentCowID,
		AssignedDate: fmtDatePtr(t.AssignedDate),
		Remark:       t.Remark,
	}
}

func toAgingRunDTO(r herd.AgingRun) AgingRunDTO {
	return AgingRunDTO{
		ID:                   r.ID,
		StartedAt:            r.StartedAt.Format(time.RFC3339),
		CompletedAt:          fmtTimePtr(r.CompletedAt),
		Status:               r.Status,
		MovedToPending:       r.MovedToPending,
		MovedToLateGestation: r.MovedToLateGestation,
		Error:                r.Error,
	}
}

func toCowDetailDTO(d *sqlite.CowDetail) CowDetailDTO {
	dto := CowDetailDTO{
		Cow:                toCowDTO(d.Cow),
		ColorName:          d.ColorName,
		FeedlotName:        d.FeedlotName,
		TransponderCode:    d.TransponderCode,
		FeedlotHistory:     []FeedlotHistoryDTO{},
		TransponderHistory: []TransponderHistoryDTO{},
		AiRecords:          []AiRecordDTO{},
		Calves:             toCowDTOs(d.Calves),
	}
	for _, h := range d.FeedlotStays {
		dto.FeedlotHistory = append(dto.FeedlotHistory, FeedlotHistoryDTO{
			ID:         h.ID,
			FeedlotID:  h.FeedlotID,
			MovedInAt:  h.MovedInAt.Format(time.RFC3339),
			MovedOutAt: fmtTimePtr(h.MovedOutAt),
		})
	}
	for _, h := range d.TransponderWears {
		dto.TransponderHistory = append(dto.TransponderHistory, TransponderHistoryDTO{
			ID:            h.ID,
			TransponderID: h.TransponderID,
			AssignedAt:    h.AssignedAt.Format(time.RFC3339),
			UnassignedAt:  fmtTimePtr(h.UnassignedAt),
		})
	}
	for _, v := range d.AiRecords {
		dto.AiRecords = append(dto.AiRecords, toAiRecordViewDTO(v))
	}
	return dto
}
