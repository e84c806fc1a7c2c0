package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
	"leads-backend/internal/services"
	"leads-backend/internal/timeutil"
	"leads-backend/pkg/utils"
)

type LeadHandler struct {
	Service *services.LeadService
	Reports *services.ReportService
	Import  *services.ImportService
}

func NewLeadHandler(service *services.LeadService, reports *services.ReportService, imports *services.ImportService) *LeadHandler {
	return &LeadHandler{Service: service, Reports: reports, Import: imports}
}

type leadPage struct {
	Leads  []*models.Lead `json:"leads"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// leadQuery maps ?status=&agent=&salesrep=&source=&search=&ordering=&limit=&offset=&deleted=
func leadQuery(r *http.Request) (models.LeadQuery, error) {
	q := models.LeadQuery{
		Statuses: queryList(r, "status"),
		Source:   r.URL.Query().Get("source"),
		Search:   r.URL.Query().Get("search"),
		OrderBy:  r.URL.Query().Get("ordering"),
	}
	for key, dst := range map[string]**int{"agent": &q.OwningAgentID, "salesrep": &q.FieldSalesRepID} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			return q, apperr.Validation(key, "must be a principal id")
		}
		*dst = &id
	}
	var err error
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		return q, err
	}
	switch r.URL.Query().Get("deleted") {
	case "", "exclude":
	case "only":
		q.OnlyDeleted = true
	case "include":
		q.IncludeDeleted = true
	default:
		return q, apperr.Validation("deleted", "must be exclude, include or only")
	}
	return q, nil
}

func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	q, err := leadQuery(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	leads, total, err := h.Service.List(r.Context(), actor, q)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, leadPage{Leads: leads, Total: total, Limit: q.Limit, Offset: q.Offset})
}

func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	lead, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	var req models.CreateLeadRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	res, err := h.Service.Create(r.Context(), actor, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, res)
}

func (h *LeadHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req models.UpdateLeadRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	res, err := h.Service.Update(r.Context(), actor, id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

// DeleteLead is always a soft delete. The body is optional.
func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req models.SoftDeleteRequest
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.Error(w, err)
			return
		}
	}

	res, err := h.Service.SoftDelete(r.Context(), actor, id, req.Reason)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *LeadHandler) RestoreLead(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	res, err := h.Service.Restore(r.Context(), actor, id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

// PurgeExpired hard-deletes leads soft-deleted longer than ?older_than
// (default: the configured retention)
func (h *LeadHandler) PurgeExpired(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	var olderThan time.Duration
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		if olderThan, err = time.ParseDuration(raw); err != nil {
			utils.Error(w, apperr.Validation("older_than", "must be a duration such as 720h"))
			return
		}
	}

	n, err := h.Service.HardDeleteExpired(r.Context(), actor, olderThan)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (h *LeadHandler) Disposition(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req models.DispositionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	res, err := h.Service.Disposition(r.Context(), actor, id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *LeadHandler) SendToKelly(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	res, err := h.Service.SendToKelly(r.Context(), actor, id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *LeadHandler) Qualify(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req models.QualifyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	res, err := h.Service.Qualify(r.Context(), actor, id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *LeadHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req models.RescheduleRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	res, err := h.Service.RescheduleAppointment(r.Context(), actor, id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *LeadHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req models.CompleteAppointmentRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	res, err := h.Service.CompleteAppointment(r.Context(), actor, id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *LeadHandler) ColdCallList(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	leads, err := h.Service.ColdCallList(r.Context(), actor)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, leads)
}

func (h *LeadHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	history, err := h.Service.History(r.Context(), actor, id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, history)
}

// AppointmentSheet streams the salesrep's PDF
func (h *LeadHandler) AppointmentSheet(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	pdf, filename, err := h.Reports.AppointmentSheet(r.Context(), actor, id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(pdf)
}

// ExportCSV downloads every lead matching the list filters
func (h *LeadHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	q, err := leadQuery(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	data, err := h.Reports.ExportCSV(r.Context(), actor, q)
	if err != nil {
		utils.Error(w, err)
		return
	}
	filename := fmt.Sprintf("leads-%s.csv", timeutil.FormatLondon(time.Now(), "2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

// ImportLeads takes a JSON array of leads; ?prefix= picks the number series
func (h *LeadHandler) ImportLeads(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	report, err := h.Import.ImportJSON(r.Context(), actor, r.Body, r.URL.Query().Get("prefix"))
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, report)
}

func (h *LeadHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, stats)
}

func actorAndID(w http.ResponseWriter, r *http.Request) (models.Actor, int, bool) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return actor, 0, false
	}
	id, err := pathID(r)
	if err != nil {
		utils.Error(w, err)
		return actor, 0, false
	}
	return actor, id, true
}
