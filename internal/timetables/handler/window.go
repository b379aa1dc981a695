package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"medsched/internal/timetables/service"
	apperrors "medsched/pkg/errors"
	httputil "medsched/pkg/http"
	"medsched/pkg/logger"
	"medsched/pkg/middleware"
	"medsched/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type TimetableHandler struct {
	service service.TimetableService
	log     *logger.Logger
}

func NewTimetableHandler(service service.TimetableService, log *logger.Logger) *TimetableHandler {
	return &TimetableHandler{
		service: service,
		log:     log,
	}
}

func (h *TimetableHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeErr(w, "Create", apperrors.Unauthorized("Authentication required"))
		return
	}

	var window model.Window
	if err := json.NewDecoder(r.Body).Decode(&window); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), principal, &window); err != nil {
		h.writeErr(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, window); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *TimetableHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeErr(w, "Update", apperrors.Unauthorized("Authentication required"))
		return
	}

	id := ps.ByName("id")

	var window model.Window
	if err := json.NewDecoder(r.Body).Decode(&window); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Update(r.Context(), principal, id, &window); err != nil {
		h.writeErr(w, "Update", err)
		return
	}

	window.ID = id
	if err := httputil.WriteSuccess(w, window); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TimetableHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeErr(w, "Delete", apperrors.Unauthorized("Authentication required"))
		return
	}

	if err := h.service.Delete(r.Context(), principal, ps.ByName("id")); err != nil {
		h.writeErr(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *TimetableHandler) DeleteByDoctor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeErr(w, "DeleteByDoctor", apperrors.Unauthorized("Authentication required"))
		return
	}

	if err := h.service.DeleteByDoctor(r.Context(), principal, ps.ByName("doctorId")); err != nil {
		h.writeErr(w, "DeleteByDoctor", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *TimetableHandler) DeleteByHospital(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeErr(w, "DeleteByHospital", apperrors.Unauthorized("Authentication required"))
		return
	}

	if err := h.service.DeleteByHospital(r.Context(), principal, ps.ByName("hospitalId")); err != nil {
		h.writeErr(w, "DeleteByHospital", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *TimetableHandler) ListByDoctor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, to, err := parseRange(r)
	if err != nil {
		h.writeErr(w, "ListByDoctor", err)
		return
	}

	windows, err := h.service.ListByDoctor(r.Context(), ps.ByName("doctorId"), from, to)
	if err != nil {
		h.writeErr(w, "ListByDoctor", err)
		return
	}

	if err := httputil.WriteSuccess(w, windows); err != nil {
		h.log.Error("failed to write success response", "handler", "ListByDoctor", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TimetableHandler) ListByHospital(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, to, err := parseRange(r)
	if err != nil {
		h.writeErr(w, "ListByHospital", err)
		return
	}

	windows, err := h.service.ListByHospital(r.Context(), ps.ByName("hospitalId"), from, to)
	if err != nil {
		h.writeErr(w, "ListByHospital", err)
		return
	}

	if err := httputil.WriteSuccess(w, windows); err != nil {
		h.log.Error("failed to write success response", "handler", "ListByHospital", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TimetableHandler) ListByHospitalRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, to, err := parseRange(r)
	if err != nil {
		h.writeErr(w, "ListByHospitalRoom", err)
		return
	}

	windows, err := h.service.ListByHospitalRoom(r.Context(), ps.ByName("hospitalId"), ps.ByName("room"), from, to)
	if err != nil {
		h.writeErr(w, "ListByHospitalRoom", err)
		return
	}

	if err := httputil.WriteSuccess(w, windows); err != nil {
		h.log.Error("failed to write success response", "handler", "ListByHospitalRoom", "operation", "WriteSuccess", "error", err)
	}
}

// parseRange reads the mandatory from/to query parameters. Listings are
// always range-scoped; an unbounded listing is not offered.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")

	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("Both 'from' and 'to' query parameters are required")
	}

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput(fmt.Sprintf("invalid 'from' parameter, must be RFC3339: %s", fromStr))
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput(fmt.Sprintf("invalid 'to' parameter, must be RFC3339: %s", toStr))
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("'to' must be after 'from'")
	}

	return from, to, nil
}

func (h *TimetableHandler) writeErr(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *TimetableHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/timetables", h.Create)
	router.PUT("/api/v1/timetables/id/:id", h.Update)
	router.DELETE("/api/v1/timetables/id/:id", h.Delete)
	router.GET("/api/v1/timetables/doctor/:doctorId", h.ListByDoctor)
	router.DELETE("/api/v1/timetables/doctor/:doctorId", h.DeleteByDoctor)
	router.GET("/api/v1/timetables/hospital/:hospitalId", h.ListByHospital)
	router.DELETE("/api/v1/timetables/hospital/:hospitalId", h.DeleteByHospital)
	router.GET("/api/v1/timetables/hospital/:hospitalId/room/:room", h.ListByHospitalRoom)
}
