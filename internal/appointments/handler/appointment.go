package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"medsched/internal/appointments/service"
	apperrors "medsched/pkg/errors"
	httputil "medsched/pkg/http"
	"medsched/pkg/logger"
	"medsched/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type AppointmentHandler struct {
	service service.AppointmentService
	log     *logger.Logger
}

func NewAppointmentHandler(service service.AppointmentService, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		log:     log,
	}
}

type bookingRequest struct {
	Time time.Time `json:"time"`
	// Optional; defaults to the authenticated principal. Only schedulers
	// may set it to someone else.
	PatientID string `json:"patient_id,omitempty"`
}

func (h *AppointmentHandler) FreeSlots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	free, err := h.service.FreeSlots(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeErr(w, "FreeSlots", err)
		return
	}

	if err := httputil.WriteSuccess(w, free); err != nil {
		h.log.Error("failed to write success response", "handler", "FreeSlots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeErr(w, "Book", apperrors.Unauthorized("Authentication required"))
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Book", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	appointment, err := h.service.Book(r.Context(), principal, ps.ByName("id"), req.Time, req.PatientID)
	if err != nil {
		h.writeErr(w, "Book", err)
		return
	}

	if err := httputil.WriteCreated(w, appointment); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeErr(w, "Cancel", apperrors.Unauthorized("Authentication required"))
		return
	}

	if err := h.service.Cancel(r.Context(), principal, ps.ByName("id")); err != nil {
		h.writeErr(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *AppointmentHandler) writeErr(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AppointmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/timetables/id/:id/appointments", h.FreeSlots)
	router.POST("/api/v1/timetables/id/:id/appointments", h.Book)
	router.DELETE("/api/v1/appointments/id/:id", h.Cancel)
}
