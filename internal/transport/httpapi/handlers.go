package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"evently/backend/internal/lock"
	"evently/backend/internal/service/providers"
	"evently/backend/internal/store"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	svc ProviderService
	log *slog.Logger
}

func (h *handlers) searchProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := providers.SearchInput{
		Start:    q.Get("start"),
		End:      q.Get("end"),
		City:     q.Get("city"),
		Category: q.Get("category"),
	}
	if raw := strings.TrimSpace(q.Get("max_price")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_max_price", "max_price must be a number")
			return
		}
		in.MaxPrice = &v
	}

	found, err := h.svc.SearchProviders(r.Context(), in)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Providers: found})
}

func (h *handlers) getProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProvider(r.Context(), chi.URLParam(r, "providerID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(p))
}

func (h *handlers) saveProvider(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	name, _ := body["name"].(string)

	p, err := h.svc.SaveProvider(r.Context(), providers.SaveProviderInput{
		ID:   chi.URLParam(r, "providerID"),
		Name: name,
		Data: body,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.log.Info("provider saved", slog.String("provider_id", p.ID), slog.String("request_id", RequestIDFromContext(r.Context())))
	writeJSON(w, http.StatusOK, toProviderResponse(p))
}

func (h *handlers) getAvailability(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	meta, err := h.svc.GetAvailability(r.Context(), providerID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{ProviderID: providerID, Availability: meta.ToRecord()})
}

func (h *handlers) checkBookable(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	ok, err := h.svc.CheckBookable(r.Context(), providerID, start, end)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookableResponse{ProviderID: providerID, Start: start, End: end, Bookable: ok})
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := providers.ListSlotsInput{
		ProviderID: chi.URLParam(r, "providerID"),
		Date:       q.Get("date"),
	}

	var ok bool
	if in.DurationMinutes, ok = queryInt(w, q.Get("duration"), "duration"); !ok {
		return
	}
	if in.StepMinutes, ok = queryInt(w, q.Get("step"), "step"); !ok {
		return
	}

	slots, err := h.svc.ListSlots(r.Context(), in)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse{ProviderID: in.ProviderID, Date: in.Date, Slots: slots})
}

func (h *handlers) listReservations(w http.ResponseWriter, r *http.Request) {
	rs, err := h.svc.ListReservations(r.Context(), chi.URLParam(r, "providerID"), r.URL.Query().Get("date"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	out := make([]reservationResponse, 0, len(rs))
	for _, res := range rs {
		out = append(out, toReservationResponse(res))
	}
	writeJSON(w, http.StatusOK, reservationsResponse{Reservations: out})
}

func (h *handlers) createReservation(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = r.Header.Get("X-Idempotency-Key")
	}

	res, err := h.svc.CreateReservation(r.Context(), providers.CreateReservationInput{
		ProviderID:     chi.URLParam(r, "providerID"),
		ClientID:       req.ClientID,
		Date:           req.Date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		IdempotencyKey: key,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.log.Info(
		"reservation created",
		slog.String("reservation_id", res.ID.String()),
		slog.String("provider_id", res.ProviderID),
		slog.String("date", res.Day),
		slog.String("start_time", res.StartTime),
		slog.String("end_time", res.EndTime),
	)
	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

func (h *handlers) cancelReservation(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_reservation_id", "reservation id must be a valid UUID")
		return
	}

	if err := h.svc.CancelReservation(r.Context(), providerID, id); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.log.Info("reservation cancelled", slog.String("reservation_id", id.String()), slog.String("provider_id", providerID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *providers.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "invalid_request", vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, store.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, lock.ErrNotAcquired):
		writeError(w, http.StatusLocked, "day_being_booked", "another booking for this day is in progress, please retry shortly")
	default:
		h.log.Error("request failed",
			slog.Any("err", err),
			slog.String("path", r.URL.Path),
			slog.String("request_id", RequestIDFromContext(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, errorResponse{Error: code, Details: details})
}
