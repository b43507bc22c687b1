package httpapi

import (
	"time"

	"github.com/google/uuid"

	"evently/backend/internal/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type providerResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toProviderResponse(p domain.Provider) providerResponse {
	return providerResponse{
		ID:        p.ID,
		Name:      p.Name,
		Data:      p.Data,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type availabilityResponse struct {
	ProviderID   string         `json:"provider_id"`
	Availability map[string]any `json:"availability"`
}

type bookableResponse struct {
	ProviderID string `json:"provider_id"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	Bookable   bool   `json:"bookable"`
}

type slotsResponse struct {
	ProviderID string            `json:"provider_id"`
	Date       string            `json:"date"`
	Slots      []domain.TimeSlot `json:"slots"`
}

type searchResponse struct {
	Providers []domain.ProviderSummary `json:"providers"`
}

type createReservationRequest struct {
	ClientID  string `json:"client_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type reservationResponse struct {
	ID         uuid.UUID `json:"id"`
	ProviderID string    `json:"provider_id"`
	ClientID   string    `json:"client_id"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toReservationResponse(r domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:         r.ID,
		ProviderID: r.ProviderID,
		ClientID:   r.ClientID,
		Date:       r.Day,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type reservationsResponse struct {
	Reservations []reservationResponse `json:"reservations"`
}
