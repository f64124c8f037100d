package google

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klokku/slotfinder/internal/rest"
)

type CalendarItemDto struct {
	Id      string `json:"id"`
	Summary string `json:"summary"`
	Primary bool   `json:"primary"`
}

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{s}
}

func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.service.ListCalendars(r.Context())
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			rest.WriteError(w, http.StatusForbidden, "Google Calendar is not connected", "")
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, "Failed to list Google calendars", err.Error())
		return
	}

	calendarItems := make([]CalendarItemDto, 0, len(calendars))
	for _, c := range calendars {
		calendarItems = append(calendarItems, toCalendarItemDto(c))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(calendarItems); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func toCalendarItemDto(ci CalendarItem) CalendarItemDto {
	return CalendarItemDto{
		Id:      ci.ID,
		Summary: ci.Summary,
		Primary: ci.Primary,
	}
}
