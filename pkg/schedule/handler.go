package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klokku/slotfinder/internal/rest"
	log "github.com/sirupsen/logrus"
)

type EventDTO struct {
	Id           string `json:"id,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Start        string `json:"start,omitempty"`
	End          string `json:"end,omitempty"`
	Canceled     bool   `json:"canceled"`
	CreatorEmail string `json:"creatorEmail,omitempty"`
}

type CalendarEntryDTO struct {
	CalendarId string   `json:"calendarId"`
	Free       bool     `json:"free"`
	Event      EventDTO `json:"event"`
}

type Provider interface {
	Provide(ctx context.Context, req Request, dispatcher Dispatcher, callback func(entries []CalendarEntry, err error))
}

type Handler struct {
	provider Provider
}

func NewHandler(provider Provider) *Handler {
	return &Handler{provider}
}

// GetSchedule serves the composed schedule. The response is written on the request
// goroutine once the assembler dispatches its result back to it.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	req, message, details := parseRequest(r)
	if message != "" {
		rest.WriteError(w, http.StatusBadRequest, message, details)
		return
	}

	results := make(chan func(), 1)
	h.provider.Provide(r.Context(), req, DispatcherFunc(func(fn func()) { results <- fn }), func(entries []CalendarEntry, err error) {
		if err != nil {
			writeScheduleError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(entriesToDTO(entries)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	(<-results)()
}

func parseRequest(r *http.Request) (Request, string, string) {
	query := r.URL.Query()
	from, err := time.Parse(time.RFC3339, query.Get("from"))
	if err != nil {
		return Request{}, "Invalid from format", "from must be in RFC3339 format"
	}
	to, err := time.Parse(time.RFC3339, query.Get("to"))
	if err != nil {
		return Request{}, "Invalid to format", "to must be in RFC3339 format"
	}
	timeRange, err := NewTimeRange(from, to)
	if err != nil {
		return Request{}, "Invalid time range", err.Error()
	}

	var revocable bool
	if v := query.Get("revocable"); v != "" {
		revocable, err = strconv.ParseBool(v)
		if err != nil {
			return Request{}, "Invalid revocable value", "revocable must be true or false"
		}
	}

	var calendarIDs []string
	for _, value := range query["calendars"] {
		calendarIDs = append(calendarIDs, strings.Split(value, ",")...)
	}

	return Request{
		CalendarIDs:   calendarIDs,
		TimeRange:     timeRange,
		OnlyRevocable: revocable,
	}, "", ""
}

func writeScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidTimeRange):
		rest.WriteError(w, http.StatusBadRequest, "Invalid time range", err.Error())
	case errors.Is(err, ErrSourceUnauthorized):
		rest.WriteError(w, http.StatusForbidden, "Calendar source is not connected", err.Error())
	case IsRemoteError(err), errors.Is(err, ErrPageLimitExceeded):
		rest.WriteError(w, http.StatusBadGateway, "Failed to fetch calendars", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Debugf("schedule request canceled: %v", err)
		rest.WriteError(w, http.StatusServiceUnavailable, "Request canceled", "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, "Failed to provide schedule", err.Error())
	}
}

func entriesToDTO(entries []CalendarEntry) []CalendarEntryDTO {
	dtos := make([]CalendarEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, CalendarEntryDTO{
			CalendarId: e.CalendarID,
			Free:       e.IsFree(),
			Event:      eventToDTO(e.Event),
		})
	}
	return dtos
}

func eventToDTO(e Event) EventDTO {
	dto := EventDTO{
		Id:           e.ID,
		Summary:      e.Summary,
		Canceled:     e.Canceled,
		CreatorEmail: e.CreatorEmail,
	}
	if e.Start != nil {
		dto.Start = e.Start.Format(time.RFC3339)
	}
	if e.End != nil {
		dto.End = e.End.Format(time.RFC3339)
	}
	return dto
}
