package handlers

import (
	"net/http"
	"strconv"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/response"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

type EventsHandler struct {
	reader ports.EventReader
	log    *logger.Logger
}

func NewEventsHandler(reader ports.EventReader, log *logger.Logger) *EventsHandler {
	return &EventsHandler{
		reader: reader,
		log:    log,
	}
}

type EventsResponse struct {
	Events []star.Event `json:"events"`
	Count  int          `json:"count"`
}

func (h *EventsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxEventLimit {
			response.WriteValidationError(w, "Validation failed", map[string]string{
				"limit": "limit must be between 1 and " + strconv.Itoa(maxEventLimit),
			})
			return
		}
		limit = n
	}

	events, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error("Failed to read events", "error", err)
		response.WriteDomainError(w, err)
		return
	}
	if events == nil {
		events = []star.Event{}
	}

	response.WriteSuccess(w, EventsResponse{Events: events, Count: len(events)})
}
