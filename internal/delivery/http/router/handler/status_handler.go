package handler

import (
	"net/http"

	"mandi/config"
	"mandi/internal/delivery/http/response"
	"mandi/internal/domain/entity"
	"mandi/internal/domain/service"
	"mandi/internal/usecase"

	"github.com/labstack/echo/v4"
)

// StatusHandler exposes the live session state: connection, tracking and the
// conditions currently feeding the economics engine.
type StatusHandler struct {
	cfg     *config.Config
	channel service.RealtimeChannel
	tracker usecase.TrackingUsecase
	prox    usecase.ProximityUsecase
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(cfg *config.Config, channel service.RealtimeChannel, tracker usecase.TrackingUsecase, prox usecase.ProximityUsecase) *StatusHandler {
	return &StatusHandler{
		cfg:     cfg,
		channel: channel,
		tracker: tracker,
		prox:    prox,
	}
}

type statusBody struct {
	Role            string            `json:"role"`
	ConnectionState string            `json:"connection_state"`
	Tracking        bool              `json:"tracking"`
	Conditions      entity.Conditions `json:"conditions"`
	MatchCount      int               `json:"match_count"`
}

// GetStatus returns the session status.
func (h *StatusHandler) GetStatus(c echo.Context) error {
	return response.Success(c, http.StatusOK, statusBody{
		Role:            h.cfg.Session.Role,
		ConnectionState: h.channel.State().String(),
		Tracking:        h.tracker.IsTracking(),
		Conditions:      h.prox.Conditions(),
		MatchCount:      len(h.prox.Matches()),
	})
}

type conditionsRequest struct {
	Weather string `json:"weather"`
	Traffic string `json:"traffic"`
}

// PutConditions replaces the conditions used for delivery quotes.
func (h *StatusHandler) PutConditions(c echo.Context) error {
	var req conditionsRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "BINDING_FAILED", "request body must be JSON")
	}

	weather := entity.Weather(req.Weather)
	traffic := entity.Traffic(req.Traffic)
	if req.Weather != "" && !weather.IsValid() {
		return response.BadRequest(c, "INVALID_WEATHER", "weather must be normal, rain or storm")
	}
	if req.Traffic != "" && !traffic.IsValid() {
		return response.BadRequest(c, "INVALID_TRAFFIC", "traffic must be light, moderate or heavy")
	}

	h.prox.SetConditions(entity.Conditions{Weather: weather, Traffic: traffic})

	return response.Success(c, http.StatusOK, h.prox.Conditions())
}
