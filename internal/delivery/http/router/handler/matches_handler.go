package handler

import (
	"net/http"
	"strconv"
	"time"

	"mandi/internal/delivery/http/response"
	"mandi/internal/usecase"

	"github.com/labstack/echo/v4"
)

// MatchesHandler serves the sorted proximity set and on-demand delivery
// quotes.
type MatchesHandler struct {
	prox     usecase.ProximityUsecase
	delivery usecase.DeliveryUsecase
}

// NewMatchesHandler creates a new MatchesHandler.
func NewMatchesHandler(prox usecase.ProximityUsecase, delivery usecase.DeliveryUsecase) *MatchesHandler {
	return &MatchesHandler{
		prox:     prox,
		delivery: delivery,
	}
}

// GetMatches returns the current counterparties sorted by distance. With an
// order_value query parameter every match is annotated with a delivery quote.
func (h *MatchesHandler) GetMatches(c echo.Context) error {
	rawValue := c.QueryParam("order_value")
	if rawValue == "" {
		return response.Success(c, http.StatusOK, h.prox.Matches())
	}

	orderValue, err := strconv.ParseFloat(rawValue, 64)
	if err != nil || orderValue < 0 {
		return response.BadRequest(c, "INVALID_ORDER_VALUE", "order_value must be a non-negative number")
	}

	return response.Success(c, http.StatusOK, h.prox.QuotedMatches(orderValue))
}

// GetQuote computes a standalone delivery quote for an arbitrary distance,
// using the session's current conditions.
func (h *MatchesHandler) GetQuote(c echo.Context) error {
	distance, err := strconv.ParseFloat(c.QueryParam("distance"), 64)
	if err != nil || distance < 0 {
		return response.BadRequest(c, "INVALID_DISTANCE", "distance must be a non-negative number of meters")
	}

	orderValue := 0.0
	if raw := c.QueryParam("order_value"); raw != "" {
		orderValue, err = strconv.ParseFloat(raw, 64)
		if err != nil || orderValue < 0 {
			return response.BadRequest(c, "INVALID_ORDER_VALUE", "order_value must be a non-negative number")
		}
	}

	quote := h.delivery.Quote(distance, orderValue, h.prox.Conditions(), time.Now())

	return response.Success(c, http.StatusOK, quote)
}
