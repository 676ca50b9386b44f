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

// StallHandler renders the session's stall card and resolves scanned cards
// against the live match set.
type StallHandler struct {
	cfg   *config.Config
	cards service.StallCardService
	prox  usecase.ProximityUsecase
}

// NewStallHandler creates a new StallHandler.
func NewStallHandler(cfg *config.Config, cards service.StallCardService, prox usecase.ProximityUsecase) *StallHandler {
	return &StallHandler{
		cfg:   cfg,
		cards: cards,
		prox:  prox,
	}
}

// GetStallCard renders the vendor session's own stall card as a PNG.
func (h *StallHandler) GetStallCard(c echo.Context) error {
	if entity.Role(h.cfg.Session.Role) != entity.RoleVendor {
		return response.BadRequest(c, "NOT_A_VENDOR", "only vendor sessions have a stall card")
	}
	if h.cfg.Session.UserID == "" {
		return response.BadRequest(c, "MISSING_USER_ID", "session.userId must be configured")
	}

	png, err := h.cards.GenerateStallQR(h.cfg.Session.UserID)
	if err != nil {
		return response.InternalServerError(c, "STALL_CARD_FAILED", "could not render the stall card")
	}

	return c.Blob(http.StatusOK, "image/png", png)
}

type stallScanRequest struct {
	Data string `json:"data"`
}

type stallScanResponse struct {
	VendorID string                     `json:"vendor_id"`
	Known    bool                       `json:"known"`
	Record   *entity.CounterpartyRecord `json:"record,omitempty"`
}

// PostStallScan decodes a scanned stall card and reports whether that vendor
// is currently in the match set, with its live record when it is.
func (h *StallHandler) PostStallScan(c echo.Context) error {
	var req stallScanRequest
	if err := c.Bind(&req); err != nil || req.Data == "" {
		return response.BadRequest(c, "INVALID_SCAN", "data must hold the scanned card payload")
	}

	vendorID, err := h.cards.ParseStallQR(req.Data)
	if err != nil {
		return response.BadRequest(c, "INVALID_STALL_CARD", "the scanned payload is not a stall card")
	}

	result := stallScanResponse{VendorID: vendorID}
	for _, rec := range h.prox.Matches() {
		if rec.ID == vendorID {
			matched := rec
			result.Known = true
			result.Record = &matched

			break
		}
	}

	return response.Success(c, http.StatusOK, result)
}
