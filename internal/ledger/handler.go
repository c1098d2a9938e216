package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stocktrail/stocktrail/internal/observability"
	"github.com/stocktrail/stocktrail/internal/platform/db"
	"github.com/stocktrail/stocktrail/internal/platform/httpx"
	"github.com/stocktrail/stocktrail/internal/shared"
)

// Handler wires HTTP endpoints for the ledger module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/adjustments", h.handleApply)
	r.Get("/adjustments", h.handleListAdjustments)
	r.Get("/stock-levels", h.handleListLevels)
	r.Get("/stock-levels/at", h.handleGetLevel)
	r.Get("/ledger/verify", h.handleVerify)
}

type applyRequest struct {
	ProductID  int64  `json:"product_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Delta      int64  `json:"quantity_delta" validate:"required"`
	Type       string `json:"adjustment_type" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
}

type applyResponse struct {
	AdjustmentID int64 `json:"adjustment_id"`
	NewQuantity  int64 `json:"new_quantity"`
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor identity required")
		return
	}
	var req applyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Apply(r.Context(), ApplyInput{
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Delta:      req.Delta,
		Type:       AdjustmentType(req.Type),
		Reason:     req.Reason,
		ActorID:    actorID,
	})
	if err != nil {
		h.logger.Error("apply adjustment failed", slog.Any("error", err),
			slog.Int64("product_id", req.ProductID), slog.Int64("location_id", req.LocationID))
		h.respondError(w, err)
		return
	}
	h.metrics.ObserveAdjustment(req.Type)
	httpx.JSON(w, http.StatusCreated, applyResponse{AdjustmentID: result.AdjustmentID, NewQuantity: result.NewQuantity})
}

type adjustmentResponse struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	LocationID    int64     `json:"location_id"`
	QuantityDelta int64     `json:"quantity_delta"`
	Type          string    `json:"adjustment_type"`
	Reason        string    `json:"reason"`
	ActorID       int64     `json:"actor_id"`
	TransferID    int64     `json:"transfer_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *Handler) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		ProductID:  queryInt64(r, "product_id"),
		LocationID: queryInt64(r, "location_id"),
	}
	if filter.ProductID == 0 || filter.LocationID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id and location_id are required")
		return
	}
	var ok bool
	if filter.From, ok = queryTime(r, "from"); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
		return
	}
	if filter.To, ok = queryTime(r, "to"); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
		return
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.Add(24*time.Hour - time.Nanosecond)
	}
	filter.Limit = int(queryInt64(r, "limit"))
	adjustments, err := h.service.ListAdjustments(r.Context(), filter)
	if err != nil {
		h.logger.Error("list adjustments failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	out := make([]adjustmentResponse, 0, len(adjustments))
	for _, adj := range adjustments {
		out = append(out, adjustmentResponse{
			ID:            adj.ID,
			ProductID:     adj.ProductID,
			LocationID:    adj.LocationID,
			QuantityDelta: adj.QuantityDelta,
			Type:          string(adj.Type),
			Reason:        adj.Reason,
			ActorID:       adj.ActorID,
			TransferID:    adj.TransferID,
			CreatedAt:     adj.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"adjustments": out})
}

type levelResponse struct {
	ProductID  int64      `json:"product_id"`
	LocationID int64      `json:"location_id"`
	Quantity   int64      `json:"quantity"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

func (h *Handler) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	productID := queryInt64(r, "product_id")
	locationID := queryInt64(r, "location_id")
	if productID == 0 || locationID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id and location_id are required")
		return
	}
	level, err := h.service.GetStockLevel(r.Context(), productID, locationID)
	if err != nil {
		h.logger.Error("get stock level failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	resp := levelResponse{ProductID: level.ProductID, LocationID: level.LocationID, Quantity: level.Quantity}
	if !level.UpdatedAt.IsZero() {
		resp.UpdatedAt = &level.UpdatedAt
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListLevels(w http.ResponseWriter, r *http.Request) {
	filter := LevelFilter{
		ProductID:    queryInt64(r, "product_id"),
		LocationID:   queryInt64(r, "location_id"),
		BelowMinimum: r.URL.Query().Get("below_minimum") == "true",
		Limit:        int(queryInt64(r, "limit")),
	}
	levels, err := h.service.ListStockLevels(r.Context(), filter)
	if err != nil {
		h.logger.Error("list stock levels failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	out := make([]levelResponse, 0, len(levels))
	for _, level := range levels {
		updated := level.UpdatedAt
		out = append(out, levelResponse{ProductID: level.ProductID, LocationID: level.LocationID, Quantity: level.Quantity, UpdatedAt: &updated})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock_levels": out})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	productID := queryInt64(r, "product_id")
	locationID := queryInt64(r, "location_id")
	if productID == 0 || locationID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id and location_id are required")
		return
	}
	result, err := h.service.Verify(r.Context(), productID, locationID)
	if err != nil && !errors.Is(err, ErrLedgerDivergence) {
		h.logger.Error("verify failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if !result.Consistent {
		h.logger.Error("ledger divergence detected",
			slog.Int64("product_id", productID), slog.Int64("location_id", locationID),
			slog.Int64("stored", result.Stored), slog.Int64("recomputed", result.Recomputed))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":  result.ProductID,
		"location_id": result.LocationID,
		"stored":      result.Stored,
		"recomputed":  result.Recomputed,
		"consistent":  result.Consistent,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidType), errors.Is(err, ErrTransferRefRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, db.ErrContention):
		httpx.Problem(w, http.StatusConflict, "Contention", "write conflict, please retry")
	case errors.Is(err, ErrLedgerDivergence):
		httpx.Problem(w, http.StatusInternalServerError, "Ledger Divergence", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func queryInt64(r *http.Request, key string) int64 {
	value, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return value
}

func queryTime(r *http.Request, key string) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
