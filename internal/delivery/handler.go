package delivery

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/fieldops/internal/network"
	"github.com/odyssey-erp/fieldops/internal/platform/httpx"
	"github.com/odyssey-erp/fieldops/internal/shared"
)

// HandlerConfig tunes the courier endpoints.
type HandlerConfig struct {
	GeofenceRadius     float64
	HistoryDefaultDays int
	Now                func() time.Time
}

// Handler exposes a courier's order lifecycle over JSON.
type Handler struct {
	logger    *slog.Logger
	registry  *Registry
	idem      *shared.IdempotencyStore
	validator *validator.Validate
	cfg       HandlerConfig
}

// NewHandler builds Handler instance. A nil idempotency store disables
// Idempotency-Key handling.
func NewHandler(logger *slog.Logger, registry *Registry, idem *shared.IdempotencyStore, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HistoryDefaultDays <= 0 {
		cfg.HistoryDefaultDays = 7
	}
	return &Handler{
		logger:    logger,
		registry:  registry,
		idem:      idem,
		validator: validator.New(),
		cfg:       cfg,
	}
}

// MountRoutes registers delivery order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/state", h.state)
	r.Post("/refresh", h.refresh)
	r.Post("/date", h.selectDate)
	r.Put("/filter", h.selectFilter)

	r.Get("/orders", h.listOrders)
	r.Get("/stats", h.stats)
	r.Get("/orders/{id}", h.showOrder)
	r.Get("/orders/{id}/completion", h.completionDraft)
	r.Get("/orders/{id}/geofence", h.geofence)

	r.Post("/orders/{id}/start", h.start)
	r.Post("/orders/{id}/complete", h.complete)
	r.Post("/orders/{id}/fail", h.fail)

	r.Get("/history", h.history)
	r.Get("/lifetime", h.lifetime)
}

// manager resolves the requesting courier's manager and makes sure the
// selected day has been fetched at least once.
func (h *Handler) manager(w http.ResponseWriter, r *http.Request) (*Manager, bool) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, false
	}
	m, err := h.registry.Get(Identity{UserID: principal.UserID, SalesmanID: principal.SalesmanID})
	if err != nil {
		h.respondError(w, r, err)
		return nil, false
	}
	if err := m.EnsureLoaded(r.Context()); err != nil {
		h.respondError(w, r, err)
		return nil, false
	}
	return m, true
}

// ============================================================================
// SELECTION
// ============================================================================

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, m.State())
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	source, err := m.Fetch(r.Context(), true)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, FetchResponse{Source: source, State: m.State()})
}

func (h *Handler) selectDate(w http.ResponseWriter, r *http.Request) {
	var req DateRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	source, err := m.SetDate(r.Context(), req.Date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, FetchResponse{Source: source, State: m.State()})
}

func (h *Handler) selectFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	m.SetFilter(ParseFilter(req.Status))
	httpx.JSON(w, http.StatusOK, m.State())
}

// ============================================================================
// QUERIES
// ============================================================================

// listOrders returns the active filter's orders, narrowed by ?q=. A ?status=
// parameter overrides the active filter for this request only.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	orders := m.Visible(query.Get("q"))
	if raw := query.Get("status"); raw != "" {
		orders = Search(m.Filtered(ParseFilter(raw)), query.Get("q"))
	}
	httpx.JSON(w, http.StatusOK, OrdersResponse{Orders: orders, Stats: m.Stats(), State: m.State()})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, m.Stats())
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	order, found := m.OrderByID(chi.URLParam(r, "id"))
	if !found {
		h.respondError(w, r, ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) completionDraft(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	order, found := m.OrderByID(chi.URLParam(r, "id"))
	if !found {
		h.respondError(w, r, ErrNotFound)
		return
	}
	items := NewCompletionItems(order)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orderId": order.ID,
		"items":   items,
		"totals":  TotalsOf(items),
	})
}

func (h *Handler) geofence(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "lat and lon are required numbers")
		return
	}
	radius := h.cfg.GeofenceRadius
	if raw := r.URL.Query().Get("radius"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			radius = v
		}
	}
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	order, found := m.OrderByID(chi.URLParam(r, "id"))
	if !found {
		h.respondError(w, r, ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, VerifyLocation(order, lat, lon, radius))
}

// ============================================================================
// TRANSITIONS
// ============================================================================

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := m.StartDelivery(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondOrder(w, r, m, id)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if !h.decode(w, r, &req) {
		return
	}
	completion := req.Completion()
	if err := ValidateCompletion(completion); err != nil {
		h.respondError(w, r, err)
		return
	}
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	release, ok := h.claim(w, r, "delivery.complete."+id)
	if !ok {
		return
	}
	result, err := m.CompleteDelivery(r.Context(), id, completion)
	if err != nil {
		release()
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request) {
	var req FailRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	release, ok := h.claim(w, r, "delivery.fail."+id)
	if !ok {
		return
	}
	if err := m.MarkFailed(r.Context(), id, req.Reason); err != nil {
		release()
		h.respondError(w, r, err)
		return
	}
	h.respondOrder(w, r, m, id)
}

// ============================================================================
// HISTORY
// ============================================================================

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	from, to := HistoryRange(h.cfg.Now(), h.cfg.HistoryDefaultDays)
	query := r.URL.Query()
	if raw := query.Get("from"); raw != "" {
		parsed, err := time.Parse(DateLayout, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := query.Get("to"); raw != "" {
		parsed, err := time.Parse(DateLayout, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	hist, err := m.History(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, hist)
}

func (h *Handler) lifetime(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	stats, err := m.Lifetime(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// claim reserves the request's Idempotency-Key. The returned func releases
// the key so a failed attempt can be retried with it.
func (h *Handler) claim(w http.ResponseWriter, r *http.Request, module string) (func(), bool) {
	key := strings.TrimSpace(r.Header.Get(shared.IdempotencyHeader))
	if h.idem == nil || key == "" {
		return func() {}, true
	}
	err := h.idem.CheckAndInsert(r.Context(), key, module)
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		return nil, false
	}
	if err != nil {
		// Fail open: the write proceeds unguarded.
		h.logger.Warn("idempotency check skipped", slog.String("module", module), slog.Any("error", err))
		return func() {}, true
	}
	return func() {
		if err := h.idem.Delete(context.WithoutCancel(r.Context()), key, module); err != nil {
			h.logger.Warn("idempotency release", slog.String("module", module), slog.Any("error", err))
		}
	}, true
}

func (h *Handler) respondOrder(w http.ResponseWriter, r *http.Request, m *Manager, id string) {
	order, found := m.OrderByID(id)
	if !found {
		h.respondError(w, r, ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoCourier):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrTerminal):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInconsistentTotals),
		errors.Is(err, ErrEmptyReason),
		errors.Is(err, ErrUnknownItem),
		errors.Is(err, ErrMissingReturnReason),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidPayment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, network.ErrOffline):
		httpx.Problem(w, http.StatusServiceUnavailable, "Offline", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.Problem(w, http.StatusGatewayTimeout, "Timeout", err.Error())
	default:
		h.logger.Error("delivery request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
