package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/fieldops/internal/localcache"
)

// FetchSource names what served a fetch.
type FetchSource string

const (
	FetchRemote  FetchSource = "remote"  // Fresh orders from the remote
	FetchCache   FetchSource = "cache"   // Offline, cached snapshot only
	FetchEmpty   FetchSource = "empty"   // No bookers assigned
	FetchFailed  FetchSource = "failed"  // Remote error, prior state kept
	FetchSkipped FetchSource = "skipped" // Identity unresolved or date changed mid-fetch
)

const defaultItemConcurrency = 4

// ItemOutcome is the result of one per-item write.
type ItemOutcome struct {
	ItemID string `json:"itemId"`
	Err    error  `json:"-"`
	Error  string `json:"error,omitempty"`
}

// CompletionResult reports a completed order and the fate of each item write.
// The order record is final even when some items failed.
type CompletionResult struct {
	OrderID string        `json:"orderId"`
	Status  Status        `json:"status"`
	BatchID string        `json:"batchId"`
	Items   []ItemOutcome `json:"items"`
}

// Failed returns the item writes that did not land.
func (r *CompletionResult) Failed() []ItemOutcome {
	var failed []ItemOutcome
	for _, it := range r.Items {
		if it.Err != nil {
			failed = append(failed, it)
		}
	}
	return failed
}

// OK reports whether every item write landed.
func (r *CompletionResult) OK() bool {
	return len(r.Failed()) == 0
}

// State is a read-only view of the manager's flags.
type State struct {
	SelectedDate string      `json:"selectedDate"`
	ActiveFilter Filter      `json:"activeFilter"`
	Loading      bool        `json:"loading"`
	Refreshing   bool        `json:"refreshing"`
	OrderCount   int         `json:"orderCount"`
	LastSource   FetchSource `json:"lastSource,omitempty"`
	FetchedAt    *time.Time  `json:"fetchedAt,omitempty"`
}

// Config carries a manager's collaborators.
type Config struct {
	Remote          Remote
	Assignments     AssignmentSource
	Cache           localcache.Store
	Network         Connectivity
	Resyncer        ItemResyncer
	Metrics         *Metrics
	Logger          *slog.Logger
	Now             func() time.Time
	ItemConcurrency int
}

// Manager owns one courier's orders for the selected day.
type Manager struct {
	identity    Identity
	remote      Remote
	assignments AssignmentSource
	cache       localcache.Store
	network     Connectivity
	resyncer    ItemResyncer
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
	itemLimit   int

	group singleflight.Group

	mu           sync.RWMutex
	orders       []Order
	index        map[string]int
	selectedDate string
	activeFilter Filter
	loading      bool
	refreshing   bool
	lastSource   FetchSource
	fetchedAt    time.Time
	assigned     *Assignments
	scope        *Scope
}

// NewManager builds a manager for identity. Missing optional collaborators
// default to an in-memory cache, an always-connected network and no resync.
func NewManager(identity Identity, cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	cache := cfg.Cache
	if cache == nil {
		cache = localcache.NewMemoryStore(logger).Scope(identity.UserID)
	}
	var network Connectivity = alwaysConnected{}
	if cfg.Network != nil {
		network = cfg.Network
	}
	limit := cfg.ItemConcurrency
	if limit <= 0 {
		limit = defaultItemConcurrency
	}
	return &Manager{
		identity:     identity,
		remote:       cfg.Remote,
		assignments:  cfg.Assignments,
		cache:        cache,
		network:      network,
		resyncer:     cfg.Resyncer,
		metrics:      cfg.Metrics,
		logger:       logger.With(slog.String("courier", identity.SalesmanID)),
		now:          now,
		itemLimit:    limit,
		index:        map[string]int{},
		selectedDate: now().Format(DateLayout),
		activeFilter: FilterAll,
	}
}

// EnsureLoaded runs the initial fetch if the manager has not fetched yet.
func (m *Manager) EnsureLoaded(ctx context.Context) error {
	m.mu.RLock()
	loaded := m.lastSource != ""
	m.mu.RUnlock()
	if loaded {
		return nil
	}
	_, err := m.Fetch(ctx, false)
	return err
}

// Identity returns the courier the manager acts for.
func (m *Manager) Identity() Identity {
	return m.identity
}

// ============================================================================
// FETCH
// ============================================================================

// Fetch loads the selected day's orders. Concurrent calls for the same day and
// mode share one in-flight fetch. Remote failures never surface here: they are
// logged and the previous state stays in place. The only error is ctx's.
func (m *Manager) Fetch(ctx context.Context, refresh bool) (FetchSource, error) {
	if !m.identity.Resolved() {
		return FetchSkipped, nil
	}
	date := m.SelectedDate()
	key := date
	if refresh {
		key += ":refresh"
	}
	shared := context.WithoutCancel(ctx)
	resultChan := m.group.DoChan(key, func() (interface{}, error) {
		return m.fetch(shared, date, refresh), nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultChan:
		return res.Val.(FetchSource), nil
	}
}

func (m *Manager) fetch(ctx context.Context, date string, refresh bool) FetchSource {
	m.setBusy(refresh, true)
	defer m.setBusy(refresh, false)

	source := m.doFetch(ctx, date, refresh)
	m.mu.Lock()
	m.lastSource = source
	m.mu.Unlock()
	m.metrics.fetch(source)
	return source
}

func (m *Manager) doFetch(ctx context.Context, date string, refresh bool) FetchSource {
	if !refresh {
		var snap Snapshot
		if m.cache.Get(ctx, localcache.KeyDeliveryOrders, &snap) {
			m.replace(snap.Orders, snap.FetchedAt)
		}
	}

	if !m.network.IsConnected() {
		return FetchCache
	}

	scope, err := m.resolveScope(ctx, refresh)
	if err != nil {
		m.logger.Error("resolve delivery scope", slog.Any("error", err))
		return FetchFailed
	}

	if len(scope.BookerUserIDs) == 0 {
		if !m.isSelected(date) {
			return FetchSkipped
		}
		fetchedAt := m.now()
		m.replace([]Order{}, fetchedAt)
		m.saveSnapshot(ctx)
		return FetchEmpty
	}

	orders, err := m.remote.ListOrders(ctx, ListQuery{
		Date:            date,
		BookerUserIDs:   scope.BookerUserIDs,
		DistributionIDs: scope.DistributionIDs,
	})
	if err != nil {
		m.logger.Error("fetch delivery orders", slog.String("date", date), slog.Any("error", err))
		return FetchFailed
	}
	if !m.isSelected(date) {
		m.logger.Debug("discard fetch for stale date", slog.String("date", date))
		return FetchSkipped
	}

	fetchedAt := m.now()
	m.replace(orders, fetchedAt)
	m.saveSnapshot(ctx)
	m.cache.Set(ctx, localcache.KeyLastSync, fetchedAt)
	return FetchRemote
}

// resolveScope loads assignments (once, or again on refresh) and resolves
// booker user ids on every call.
func (m *Manager) resolveScope(ctx context.Context, reload bool) (Scope, error) {
	m.mu.RLock()
	assigned := m.assigned
	m.mu.RUnlock()

	if assigned == nil || reload {
		if m.assignments == nil {
			assigned = &Assignments{}
		} else {
			a, err := m.assignments.Assignments(ctx, m.identity.UserID)
			if err != nil {
				return Scope{}, fmt.Errorf("load assignments: %w", err)
			}
			assigned = &a
		}
	}

	bookers, err := m.remote.ResolveBookers(ctx, assigned.BookerSalesmanIDs)
	if err != nil {
		return Scope{}, err
	}
	scope := Scope{
		CourierSalesmanID: m.identity.SalesmanID,
		BookerUserIDs:     make([]string, 0, len(bookers)),
		DistributionIDs:   append([]string(nil), assigned.DistributionIDs...),
	}
	for _, b := range bookers {
		scope.BookerUserIDs = append(scope.BookerUserIDs, b.UserID)
	}

	m.mu.Lock()
	m.assigned = assigned
	m.scope = &scope
	m.mu.Unlock()
	return scope, nil
}

func (m *Manager) currentScope(ctx context.Context) (Scope, error) {
	m.mu.RLock()
	scope := m.scope
	m.mu.RUnlock()
	if scope != nil {
		return *scope, nil
	}
	return m.resolveScope(ctx, false)
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// StartDelivery moves an order out for delivery.
func (m *Manager) StartDelivery(ctx context.Context, orderID string) error {
	return m.transition(ctx, orderID, StartPatch(m.identity.SalesmanID))
}

// MarkFailed marks an order failed with a non-empty reason.
func (m *Manager) MarkFailed(ctx context.Context, orderID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrEmptyReason
	}
	return m.transition(ctx, orderID, FailurePatch(m.identity.SalesmanID, reason))
}

// CompleteDelivery records proof of delivery. The order record is written
// first; on success each item is written independently and failures are
// reported in the result and queued for resync rather than returned.
func (m *Manager) CompleteDelivery(ctx context.Context, orderID string, c Completion) (*CompletionResult, error) {
	current, err := m.writable(orderID)
	if err != nil {
		return nil, err
	}
	items, err := MergeCompletionItems(current, c.Items)
	if err != nil {
		return nil, err
	}
	// Reconciliation can turn a submitted zero into a return.
	if err := RequireReturnReasons(items); err != nil {
		return nil, err
	}
	patch, err := CompletionPatch(m.identity.SalesmanID, items, c.CollectedAmount, c.PaymentMethod, c.Notes, m.now())
	if err != nil {
		return nil, err
	}
	if err := m.writeOrder(ctx, orderID, patch); err != nil {
		return nil, err
	}

	// The order record has landed; the item phase outlives the caller.
	detached := context.WithoutCancel(ctx)
	result := &CompletionResult{
		OrderID: orderID,
		Status:  patch.Status,
		BatchID: uuid.NewString(),
		Items:   m.writeItems(detached, orderID, items),
	}
	for _, failed := range result.Failed() {
		m.enqueueResync(detached, result.BatchID, orderID, items, failed.ItemID)
	}

	m.applyPatch(orderID, patch)
	m.saveSnapshot(detached)
	return result, nil
}

func (m *Manager) transition(ctx context.Context, orderID string, p Patch) error {
	if _, err := m.writable(orderID); err != nil {
		return err
	}
	if err := m.writeOrder(ctx, orderID, p); err != nil {
		return err
	}
	m.applyPatch(orderID, p)
	m.saveSnapshot(ctx)
	return nil
}

// writable returns the loaded order if a transition may start from it.
func (m *Manager) writable(orderID string) (Order, error) {
	if !m.identity.Resolved() {
		return Order{}, ErrNoCourier
	}
	current, ok := m.OrderByID(orderID)
	if !ok {
		return Order{}, ErrNotFound
	}
	if current.DeliveryStatus.IsTerminal() {
		return Order{}, ErrTerminal
	}
	return current, nil
}

func (m *Manager) writeOrder(ctx context.Context, orderID string, p Patch) error {
	scope, err := m.currentScope(ctx)
	if err == nil {
		err = m.remote.UpdateOrder(ctx, scope, orderID, p)
	}
	m.metrics.transition(p.Status, err)
	if err != nil {
		m.logger.Error("update delivery order",
			slog.String("order_id", orderID),
			slog.String("status", string(p.Status)),
			slog.Any("error", err))
		return fmt.Errorf("update delivery order %s: %w", orderID, err)
	}
	return nil
}

func (m *Manager) writeItems(ctx context.Context, orderID string, items []Item) []ItemOutcome {
	outcomes := make([]ItemOutcome, len(items))
	var g errgroup.Group
	g.SetLimit(m.itemLimit)
	for i, it := range items {
		g.Go(func() error {
			err := m.remote.UpdateItem(ctx, orderID, ItemUpdateOf(it))
			m.metrics.itemWrite(err)
			outcomes[i] = ItemOutcome{ItemID: it.ID, Err: err}
			if err != nil {
				outcomes[i].Error = err.Error()
				m.logger.Warn("update delivery order item",
					slog.String("order_id", orderID),
					slog.String("item_id", it.ID),
					slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (m *Manager) enqueueResync(ctx context.Context, batchID, orderID string, items []Item, itemID string) {
	if m.resyncer == nil {
		return
	}
	for _, it := range items {
		if it.ID != itemID {
			continue
		}
		if err := m.resyncer.EnqueueItemResync(ctx, batchID, orderID, ItemUpdateOf(it)); err != nil {
			m.logger.Error("enqueue item resync",
				slog.String("order_id", orderID),
				slog.String("item_id", itemID),
				slog.Any("error", err))
		}
		return
	}
}

// ============================================================================
// DERIVED QUERIES
// ============================================================================

// Orders returns a copy of the loaded orders in fetch order.
func (m *Manager) Orders() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, len(m.orders))
	for i, o := range m.orders {
		out[i] = o.Clone()
	}
	return out
}

// Filtered returns the loaded orders with the given status.
func (m *Manager) Filtered(filter Filter) []Order {
	return FilterByStatus(m.Orders(), filter)
}

// Visible applies the active filter and then query.
func (m *Manager) Visible(query string) []Order {
	return Search(m.Filtered(m.ActiveFilter()), query)
}

// Stats aggregates the loaded orders.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ComputeStats(m.orders)
}

// OrderByID looks up a loaded order.
func (m *Manager) OrderByID(id string) (Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return Order{}, false
	}
	return m.orders[i].Clone(), true
}

// ============================================================================
// SELECTION STATE
// ============================================================================

// SelectedDate returns the day being managed.
func (m *Manager) SelectedDate() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectedDate
}

// SetDate selects another day and fetches it.
func (m *Manager) SetDate(ctx context.Context, date string) (FetchSource, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("select date: %w", err)
	}
	m.mu.Lock()
	m.selectedDate = day.Format(DateLayout)
	m.mu.Unlock()
	return m.Fetch(ctx, false)
}

// ActiveFilter returns the status filter in use.
func (m *Manager) ActiveFilter() Filter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeFilter
}

// SetFilter changes the status filter.
func (m *Manager) SetFilter(f Filter) {
	m.mu.Lock()
	m.activeFilter = f
	m.mu.Unlock()
}

// State returns the manager flags.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := State{
		SelectedDate: m.selectedDate,
		ActiveFilter: m.activeFilter,
		Loading:      m.loading,
		Refreshing:   m.refreshing,
		OrderCount:   len(m.orders),
		LastSource:   m.lastSource,
	}
	if !m.fetchedAt.IsZero() {
		at := m.fetchedAt
		st.FetchedAt = &at
	}
	return st
}

// ============================================================================
// INTERNAL STATE
// ============================================================================

func (m *Manager) setBusy(refresh, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if refresh {
		m.refreshing = on
	} else {
		m.loading = on
	}
}

func (m *Manager) isSelected(date string) bool {
	return m.SelectedDate() == date
}

func (m *Manager) replace(orders []Order, fetchedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = make([]Order, len(orders))
	m.index = make(map[string]int, len(orders))
	for i, o := range orders {
		m.orders[i] = o.Clone()
		m.index[o.ID] = i
	}
	m.fetchedAt = fetchedAt
}

func (m *Manager) applyPatch(orderID string, p Patch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[orderID]
	if !ok {
		return
	}
	m.orders[i] = Apply(m.orders[i], p)
}

func (m *Manager) saveSnapshot(ctx context.Context) {
	m.mu.RLock()
	snap := Snapshot{
		Date:      m.selectedDate,
		FetchedAt: m.fetchedAt,
		Orders:    make([]Order, len(m.orders)),
	}
	copy(snap.Orders, m.orders)
	m.mu.RUnlock()
	m.cache.Set(ctx, localcache.KeyDeliveryOrders, snap)
}
