// Package localcache provides the fire-and-forget key-value store used to keep
// the courier session and the last fetched order snapshot available offline.
package localcache

import "context"

// Keys used by the field app.
const (
	KeyUserSession    = "user_session"
	KeyDeliveryOrders = "delivery_orders_cache"
	KeyLastSync       = "last_sync_timestamp"
	KeyProducts       = "offline_products"
	KeyStores         = "offline_stores"
	KeyOrders         = "offline_orders"
	KeyPendingOrders  = "pending_offline_orders"
	KeyDistributions  = "offline_distributions"
)

// Store persists JSON encoded values. Implementations swallow and log failures:
// Get reports a miss, and Set, Remove and Clear return nothing.
type Store interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
	Remove(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// Scoper hands out stores isolated per owner (one namespace per courier).
type Scoper interface {
	Scope(owner string) Store
}
