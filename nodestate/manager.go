// Package nodestate serves the approved-node address set and node
// connectivity status, caching in Redis with the vision_data routines as the
// source of truth. Redis being down degrades silently to SQL.
package nodestate

import (
	"context"
	"log"
)

// ApprovedSource is the persisted side of the approved set. Satisfied by
// *store.Store.
type ApprovedSource interface {
	ApprovedNodes(ctx context.Context) ([]string, error)
}

type Manager struct {
	source ApprovedSource
	redis  *RedisStore
}

func NewManager(source ApprovedSource, redis *RedisStore) *Manager {
	return &Manager{source: source, redis: redis}
}

// ApprovedAddresses returns the approved-node set, preferring the cache.
// A cache miss refreshes from SQL; a SQL failure propagates to the caller,
// which decides the policy (the access gate fails open, the poller skips the
// cycle).
func (m *Manager) ApprovedAddresses(ctx context.Context) ([]string, error) {
	if m.redis != nil {
		if addrs, err := m.redis.GetApproved(ctx); err == nil && len(addrs) > 0 {
			return addrs, nil
		}
	}

	addrs, err := m.source.ApprovedNodes(ctx)
	if err != nil {
		return nil, err
	}
	if m.redis != nil {
		if err := m.redis.SetApproved(ctx, addrs); err != nil {
			log.Printf("nodestate: cache approved set: %v", err)
		}
	}
	return addrs, nil
}

// Invalidate drops the cached approved set. Called after a registration
// handshake may have added a new address.
func (m *Manager) Invalidate(ctx context.Context) {
	if m.redis == nil {
		return
	}
	if err := m.redis.InvalidateApproved(ctx); err != nil {
		log.Printf("nodestate: invalidate approved set: %v", err)
	}
}

// MarkNodeStatus mirrors a node's connectivity status into the cache for
// dashboards. Best-effort.
func (m *Manager) MarkNodeStatus(ctx context.Context, addr, status string) {
	if m.redis == nil {
		return
	}
	if err := m.redis.SetNodeStatus(ctx, addr, status); err != nil {
		log.Printf("nodestate: mark node %s: %v", addr, err)
	}
}

// CacheHealthy reports whether Redis answers a ping.
func (m *Manager) CacheHealthy(ctx context.Context) bool {
	if m.redis == nil {
		return false
	}
	return m.redis.Ping(ctx) == nil
}
