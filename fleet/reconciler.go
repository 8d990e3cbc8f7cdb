package fleet

import (
	"context"
	"fmt"
	"time"

	"visionlink/store"
)

// ReconcilerStore is the persisted surface reconciliation needs.
type ReconcilerStore interface {
	InsertDevices(ctx context.Context, cameras []string, capturedAt string) ([]int64, error)
	UpdateNodeDeviceMap(ctx context.Context, nodeID int64, deviceIDs []int64, status string) error
	DisconnectAllDevices(ctx context.Context, nodeID int64) error
}

// ReconcilerEmitter receives reconciliation outcomes.
type ReconcilerEmitter interface {
	EmitDevicesReconciled(nodeID int64, deviceCount, durationSecs int)
	EmitDevicesCleared(nodeID int64, durationSecs int)
}

type Reconciler struct {
	store   ReconcilerStore
	emitter ReconcilerEmitter
	nowFn   func() time.Time
}

func NewReconciler(s ReconcilerStore, e ReconcilerEmitter) *Reconciler {
	return &Reconciler{store: s, emitter: e, nowFn: time.Now}
}

// Reconcile aligns the registry with a node's self-reported camera list.
// Reported devices are upserted and their membership rows set Connected; an
// empty report disconnects everything the node owns. Devices and membership
// rows are never deleted, only toggled, so a device can disappear from a
// report and come back later. Reconciling the same report twice is a no-op
// for persisted state.
//
// Earlier releases followed the Connected write with an immediate
// Disconnected write for the same id set, leaving fresh reports marked
// offline. Reported devices now stay Connected.
func (r *Reconciler) Reconcile(ctx context.Context, nodeID int64, cameras []string) error {
	start := r.nowFn()

	if len(cameras) == 0 {
		if err := r.store.DisconnectAllDevices(ctx, nodeID); err != nil {
			return fmt.Errorf("disconnect devices for node %d: %w", nodeID, err)
		}
		r.emitter.EmitDevicesCleared(nodeID, r.elapsed(start))
		return nil
	}

	capturedAt := r.nowFn().UTC().Format(time.RFC3339)
	deviceIDs, err := r.store.InsertDevices(ctx, cameras, capturedAt)
	if err != nil {
		return fmt.Errorf("upsert devices for node %d: %w", nodeID, err)
	}
	if err := r.store.UpdateNodeDeviceMap(ctx, nodeID, deviceIDs, store.StatusConnected); err != nil {
		return fmt.Errorf("connect devices for node %d: %w", nodeID, err)
	}

	r.emitter.EmitDevicesReconciled(nodeID, len(deviceIDs), r.elapsed(start))
	return nil
}

func (r *Reconciler) elapsed(start time.Time) int {
	return int(r.nowFn().Sub(start).Round(time.Second) / time.Second)
}
