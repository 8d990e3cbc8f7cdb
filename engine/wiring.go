package engine

import (
	"context"
	"fmt"

	"visionlink/events"
	"visionlink/store"
)

func (e *Engine) wireEventHandlers() {
	// Handshake outcomes: audit with duration, refresh the approved-set
	// cache (a new node may have added an address) and publish.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(NodeConnectedEvent)
		e.audit.Record(fmt.Sprintf("Connected Node: %d Successfully", ev.NodeID), ev.DurationSecs)
		e.nodeState.Invalidate(context.Background())
		e.nodeState.MarkNodeStatus(context.Background(), ev.Addr, store.StatusConnected)
		e.publish("node_connected", ev)
	}, EventNodeConnected)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(NodeRejectedEvent)
		e.audit.Record(ev.Reason, ev.DurationSecs)
	}, EventNodeRejected)

	// Liveness sweep outcomes: mirror connectivity into the cache, publish
	// losses.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(NodeUnreachableEvent)
		e.logFn("engine: node %d (%s) unreachable, demoted", ev.NodeID, ev.Addr)
		e.nodeState.MarkNodeStatus(context.Background(), ev.Addr, store.StatusDisconnected)
		e.publish("node_unreachable", ev)
	}, EventNodeUnreachable)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(NodeReachableEvent)
		e.nodeState.MarkNodeStatus(context.Background(), ev.Addr, store.StatusConnected)
	}, EventNodeReachable)

	// Reconciliation outcomes.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DevicesReconciledEvent)
		e.logFn("engine: device status updated for node %d (%d devices)", ev.NodeID, ev.DeviceCount)
		e.publish("devices_reconciled", ev)
	}, EventDevicesReconciled)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DevicesClearedEvent)
		e.logFn("engine: devices disconnected for node %d", ev.NodeID)
		e.publish("devices_cleared", ev)
	}, EventDevicesCleared)

	// Device sync requested by the node itself over the API.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DevicesSyncedEvent)
		if ev.OK {
			e.audit.Record(fmt.Sprintf("Devices Synced For Node: %d Successfully", ev.NodeID), ev.DurationSecs)
		} else {
			e.audit.Record(fmt.Sprintf("Devices Synced For Node: %d Unsuccessfully", ev.NodeID), ev.DurationSecs)
		}
	}, EventDevicesSynced)

	// Deployment outcomes.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DeploymentCreatedEvent)
		if ev.Pushed {
			e.audit.Record(fmt.Sprintf("Deployment: %d Created and Deployed", ev.DeploymentID), ev.DurationSecs)
		} else {
			e.audit.Record(fmt.Sprintf("Deployment: %d Created", ev.DeploymentID), ev.DurationSecs)
		}
		e.publish("deployment_created", ev)
	}, EventDeploymentCreated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DeploymentPushFailedEvent)
		e.audit.Record(fmt.Sprintf("Deployment: %d Created and Failed to Deploy", ev.DeploymentID), ev.DurationSecs)
		e.publish("deployment_push_failed", ev)
	}, EventDeploymentPushFailed)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DeploymentSwitchedEvent)
		verb := "Disabled"
		if ev.NewStatus == store.DeploymentActive {
			verb = "Activated"
		}
		if ev.PushOK {
			e.audit.Record(fmt.Sprintf("%s Deployment: %d Successfully", verb, ev.DeploymentID), ev.DurationSecs)
		} else {
			e.audit.Record(fmt.Sprintf("%s Deployment: %d Unsuccessfully", verb, ev.DeploymentID), ev.DurationSecs)
		}
		e.publish("deployment_switched", ev)
	}, EventDeploymentSwitched)
}

// publish stages an envelope on the outbox. Fire-and-forget: failures are
// logged, never propagated to the operation that produced the event.
func (e *Engine) publish(kind string, payload any) {
	if e.outbox == nil {
		return
	}
	env, err := events.NewEnvelope(kind, payload)
	if err != nil {
		e.logFn("engine: encode %s event: %v", kind, err)
		return
	}
	if err := e.outbox.Enqueue(e.cfg.Events.Topic, env); err != nil {
		e.logFn("engine: enqueue %s event: %v", kind, err)
	}
}
