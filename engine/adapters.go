package engine

// registrarEmitter bridges the fleet registrar's emitter interface to the EventBus.
type registrarEmitter struct {
	bus *EventBus
}

func (e *registrarEmitter) EmitNodeConnected(nodeID int64, addr, outcome string, durationSecs int) {
	e.bus.Emit(Event{Type: EventNodeConnected, Payload: NodeConnectedEvent{
		NodeID:       nodeID,
		Addr:         addr,
		Outcome:      outcome,
		DurationSecs: durationSecs,
	}})
}

func (e *registrarEmitter) EmitNodeRejected(reason string, durationSecs int) {
	e.bus.Emit(Event{Type: EventNodeRejected, Payload: NodeRejectedEvent{
		Reason:       reason,
		DurationSecs: durationSecs,
	}})
}

// reconcilerEmitter bridges device reconciliation outcomes to the EventBus.
type reconcilerEmitter struct {
	bus *EventBus
}

func (e *reconcilerEmitter) EmitDevicesReconciled(nodeID int64, deviceCount, durationSecs int) {
	e.bus.Emit(Event{Type: EventDevicesReconciled, Payload: DevicesReconciledEvent{
		NodeID:       nodeID,
		DeviceCount:  deviceCount,
		DurationSecs: durationSecs,
	}})
}

func (e *reconcilerEmitter) EmitDevicesCleared(nodeID int64, durationSecs int) {
	e.bus.Emit(Event{Type: EventDevicesCleared, Payload: DevicesClearedEvent{
		NodeID:       nodeID,
		DurationSecs: durationSecs,
	}})
}

// pollerEmitter bridges liveness sweep outcomes to the EventBus.
type pollerEmitter struct {
	bus *EventBus
}

func (e *pollerEmitter) EmitNodeUnreachable(addr string, nodeID int64) {
	e.bus.Emit(Event{Type: EventNodeUnreachable, Payload: NodeUnreachableEvent{
		Addr:   addr,
		NodeID: nodeID,
	}})
}

func (e *pollerEmitter) EmitNodeReachable(addr string) {
	e.bus.Emit(Event{Type: EventNodeReachable, Payload: NodeReachableEvent{Addr: addr}})
}

// deployEmitter bridges deployment outcomes to the EventBus.
type deployEmitter struct {
	bus *EventBus
}

func (e *deployEmitter) EmitDeploymentCreated(deploymentID int64, pushed bool, durationSecs int) {
	e.bus.Emit(Event{Type: EventDeploymentCreated, Payload: DeploymentCreatedEvent{
		DeploymentID: deploymentID,
		Pushed:       pushed,
		DurationSecs: durationSecs,
	}})
}

func (e *deployEmitter) EmitDeploymentPushFailed(deploymentID int64, action string, durationSecs int) {
	e.bus.Emit(Event{Type: EventDeploymentPushFailed, Payload: DeploymentPushFailedEvent{
		DeploymentID: deploymentID,
		Action:       action,
		DurationSecs: durationSecs,
	}})
}

func (e *deployEmitter) EmitDeploymentSwitched(deploymentID int64, newStatus string, pushOK bool, durationSecs int) {
	e.bus.Emit(Event{Type: EventDeploymentSwitched, Payload: DeploymentSwitchedEvent{
		DeploymentID: deploymentID,
		NewStatus:    newStatus,
		PushOK:       pushOK,
		DurationSecs: durationSecs,
	}})
}
