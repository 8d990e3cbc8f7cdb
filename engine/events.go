package engine

const (
	EventNodeConnected EventType = iota + 1
	EventNodeRejected
	EventNodeUnreachable
	EventNodeReachable
	EventDevicesReconciled
	EventDevicesCleared
	EventDevicesSynced
	EventDeploymentCreated
	EventDeploymentPushFailed
	EventDeploymentSwitched
)

// --- Event payloads ---

type NodeConnectedEvent struct {
	NodeID       int64
	Addr         string
	Outcome      string // "new" or "existing"
	DurationSecs int
}

type NodeRejectedEvent struct {
	Reason       string
	DurationSecs int
}

type NodeUnreachableEvent struct {
	Addr   string
	NodeID int64
}

type NodeReachableEvent struct {
	Addr string
}

type DevicesReconciledEvent struct {
	NodeID       int64
	DeviceCount  int
	DurationSecs int
}

type DevicesClearedEvent struct {
	NodeID       int64
	DurationSecs int
}

type DevicesSyncedEvent struct {
	NodeID       int64
	OK           bool
	DurationSecs int
}

type DeploymentCreatedEvent struct {
	DeploymentID int64
	Pushed       bool
	DurationSecs int
}

type DeploymentPushFailedEvent struct {
	DeploymentID int64
	Action       string // "initialise" or "stop"
	DurationSecs int
}

type DeploymentSwitchedEvent struct {
	DeploymentID int64
	NewStatus    string
	PushOK       bool
	DurationSecs int
}
