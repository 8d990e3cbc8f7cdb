// Package deploy creates and toggles model-inference deployments and pushes
// the matching instructions to the owning node. Deployment status transitions
// happen only here, never in the liveness poller.
package deploy

import (
	"context"
	"fmt"
	"time"

	"visionlink/ipaddr"
	"visionlink/nodeclient"
	"visionlink/store"
)

// Store is the persisted surface the orchestrator needs.
type Store interface {
	InsertDeployment(ctx context.Context, name string, targetID int64, status string, modelID int64, creationDate, startDate, expiryDate string, nodeID, deviceID int64) (int64, error)
	DeviceDetails(ctx context.Context, deviceIDs []int64) ([]store.DeviceDetail, error)
	AddrFromNode(ctx context.Context, nodeID int64) (string, error)
	UpdateDeploymentStatus(ctx context.Context, deploymentID int64, status string) error
}

// Pusher is the outbound node surface. Satisfied by *nodeclient.Client.
type Pusher interface {
	Initialise(ctx context.Context, ip string, inst nodeclient.DeploymentInstruction) error
	Stop(ctx context.Context, ip string, inst nodeclient.DeploymentInstruction) error
}

// Emitter receives deployment outcomes for audit and event fan-out.
type Emitter interface {
	EmitDeploymentCreated(deploymentID int64, pushed bool, durationSecs int)
	EmitDeploymentPushFailed(deploymentID int64, action string, durationSecs int)
	EmitDeploymentSwitched(deploymentID int64, newStatus string, pushOK bool, durationSecs int)
}

// Deployment carries the full field set of a create or switch request.
type Deployment struct {
	DeploymentID int64
	Name         string
	TargetID     int64
	Status       string
	ModelID      int64
	CreationDate time.Time
	StartDate    time.Time
	ExpiryDate   time.Time
	NodeID       int64
	DeviceID     int64
}

type CreateResult struct {
	DeploymentID int64
	Pushed       bool
}

type SwitchResult struct {
	DeploymentID int64
	NewStatus    string
	PushErr      error
}

type Orchestrator struct {
	store   Store
	pusher  Pusher
	emitter Emitter
	nowFn   func() time.Time
}

func New(s Store, p Pusher, e Emitter) *Orchestrator {
	return &Orchestrator{store: s, pusher: p, emitter: e, nowFn: time.Now}
}

// Create inserts the deployment and, when the validity window covers the
// creation time (start_date <= creation_date < expiry_date), pushes an
// initialise instruction to the owning node. Future-dated deployments are
// inserted without a push. A failed push leaves the row in place and is
// returned to the caller.
func (o *Orchestrator) Create(ctx context.Context, d Deployment) (*CreateResult, error) {
	start := o.nowFn()

	status := d.Status
	if status == "" {
		status = store.DeploymentNew
	}
	id, err := o.store.InsertDeployment(ctx, d.Name, d.TargetID, status, d.ModelID,
		d.CreationDate.UTC().Format(time.RFC3339),
		d.StartDate.UTC().Format(time.RFC3339),
		d.ExpiryDate.UTC().Format(time.RFC3339),
		d.NodeID, d.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("insert deployment: %w", err)
	}

	startsNow := !d.StartDate.After(d.CreationDate) && d.CreationDate.Before(d.ExpiryDate)
	if !startsNow {
		o.emitter.EmitDeploymentCreated(id, false, o.elapsed(start))
		return &CreateResult{DeploymentID: id, Pushed: false}, nil
	}

	deviceName, ip, err := o.resolveTarget(ctx, d.NodeID, d.DeviceID)
	if err != nil {
		o.emitter.EmitDeploymentPushFailed(id, "initialise", o.elapsed(start))
		return nil, err
	}
	inst := nodeclient.DeploymentInstruction{
		DeploymentID: id,
		ModelID:      d.ModelID,
		DeviceName:   deviceName,
	}
	if err := o.pusher.Initialise(ctx, ip, inst); err != nil {
		o.emitter.EmitDeploymentPushFailed(id, "initialise", o.elapsed(start))
		return nil, fmt.Errorf("push deployment %d: %w", id, err)
	}

	o.emitter.EmitDeploymentCreated(id, true, o.elapsed(start))
	return &CreateResult{DeploymentID: id, Pushed: true}, nil
}

// SwitchStatus toggles a deployment between running and disabled.
//
// Active or New: a stop instruction is pushed and Disabled is persisted
// whether or not the push succeeded - the node is either already stopping or
// unreachable and presumed down, so central state moves regardless. The push
// error is carried in the result for the response code.
//
// Disabled: an initialise instruction is pushed and Active is persisted only
// when the push succeeded.
func (o *Orchestrator) SwitchStatus(ctx context.Context, d Deployment) (*SwitchResult, error) {
	start := o.nowFn()

	switch d.Status {
	case store.DeploymentActive, store.DeploymentNew:
		pushErr := o.push(ctx, d, "stop")
		if err := o.store.UpdateDeploymentStatus(ctx, d.DeploymentID, store.DeploymentDisabled); err != nil {
			return nil, fmt.Errorf("persist deployment %d status: %w", d.DeploymentID, err)
		}
		o.emitter.EmitDeploymentSwitched(d.DeploymentID, store.DeploymentDisabled, pushErr == nil, o.elapsed(start))
		return &SwitchResult{DeploymentID: d.DeploymentID, NewStatus: store.DeploymentDisabled, PushErr: pushErr}, nil

	case store.DeploymentDisabled:
		if pushErr := o.push(ctx, d, "initialise"); pushErr != nil {
			o.emitter.EmitDeploymentSwitched(d.DeploymentID, store.DeploymentActive, false, o.elapsed(start))
			return nil, fmt.Errorf("push deployment %d: %w", d.DeploymentID, pushErr)
		}
		if err := o.store.UpdateDeploymentStatus(ctx, d.DeploymentID, store.DeploymentActive); err != nil {
			return nil, fmt.Errorf("persist deployment %d status: %w", d.DeploymentID, err)
		}
		o.emitter.EmitDeploymentSwitched(d.DeploymentID, store.DeploymentActive, true, o.elapsed(start))
		return &SwitchResult{DeploymentID: d.DeploymentID, NewStatus: store.DeploymentActive}, nil

	default:
		return nil, fmt.Errorf("no status transition from %q", d.Status)
	}
}

// push resolves the owning device name and node address fresh on every call
// so the instruction targets the currently assigned device and node.
func (o *Orchestrator) push(ctx context.Context, d Deployment, action string) error {
	deviceName, ip, err := o.resolveTarget(ctx, d.NodeID, d.DeviceID)
	if err != nil {
		return err
	}
	inst := nodeclient.DeploymentInstruction{
		DeploymentID: d.DeploymentID,
		ModelID:      d.ModelID,
		DeviceName:   deviceName,
	}
	if action == "stop" {
		return o.pusher.Stop(ctx, ip, inst)
	}
	return o.pusher.Initialise(ctx, ip, inst)
}

func (o *Orchestrator) resolveTarget(ctx context.Context, nodeID, deviceID int64) (string, string, error) {
	devices, err := o.store.DeviceDetails(ctx, []int64{deviceID})
	if err != nil {
		return "", "", fmt.Errorf("resolve device %d: %w", deviceID, err)
	}
	if len(devices) == 0 {
		return "", "", fmt.Errorf("device %d not found", deviceID)
	}
	addr, err := o.store.AddrFromNode(ctx, nodeID)
	if err != nil {
		return "", "", fmt.Errorf("resolve node %d address: %w", nodeID, err)
	}
	return devices[0].DeviceName, ipaddr.Normalize(addr), nil
}

func (o *Orchestrator) elapsed(start time.Time) int {
	return int(o.nowFn().Sub(start).Round(time.Second) / time.Second)
}
