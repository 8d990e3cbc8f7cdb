// Package fleet implements the node registration handshake and device-state
// reconciliation against the central registry.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visionlink/ipaddr"
	"visionlink/store"
)

// Handshake failures callers can branch on.
var (
	ErrKeyInvalid  = errors.New("key is invalid")
	ErrKeyAssigned = errors.New("key is already assigned to a different node")
)

// RegistrarStore is the persisted surface the handshake needs.
type RegistrarStore interface {
	CreateConnection(ctx context.Context, keyValue string, nodeID, nodeName, addr, creationDate any) (*store.ConnectionResult, error)
}

// RegistrarEmitter receives handshake outcomes for audit and event fan-out.
type RegistrarEmitter interface {
	EmitNodeConnected(nodeID int64, addr, outcome string, durationSecs int)
	EmitNodeRejected(reason string, durationSecs int)
}

type ConnectRequest struct {
	KeyValue     string
	NodeID       *int64
	NodeName     string
	CreationDate string
	RemoteAddr   string
}

type ConnectResult struct {
	NodeID  int64
	Outcome string
}

type Registrar struct {
	store   RegistrarStore
	emitter RegistrarEmitter
	nowFn   func() time.Time
}

func NewRegistrar(s RegistrarStore, e RegistrarEmitter) *Registrar {
	return &Registrar{store: s, emitter: e, nowFn: time.Now}
}

// Connect runs the handshake by which a node claims or re-claims an identity
// with a shared key. Exactly one of four outcomes is produced: missing and
// different reject without mutation; new binds a fresh node to the caller's
// address; existing refreshes the node record. The caller's address is passed
// to the routine only when no node id was claimed - a node that omits its id
// is self-identifying by address.
func (r *Registrar) Connect(ctx context.Context, req ConnectRequest) (*ConnectResult, error) {
	start := r.nowFn()

	var nodeID, addr, creationDate any
	if req.NodeID != nil {
		nodeID = *req.NodeID
	} else {
		addr = ipaddr.FromRequest(req.RemoteAddr)
	}
	var nodeName any
	if req.NodeName != "" {
		nodeName = req.NodeName
	}
	if req.CreationDate != "" {
		if t, err := time.Parse(time.RFC3339, req.CreationDate); err == nil {
			creationDate = t.UTC().Format(time.RFC3339)
		}
	}

	result, err := r.store.CreateConnection(ctx, req.KeyValue, nodeID, nodeName, addr, creationDate)
	if err != nil {
		r.emitter.EmitNodeRejected("Error", r.elapsed(start))
		return nil, err
	}

	switch result.Map {
	case store.HandshakeNew, store.HandshakeExisting:
		connectedAddr := ipaddr.FromRequest(req.RemoteAddr)
		r.emitter.EmitNodeConnected(result.NodeID.Int64(), connectedAddr, result.Map, r.elapsed(start))
		return &ConnectResult{NodeID: result.NodeID.Int64(), Outcome: result.Map}, nil
	case store.HandshakeDifferent:
		r.emitter.EmitNodeRejected("Key already assigned", r.elapsed(start))
		return nil, ErrKeyAssigned
	case store.HandshakeMissing:
		r.emitter.EmitNodeRejected("Key invalid", r.elapsed(start))
		return nil, ErrKeyInvalid
	default:
		r.emitter.EmitNodeRejected("Error", r.elapsed(start))
		return nil, fmt.Errorf("unknown handshake outcome %q", result.Map)
	}
}

func (r *Registrar) elapsed(start time.Time) int {
	return int(r.nowFn().Sub(start).Round(time.Second) / time.Second)
}
