// Package store holds the typed contracts for the vision_data routines. Each
// routine gets one method and one record type; result decoding fails fast at
// this boundary instead of propagating loose shapes into the callers.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

const schema = "vision_data"

// Caller is the gateway surface the store needs. Satisfied by *rpc.Gateway.
type Caller interface {
	Function(ctx context.Context, schema, name string, params ...any) ([]json.RawMessage, error)
	Procedure(ctx context.Context, schema, name string, params ...any) error
}

type Store struct {
	gw Caller
}

func New(gw Caller) *Store { return &Store{gw: gw} }

// ApprovedNodes returns the approved-node address set: every address a
// registered node has connected from, as maintained by the schema.
func (s *Store) ApprovedNodes(ctx context.Context) ([]string, error) {
	rows, err := s.gw.Function(ctx, schema, "get_approved_nodes")
	if err != nil {
		return nil, err
	}
	var addrs []string
	if err := decodeFirst(rows, "get_approved_nodes", &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

// CreateConnection runs the registration handshake. nodeID, nodeName, addr
// and creationDate may be nil when the caller did not supply them; parameter
// order is fixed by the routine signature.
func (s *Store) CreateConnection(ctx context.Context, keyValue string, nodeID, nodeName, addr, creationDate any) (*ConnectionResult, error) {
	rows, err := s.gw.Function(ctx, schema, "create_connection", keyValue, nodeID, nodeName, addr, creationDate)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		CreateConnection ConnectionResult `json:"create_connection"`
	}
	if err := decodeFirst(rows, "create_connection", &envelope); err != nil {
		return nil, err
	}
	return &envelope.CreateConnection, nil
}

// InsertDevices upserts the reported device list (JSON array of camera names)
// and returns the device ids covering the report.
func (s *Store) InsertDevices(ctx context.Context, cameras []string, capturedAt string) ([]int64, error) {
	camerasJSON, err := json.Marshal(cameras)
	if err != nil {
		return nil, fmt.Errorf("encode cameras: %w", err)
	}
	rows, err := s.gw.Function(ctx, schema, "insert_devices", string(camerasJSON), capturedAt)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := decodeFirst(rows, "insert_devices", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateNodeDeviceMap sets the membership status for the given device ids on
// a node. Membership rows are toggled, never removed.
func (s *Store) UpdateNodeDeviceMap(ctx context.Context, nodeID int64, deviceIDs []int64, status string) error {
	idsJSON, err := json.Marshal(deviceIDs)
	if err != nil {
		return fmt.Errorf("encode device ids: %w", err)
	}
	_, err = s.gw.Function(ctx, schema, "update_node_device_map", nodeID, string(idsJSON), status)
	return err
}

// UpdateNodeConnection sets a node's connectivity status by address.
func (s *Store) UpdateNodeConnection(ctx context.Context, addr, status string) error {
	_, err := s.gw.Function(ctx, schema, "update_node_connection", addr, status)
	return err
}

// NodeFromAddr resolves the node record owning an address.
func (s *Store) NodeFromAddr(ctx context.Context, addr string) (*NodeRecord, error) {
	rows, err := s.gw.Function(ctx, schema, "get_node_from_addr", addr)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Node NodeRecord `json:"get_node_from_addr"`
	}
	if err := decodeFirst(rows, "get_node_from_addr", &envelope); err != nil {
		return nil, err
	}
	return &envelope.Node, nil
}

// DisconnectAllDevices marks every device associated with a node Disconnected.
func (s *Store) DisconnectAllDevices(ctx context.Context, nodeID int64) error {
	_, err := s.gw.Function(ctx, schema, "update_disconnect_all_devices", nodeID)
	return err
}

// InsertDeployment persists a new deployment row and returns its id.
func (s *Store) InsertDeployment(ctx context.Context, name string, targetID int64, status string, modelID int64, creationDate, startDate, expiryDate string, nodeID, deviceID int64) (int64, error) {
	rows, err := s.gw.Function(ctx, schema, "insert_deployments",
		name, targetID, status, modelID, creationDate, startDate, expiryDate, nodeID, deviceID)
	if err != nil {
		return 0, err
	}
	var id FlexID
	if err := decodeFirst(rows, "insert_deployments", &id); err != nil {
		return 0, err
	}
	return id.Int64(), nil
}

// DeviceDetails resolves full device records for a set of device ids.
func (s *Store) DeviceDetails(ctx context.Context, deviceIDs []int64) ([]DeviceDetail, error) {
	idsJSON, err := json.Marshal(deviceIDs)
	if err != nil {
		return nil, fmt.Errorf("encode device ids: %w", err)
	}
	rows, err := s.gw.Function(ctx, schema, "get_devices_details", string(idsJSON))
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Details deviceDetailsEnvelope `json:"get_devices_details"`
	}
	if err := decodeFirst(rows, "get_devices_details", &envelope); err != nil {
		return nil, err
	}
	return envelope.Details.Devices, nil
}

// AddrFromNode resolves a node's current network address.
func (s *Store) AddrFromNode(ctx context.Context, nodeID int64) (string, error) {
	rows, err := s.gw.Function(ctx, schema, "get_addr_from_node", nodeID)
	if err != nil {
		return "", err
	}
	var envelope struct {
		Addr AddrRecord `json:"get_addr_from_node"`
	}
	if err := decodeFirst(rows, "get_addr_from_node", &envelope); err != nil {
		return "", err
	}
	return envelope.Addr.NodeAddress, nil
}

// UpdateDeploymentStatus persists a deployment status transition.
func (s *Store) UpdateDeploymentStatus(ctx context.Context, deploymentID int64, status string) error {
	_, err := s.gw.Function(ctx, schema, "update_deployment_status", deploymentID, status)
	return err
}

// NodeDevices returns the paginated device-id set associated with a node.
func (s *Store) NodeDevices(ctx context.Context, nodeID int64, itemLimit, currentPage int) ([]int64, error) {
	rows, err := s.gw.Function(ctx, schema, "get_node_devices", nodeID, itemLimit, currentPage)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Devices nodeDevicesEnvelope `json:"get_node_devices"`
	}
	if err := decodeFirst(rows, "get_node_devices", &envelope); err != nil {
		return nil, err
	}
	return envelope.Devices.Devices, nil
}

// LatestNodes returns a page of node records, newest first.
func (s *Store) LatestNodes(ctx context.Context, itemLimit, currentPage int) (json.RawMessage, error) {
	rows, err := s.gw.Function(ctx, schema, "get_latest_nodes", itemLimit, currentPage)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return json.RawMessage("null"), nil
	}
	return rows[0], nil
}

// ActiveNodeDeployments returns every node's active deployment and model,
// as the routine reports them.
func (s *Store) ActiveNodeDeployments(ctx context.Context) (json.RawMessage, error) {
	rows, err := s.gw.Function(ctx, schema, "get_nodes_deployment_models")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return json.RawMessage("null"), nil
	}
	return rows[0], nil
}

// LatestDeployments returns a page of deployment records, newest first.
func (s *Store) LatestDeployments(ctx context.Context, itemLimit, currentPage int) (json.RawMessage, error) {
	rows, err := s.gw.Function(ctx, schema, "get_latest_deployments", itemLimit, currentPage)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return json.RawMessage("null"), nil
	}
	return rows[0], nil
}

// Deployment resolves a single deployment by id.
func (s *Store) Deployment(ctx context.Context, deploymentID int64) (json.RawMessage, error) {
	rows, err := s.gw.Function(ctx, schema, "get_deployment", deploymentID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return json.RawMessage("null"), nil
	}
	return rows[0], nil
}

// InsertNodeKey mints a fresh registration key.
func (s *Store) InsertNodeKey(ctx context.Context, creationDate string) (*KeyRecord, error) {
	rows, err := s.gw.Function(ctx, schema, "insert_node_key", creationDate)
	if err != nil {
		return nil, err
	}
	var rec KeyRecord
	if err := decodeFirst(rows, "insert_node_key", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Key retrieves an existing registration key by id.
func (s *Store) Key(ctx context.Context, keyID int64) (*KeyRecord, error) {
	rows, err := s.gw.Function(ctx, schema, "get_key", keyID)
	if err != nil {
		return nil, err
	}
	var rec KeyRecord
	if err := decodeFirst(rows, "get_key", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeviceFromName resolves a device id from its display name.
func (s *Store) DeviceFromName(ctx context.Context, name string) (json.RawMessage, error) {
	rows, err := s.gw.Function(ctx, schema, "get_device_from_name", name)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return json.RawMessage("null"), nil
	}
	return rows[0], nil
}

// InsertResults appends an inference-result batch reported by a node.
func (s *Store) InsertResults(ctx context.Context, deploymentID int64, data json.RawMessage) error {
	_, err := s.gw.Function(ctx, schema, "insert_results", deploymentID, string(data))
	return err
}
