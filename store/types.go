package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Connectivity statuses shared by nodes, devices and node-device memberships.
const (
	StatusConnected    = "Connected"
	StatusDisconnected = "Disconnected"
)

// Deployment statuses.
const (
	DeploymentNew      = "New"
	DeploymentActive   = "Active"
	DeploymentDisabled = "Disabled"
	DeploymentComplete = "Complete"
	DeploymentExpiring = "Expiring"
	DeploymentError    = "Error"
)

// Handshake outcomes reported by create_connection.
const (
	HandshakeMissing   = "missing"
	HandshakeDifferent = "different"
	HandshakeNew       = "new"
	HandshakeExisting  = "existing"
)

// FlexID decodes a numeric id that some peers report as a JSON string.
type FlexID int64

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", data, err)
	}
	*f = FlexID(n)
	return nil
}

func (f FlexID) Int64() int64 { return int64(f) }

// ConnectionResult is the contract of create_connection.
type ConnectionResult struct {
	Map    string `json:"map"`
	NodeID FlexID `json:"node_id"`
}

// NodeRecord is one row of get_node_from_addr / get_latest_nodes.
type NodeRecord struct {
	NodeID       FlexID `json:"node_id"`
	NodeName     string `json:"node_name"`
	NodeAddress  string `json:"node_address"`
	StatusValue  string `json:"status_value"`
	CreationDate string `json:"creation_date"`
}

// AddrRecord is the contract of get_addr_from_node.
type AddrRecord struct {
	NodeAddress string `json:"node_address"`
}

// DeviceDetail is one element of get_devices_details.
type DeviceDetail struct {
	DeviceID     FlexID `json:"device_id"`
	DeviceName   string `json:"device_name"`
	StatusValue  string `json:"status_value"`
	CreationDate string `json:"creation_date"`
}

type deviceDetailsEnvelope struct {
	Devices []DeviceDetail `json:"devices"`
}

type nodeDevicesEnvelope struct {
	Devices []int64 `json:"devices"`
}

// DeploymentRecord is one row of get_latest_deployments / get_deployment.
type DeploymentRecord struct {
	DeploymentID   FlexID `json:"deployment_id"`
	DeploymentName string `json:"deployment_name"`
	TargetID       FlexID `json:"target_id"`
	StatusValue    string `json:"status_value"`
	ModelID        FlexID `json:"model_id"`
	CreationDate   string `json:"creation_date"`
	StartDate      string `json:"start_date"`
	ExpiryDate     string `json:"expiry_date"`
	NodeID         FlexID `json:"node_id"`
	DeviceID       FlexID `json:"device_id"`
}

// KeyRecord is the contract of get_key and insert_node_key.
type KeyRecord struct {
	KeyID        FlexID `json:"key_id"`
	KeyValue     string `json:"key_value"`
	CreationDate string `json:"creation_date"`
}

func decodeFirst(rows []json.RawMessage, routine string, dst any) error {
	if len(rows) == 0 {
		return fmt.Errorf("%s: empty result", routine)
	}
	if err := json.Unmarshal(rows[0], dst); err != nil {
		return fmt.Errorf("%s: decode result: %w", routine, err)
	}
	return nil
}
