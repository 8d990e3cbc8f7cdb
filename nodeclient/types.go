package nodeclient

import (
	"bytes"
	"fmt"
	"strconv"
)

// NodeID tolerates nodes that report their id as a JSON string.
type NodeID int64

func (n *NodeID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid node id %q: %w", data, err)
	}
	*n = NodeID(v)
	return nil
}

// CameraReport is the payload of GET /node/cameras: the reporting node's id
// and its currently visible camera names.
type CameraReport struct {
	NodeID  NodeID   `json:"node_id"`
	Cameras []string `json:"cameras"`
}

type cameraResponse struct {
	GetCameras CameraReport `json:"get_cameras"`
}

// DeploymentInstruction is one entry of the initialise/stop request body.
type DeploymentInstruction struct {
	DeploymentID int64  `json:"deployment_id"`
	ModelID      int64  `json:"model_id"`
	DeviceName   string `json:"device_name"`
}

type instructionBody struct {
	DeploymentInformation []DeploymentInstruction `json:"deployment_information"`
}
