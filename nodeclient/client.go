// Package nodeclient is the typed HTTP client for the vision-node peer API.
// Nodes are opaque HTTP peers on a fixed port; every call carries a bounded
// timeout so an unresponsive node reads as a failure, never as a hang.
package nodeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	httpClient *http.Client
	port       int
}

func New(port int, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		port:       port,
	}
}

func (c *Client) url(ip, path string) string {
	return fmt.Sprintf("http://%s:%d%s", ip, c.port, path)
}

// Available probes node liveness. Any 2xx answer means reachable.
func (c *Client) Available(ctx context.Context, ip string) error {
	return c.get(ctx, ip, "/node/available", nil)
}

// Cameras retrieves the node's current device inventory.
func (c *Client) Cameras(ctx context.Context, ip string) (*CameraReport, error) {
	var resp cameraResponse
	if err := c.get(ctx, ip, "/node/cameras", &resp); err != nil {
		return nil, err
	}
	return &resp.GetCameras, nil
}

// Initialise instructs the node to launch inference for a deployment.
func (c *Client) Initialise(ctx context.Context, ip string, inst DeploymentInstruction) error {
	return c.post(ctx, ip, "/node/deployments/initialise", instructionBody{
		DeploymentInformation: []DeploymentInstruction{inst},
	})
}

// Stop instructs the node to tear down inference for a deployment.
func (c *Client) Stop(ctx context.Context, ip string, inst DeploymentInstruction) error {
	return c.post(ctx, ip, "/node/deployments/stop", instructionBody{
		DeploymentInformation: []DeploymentInstruction{inst},
	})
}

func (c *Client) get(ctx context.Context, ip, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(ip, path), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("node %s%s: status %d: %s", ip, path, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("node %s%s: decode: %w", ip, path, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, ip, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(ip, path), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("node %s%s: status %d: %s", ip, path, resp.StatusCode, respBody)
	}
	return nil
}
