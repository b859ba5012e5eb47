// Package client provides the Go SDK for the aegis API: operator login,
// scenario management, simulation runs, and authenticated device telemetry
// submission.
package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Scenario mirrors the server-side scenario record.
type Scenario struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tactics     []string  `json:"tactics"`
	Techniques  []string  `json:"techniques"`
	Severity    string    `json:"severity"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateScenarioRequest is the payload for CreateScenario.
type CreateScenarioRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tactics     []string `json:"tactics,omitempty"`
	Techniques  []string `json:"techniques,omitempty"`
	Severity    string   `json:"severity,omitempty"`
}

// Telemetry is a host telemetry snapshot submitted for evaluation.
type Telemetry struct {
	DeviceID           string           `json:"device_id"`
	Timestamp          time.Time        `json:"timestamp,omitempty"`
	NetworkConnections []Connection     `json:"network_connections,omitempty"`
	ProcessList        []Process        `json:"process_list,omitempty"`
	FileAccessLogs     []FileEvent      `json:"file_access_logs,omitempty"`
	SystemMetrics      map[string]any   `json:"system_metrics,omitempty"`
	SecurityEvents     []map[string]any `json:"security_events,omitempty"`
}

// Connection is one observed network connection.
type Connection struct {
	SourceIP          string `json:"source_ip"`
	DestinationIP     string `json:"destination_ip"`
	DestinationPort   int    `json:"destination_port"`
	Protocol          string `json:"protocol,omitempty"`
	BytesTransferred  int64  `json:"bytes_transferred"`
	DestinationDomain string `json:"destination_domain,omitempty"`
}

// Process is one observed running process.
type Process struct {
	Name               string `json:"name"`
	PID                int    `json:"pid"`
	CommandLine        string `json:"command_line,omitempty"`
	NetworkConnections int    `json:"network_connections"`
}

// FileEvent is one observed file access.
type FileEvent struct {
	ProcessID int    `json:"process_id"`
	FilePath  string `json:"file_path"`
	Operation string `json:"operation"`
}

// SimulationResult is the decision record returned by the server.
type SimulationResult struct {
	ID              string           `json:"id"`
	ScenarioID      *string          `json:"scenario_id,omitempty"`
	DeviceID        string           `json:"device_id"`
	StartedAt       time.Time        `json:"started_at"`
	RiskScore       float64          `json:"risk_score"`
	Indicators      []map[string]any `json:"indicators"`
	Recommendations []string         `json:"recommendations"`
	Timeline        []map[string]any `json:"timeline"`
	BlockedActions  []map[string]any `json:"blocked_actions"`
	Confidence      float64          `json:"confidence"`
	Signature       string           `json:"signature"`
	Suppressed      bool             `json:"suppressed"`
	Alert           bool             `json:"alert"`
}

// Policy mirrors the server-side detection policy.
type Policy struct {
	HighVolumeThreshold  int64    `json:"high_volume_threshold"`
	ProcessConnThreshold int      `json:"process_conn_threshold"`
	DedupeWindowMinutes  int      `json:"dedupe_window_minutes"`
	AlertRiskThreshold   float64  `json:"alert_risk_threshold"`
	AllowDomains         []string `json:"allow_domains,omitempty"`
	AllowProcesses       []string `json:"allow_processes,omitempty"`
	AllowPaths           []string `json:"allow_paths,omitempty"`
}

// Device mirrors the server-side device record.
type Device struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"device_id"`
	Name       string     `json:"name"`
	Platform   string     `json:"platform,omitempty"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// EnrollResult carries the one-time device secret returned by Enroll.
type EnrollResult struct {
	Device Device `json:"device"`
	Secret string `json:"secret"`
}

// Client is the aegis SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// token state, guarded by mu
	mu    sync.Mutex
	token string

	// device credentials for SubmitTelemetry
	deviceID     string
	deviceSecret string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken attaches a pre-obtained operator token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithDeviceCredentials configures the enrolled identity used to sign
// telemetry submissions.
func WithDeviceCredentials(deviceID, secret string) Option {
	return func(c *Client) {
		c.deviceID = deviceID
		c.deviceSecret = secret
	}
}

// New creates a Client connected to baseURL.
//
//	c := client.New("http://localhost:8080",
//	    client.WithDeviceCredentials("dev-001", secret),
//	)
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Login obtains an operator token and caches it for subsequent requests.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.call(ctx, http.MethodPost, "/api/v1/auth/token",
		map[string]string{"username": username, "password": password}, &resp)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

// Token returns the operator token obtained by Login (or set via WithToken).
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// CreateScenario registers a new attack scenario.
func (c *Client) CreateScenario(ctx context.Context, req *CreateScenarioRequest) (*Scenario, error) {
	var sc Scenario
	if err := c.call(ctx, http.MethodPost, "/api/v1/scenarios", req, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// GetScenario fetches one scenario by ID.
func (c *Client) GetScenario(ctx context.Context, id string) (*Scenario, error) {
	var sc Scenario
	if err := c.call(ctx, http.MethodGet, "/api/v1/scenarios/"+id, nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ListScenarios returns all scenarios, newest first.
func (c *Client) ListScenarios(ctx context.Context) ([]Scenario, error) {
	var scenarios []Scenario
	if err := c.call(ctx, http.MethodGet, "/api/v1/scenarios", nil, &scenarios); err != nil {
		return nil, err
	}
	return scenarios, nil
}

// DeleteScenario removes a scenario.
func (c *Client) DeleteScenario(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/scenarios/"+id, nil, nil)
}

// Simulate evaluates telemetry against a stored scenario.
func (c *Client) Simulate(ctx context.Context, scenarioID string, t *Telemetry) (*SimulationResult, error) {
	payload := struct {
		ScenarioID string     `json:"scenario_id"`
		Telemetry  *Telemetry `json:"telemetry"`
	}{ScenarioID: scenarioID, Telemetry: t}

	var res SimulationResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/simulate", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitTelemetry submits a telemetry snapshot as the enrolled device. The
// request body is signed with the device secret; the server overrides the
// payload's device_id with the enrolled identity.
func (c *Client) SubmitTelemetry(ctx context.Context, t *Telemetry) (*SimulationResult, error) {
	if c.deviceID == "" || c.deviceSecret == "" {
		return nil, fmt.Errorf("device credentials not configured (use WithDeviceCredentials)")
	}

	body, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/telemetry", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Aegis-Device", c.deviceID)
	req.Header.Set("X-Aegis-Signature", signBody(body, c.deviceSecret))

	respBytes, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var res SimulationResult
	if err := json.Unmarshal(respBytes, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}

// ListSimulations returns recorded results, newest first.
func (c *Client) ListSimulations(ctx context.Context, limit, offset int) ([]SimulationResult, error) {
	var resp struct {
		Simulations []SimulationResult `json:"simulations"`
	}
	path := fmt.Sprintf("/api/v1/simulations?limit=%d&offset=%d", limit, offset)
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Simulations, nil
}

// GetSimulation fetches one recorded result by ID.
func (c *Client) GetSimulation(ctx context.Context, id string) (*SimulationResult, error) {
	var res SimulationResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/simulations/"+id, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetPolicy fetches the effective detection policy.
func (c *Client) GetPolicy(ctx context.Context) (*Policy, error) {
	var pol Policy
	if err := c.call(ctx, http.MethodGet, "/api/v1/policy", nil, &pol); err != nil {
		return nil, err
	}
	return &pol, nil
}

// UpdatePolicy replaces the detection policy. Requires an operator token.
func (c *Client) UpdatePolicy(ctx context.Context, pol *Policy) (*Policy, error) {
	var updated Policy
	if err := c.call(ctx, http.MethodPut, "/api/v1/policy", pol, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// EnrollDevice registers a device and returns its one-time secret.
func (c *Client) EnrollDevice(ctx context.Context, deviceID, name, platform string) (*EnrollResult, error) {
	payload := map[string]string{"device_id": deviceID, "name": name, "platform": platform}
	var res EnrollResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/devices", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListDevices returns enrolled devices, newest first.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.call(ctx, http.MethodGet, "/api/v1/devices", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// RevokeDevice permanently rejects a device's telemetry.
func (c *Client) RevokeDevice(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/api/v1/devices/"+id+"/revoke", nil, nil)
}

// Recommendations fetches the static hardening suggestions.
func (c *Client) Recommendations(ctx context.Context) ([]string, error) {
	var resp struct {
		Recommendations []string `json:"recommendations"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/recommendations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Recommendations, nil
}

// call performs one JSON request against the API. reqBody and respBody may
// be nil.
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	respBytes, err := c.do(req)
	if err != nil {
		return err
	}
	if respBody != nil && len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// do executes the request, attaching the operator token when present, and
// returns the response body or an error for non-2xx statuses.
func (c *Client) do(req *http.Request) ([]byte, error) {
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// signBody computes the hex HMAC-SHA256 the server expects over a raw
// telemetry body.
func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
