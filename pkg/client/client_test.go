package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/token":
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-abc"})
		case "/api/v1/policy":
			if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
				t.Errorf("missing bearer token, got %q", got)
			}
			json.NewEncoder(w).Encode(Policy{AlertRiskThreshold: 6.0})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Login(context.Background(), "admin", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	pol, err := c.GetPolicy(context.Background())
	if err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	if pol.AlertRiskThreshold != 6.0 {
		t.Errorf("unexpected policy: %+v", pol)
	}
}

func TestSimulateDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/simulate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			ScenarioID string `json:"scenario_id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.ScenarioID != "scn-1" {
			t.Errorf("wrong scenario_id: %q", req.ScenarioID)
		}
		json.NewEncoder(w).Encode(SimulationResult{ID: "sim-1", RiskScore: 4.5, Alert: false})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Simulate(context.Background(), "scn-1", &Telemetry{DeviceID: "dev-001"})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.RiskScore != 4.5 {
		t.Errorf("unexpected risk score %v", res.RiskScore)
	}
}

func TestSubmitTelemetrySignsBody(t *testing.T) {
	const secret = "abcdef0123456789"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/telemetry" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("X-Aegis-Device"); got != "dev-001" {
			t.Errorf("wrong device header: %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		want := hex.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("X-Aegis-Signature"); got != want {
			t.Errorf("signature mismatch: got %q want %q", got, want)
		}
		json.NewEncoder(w).Encode(SimulationResult{ID: "sim-2"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithDeviceCredentials("dev-001", secret))
	if _, err := c.SubmitTelemetry(context.Background(), &Telemetry{DeviceID: "ignored"}); err != nil {
		t.Fatalf("SubmitTelemetry: %v", err)
	}
}

func TestSubmitTelemetryRequiresCredentials(t *testing.T) {
	c := New("http://localhost:0")
	if _, err := c.SubmitTelemetry(context.Background(), &Telemetry{}); err == nil {
		t.Fatal("expected an error without device credentials")
	}
}

func TestErrorIncludesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"scenario not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetScenario(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "scenario not found") {
		t.Errorf("error should carry the server message, got %q", err.Error())
	}
}
