package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentrylab/aegis/internal/simulation"
)

type stubLabels struct {
	created []*Label
}

func (s *stubLabels) Create(_ context.Context, l *Label) error {
	s.created = append(s.created, l)
	return nil
}

func (s *stubLabels) ListBySimulation(_ context.Context, simulationID uuid.UUID) ([]*Label, error) {
	var out []*Label
	for _, l := range s.created {
		if l.SimulationID == simulationID {
			out = append(out, l)
		}
	}
	return out, nil
}

type stubSimLookup struct {
	known map[uuid.UUID]bool
}

func (s *stubSimLookup) GetByID(_ context.Context, id uuid.UUID) (*simulation.Result, error) {
	if s.known[id] {
		return &simulation.Result{ID: id}, nil
	}
	return nil, simulation.ErrNotFound
}

func setupRouter(store *stubLabels, sims *stubSimLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, sims, zap.NewNop())
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestCreateFeedback(t *testing.T) {
	store := &stubLabels{}
	simID := uuid.New()
	r := setupRouter(store, &stubSimLookup{known: map[uuid.UUID]bool{simID: true}})

	body, _ := json.Marshal(CreateRequest{Verdict: VerdictFalsePositive, Notes: "backup job, expected transfer"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/simulations/%s/feedback", simID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 stored label, got %d", len(store.created))
	}
	if store.created[0].Verdict != VerdictFalsePositive {
		t.Errorf("wrong verdict stored: %q", store.created[0].Verdict)
	}
}

func TestCreateFeedbackUnknownSimulation(t *testing.T) {
	r := setupRouter(&stubLabels{}, &stubSimLookup{known: map[uuid.UUID]bool{}})

	body, _ := json.Marshal(CreateRequest{Verdict: VerdictBenign})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/simulations/%s/feedback", uuid.New()), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateFeedbackRejectsUnknownVerdict(t *testing.T) {
	simID := uuid.New()
	r := setupRouter(&stubLabels{}, &stubSimLookup{known: map[uuid.UUID]bool{simID: true}})

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/simulations/%s/feedback", simID),
		bytes.NewBufferString(`{"verdict":"maybe"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown verdict, got %d", w.Code)
	}
}

func TestListFeedback(t *testing.T) {
	store := &stubLabels{}
	simID := uuid.New()
	r := setupRouter(store, &stubSimLookup{known: map[uuid.UUID]bool{simID: true}})
	store.created = append(store.created, &Label{ID: uuid.New(), SimulationID: simID, Verdict: VerdictTruePositive})

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/simulations/%s/feedback", simID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("expected count 1, got %d", resp.Count)
	}
}
