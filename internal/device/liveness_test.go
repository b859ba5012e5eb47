package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubStaleMarker struct {
	marked    int
	markErr   error
	counts    map[Status]int
	countsErr error
}

func (s *stubStaleMarker) MarkStaleOffline(_ context.Context, _ time.Time) (int, error) {
	return s.marked, s.markErr
}

func (s *stubStaleMarker) CountByStatus(_ context.Context) (map[Status]int, error) {
	return s.counts, s.countsErr
}

func TestSweepPublishesStatusGauge(t *testing.T) {
	repo := &stubStaleMarker{
		marked: 2,
		counts: map[Status]int{StatusActive: 3, StatusOffline: 2},
	}
	sw := NewSweeper(repo, SweeperConfig{}, zap.NewNop())

	var markedSeen int
	sw.SetMetricsRecorder(func(marked int) { markedSeen = marked })

	gauge := make(map[string]float64)
	sw.SetStatusGaugeRecorder(func(status string, count float64) { gauge[status] = count })

	sw.sweep(context.Background())

	if markedSeen != 2 {
		t.Errorf("expected 2 marked offline, got %d", markedSeen)
	}
	if gauge["active"] != 3 || gauge["offline"] != 2 {
		t.Errorf("unexpected gauge values: %v", gauge)
	}
	if v, ok := gauge["revoked"]; !ok || v != 0 {
		t.Error("statuses with no devices must be published as zero")
	}
}

func TestSweepGaugeSurvivesCountError(t *testing.T) {
	repo := &stubStaleMarker{countsErr: errors.New("pool closed")}
	sw := NewSweeper(repo, SweeperConfig{}, zap.NewNop())

	called := false
	sw.SetStatusGaugeRecorder(func(string, float64) { called = true })

	sw.sweep(context.Background())

	if called {
		t.Error("gauge must not be published from a failed count")
	}
}
