package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── Stub repo ────────────────────────────────────────────────────────────

type stubOperatorRepo struct {
	mu   sync.Mutex
	rows map[string]*Operator
}

func newStubOperatorRepo() *stubOperatorRepo {
	return &stubOperatorRepo{rows: make(map[string]*Operator)}
}

func (s *stubOperatorRepo) Create(_ context.Context, op *Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *op
	s.rows[op.Username] = &cp
	return nil
}

func (s *stubOperatorRepo) GetByUsername(_ context.Context, username string) (*Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.rows[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *op
	return &cp, nil
}

func testService(t *testing.T) (*Service, *TokenIssuer) {
	t.Helper()
	tokens := NewTokenIssuer([]byte("test-secret"), "http://localhost:8080", time.Hour)
	return NewService(newStubOperatorRepo(), tokens, zap.NewNop()), tokens
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestLoginRoundTrip(t *testing.T) {
	svc, tokens := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateOperator(ctx, "alice", "s3cret", RoleAdmin); err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}

	resp, err := svc.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Role != RoleAdmin {
		t.Errorf("role = %q, want admin", resp.Role)
	}

	claims, err := tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Username != "alice" || claims.Role != RoleAdmin {
		t.Errorf("claims = %+v, want alice/admin", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateOperator(ctx, "alice", "s3cret", ""); err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.Login(context.Background(), "nobody", "x"); err != ErrInvalidCredentials {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc, tokens := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateOperator(ctx, "alice", "s3cret", ""); err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	resp, err := svc.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := tokens.Verify(resp.Token + "x"); err == nil {
		t.Error("tampered token verified successfully")
	}

	other := NewTokenIssuer([]byte("different-secret"), "http://localhost:8080", time.Hour)
	if _, err := other.Verify(resp.Token); err == nil {
		t.Error("token signed with a different secret verified successfully")
	}
}

func TestDefaultRoleIsAnalyst(t *testing.T) {
	svc, _ := testService(t)
	op, err := svc.CreateOperator(context.Background(), "bob", "pw", "")
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	if op.Role != RoleAnalyst {
		t.Errorf("role = %q, want analyst", op.Role)
	}
}
