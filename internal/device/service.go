package device

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBadSignature is returned when a telemetry request signature does not
// verify against the device secret.
var ErrBadSignature = errors.New("request signature mismatch")

// ErrDeviceRevoked is returned when a revoked device submits telemetry.
var ErrDeviceRevoked = errors.New("device is revoked")

// deviceRepo is the persistence interface for the device service.
// *Repository satisfies this interface.
type deviceRepo interface {
	Create(ctx context.Context, d *Device) error
	GetByDeviceID(ctx context.Context, deviceID string) (*Device, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Device, error)
	List(ctx context.Context, limit, offset int) ([]*Device, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Service manages device enrollment and request authentication.
type Service struct {
	repo   deviceRepo
	logger *zap.Logger
}

// NewService creates a device Service.
func NewService(repo deviceRepo, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Enroll registers a device and issues its signing secret. The secret is
// returned once and stored for server-side verification.
func (s *Service) Enroll(ctx context.Context, req *EnrollRequest) (*EnrollResponse, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate device secret: %w", err)
	}

	d := &Device{
		DeviceID: req.DeviceID,
		Name:     req.Name,
		Platform: req.Platform,
		Secret:   secret,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("enroll device: %w", err)
	}

	s.logger.Info("device enrolled",
		zap.String("device_id", d.DeviceID),
		zap.String("platform", d.Platform),
	)
	return &EnrollResponse{Device: d, Secret: secret}, nil
}

// Authenticate verifies a signed telemetry request: the signature must be
// the hex HMAC-SHA256 of the raw request body under the device secret.
// On success the device's last-seen timestamp is updated.
func (s *Service) Authenticate(ctx context.Context, deviceID, signature string, body []byte) (*Device, error) {
	d, err := s.repo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusRevoked {
		return nil, ErrDeviceRevoked
	}

	if !verifySignature(body, d.Secret, signature) {
		s.logger.Warn("device signature mismatch", zap.String("device_id", deviceID))
		return nil, ErrBadSignature
	}

	if err := s.repo.TouchLastSeen(ctx, d.ID, time.Now().UTC()); err != nil {
		// Liveness bookkeeping must not reject valid telemetry.
		s.logger.Warn("touch last seen", zap.Error(err))
	}
	return d, nil
}

// Revoke permanently blocks a device from submitting telemetry.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.UpdateStatus(ctx, id, StatusRevoked); err != nil {
		return err
	}
	s.logger.Info("device revoked", zap.String("id", id.String()))
	return nil
}

// List returns enrolled devices.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Device, error) {
	return s.repo.List(ctx, limit, offset)
}

// Sign computes the request signature a device must send for the given body.
// Shared with pkg/client and the test suite.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature compares signatures in constant time.
func verifySignature(body []byte, secret, signature string) bool {
	want := Sign(body, secret)
	return hmac.Equal([]byte(want), []byte(signature))
}

// generateSecret creates a random 32-byte hex-encoded secret.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
