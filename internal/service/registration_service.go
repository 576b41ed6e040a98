package service

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/thread-service/internal/repository"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

// Registrar performs the external registration network call for a token.
type Registrar interface {
	Register(ctx context.Context, userID, token string) error
}

// RegistrationService is the single-flight guard around device token
// registration. All mutable guard state (last-seen tokens) is only touched
// under one mutex; concurrent callers for the same user share one flight.
type RegistrationService struct {
	devices   repository.DeviceRepository
	registrar Registrar
	logger    *zap.Logger

	group singleflight.Group

	// mu serializes every read-modify-write of lastToken. No other path
	// may touch it.
	mu        sync.Mutex
	lastToken map[string]string
}

// NewRegistrationService constructs the guard.
func NewRegistrationService(devices repository.DeviceRepository, registrar Registrar, logger *zap.Logger) *RegistrationService {
	return &RegistrationService{
		devices:   devices,
		registrar: registrar,
		logger:    logger,
		lastToken: make(map[string]string),
	}
}

// RegisterToken registers a device token for a user. An unchanged token
// short-circuits without any network call; concurrent calls for one user
// collapse into a single registration.
func (s *RegistrationService) RegisterToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return apperrors.NewValidationError("user_id and token required", nil)
	}

	if s.knownToken(userID) == token {
		return nil
	}

	_, err, _ := s.group.Do(userID, func() (interface{}, error) {
		// Re-check inside the flight: a racing caller may have already
		// registered this exact token.
		if s.knownToken(userID) == token {
			return nil, nil
		}

		// Cold start: consult the store before paying for a network call.
		if stored, err := s.devices.LastToken(ctx, userID); err == nil && stored == token {
			s.remember(userID, token)
			return nil, nil
		}

		if err := s.registrar.Register(ctx, userID, token); err != nil {
			return nil, apperrors.NewTransientIO("push registration", err)
		}
		if err := s.devices.Upsert(ctx, userID, token); err != nil {
			return nil, err
		}
		s.remember(userID, token)
		s.logger.Info("device token registered", zap.String("user_id", userID))
		return nil, nil
	})
	return err
}

func (s *RegistrationService) knownToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastToken[userID]
}

func (s *RegistrationService) remember(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastToken[userID] = token
}

// Forget drops the cached token, forcing the next call through the full
// path. Used when the worker prunes a stale token.
func (s *RegistrationService) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastToken, userID)
}
