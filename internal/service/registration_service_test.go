package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

type fakeRegistrar struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (r *fakeRegistrar) Register(ctx context.Context, userID, token string) error {
	r.mu.Lock()
	r.calls++
	err := r.err
	delay := r.delay
	r.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (r *fakeRegistrar) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestRegisterTokenValidation(t *testing.T) {
	svc := NewRegistrationService(newFakeDeviceRepo(), &fakeRegistrar{}, zap.NewNop())

	err := svc.RegisterToken(context.Background(), "", "tok")
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	err = svc.RegisterToken(context.Background(), "alice", "   ")
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestRegisterTokenConcurrentSameTokenSingleCall(t *testing.T) {
	devices := newFakeDeviceRepo()
	registrar := &fakeRegistrar{delay: 20 * time.Millisecond}
	svc := NewRegistrationService(devices, registrar, zap.NewNop())

	const callers = 25
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, svc.RegisterToken(context.Background(), "alice", "token-A"))
		}()
	}
	wg.Wait()

	require.Equal(t, 1, registrar.callCount())
	stored, err := devices.LastToken(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "token-A", stored)
}

func TestRegisterTokenShortCircuitsUnchanged(t *testing.T) {
	registrar := &fakeRegistrar{}
	svc := NewRegistrationService(newFakeDeviceRepo(), registrar, zap.NewNop())

	require.NoError(t, svc.RegisterToken(context.Background(), "alice", "token-A"))
	require.NoError(t, svc.RegisterToken(context.Background(), "alice", "token-A"))
	require.Equal(t, 1, registrar.callCount())

	// A rotated token goes through the full path again.
	require.NoError(t, svc.RegisterToken(context.Background(), "alice", "token-B"))
	require.Equal(t, 2, registrar.callCount())
}

func TestRegisterTokenColdStartConsultsStore(t *testing.T) {
	devices := newFakeDeviceRepo()
	require.NoError(t, devices.Upsert(context.Background(), "alice", "token-A"))

	registrar := &fakeRegistrar{}
	svc := NewRegistrationService(devices, registrar, zap.NewNop())

	// Fresh process, token already persisted: no network call.
	require.NoError(t, svc.RegisterToken(context.Background(), "alice", "token-A"))
	require.Equal(t, 0, registrar.callCount())
}

func TestRegisterTokenAfterForget(t *testing.T) {
	devices := newFakeDeviceRepo()
	registrar := &fakeRegistrar{}
	svc := NewRegistrationService(devices, registrar, zap.NewNop())

	require.NoError(t, svc.RegisterToken(context.Background(), "alice", "token-A"))
	require.Equal(t, 1, registrar.callCount())

	// Worker pruned the token and dropped the cache entry.
	require.NoError(t, devices.DeleteToken(context.Background(), "token-A"))
	svc.Forget("alice")

	require.NoError(t, svc.RegisterToken(context.Background(), "alice", "token-A"))
	require.Equal(t, 2, registrar.callCount())
}

func TestRegisterTokenTransientFailureNotCached(t *testing.T) {
	registrar := &fakeRegistrar{err: context.DeadlineExceeded}
	svc := NewRegistrationService(newFakeDeviceRepo(), registrar, zap.NewNop())

	err := svc.RegisterToken(context.Background(), "alice", "token-A")
	require.True(t, apperrors.IsTransient(err))

	// A failed attempt must not poison the cache.
	registrar.mu.Lock()
	registrar.err = nil
	registrar.mu.Unlock()
	require.NoError(t, svc.RegisterToken(context.Background(), "alice", "token-A"))
	require.Equal(t, 2, registrar.callCount())
}
