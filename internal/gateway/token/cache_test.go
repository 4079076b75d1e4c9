package token_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthenticator struct {
	calls int32
	delay time.Duration
	err   error
	ttl   time.Duration
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context) (gatewaydomain.Credential, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return gatewaydomain.Credential{}, f.err
	}
	ttl := f.ttl
	if ttl == 0 {
		ttl = time.Hour
	}
	return gatewaydomain.Credential{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(ttl),
	}, nil
}

func TestTokenCachedAcrossCalls(t *testing.T) {
	auth := &fakeAuthenticator{}
	cache := token.NewCache(auth)

	first, err := cache.Token(context.Background())
	require.NoError(t, err)
	second, err := cache.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&auth.calls))
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	auth := &fakeAuthenticator{delay: 50 * time.Millisecond}
	cache := token.NewCache(auth)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&auth.calls))
}

func TestExpiredTokenRefreshes(t *testing.T) {
	// tokens inside the safety margin are treated as expired
	auth := &fakeAuthenticator{ttl: 10 * time.Second}
	cache := token.NewCache(auth)

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	_, err = cache.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&auth.calls))
}

func TestAuthenticateFailurePropagates(t *testing.T) {
	auth := &fakeAuthenticator{err: errors.New("exchange failed")}
	cache := token.NewCache(auth)

	_, err := cache.Token(context.Background())
	assert.Error(t, err)
}
