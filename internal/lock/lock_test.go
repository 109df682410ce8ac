package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLockerWithoutClientIsNil(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
}

func TestNilLockerGrantsLock(t *testing.T) {
	var l *Locker

	token, ok, err := l.TryLock(context.Background(), "orgchart:reparent", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, l.Release(context.Background(), "orgchart:reparent", token))
}

func TestNilLockerWithLockRunsFn(t *testing.T) {
	var l *Locker
	called := false

	err := l.WithLock(context.Background(), "orgchart:reparent", time.Second, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestWithLockPropagatesFnError(t *testing.T) {
	var l *Locker
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), "k", time.Second, func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
