package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type consumerFunc func(context.Context) error

func (f consumerFunc) Run(ctx context.Context) error { return f(ctx) }

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestNewServiceRequiresConsumers(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: quietLogger()})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: quietLogger(), Consumers: map[string]consumer{"x": nil}})
	assert.Error(t, err)
}

func TestRunFailsFastOnUnreadyDependency(t *testing.T) {
	ran := false
	svc, err := NewService(ServiceParams{
		Logger:       quietLogger(),
		Dependencies: []dependency{{name: "redis", ping: func(context.Context) error { return errors.New("refused") }}},
		Consumers: map[string]consumer{"mail": consumerFunc(func(context.Context) error {
			ran = true
			return nil
		})},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	assert.ErrorContains(t, err, "redis ping failed")
	assert.False(t, ran)
}

func TestRunReturnsConsumerError(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc, err := NewService(ServiceParams{
		Logger:    quietLogger(),
		Consumers: map[string]consumer{"mail": consumerFunc(func(context.Context) error { return boom })},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Run(context.Background()), boom)
}

func TestRunStopsWithContext(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger: quietLogger(),
		Consumers: map[string]consumer{"mail": consumerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
}
