package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/monitor"
)

type fakeSweeper struct {
	result *monitor.ExpiryResult
	err    error
	calls  int
}

func (f *fakeSweeper) ProcessExpiredRestockDates(context.Context) (*monitor.ExpiryResult, error) {
	f.calls++
	return f.result, f.err
}

func TestRestockExpiryJob(t *testing.T) {
	tests := []struct {
		name    string
		sweeper *fakeSweeper
		wantErr string
	}{
		{
			name:    "clean sweep",
			sweeper: &fakeSweeper{result: &monitor.ExpiryResult{Success: true, ExpiredCount: 2, NotificationsSent: 3}},
		},
		{
			name:    "partial failures fail the job",
			sweeper: &fakeSweeper{result: &monitor.ExpiryResult{ExpiredCount: 1, Failures: []string{"schedule x: boom"}}},
			wantErr: "1 schedule(s) failed",
		},
		{
			name:    "sweep error",
			sweeper: &fakeSweeper{err: errors.New("db down")},
			wantErr: "db down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := NewRestockExpiryJob(RestockExpiryJobParams{Logger: testLogger(), Monitor: tt.sweeper})
			require.NoError(t, err)
			assert.Equal(t, "restock-expiry", job.Name())

			err = job.Run(context.Background())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, tt.sweeper.calls)
		})
	}
}

func TestNewRestockExpiryJobRequiresMonitor(t *testing.T) {
	_, err := NewRestockExpiryJob(RestockExpiryJobParams{Logger: testLogger()})
	assert.Error(t, err)
}
