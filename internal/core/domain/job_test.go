package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{"queued to running", JobQueued, JobRunning, true},
		{"queued to done skips running", JobQueued, JobDone, false},
		{"queued to failed skips running", JobQueued, JobFailed, false},
		{"running to done", JobRunning, JobDone, true},
		{"running to failed", JobRunning, JobFailed, true},
		{"running back to queued", JobRunning, JobQueued, false},
		{"done to queued is re-ingestion", JobDone, JobQueued, true},
		{"failed to queued is re-ingestion", JobFailed, JobQueued, true},
		{"done to running", JobDone, JobRunning, false},
		{"failed to done", JobFailed, JobDone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobQueued.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobDone.Terminal())
	assert.True(t, JobFailed.Terminal())
}

func TestJobStatusValid(t *testing.T) {
	assert.True(t, JobQueued.Valid())
	assert.True(t, JobRunning.Valid())
	assert.True(t, JobDone.Valid())
	assert.True(t, JobFailed.Valid())
	assert.False(t, JobStatus("pending").Valid())
	assert.False(t, JobStatus("").Valid())
}
