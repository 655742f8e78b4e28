package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTransitions(t *testing.T) {
	cases := []struct {
		from, to RunStatus
		ok       bool
	}{
		{RunStatusQueued, RunStatusRunning, true},
		{RunStatusRunning, RunStatusSucceeded, true},
		{RunStatusRunning, RunStatusFailed, true},
		{RunStatusQueued, RunStatusSucceeded, false},
		{RunStatusSucceeded, RunStatusRunning, false},
		{RunStatusFailed, RunStatusSucceeded, false},
		{RunStatusRunning, RunStatusQueued, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to))
			err := ValidateTransition(tc.from, tc.to)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrConflict))
			}
		})
	}
}

func TestRunApply(t *testing.T) {
	t.Run("succeeded sets output only", func(t *testing.T) {
		run := NewRun("eligibility", "PAYER1", "", map[string]any{"member_id": "M1"})
		require.Equal(t, RunStatusQueued, run.Status)
		run.Status = RunStatusRunning

		require.NoError(t, run.Apply(Succeeded(map[string]any{"steps": 1})))
		assert.Equal(t, RunStatusSucceeded, run.Status)
		assert.Equal(t, 1, run.Output["steps"])
		assert.Empty(t, run.ErrorCode)
		assert.Empty(t, run.ErrorMsg)
	})

	t.Run("failed sets error only", func(t *testing.T) {
		run := NewRun("eligibility", "PAYER1", "", nil)
		run.Status = RunStatusRunning

		require.NoError(t, run.Apply(Failed(ErrorCodeMfaTimeout, ErrorMsgMfaTimeout)))
		assert.Equal(t, RunStatusFailed, run.Status)
		assert.Nil(t, run.Output)
		assert.Equal(t, ErrorCodeMfaTimeout, run.ErrorCode)
	})

	t.Run("terminal run cannot move", func(t *testing.T) {
		run := NewRun("eligibility", "PAYER1", "", nil)
		run.Status = RunStatusSucceeded

		err := run.Apply(Failed("x", "y"))
		assert.True(t, errors.Is(err, ErrConflict))
		assert.Equal(t, RunStatusSucceeded, run.Status)
	})

	t.Run("invalid outcome", func(t *testing.T) {
		err := TerminalOutcome{Status: RunStatusFailed}.Validate()
		assert.True(t, errors.Is(err, ErrValidation))
		err = TerminalOutcome{Status: RunStatusRunning}.Validate()
		assert.True(t, errors.Is(err, ErrValidation))
	})
}

func TestTransportWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Transport("publish", cause)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, Transport("noop", nil))
}
