package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallbacks_NilSafe(t *testing.T) {
	var c *Callbacks

	// None of these should panic
	c.callOnStart(nil)
	c.callOnSuccess(nil)
	c.callOnFailure(nil)
	c.callOnRetryExhausted(nil)

	empty := &Callbacks{}
	empty.callOnStart(&JobResult{})
	empty.callOnSuccess(&JobResult{})
	empty.callOnFailure(&JobResult{})
	empty.callOnRetryExhausted([]*JobResult{})
}

func TestChainCallbacks(t *testing.T) {
	var mu sync.Mutex
	var calls []string

	record := func(name string) *Callbacks {
		return &Callbacks{
			OnSuccess: func(r *JobResult) {
				mu.Lock()
				calls = append(calls, name)
				mu.Unlock()
			},
		}
	}

	chained := ChainCallbacks(record("a"), nil, record("b"))
	chained.callOnSuccess(&JobResult{Name: "deliver"})

	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestLoggingCallbacks(t *testing.T) {
	var lines []string
	logf := func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	c := LoggingCallbacks(logf)
	c.callOnFailure(&JobResult{Name: "deliver", Attempt: 1, WillRetry: true, Error: errors.New("timeout")})
	c.callOnRetryExhausted([]*JobResult{{Name: "deliver"}, {Name: "deliver"}})

	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "will retry")
	assert.Contains(t, lines[1], "All 2 attempts of job deliver failed")
}
