package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallbacks_NilSafe(t *testing.T) {
	var c *Callbacks
	assert.NotPanics(t, func() { c.call(onArmed, Event{}) })

	c = &Callbacks{}
	assert.NotPanics(t, func() { c.call(onAbnormal, Event{}) })
}

func TestChainCallbacks(t *testing.T) {
	var got []string
	a := &Callbacks{OnCheckIn: func(ev Event) { got = append(got, "a:"+ev.DateKey) }}
	b := &Callbacks{OnCheckIn: func(ev Event) { got = append(got, "b:"+ev.DateKey) }}

	chained := ChainCallbacks(a, nil, b)
	chained.call(onCheckIn, Event{DateKey: "2026-03-17"})
	chained.call(onReset, Event{})

	assert.Equal(t, []string{"a:2026-03-17", "b:2026-03-17"}, got)
}

func TestLoggingCallbacks(t *testing.T) {
	var lines []string
	c := LoggingCallbacks(func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})

	c.call(onArmed, Event{DateKey: "2026-03-17"})
	c.call(onConfirmed, Event{DateKey: "2026-03-17"})

	assert.Equal(t, []string{
		"Monitoring started for 2026-03-17",
		"User confirmed safe for 2026-03-17",
	}, lines)
}
