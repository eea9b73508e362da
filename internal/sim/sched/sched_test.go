package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunsInDueOrder(t *testing.T) {
	q := New()
	var got []string
	q.After(60, func() { got = append(got, "late") })
	q.After(1, func() { got = append(got, "a") })
	q.After(1, func() { got = append(got, "b") })

	require.Equal(t, 0, q.Advance(0))
	require.Equal(t, 2, q.Advance(1))
	require.Equal(t, []string{"a", "b"}, got)
	require.Equal(t, 0, q.Advance(59))
	require.Equal(t, 1, q.Advance(60))
	require.Equal(t, []string{"a", "b", "late"}, got)
	require.Zero(t, q.Len())
}

func TestDelayIsRelativeToLastAdvance(t *testing.T) {
	q := New()
	q.Advance(100)
	fired := false
	q.After(3, func() { fired = true })
	q.Advance(102)
	require.False(t, fired)
	q.Advance(200)
	require.True(t, fired)
}

func TestZeroDelayFromTaskRunsSameAdvance(t *testing.T) {
	q := New()
	n := 0
	q.After(0, func() {
		n++
		q.After(0, func() { n++ })
	})
	require.Equal(t, 2, q.Advance(0))
	require.Equal(t, 2, n)
}
