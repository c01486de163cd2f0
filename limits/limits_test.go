package limits

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTakenRollsBackWhenExhausted(t *testing.T) {
	a := NewAtomic(3)
	require.True(t, a.Taken(2), "expected first reservation to succeed")
	require.False(t, a.Taken(2), "expected second reservation to fail and roll back")
	require.EqualValues(t, 1, a.Remaining())
}

func TestGivenReturnsUnits(t *testing.T) {
	a := NewAtomic(0)
	a.Given(5)
	require.EqualValues(t, 5, a.Remaining())
	require.True(t, a.Take())
}

func TestDefaultSystemNonZero(t *testing.T) {
	s := Default()
	require.NotZero(t, s.Threads.Remaining())
	require.NotZero(t, s.Endpoints.Remaining())
}
