package supervisor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bnema/gatewayd/internal/domain"
)

func TestRingBufferUnderCapacityPreservesOrder(t *testing.T) {
	rb := newRingBuffer(5)
	for i := 0; i < 3; i++ {
		rb.add(domain.LogLine{Line: string(rune('a' + i))})
	}
	lines := rb.snapshot(0)
	require.Len(t, lines, 3)
	require.Equal(t, "a", lines[0].Line)
	require.Equal(t, "c", lines[2].Line)
}

func TestRingBufferOverCapacityKeepsMostRecent(t *testing.T) {
	rb := newRingBuffer(3)
	for i := 0; i < 7; i++ {
		rb.add(domain.LogLine{Line: string(rune('a' + i))})
	}
	lines := rb.snapshot(0)
	require.Len(t, lines, 3)
	require.Equal(t, []string{"e", "f", "g"}, []string{lines[0].Line, lines[1].Line, lines[2].Line})
}

func TestRingBufferSnapshotFromIndexSkipsDroppedLines(t *testing.T) {
	rb := newRingBuffer(3)
	for i := 0; i < 7; i++ {
		rb.add(domain.LogLine{Line: string(rune('a' + i))})
	}
	lines := rb.snapshot(5)
	require.Len(t, lines, 2)
	require.Equal(t, "f", lines[0].Line)
	require.Equal(t, "g", lines[1].Line)
}

func TestRingBufferSnapshotFromIndexBeyondAvailableReturnsEmpty(t *testing.T) {
	rb := newRingBuffer(3)
	for i := 0; i < 3; i++ {
		rb.add(domain.LogLine{Line: "x"})
	}
	require.Empty(t, rb.snapshot(10))
}
