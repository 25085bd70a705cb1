package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRescaleRnd(t *testing.T) {
	for _, tc := range []struct {
		a, b, c  int64
		rnd      Rounding
		expected int64
	}{
		{1024, 44100, 48000, RoundUp, 941},
		{1024, 44100, 48000, RoundDown, 940},
		{1024, 44100, 48000, RoundZero, 940},
		{1024, 44100, 48000, RoundNearInf, 941},
		{-1024, 44100, 48000, RoundUp, -940},
		{-1024, 44100, 48000, RoundDown, -941},
		{-1024, 44100, 48000, RoundInf, -941},
		{3, 1, 2, RoundNearInf, 2},   // 1.5 -> 2
		{-3, 1, 2, RoundNearInf, -2}, // -1.5 -> -2
		{5, 1, 4, RoundNearInf, 1},   // 1.25 -> 1
		{7, 1, 4, RoundNearInf, 2},   // 1.75 -> 2
		{4, 1, 2, RoundUp, 2},
		{math.MaxInt64, 2, 2, RoundNearInf, math.MaxInt64},
		{math.MaxInt64, 4, 2, RoundNearInf, math.MaxInt64},
	} {
		require.Equal(t, tc.expected, RescaleRnd(tc.a, tc.b, tc.c, tc.rnd), "%d*%d/%d (%s)", tc.a, tc.b, tc.c, tc.rnd)
	}
}

func TestRescale(t *testing.T) {
	// one 25fps frame in milliseconds
	require.Equal(t, int64(40), Rescale(1, R(1, 25), R(1, 1000)))
	// one 1024-samples AAC frame at 44100Hz in milliseconds: 23.219... -> 23
	require.Equal(t, int64(23), Rescale(1024, R(1, 44100), R(1, 1000)))
	// 90kHz
	require.Equal(t, int64(3600), Rescale(1, R(1, 25), R(1, 90000)))
	// ties go away from zero: 1/2000 s in milliseconds is 0.5
	require.Equal(t, int64(1), Rescale(1, R(1, 2000), R(1, 1000)))
	require.Equal(t, int64(-1), Rescale(-1, R(1, 2000), R(1, 1000)))
	require.Equal(t, int64(17), Rescale(17, R(1, 25), R(1, 25)))
	require.Equal(t, int64(1), RescaleQRnd(1, R(1, 3000), R(1, 1000), RoundUp))
}

func TestCompareTS(t *testing.T) {
	require.Equal(t, 0, CompareTS(1, R(1, 25), 40, R(1, 1000)))
	require.Equal(t, 0, CompareTS(1, R(1, 25), 1764, R(1, 44100)))
	require.Equal(t, -1, CompareTS(1, R(1, 25), 1765, R(1, 44100)))
	require.Equal(t, 1, CompareTS(1, R(1, 25), 1763, R(1, 44100)))
	require.Equal(t, 0, CompareTS(0, R(1, 25), 0, R(1, 44100)))
	// large values do not overflow
	require.Equal(t, 1, CompareTS(math.MaxInt64, R(1, 1000), math.MaxInt64-1, R(1, 1000)))
}

func TestCeilDiv(t *testing.T) {
	require.Equal(t, 216, CeilDiv(5*44100, 1024))
	require.Equal(t, int64(2), CeilDiv(int64(4), int64(2)))
}
