package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRationalFromString(t *testing.T) {
	tests := []struct {
		input          string
		expectedNum    int64
		expectedDen    int64
		expectingError bool
	}{
		{"30", 30, 1, false},
		{"30/1", 30, 1, false},
		{"30000/1001", 30000, 1001, false}, // NTSC
		{"~23.976", 24000, 1001, false},    // NTSC
		{"~23.98", 24000, 1001, false},     // NTSC
		{"~29.93", 2993, 100, false},       // non-NTSC
		{"~29.97", 30000, 1001, false},     // NTSC
		{"~25", 25, 1, false},
		{"~47.952", 48000, 1001, false},
		{"~119.88", 120000, 1001, false},
		{"~60", 60, 1, false},
		{"~0.3", 3, 10, false},
		{"0.33333", 33333, 100000, false},
		{"0.04", 1, 25, false},
		{"1/44100", 1, 44100, false},
		{"0/1", 0, 1, false},
		{"1/0", 0, 0, true},
		{"", 0, 0, true},
		{"invalid", 0, 0, true},
		{"10/invalid", 0, 0, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			rational, err := RationalFromString(test.input)
			if test.expectingError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expectedNum, rational.Num)
			require.Equal(t, test.expectedDen, rational.Den)
		})
	}
}

func TestRationalText(t *testing.T) {
	var r Rational
	require.NoError(t, r.UnmarshalText([]byte("1/25")))
	require.Equal(t, R(1, 25), r)

	b, err := r.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1/25", string(b))

	require.Error(t, r.UnmarshalText([]byte("x")))
	require.Equal(t, R(1, 25), r)
}

func TestRationalArithmetic(t *testing.T) {
	require.Equal(t, R(25, 1), R(1, 25).Reverse())
	require.Equal(t, R(1, 50), R(1, 25).Mul(R(1, 2)))
	require.Equal(t, R(2, 25), R(1, 25).Div(R(1, 2)))
	require.Equal(t, R(3, 4), R(6, 8).Reduce())
	require.InDelta(t, 0.04, R(1, 25).Float64(), 1e-12)
	require.True(t, R(1, 1000).IsValid())
	require.False(t, R(1, 0).IsValid())
}
