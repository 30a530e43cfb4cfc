package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"emg-service/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want model.Sample
		ok   bool
	}{
		{"0.42", 0.42, true},
		{"  3.25 \r", 3.25, true},
		{"-1.5", -1.5, true},
		{"12", 12, true},
		{"1e3", 1000, true},
		{"abc", 0, false},
		{"", 0, false},
		{"   ", 0, false},
		{"0.4.2", 0, false},
		{"NaN", 0, false},
		{"1,5", 0, false},
		{"1e-200000000", 0, true},
		{"-1e-400", 0, true},
		{"1e400", 0, false},
		{"1e200000000", 0, false},
		{"0x1p3", 0, false},
		{"1_000", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := Parse(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, float64(tt.want), float64(got), 1e-9)
		})
	}
}

func TestParse_HugeExponentIsFast(t *testing.T) {
	for _, line := range []string{"1e-200000000", "1e200000000", "-9e-2147483647"} {
		start := time.Now()
		Parse(line)
		assert.Less(t, time.Since(start), 100*time.Millisecond, line)
	}
}
