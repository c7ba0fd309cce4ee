package utils

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsPositiveFinite(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want bool
	}{
		{name: "positive", in: 1.5, want: true},
		{name: "zero", in: 0, want: false},
		{name: "negative", in: -3, want: false},
		{name: "nan", in: math.NaN(), want: false},
		{name: "inf", in: math.Inf(1), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPositiveFinite(tt.in))
		})
	}
}

func TestFormatChange(t *testing.T) {
	assert.Equal(t, "+50.0%", FormatChange(100, 150))
	assert.Equal(t, "-12.5%", FormatChange(100, 87.5))
	assert.Equal(t, "n/a", FormatChange(0, 1))
}

func TestGoSafeRecovers(t *testing.T) {
	done := make(chan struct{})
	GoSafe(nil, func() {
		defer close(done)
		panic("boom")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

func TestClampAndContains(t *testing.T) {
	assert.Equal(t, 100.0, Clamp(120, 0, 100))
	assert.Equal(t, 0.0, Clamp(-5, 0, 100))
	assert.True(t, ContainsFold([]string{"Doge"}, "DOGE"))
	assert.False(t, ContainsString([]string{"Doge"}, "DOGE"))
}
