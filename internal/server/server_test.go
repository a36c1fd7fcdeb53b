package server

import (
	"testing"
	"time"
)

func TestWriteTimeoutCoversOrderTimeout(t *testing.T) {
	tests := []struct {
		order time.Duration
		want  time.Duration
	}{
		{0, 2 * time.Minute},
		{30 * time.Second, 2 * time.Minute},
		{300 * time.Second, 6 * time.Minute},
	}
	for _, tc := range tests {
		if got := (Config{OrderTimeout: tc.order}).writeTimeout(); got != tc.want {
			t.Errorf("order timeout %s: write timeout = %s, want %s", tc.order, got, tc.want)
		}
	}
}
