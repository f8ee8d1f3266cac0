package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "0s"},
		{in: -time.Minute, want: "0s"},
		{in: 42 * time.Second, want: "42s"},
		{in: 3*time.Minute + 400*time.Millisecond, want: "3m"},
		{in: 26*time.Hour + 5*time.Second, want: "1d 2h 5s"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Fatalf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProbeNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	_, status, err := probeNetwork(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("probeNetwork: %v", err)
	}
	if status != http.StatusTeapot {
		t.Fatalf("unexpected status: %d", status)
	}
}
