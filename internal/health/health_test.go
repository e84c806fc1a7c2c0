package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeBacklog int

func (f fakeBacklog) CountPending(ctx context.Context) (int, error) { return int(f), nil }

func TestCheckBasic(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"database up", nil, "healthy"},
		{"database down", errors.New("connection refused"), "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewHealthChecker(fakePinger{tt.err}, nil).CheckBasic()
			if st.Status != tt.want || st.Database.Status != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, st)
			}
			if st.Redis.Status != "disabled" {
				t.Fatalf("redis never configured, got %q", st.Redis.Status)
			}
		})
	}
}

func TestCheckDetailedReportsBacklog(t *testing.T) {
	d := NewHealthChecker(fakePinger{}, fakeBacklog(4)).CheckDetailed(context.Background())
	if d.OutboxBacklog != 4 {
		t.Fatalf("expected backlog 4, got %d", d.OutboxBacklog)
	}
	if d.Goroutines == 0 || d.Uptime == "" {
		t.Fatalf("runtime stats missing: %+v", d)
	}
}

func TestFormatBytes(t *testing.T) {
	if got := formatBytes(512 * 1024 * 1024); got != "512.0 MB" {
		t.Fatalf("got %q", got)
	}
	if got := formatBytes(3 * 1024 * 1024 * 1024); got != "3.0 GB" {
		t.Fatalf("got %q", got)
	}
}
