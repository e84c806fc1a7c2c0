package cache

import (
	"context"
	"testing"
)

func TestNoClientIsNoOp(t *testing.T) {
	SetClient(nil)
	ctx := context.Background()

	CacheMapping(ctx, "JakeR", 7)
	if _, ok := GetCachedMapping(ctx, "JakeR"); ok {
		t.Fatalf("expected miss without a client")
	}
	CacheDialerActive(ctx, true)
	if _, ok := GetCachedDialerActive(ctx); ok {
		t.Fatalf("expected miss without a client")
	}
	InvalidateDialerCaches(ctx)
	if IsHealthy() {
		t.Fatalf("expected unhealthy without a client")
	}
}
