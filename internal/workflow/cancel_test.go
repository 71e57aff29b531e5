package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryCancelRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryCancelRegistry()

	got, err := r.Signalled(ctx, "run-1")
	if err != nil || got {
		t.Fatalf("fresh registry should be unsignalled, got %v %v", got, err)
	}

	if err := r.Signal(ctx, "run-1"); err != nil {
		t.Fatalf("signal: %v", err)
	}
	// Signalling twice is a no-op.
	if err := r.Signal(ctx, "run-1"); err != nil {
		t.Fatalf("second signal: %v", err)
	}
	if got, _ := r.Signalled(ctx, "run-1"); !got {
		t.Fatalf("expected signalled")
	}
	if got, _ := r.Signalled(ctx, "run-2"); got {
		t.Fatalf("signal leaked across run ids")
	}

	if err := r.Clear(ctx, "run-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := r.Signalled(ctx, "run-1"); got {
		t.Fatalf("expected cleared")
	}
}

func TestRedisCancelRegistry(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	r := NewRedisCancelRegistry(rdb, time.Minute)

	if got, err := r.Signalled(ctx, "run-1"); err != nil || got {
		t.Fatalf("fresh registry should be unsignalled, got %v %v", got, err)
	}
	if err := r.Signal(ctx, "run-1"); err != nil {
		t.Fatalf("signal: %v", err)
	}
	if got, _ := r.Signalled(ctx, "run-1"); !got {
		t.Fatalf("expected signalled")
	}
	if got, _ := r.Signalled(ctx, "run-2"); got {
		t.Fatalf("signal leaked across run ids")
	}
	if err := r.Clear(ctx, "run-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := r.Signalled(ctx, "run-1"); got {
		t.Fatalf("expected cleared")
	}
}

func TestRedisCancelRegistrySignalExpires(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	r := NewRedisCancelRegistry(rdb, time.Second)
	if err := r.Signal(ctx, "run-1"); err != nil {
		t.Fatalf("signal: %v", err)
	}
	srv.FastForward(2 * time.Second)
	if got, _ := r.Signalled(ctx, "run-1"); got {
		t.Fatalf("expected signal to expire")
	}
}
