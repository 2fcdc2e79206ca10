package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCodeRegistryReserveRelease(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	registry := NewCodeRegistry(newClient(mr), time.Hour)

	ok, err := registry.Reserve(ctx, "ABC234")
	if err != nil || !ok {
		t.Fatalf("expected reservation, ok=%v err=%v", ok, err)
	}
	if !mr.Exists("quiz:code:ABC234") {
		t.Fatalf("expected redis key for reserved code")
	}
	ok, err = registry.Reserve(ctx, "ABC234")
	if err != nil || ok {
		t.Fatalf("expected collision, ok=%v err=%v", ok, err)
	}

	if err := registry.Release(ctx, "ABC234"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = registry.Reserve(ctx, "ABC234")
	if err != nil || !ok {
		t.Fatalf("expected released code to be reusable, ok=%v err=%v", ok, err)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}
