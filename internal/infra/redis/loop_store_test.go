package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/vietddude/cycler/internal/core/config"
	"github.com/vietddude/cycler/internal/core/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestLoopStore_DefaultsWhenMissing(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewLoopStore(client, "")

	cfg, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != config.DefaultLoopConfig() {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoopStore_SaveLoad(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewLoopStore(client, "test:loop")
	ctx := context.Background()

	last := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	cfg := config.DefaultLoopConfig()
	cfg.AutoLoop.Enabled = true
	cfg.AutoLoop.EnableFaucet = true
	cfg.AutoLoop.LastRun = &last

	if err := store.Save(ctx, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !mr.Exists("test:loop") {
		t.Fatal("Expected record under the configured key")
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !got.AutoLoop.Enabled || !got.AutoLoop.EnableFaucet || !got.AutoLoop.LastRun.Equal(last) {
		t.Errorf("round trip mismatch: %+v", got.AutoLoop)
	}
}

func TestLoopStore_InvalidRecord(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewLoopStore(client, "")

	mr.Set(DefaultLoopKey, `{"autoLoop":{"intervalHours":0}}`)
	if _, err := store.Load(context.Background()); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewClient(Config{URL: "redis://" + addr}); err == nil {
		t.Error("Expected connection error")
	}
}
