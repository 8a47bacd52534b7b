package store

import (
	"context"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStoreFromConfig(&BadgerConfig{InMemory: true, LogLevel: "error"}, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerKV(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Get(ctx, []byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := s.Set(ctx, []byte("btcr:loc:a"), []byte("1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, []byte("btcr:loc:b"), []byte("2")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, []byte("other"), []byte("3")); err != nil {
		t.Fatalf("set: %v", err)
	}

	v, err := s.Get(ctx, []byte("btcr:loc:a"))
	if err != nil || string(v) != "1" {
		t.Fatalf("get = %q, %v", v, err)
	}

	kvs, err := s.Scan(ctx, []byte("btcr:loc:"), 0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(kvs) != 2 || string(kvs[0].Key) != "btcr:loc:a" || string(kvs[1].Value) != "2" {
		t.Errorf("unexpected scan result %+v", kvs)
	}

	limited, err := s.Scan(ctx, []byte("btcr:"), 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("limited scan = %d entries, %v", len(limited), err)
	}

	if err := s.Del(ctx, []byte("btcr:loc:a")); err != nil {
		t.Fatalf("del: %v", err)
	}
	if err := s.Del(ctx, []byte("btcr:loc:a")); err != nil {
		t.Fatalf("deleting a missing key must not fail: %v", err)
	}
	if _, err := s.Get(ctx, []byte("btcr:loc:a")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestBadgerHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := []byte("btcr:tx:TESTNET:abc")

	if err := s.HMSet(ctx, key, map[string][]byte{
		"blockHeight":       []byte("1201739"),
		"inputScriptPubKey": []byte("02ab"),
	}); err != nil {
		t.Fatalf("hmset: %v", err)
	}
	if err := s.HSet(ctx, key, []byte("deactivated"), []byte("false")); err != nil {
		t.Fatalf("hset: %v", err)
	}
	// a key sharing the prefix must not leak into HGetAll
	if err := s.HSet(ctx, []byte("btcr:tx:TESTNET:abcd"), []byte("x"), []byte("y")); err != nil {
		t.Fatalf("hset: %v", err)
	}

	all, err := s.HGetAll(ctx, key)
	if err != nil {
		t.Fatalf("hgetall: %v", err)
	}
	if len(all) != 3 || string(all["blockHeight"]) != "1201739" {
		t.Errorf("unexpected hash %v", all)
	}

	v, err := s.HGet(ctx, key, []byte("inputScriptPubKey"))
	if err != nil || string(v) != "02ab" {
		t.Errorf("hget = %q, %v", v, err)
	}

	if err := s.HDel(ctx, key, []byte("blockHeight"), []byte("missing")); err != nil {
		t.Fatalf("hdel: %v", err)
	}
	if _, err := s.HGet(ctx, key, []byte("blockHeight")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestInitializeModes(t *testing.T) {
	ctx := context.Background()

	svc, err := (&Config{Mode: ModeDisabled}).Initialize(ctx, nil)
	if err != nil || svc != nil {
		t.Fatalf("disabled store must return nil services, got %v, %v", svc, err)
	}

	svc, err = (&Config{Mode: ModeEmbedded, Provider: ProviderBadger, Badger: BadgerConfig{InMemory: true}}).Initialize(ctx, nil)
	if err != nil {
		t.Fatalf("embedded: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("close: %v", err)
	}

	if _, err := (&Config{Mode: ModeRemote, Provider: ProviderBadger}).Initialize(ctx, nil); err == nil {
		t.Errorf("badger is not a remote provider")
	}
	if _, err := (&Config{Mode: "bogus"}).Initialize(ctx, nil); err == nil {
		t.Errorf("expected error for unknown mode")
	}
}
