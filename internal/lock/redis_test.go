package lock

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"flashArb/internal/model"
)

// memoryRedis implements SETNX and the release script over a map.
type memoryRedis struct {
	redis.Scripter

	values  map[string]interface{}
	ttls    map[string]time.Duration
	err     error
	evals   int
	lastTTL time.Duration
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: make(map[string]interface{}), ttls: make(map[string]time.Duration)}
}

func (m *memoryRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if m.err != nil {
		return redis.NewBoolResult(false, m.err)
	}
	if _, ok := m.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.values[key] = value
	m.ttls[key] = ttl
	m.lastTTL = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memoryRedis) EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	m.evals++
	if m.values[keys[0]] == args[0] {
		delete(m.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestGuardAcquireRelease(t *testing.T) {
	store := newMemoryRedis()
	guard := NewGuard(store, "flasharb:lock:test", 30*time.Second)

	release, err := guard.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if store.lastTTL != 30*time.Second {
		t.Fatalf("ttl mismatch: %s", store.lastTTL)
	}

	if _, err := guard.Acquire(context.Background()); !errors.Is(err, model.ErrLockHeld) {
		t.Fatalf("second acquire should report held lock, got %v", err)
	}

	release()
	release()
	if store.evals != 1 {
		t.Fatalf("release should run once, ran %d", store.evals)
	}

	release, err = guard.Acquire(context.Background())
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	release()
}

func TestGuardReleaseKeepsForeignLease(t *testing.T) {
	store := newMemoryRedis()
	guard := NewGuard(store, "k", time.Second)

	release, err := guard.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// simulate expiry and takeover by another instance
	store.values["k"] = "other-token"
	release()
	if store.values["k"] != "other-token" {
		t.Fatalf("release removed a lease it does not own")
	}
}

func TestGuardRedisError(t *testing.T) {
	store := newMemoryRedis()
	store.err = errors.New("connection refused")
	_, err := NewGuard(store, "k", time.Second).Acquire(context.Background())
	if err == nil || errors.Is(err, model.ErrLockHeld) {
		t.Fatalf("expected redis error, got %v", err)
	}
}

func TestKey(t *testing.T) {
	pair := model.Pair{
		Token0: model.Token{Address: common.HexToAddress("0x4200000000000000000000000000000000000006")},
		Token1: model.Token{Address: common.HexToAddress("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb")},
		Fee:    500,
	}
	key := Key(pair)
	if !strings.HasPrefix(key, "flasharb:lock:0x4200") || !strings.HasSuffix(key, ":500") || key != strings.ToLower(key) {
		t.Fatalf("unexpected key %s", key)
	}
}
