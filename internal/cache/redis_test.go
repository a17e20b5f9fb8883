package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mmynk/contri/internal/models"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, ttl), mr
}

func countingLoader(calls *atomic.Int32, name string) Loader {
	return func(context.Context) (*models.GroupView, error) {
		calls.Add(1)
		return &models.GroupView{Group: models.Group{ID: "grp_1", Name: name}}, nil
	}
}

func TestRedisCache_ReadThrough(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		view, err := c.Get(ctx, "grp_1", countingLoader(&calls, "Flat"))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if view.Group.Name != "Flat" {
			t.Errorf("view name = %q", view.Group.Name)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("loader called %d times, want 1", calls.Load())
	}
	if !mr.Exists("contri:group:grp_1") {
		t.Error("view not stored in redis")
	}
	if ttl := mr.TTL("contri:group:grp_1"); ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", ttl)
	}
}

func TestRedisCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	var calls atomic.Int32

	c.Get(ctx, "grp_1", countingLoader(&calls, "Old"))
	if err := c.Invalidate(ctx, "grp_1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	view, err := c.Get(ctx, "grp_1", countingLoader(&calls, "New"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if view.Group.Name != "New" || calls.Load() != 2 {
		t.Errorf("after invalidate: name=%q calls=%d", view.Group.Name, calls.Load())
	}
}

func TestRedisCache_Expiry(t *testing.T) {
	c, mr := newTestCache(t, time.Second)
	ctx := context.Background()
	var calls atomic.Int32

	c.Get(ctx, "grp_1", countingLoader(&calls, "Flat"))
	mr.FastForward(2 * time.Second)
	c.Get(ctx, "grp_1", countingLoader(&calls, "Flat"))

	if calls.Load() != 2 {
		t.Errorf("loader called %d times, want 2 after expiry", calls.Load())
	}
}

func TestRedisCache_RedisDown(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	mr.Close()

	var calls atomic.Int32
	view, err := c.Get(ctx, "grp_1", countingLoader(&calls, "Flat"))
	if err != nil || view == nil {
		t.Fatalf("Get should fall back to the loader, got %v", err)
	}
	if err := c.Invalidate(ctx, "grp_1"); err == nil {
		t.Error("Invalidate should report the redis failure")
	}
}

func TestRedisCache_LoaderError(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	boom := errors.New("boom")

	_, err := c.Get(context.Background(), "grp_1", func(context.Context) (*models.GroupView, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if mr.Exists("contri:group:grp_1") {
		t.Error("failed load must not be cached")
	}
}

func TestRedisCache_ConcurrentMissesShareLoad(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (*models.GroupView, error) {
		calls.Add(1)
		<-release
		return &models.GroupView{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Get(ctx, "grp_1", load)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n < 1 || n > 5 {
		t.Errorf("loader called %d times", n)
	}
}

func TestNop(t *testing.T) {
	var calls atomic.Int32
	n := Nop{}
	n.Get(context.Background(), "g", countingLoader(&calls, "x"))
	n.Get(context.Background(), "g", countingLoader(&calls, "x"))
	if calls.Load() != 2 {
		t.Errorf("Nop should always load, calls = %d", calls.Load())
	}
	if err := n.Invalidate(context.Background(), "g"); err != nil {
		t.Errorf("Invalidate = %v", err)
	}
}
