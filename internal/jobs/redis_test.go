//go:build integration

package jobs

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testRedis *redis.Client

// TestMain starts a Redis container shared by the integration tests.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testRedis, err = NewRedisClient(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	code := m.Run()

	_ = testRedis.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestRedisRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewRedisRegistry[testJob](testRedis, "lifecycle")

	require.NoError(t, r.Create(ctx, "a", testJob{ID: "a"}))
	assert.ErrorIs(t, r.Create(ctx, "a", testJob{ID: "a"}), ErrDuplicateJob)

	got, ok := r.Update(ctx, "a", func(j *testJob) { j.Progress = 70 })
	require.True(t, ok)
	assert.Equal(t, 70, got.Progress)

	stored, ok := r.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 70, stored.Progress)

	r.Delete(ctx, "a")
	_, ok = r.Get(ctx, "a")
	assert.False(t, ok)
}

func TestRedisRegistryUpdateUnknown(t *testing.T) {
	r := NewRedisRegistry[testJob](testRedis, "unknown")
	_, ok := r.Update(context.Background(), "nope", func(j *testJob) { j.Progress = 1 })
	assert.False(t, ok)
}

func TestRedisRegistryCleanupKeepsTTLAcrossUpdates(t *testing.T) {
	ctx := context.Background()
	r := NewRedisRegistry[testJob](testRedis, "cleanup")
	require.NoError(t, r.Create(ctx, "a", testJob{ID: "a"}))

	r.ScheduleCleanup(ctx, "a", time.Second)
	r.Update(ctx, "a", func(j *testJob) { j.Status = "completed" })

	ttl, err := testRedis.TTL(ctx, r.key("a")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.Eventually(t, func() bool {
		_, ok := r.Get(ctx, "a")
		return !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func TestRedisRegistryTerminalOnceUnderRace(t *testing.T) {
	ctx := context.Background()
	r := NewRedisRegistry[testJob](testRedis, "race")
	require.NoError(t, r.Create(ctx, "a", testJob{ID: "a", Status: "running"}))

	var winners atomic.Int32
	var wg sync.WaitGroup
	for _, status := range []string{"completed", "failed"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var first bool
			_, ok := r.Update(ctx, "a", func(j *testJob) {
				first = j.Status == "running"
				if first {
					j.Status = status
				}
			})
			if ok && first {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	got, ok := r.Get(ctx, "a")
	require.True(t, ok)
	assert.Contains(t, []string{"completed", "failed"}, got.Status)
}
