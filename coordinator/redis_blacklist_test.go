package coordinator

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"goa.design/pulse/rmap"
)

var (
	testRedisClient    *redis.Client
	testRedisContainer testcontainers.Container
	skipIntegration    bool
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		}
		testRedisContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()

	if containerErr != nil {
		fmt.Printf("Docker not available, integration tests will be skipped: %v\n", containerErr)
		skipIntegration = true
	} else {
		host, err := testRedisContainer.Host(ctx)
		if err != nil {
			skipIntegration = true
		} else {
			port, err := testRedisContainer.MappedPort(ctx, "6379")
			if err != nil {
				skipIntegration = true
			} else {
				testRedisClient = redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
				if err := testRedisClient.Ping(ctx).Err(); err != nil {
					skipIntegration = true
				}
			}
		}
	}

	code := m.Run()

	if testRedisClient != nil {
		_ = testRedisClient.Close()
	}
	if testRedisContainer != nil {
		_ = testRedisContainer.Terminate(ctx)
	}
	os.Exit(code)
}

// joinTestMap returns a freshly named replicated map so each test case gets
// its own isolated keyspace within the one Redis instance.
func joinTestMap(t *testing.T, name string) *rmap.Map {
	t.Helper()
	if skipIntegration {
		t.Skip("Docker not available, skipping integration test")
	}
	m, err := rmap.Join(context.Background(), name, testRedisClient)
	require.NoError(t, err)
	return m
}

func TestRedisBlacklistStoreAddAndContains(t *testing.T) {
	store := NewRedisBlacklistStore(joinTestMap(t, "test-add-contains"), "test", time.Minute)
	ctx := context.Background()

	ok, err := store.Contains(ctx, "drive", 42)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Add(ctx, "drive", 42))

	ok, err = store.Contains(ctx, "drive", 42)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Contains(ctx, "walk", 42)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisBlacklistStoreNamespaceIsolation(t *testing.T) {
	m := joinTestMap(t, "test-namespace-isolation")
	a := NewRedisBlacklistStore(m, "attempt-a", time.Minute)
	b := NewRedisBlacklistStore(m, "attempt-b", time.Minute)
	ctx := context.Background()

	require.NoError(t, a.Add(ctx, "drive", 1))
	ok, err := b.Contains(ctx, "drive", 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisBlacklistStoreEntryExpires(t *testing.T) {
	store := NewRedisBlacklistStore(joinTestMap(t, "test-expiry"), "test", time.Nanosecond)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "drive", 7))
	time.Sleep(time.Millisecond)

	ok, err := store.Contains(ctx, "drive", 7)
	require.NoError(t, err)
	require.False(t, ok)
}
