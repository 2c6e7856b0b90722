//go:build integration

package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/snipvault/internal/ratelimit"
)

// TestRedis manages a Redis testcontainer for the shared rate limit store
type TestRedis struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

// SetupTestRedis starts a Redis container and connects a client to it
func SetupTestRedis(ctx context.Context) (*TestRedis, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get redis host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get redis port: %w", err)
	}

	url := fmt.Sprintf("redis://%s:%s/0", host, port.Port())
	client, err := ratelimit.NewRedisClient(ctx, url)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestRedis{Container: container, URL: url, Client: client}, nil
}

// Flush removes every counter between tests
func (r *TestRedis) Flush(ctx context.Context) error {
	return r.Client.FlushDB(ctx).Err()
}

// Teardown closes the client and stops the container
func (r *TestRedis) Teardown(ctx context.Context) error {
	if r.Client != nil {
		_ = r.Client.Close()
	}
	if r.Container != nil {
		return r.Container.Terminate(ctx)
	}
	return nil
}
