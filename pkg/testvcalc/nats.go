package testvcalc

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	natsImage = "nats:2-alpine"
	natsPort  = "4222/tcp"
)

// startNATS запускает NATS контейнер и возвращает его вместе с URL клиента.
func startNATS(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        natsImage,
			ExposedPorts: []string{natsPort},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(natsPort),
				wait.ForLog("Server is ready"),
			).WithDeadline(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start NATS container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, natsPort, "nats")
	if err != nil {
		stopNATS(ctx, container)
		return nil, "", fmt.Errorf("get NATS endpoint: %w", err)
	}

	return container, endpoint, nil
}

// stopNATS останавливает контейнер, не дольше 10 секунд.
func stopNATS(ctx context.Context, c testcontainers.Container) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return c.Terminate(ctx)
}
