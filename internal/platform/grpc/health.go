package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/soimap/internal/platform/timeouts"
	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// WaitForHealth polls the health service until service reports SERVING or
// ctx ends. An empty service asks about the whole server.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	client := grpc_health_v1.NewHealthClient(conn)
	delay := timeouts.HealthPollStart
	for attempt := 1; ; attempt++ {
		got, err := checkHealth(ctx, client, service)
		if err == nil && got == grpc_health_v1.HealthCheckResponse_SERVING {
			logf("health %s: serving after %d attempt(s)", serviceLabel(service), attempt)
			return nil
		}
		if err != nil {
			logf("health %s: attempt %d: %v", serviceLabel(service), attempt, err)
		} else {
			logf("health %s: attempt %d: %s", serviceLabel(service), attempt, got)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for %s health: %w", serviceLabel(service), ctx.Err())
		case <-timer.C:
		}
		delay = nextHealthDelay(delay)
	}
}

func checkHealth(ctx context.Context, client grpc_health_v1.HealthClient, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
	defer cancel()
	resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// nextHealthDelay doubles delay up to timeouts.HealthPollMax.
func nextHealthDelay(delay time.Duration) time.Duration {
	delay *= 2
	if delay <= 0 || delay > timeouts.HealthPollMax {
		return timeouts.HealthPollMax
	}
	return delay
}

func serviceLabel(service string) string {
	if service == "" {
		return "server"
	}
	return fmt.Sprintf("%q", service)
}
