// Package copilot holds the gRPC client for the downstream suggestion
// service. The gateway only consumes its health surface: suggestion
// generation happens after chunks leave this process.
package copilot

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/rs/zerolog/log"

	"github.com/prepflow/stt-gateway/internal/config"
)

// Client manages the gRPC connection to the suggestion copilot
type Client struct {
	cfg    *config.Config
	mu     sync.Mutex
	conn   *grpc.ClientConn
	health grpc_health_v1.HealthClient
}

// NewClient dials the copilot endpoint. Returns an error when no endpoint is
// configured so callers can decide whether the dependency is optional.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.CopilotURL == "" {
		return nil, fmt.Errorf("copilot: no endpoint configured")
	}

	c := &Client{cfg: cfg}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	creds := insecure.NewCredentials()
	if c.cfg.CopilotTLSEnabled {
		creds = credentials.NewTLS(&tls.Config{})
	} else {
		log.Warn().Str("endpoint", c.cfg.CopilotURL).Msg("Copilot connection is not using TLS")
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	conn, err := grpc.NewClient(c.cfg.CopilotURL, opts...)
	if err != nil {
		return fmt.Errorf("failed to dial copilot at %s: %w", c.cfg.CopilotURL, err)
	}

	c.conn = conn
	c.health = grpc_health_v1.NewHealthClient(conn)
	return nil
}

// HealthCheck probes the copilot via the standard gRPC health protocol
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	c.mu.Lock()
	health := c.health
	c.mu.Unlock()

	if health == nil {
		return false, fmt.Errorf("copilot: not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.CopilotTimeout)*time.Second)
	defer cancel()

	resp, err := health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING, nil
}

// Close tears down the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.health = nil
	return err
}
