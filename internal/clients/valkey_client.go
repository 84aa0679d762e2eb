package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

type ValkeySettings struct {
	Address  string
	Password string
	TLS      bool
}

type ValkeyClient struct {
	Client   valkey.Client
	settings ValkeySettings
	mu       sync.Mutex
}

func NewValkeyClient(ctx context.Context, s ValkeySettings) (*ValkeyClient, error) {
	client, err := dialValkey(ctx, s)
	if err != nil {
		return nil, err
	}
	slog.Info("[ValkeyClient] Successfully connected to valkey", slog.String("address", s.Address))
	return &ValkeyClient{Client: client, settings: s}, nil
}

func dialValkey(ctx context.Context, s ValkeySettings) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress:      []string{s.Address},
		Password:         s.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if s.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func (vc *ValkeyClient) client() valkey.Client {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.Client
}

func (vc *ValkeyClient) recreateClient(ctx context.Context) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := dialValkey(ctx, vc.settings)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}
	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) Ping(ctx context.Context) error {
	c := vc.client()
	return c.Do(ctx, c.B().Ping().Build()).Error()
}

// GetString returns the value at key; found is false when the key is absent.
func (vc *ValkeyClient) GetString(ctx context.Context, key string) (string, bool, error) {
	c := vc.client()
	res := vc.DoWithRetry(ctx, c.B().Get().Key(key).Build(), 2)
	value, err := res.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		if isConnectionError(err) {
			vc.recreateClient(ctx)
		}
		return "", false, err
	}
	return value, true, nil
}

func (vc *ValkeyClient) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	c := vc.client()
	cmd := c.B().Set().Key(key).Value(value).ExSeconds(int64(ttl / time.Second)).Build()
	if err := vc.DoWithRetry(ctx, cmd, 2).Error(); err != nil {
		if isConnectionError(err) {
			vc.recreateClient(ctx)
		}
		return err
	}
	return nil
}

func (vc *ValkeyClient) DoWithRetry(ctx context.Context, completed valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	c := vc.client()
	completed = completed.Pin()
	for i := 0; i < retries; i++ {
		result = c.Do(ctx, completed)
		if err := result.Error(); err == nil || valkey.IsValkeyNil(err) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", result.Error().Error()))

		time.Sleep(250 * time.Millisecond)
	}

	return result
}

func (vc *ValkeyClient) Close() {
	vc.client().Close()
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
