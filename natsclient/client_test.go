package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/metric"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, -1, client.maxReconnects)
	assert.Equal(t, 5*time.Second, client.timeout)
}

func TestNewClient_Options(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithPingInterval(10*time.Second),
		WithTimeout(2*time.Second),
		WithDrainTimeout(time.Second),
		WithCredentials("user", "pass"),
		WithName("flowvalidator"),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, client.maxReconnects)
	assert.Equal(t, time.Second, client.reconnectWait)
	assert.Equal(t, 10*time.Second, client.pingInterval)
	assert.Equal(t, 2*time.Second, client.timeout)
	assert.Equal(t, "flowvalidator", client.clientName)

	// auth, name and handlers on top of the five base options
	assert.Len(t, client.connectionOptions(), 10)
}

func TestNewClient_InvalidOption(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{"max reconnects", WithMaxReconnects(-2)},
		{"reconnect wait", WithReconnectWait(-time.Second)},
		{"ping interval", WithPingInterval(0)},
		{"timeout", WithTimeout(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient("nats://localhost:4222", tt.opt)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "closed", StatusClosed.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestWaitForConnection_Timeout(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = client.WaitForConnection(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestWaitForConnection_AlreadyConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	client.setStatus(StatusConnected)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, client.WaitForConnection(ctx))
}

func TestBucketsRequireConnection(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: "flows"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: "artifacts"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.JetStream()
	assert.ErrorIs(t, err, ErrJetStreamNotSet)
}

func TestClose_Idempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithToken("secret"))
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))
	assert.Equal(t, StatusClosed, client.Status())
	assert.Empty(t, client.token)

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestIsAlreadyExistsError(t *testing.T) {
	assert.False(t, isAlreadyExistsError(nil))
	assert.True(t, isAlreadyExistsError(fmt.Errorf("nats: bucket name already in use")))
	assert.True(t, isAlreadyExistsError(fmt.Errorf("stream name already in use with a different configuration")))
	assert.False(t, isAlreadyExistsError(fmt.Errorf("nats: timeout")))
}

func TestKVErrorHelpers(t *testing.T) {
	assert.False(t, IsKVNotFoundError(nil))
	assert.True(t, IsKVNotFoundError(ErrKVKeyNotFound))
	assert.True(t, IsKVNotFoundError(jetstream.ErrKeyNotFound))
	assert.True(t, IsKVNotFoundError(fmt.Errorf("wrapped: %w", ErrKVKeyNotFound)))
	assert.False(t, IsKVNotFoundError(ErrKVKeyExists))

	assert.False(t, IsKVConflictError(nil))
	assert.True(t, IsKVConflictError(ErrKVKeyExists))
	assert.True(t, IsKVConflictError(ErrKVRevisionMismatch))
	assert.True(t, IsKVConflictError(fmt.Errorf("nats: wrong last sequence: 4")))
	assert.False(t, IsKVConflictError(ErrKVKeyNotFound))
}

func TestClient_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	core := registry.CoreMetrics()

	client, err := NewClient("nats://localhost:4222", WithMetrics(core))
	require.NoError(t, err)

	client.setStatus(StatusConnected)
	assert.Equal(t, 1.0, promtest.ToFloat64(core.NATSConnected))

	client.handleDisconnect(nil, nil)
	assert.Equal(t, StatusReconnecting, client.Status())
	assert.Equal(t, 0.0, promtest.ToFloat64(core.NATSConnected))

	client.handleReconnect(nil)
	assert.Equal(t, 1.0, promtest.ToFloat64(core.NATSConnected))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.NATSReconnects))
}
