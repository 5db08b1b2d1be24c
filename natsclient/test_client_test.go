package natsclient

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestClient_BasicConnection(t *testing.T) {
	testClient := NewTestClient(t)
	require.NotNil(t, testClient)
	require.NotNil(t, testClient.Client)
	assert.True(t, testClient.IsReady())
	assert.NotEmpty(t, testClient.URL)
}

func TestNewTestClient_WithFastStartup(t *testing.T) {
	start := time.Now()
	testClient := NewTestClient(t, WithFastStartup())
	elapsed := time.Since(start)

	require.NotNil(t, testClient)
	assert.True(t, testClient.IsReady())

	assert.Less(t, elapsed, 15*time.Second, "Fast startup should complete quickly")
}

func TestNewTestClient_WithJetStream(t *testing.T) {
	testClient := NewTestClient(t, WithJetStream())
	require.NotNil(t, testClient)
	assert.True(t, testClient.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	js, err := testClient.Client.JetStream()
	require.NoError(t, err)
	require.NotNil(t, js)

	streamCfg := jetstream.StreamConfig{
		Name:     "TEST_STREAM",
		Subjects: []string{"test.>"},
	}

	stream, err := testClient.Client.CreateStream(ctx, streamCfg)
	require.NoError(t, err)
	require.NotNil(t, stream)
}

func TestNewTestClient_WithKV(t *testing.T) {
	testClient := NewTestClient(t, WithKV())
	require.NotNil(t, testClient)
	assert.True(t, testClient.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bucket, err := testClient.CreateKVBucket(ctx, "test-bucket")
	require.NoError(t, err)
	require.NotNil(t, bucket)

	_, err = bucket.Put(ctx, "test-key", []byte("test-value"))
	require.NoError(t, err)

	entry, err := bucket.Get(ctx, "test-key")
	require.NoError(t, err)
	assert.Equal(t, []byte("test-value"), entry.Value())
}

func TestNewTestClient_WithKVBuckets(t *testing.T) {
	buckets := []string{"bucket1", "bucket2", "bucket3"}
	testClient := NewTestClient(t, WithKVBuckets(buckets...))
	require.NotNil(t, testClient)
	assert.True(t, testClient.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, bucketName := range buckets {
		bucket, err := testClient.GetKVBucket(ctx, bucketName)
		require.NoError(t, err, "Bucket %s should exist", bucketName)
		require.NotNil(t, bucket)

		_, err = bucket.Put(ctx, "test", []byte("value"))
		assert.NoError(t, err, "Should be able to put to bucket %s", bucketName)
	}
}

func TestNewTestClient_WithSlotBucket(t *testing.T) {
	testClient := NewTestClient(t, WithSlotBucket("slot-test", 2*time.Second))
	require.NotNil(t, testClient)
	assert.True(t, testClient.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	bucket, err := testClient.GetKVBucket(ctx, "slot-test")
	require.NoError(t, err)

	// Entries must expire per the configured TTL
	_, err = bucket.Put(ctx, "ephemeral", []byte("short-lived"))
	require.NoError(t, err)

	_, err = bucket.Get(ctx, "ephemeral")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := bucket.Get(ctx, "ephemeral")
		return err != nil
	}, 10*time.Second, 250*time.Millisecond, "slot bucket entry should expire")
}

func TestNewTestClient_PubSub(t *testing.T) {
	testClient := NewTestClient(t, WithMinimalFeatures())
	require.NotNil(t, testClient)
	assert.True(t, testClient.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var received []byte
	var receivedMu sync.Mutex
	receiveCh := make(chan struct{})

	err := testClient.Client.Subscribe(ctx, "test.subject", func(_ context.Context, data []byte) {
		receivedMu.Lock()
		received = data
		receivedMu.Unlock()
		close(receiveCh)
	})
	require.NoError(t, err)

	// Give the subscription time to register
	time.Sleep(100 * time.Millisecond)

	testData := []byte("hello world")
	err = testClient.Client.Publish(ctx, "test.subject", testData)
	require.NoError(t, err)

	select {
	case <-receiveCh:
		receivedMu.Lock()
		assert.Equal(t, testData, received)
		receivedMu.Unlock()
	case <-ctx.Done():
		t.Fatal("Timeout waiting for message")
	}
}

func TestNewTestClient_ParallelExecution(t *testing.T) {
	const numClients = 3
	var wg sync.WaitGroup
	results := make(chan bool, numClients)

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()

			testClient := NewTestClient(t, WithFastStartup(), WithKV())

			if !testClient.IsReady() {
				results <- false
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			bucketName := fmt.Sprintf("parallel-test-%d", clientID)
			bucket, err := testClient.CreateKVBucket(ctx, bucketName)
			if err != nil {
				results <- false
				return
			}

			key := fmt.Sprintf("key-%d", clientID)
			value := fmt.Sprintf("value-%d", clientID)

			_, err = bucket.Put(ctx, key, []byte(value))
			if err != nil {
				results <- false
				return
			}

			entry, err := bucket.Get(ctx, key)
			if err != nil || string(entry.Value()) != value {
				results <- false
				return
			}

			results <- true
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for result := range results {
		if result {
			successCount++
		}
	}

	assert.Equal(t, numClients, successCount, "All parallel clients should succeed")
}

func TestNewTestClient_CleanupOnFailure(t *testing.T) {
	testClient := NewTestClient(t, WithFastStartup())
	require.NotNil(t, testClient)

	// Manual Terminate must be idempotent alongside t.Cleanup
	assert.NotPanics(t, func() {
		testClient.Terminate()
	})

	assert.NotPanics(t, func() {
		testClient.Terminate()
	})
}

func TestNewTestClient_GetNativeConnection(t *testing.T) {
	testClient := NewTestClient(t, WithFastStartup())
	require.NotNil(t, testClient)

	conn := testClient.GetNativeConnection()
	require.NotNil(t, conn)
	assert.True(t, conn.IsConnected())

	rtt, err := conn.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}

func TestNewTestClient_IntegrationDefaults(t *testing.T) {
	testClient := NewTestClient(t, WithIntegrationDefaults())
	require.NotNil(t, testClient)
	assert.True(t, testClient.IsReady())

	js, err := testClient.Client.JetStream()
	require.NoError(t, err)
	require.NotNil(t, js)
}

func TestNewTestClient_FusionDefaults(t *testing.T) {
	testClient := NewTestClient(t, WithFusionDefaults())
	require.NotNil(t, testClient)
	assert.True(t, testClient.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	js, err := testClient.Client.JetStream()
	require.NoError(t, err)
	require.NotNil(t, js)

	// The fusion slot bucket is pre-created
	bucket, err := testClient.GetKVBucket(ctx, "fusion-slots")
	require.NoError(t, err)
	require.NotNil(t, bucket)
}
