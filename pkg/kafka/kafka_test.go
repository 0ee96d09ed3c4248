package kafka

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := NewProducer(context.Background(), ProducerConfig{})
	assert.Error(t, err)
}

func TestNewConsumer_NoBrokers(t *testing.T) {
	_, err := NewConsumer(ConsumerConfig{Group: "g", Topics: []string{"t"}})
	assert.Error(t, err)
}

func TestToMessage(t *testing.T) {
	msg := toMessage(&kgo.Record{
		Topic:   "notifications.email",
		Key:     []byte("a@example.com"),
		Value:   []byte(`{"kind":"welcome"}`),
		Offset:  42,
		Headers: []kgo.RecordHeader{{Key: "kind", Value: []byte("welcome")}},
	})

	assert.Equal(t, "notifications.email", msg.Topic)
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, "welcome", msg.Headers["kind"])

	msg = toMessage(&kgo.Record{Topic: "t"})
	assert.Nil(t, msg.Headers)
}

func TestProducerConsumer_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	brokers := strings.Split(os.Getenv("TEST_KAFKA_BROKERS"), ",")
	topic := "tenemos-filo-test-" + time.Now().Format("150405")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	producer, err := NewProducer(ctx, ProducerConfig{Brokers: brokers, ClientID: "test"})
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.Publish(ctx, topic, []byte("k"), []byte("v"), map[string]string{"kind": "welcome"}))

	consumer, err := NewConsumer(ConsumerConfig{Brokers: brokers, ClientID: "test", Group: topic, Topics: []string{topic}})
	require.NoError(t, err)
	defer consumer.Close()

	got := make(chan Message, 1)
	runCtx, stop := context.WithCancel(ctx)
	go func() {
		_ = consumer.Run(runCtx, func(ctx context.Context, msg Message) error {
			got <- msg
			return nil
		})
	}()

	select {
	case msg := <-got:
		assert.Equal(t, "v", string(msg.Value))
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
	stop()
}
