package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"amora/domain/event"
)

func Test_MetricsSink_Counts_By_Event_Kind(t *testing.T) {
	req := require.New(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	sink := NewMetricsSink(metrics)
	ctx := context.Background()

	req.NoError(sink.Consume(ctx, event.MessageDelivered{}))
	req.NoError(sink.Consume(ctx, event.MessageSent{}))
	req.NoError(sink.Consume(ctx, event.MessageSent{}))
	req.NoError(sink.Consume(ctx, event.MessagesSeen{}))
	req.NoError(sink.Consume(ctx, event.UserTyping{}))
	req.NoError(sink.Consume(ctx, event.UserStatus{IsOnline: true}))
	req.NoError(sink.Consume(ctx, event.UserStatus{IsOnline: false}))
	// Inbound deliveries are not separately counted.
	req.NoError(sink.Consume(ctx, event.MessageReceived{}))

	req.Equal(1.0, testutil.ToFloat64(metrics.MessagesDelivered))
	req.Equal(2.0, testutil.ToFloat64(metrics.MessagesSent))
	req.Equal(1.0, testutil.ToFloat64(metrics.SeenUpdates))
	req.Equal(1.0, testutil.ToFloat64(metrics.TypingEvents))
	req.Equal(1.0, testutil.ToFloat64(metrics.PresenceOnline))
	req.Equal(1.0, testutil.ToFloat64(metrics.PresenceOffline))
}

func Test_ObserveProcess_Sets_Gauges(t *testing.T) {
	req := require.New(t)
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveProcess(2048, 12.5)

	req.Equal(2048.0, testutil.ToFloat64(metrics.ProcessRSS))
	req.Equal(12.5, testutil.ToFloat64(metrics.ProcessCPU))
}
