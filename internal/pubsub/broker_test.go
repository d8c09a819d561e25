package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerFanOut(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := b.Subscribe(ctx)
	require.NoError(t, err)
	second, err := b.Subscribe(ctx)
	require.NoError(t, err)

	evt := Event{Kind: KindMessage, SessionID: "widget_x_1", At: time.Now()}
	require.NoError(t, b.Publish(ctx, evt))

	assert.Equal(t, evt.SessionID, (<-first).SessionID)
	assert.Equal(t, evt.SessionID, (<-second).SessionID)
}

func TestMemoryBrokerClosesSubscriptionOnCancel(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryBrokerRejectsAfterClose(t *testing.T) {
	b := NewMemoryBroker()
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Publish(context.Background(), Event{}), ErrClosed)
	_, err := b.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
