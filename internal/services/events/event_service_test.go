package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
)

func TestService_SubscribeRejectsNil(t *testing.T) {
	service := NewService(arbor.NewLogger())
	assert.Error(t, service.Subscribe(interfaces.EventLectureDeleted, nil))
}

func TestService_PublishSyncDeliversToAllHandlers(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var calls int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	require.NoError(t, service.Subscribe(interfaces.EventLectureStatusChanged, handler))
	require.NoError(t, service.Subscribe(interfaces.EventLectureStatusChanged, handler))
	require.NoError(t, service.Subscribe(interfaces.EventLectureDeleted, handler))

	err := service.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventLectureStatusChanged,
		Payload: models.StatusReport{LectureID: "lec_1", Status: models.StatusProcessing},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestService_PublishSyncReportsFailures(t *testing.T) {
	service := NewService(arbor.NewLogger())

	require.NoError(t, service.Subscribe(interfaces.EventLectureDeleted, func(ctx context.Context, event interfaces.Event) error {
		return errors.New("boom")
	}))

	err := service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventLectureDeleted, Payload: "lec_1"})
	assert.Error(t, err)
}

func TestService_PublishSurvivesCancelledPublisher(t *testing.T) {
	service := NewService(arbor.NewLogger())

	received := make(chan error, 1)
	require.NoError(t, service.Subscribe(interfaces.EventLectureDeleted, func(ctx context.Context, event interfaces.Event) error {
		received <- ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, service.Publish(ctx, interfaces.Event{Type: interfaces.EventLectureDeleted, Payload: "lec_1"}))

	select {
	case err := <-received:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestLoggerSubscriber_HandlesPayloads(t *testing.T) {
	subscriber := NewLoggerSubscriber(arbor.NewLogger())
	ctx := context.Background()

	payloads := []interface{}{
		models.StatusReport{LectureID: "lec_1", Status: models.StatusFailed, Error: "outage"},
		&models.ChatTurn{ID: "t1", LectureID: "lec_1"},
		"lec_1",
		nil,
	}
	for _, p := range payloads {
		assert.NoError(t, subscriber(ctx, interfaces.Event{Type: interfaces.EventLectureStatusChanged, Payload: p}))
	}
}

func TestSubscribeLoggerToAllEvents(t *testing.T) {
	service := NewService(arbor.NewLogger())
	require.NoError(t, SubscribeLoggerToAllEvents(service, arbor.NewLogger()))

	assert.Len(t, service.handlersFor(interfaces.EventLectureStatusChanged), 1)
	assert.Len(t, service.handlersFor(interfaces.EventChatTurnAppended), 1)
	assert.Len(t, service.handlersFor(interfaces.EventLectureDeleted), 1)
}
