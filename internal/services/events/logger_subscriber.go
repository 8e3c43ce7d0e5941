package events

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs lecture events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Info().Str("event_type", string(event.Type))

		switch payload := event.Payload.(type) {
		case models.StatusReport:
			logEvent = logEvent.
				Str("lecture_id", payload.LectureID).
				Str("status", string(payload.Status))
			if payload.Error != "" {
				logEvent = logEvent.Str("reason", payload.Error)
			}
		case *models.ChatTurn:
			logEvent = logEvent.
				Str("lecture_id", payload.LectureID).
				Str("turn_id", payload.ID).
				Int("cited_spans", len(payload.CitedSpans))
		case string:
			logEvent = logEvent.Str("lecture_id", payload)
		}

		logEvent.Msg("Event published")
		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all lecture event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventLectureStatusChanged,
		interfaces.EventChatTurnAppended,
		interfaces.EventLectureDeleted,
	}

	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return err
		}
	}

	return nil
}
