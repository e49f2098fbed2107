package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// RegisterAuditLog subscribes a structured log line to every booking event.
func RegisterAuditLog(bus *EventBus, logger *zerolog.Logger) {
	if bus == nil || logger == nil {
		return
	}

	bus.OnError(func(event *Event, err error) {
		logger.Error().Err(err).Str("event", event.Type).Msg("event handler failed")
	})

	handler := func(event *Event) error {
		var payload AppointmentEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}

		entry := logger.Info()
		if event.Type != EventAppointmentBooked {
			entry = logger.Warn()
		}
		entry.
			Str("event", event.Type).
			Int64("appointment_id", payload.AppointmentID).
			Str("coach_id", payload.CoachID).
			Str("client_id", payload.ClientID).
			Str("date", payload.Date).
			Int("start_hour", payload.StartHour).
			Str("error", payload.Error).
			Msg("booking event")
		return nil
	}

	for _, eventType := range []string{EventAppointmentBooked, EventBookingConflict, EventNotificationFailed} {
		bus.Subscribe(eventType, handler)
	}
}
