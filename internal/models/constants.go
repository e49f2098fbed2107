package models

const (
	RoleClient = "client"
	RoleCoach  = "coach"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusRetry      = "retry"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

const (
	TaskEmail        = "email"
	TaskTelegram     = "telegram"
	TaskSheetsAppend = "sheets_append"
)

const (
	// DateLayout is used for appointment_date columns and API query params.
	DateLayout = "2006-01-02"

	// AppointmentHours is the fixed length of one appointment.
	AppointmentHours = 1

	// DefaultSessionTTL in seconds.
	DefaultSessionTTL = 12 * 60 * 60

	// LoginAttempts allowed per LoginWindow for a single email.
	LoginAttempts = 5

	// LoginWindow in seconds.
	LoginWindow = 15 * 60

	// OutboxQueueSize is the capacity of the in-memory outbox channel.
	OutboxQueueSize = 128

	// DefaultTimezone of the practice.
	DefaultTimezone = "Europe/Amsterdam"
)
