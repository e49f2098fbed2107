package models

import (
	"fmt"
	"time"
)

// AvailabilityWindow is a recurring weekly interval [StartHour, EndHour).
type AvailabilityWindow struct {
	ID        int64  `json:"id" yaml:"-"`
	CoachID   string `json:"coach_id" yaml:"coach_id"`
	Weekday   int    `json:"weekday" yaml:"weekday"`
	StartHour int    `json:"start_hour" yaml:"start_hour"`
	EndHour   int    `json:"end_hour" yaml:"end_hour"`
}

func (w AvailabilityWindow) Validate() error {
	if w.Weekday < 0 || w.Weekday > 6 {
		return fmt.Errorf("weekday %d out of range 0-6", w.Weekday)
	}
	if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return fmt.Errorf("invalid window %d-%d", w.StartHour, w.EndHour)
	}
	return nil
}

type TrainingOption struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	SortOrder int64  `json:"sort_order" yaml:"sort_order"`
}

// Slot is one bookable hour.
type Slot struct {
	Hour  int    `json:"hour"`
	Label string `json:"time"`
}

func NewSlot(hour int) Slot {
	return Slot{Hour: hour, Label: HourLabel(hour)}
}

func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// Weekday numbering of stored availability rows.
const (
	WeekdayBaseSunday = "sunday"
	WeekdayBaseMonday = "monday"
)

// WeekdayIndex converts a date into the 0-6 index used by
// AvailabilityWindow.Weekday. With the sunday base 0 is Sunday (time.Weekday),
// with the monday base 0 is Monday and 6 is Sunday.
func WeekdayIndex(date time.Time, base string) int {
	wd := int(date.Weekday())
	if base == WeekdayBaseMonday {
		return (wd + 6) % 7
	}
	return wd
}

func ValidWeekdayBase(base string) bool {
	return base == WeekdayBaseSunday || base == WeekdayBaseMonday
}
