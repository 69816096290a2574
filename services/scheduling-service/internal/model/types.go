package model

type AvailabilityWindow struct {
	ID         int64
	ProviderID int64
	// Exactly one of DayOfWeek (0=Sunday) and Date is set.
	DayOfWeek       *int
	Date            *Date
	StartTime       TimeOfDay
	EndTime         TimeOfDay
	IsAvailable     bool
	IntervalMinutes *int
}

func (w AvailabilityWindow) Recurring() bool { return w.Date == nil }

type Appointment struct {
	ID         int64
	ProviderID int64
	ClientID   int64
	ServiceID  int64
	Date       Date
	StartTime  TimeOfDay
	EndTime    TimeOfDay
	Status     Status
}

type Service struct {
	ID         int64
	ProviderID int64
	Duration   int // minutes
	PriceCents int64
}

type TimeSlot struct {
	StartTime      TimeOfDay
	EndTime        TimeOfDay
	IsAvailable    bool
	AvailabilityID *int64
}

// TimeRange is a requested [StartTime, EndTime) pair from an edit call.
type TimeRange struct {
	StartTime TimeOfDay
	EndTime   TimeOfDay
}
