package logg

// Shared structured-log field names.
const (
	Layer     = "layer"
	Operation = "operation"
	ChatID    = "chat_id"
	SessionID = "session_id"
	BookingID = "booking_id"
	State     = "state"
	Day       = "day"
	Slot      = "slot"
	Selector  = "selector"
	URL       = "url"
)
