package pdsmodels

// Notification is what the alarm dispatcher hands to the push collaborator
type Notification struct {
	UserID string           `json:"userId"`
	Title  string           `json:"title"`
	Body   string           `json:"body"`
	Data   NotificationData `json:"data"`
}

// NotificationData is the deep-link payload attached to an alarm
type NotificationData struct {
	Route         string `json:"route"`
	DeviceID      string `json:"deviceId"`
	CompartmentID string `json:"compartmentId"`
	ScheduledAt   string `json:"scheduledAt"`
	Action        string `json:"action"`
	ScheduleID    string `json:"scheduleId,omitempty"`
}

// PushResult is the collaborator's answer for one dispatch
type PushResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed,omitempty"`
	Errors []string `json:"errors,omitempty"`
}
