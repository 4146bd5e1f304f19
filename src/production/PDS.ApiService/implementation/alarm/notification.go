package alarm

import (
	"strconv"
	"strings"
	"time"

	config "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Config"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

// time layouts per locale, two-digit hour and minute
var localeLayouts = map[string]string{
	"es-MX": "15:04",
	"es":    "15:04",
	"en-US": "03:04 PM",
	"en-GB": "15:04",
}

func layoutFor(locale string) string {
	if layout, ok := localeLayouts[locale]; ok {
		return layout
	}
	return "15:04"
}

// Alarm is everything needed to compose one alarm notification
type Alarm struct {
	UserID        string
	DeviceID      string
	CompartmentID string
	ScheduledAt   time.Time
	// ScheduledText is the timestamp as the device sent it
	ScheduledText string
	ScheduleID    string
	// Compartment is nil when the lookup found nothing
	Compartment *pdsmodels.Compartment
	// FallbackTitle is the caller-supplied label, used before the default
	FallbackTitle string
}

// Composer renders alarms into notifications using the option table
type Composer struct {
	opts   config.Options
	loc    *time.Location
	layout string
}

func NewComposer(opts config.Options) (*Composer, error) {
	loc, err := opts.Location()
	if err != nil {
		return nil, err
	}
	return &Composer{opts: opts, loc: loc, layout: layoutFor(opts.AlarmLocale)}, nil
}

// Compose builds the notification. Missing compartment data falls back to
// the default label and placeholder index rather than failing.
func (c *Composer) Compose(a Alarm) pdsmodels.Notification {
	label := c.opts.AlarmDefaultLabel
	index := c.opts.AlarmPlaceholderIndex

	if a.FallbackTitle != "" {
		label = a.FallbackTitle
	}
	if a.Compartment != nil {
		if a.Compartment.Title != nil && strings.TrimSpace(*a.Compartment.Title) != "" {
			label = *a.Compartment.Title
		}
		index = strconv.Itoa(a.Compartment.Idx)
	}

	scheduled := a.ScheduledText
	if scheduled == "" {
		scheduled = a.ScheduledAt.Format(time.RFC3339)
	}

	body := strings.NewReplacer(
		"{label}", label,
		"{time}", a.ScheduledAt.In(c.loc).Format(c.layout),
		"{index}", index,
	).Replace(c.opts.AlarmBodyTemplate)

	return pdsmodels.Notification{
		UserID: a.UserID,
		Title:  c.opts.AlarmTitle,
		Body:   body,
		Data: pdsmodels.NotificationData{
			Route:         c.opts.AlarmRoute,
			DeviceID:      a.DeviceID,
			CompartmentID: a.CompartmentID,
			ScheduledAt:   scheduled,
			Action:        c.opts.AlarmAction,
			ScheduleID:    a.ScheduleID,
		},
	}
}
