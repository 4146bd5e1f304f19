package api_models

import (
	"encoding/json"
	"time"
)

// Instant is an RFC3339 timestamp that keeps the text it was decoded from,
// so it can be echoed back to clients unchanged.
type Instant struct {
	time.Time
	Raw string
}

func NewInstant(t time.Time) *Instant {
	return &Instant{Time: t}
}

func (i *Instant) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	i.Time = t
	i.Raw = s
	return nil
}

func (i Instant) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Text())
}

// Text returns the received text, or RFC3339 when built in code
func (i Instant) Text() string {
	if i.Raw != "" {
		return i.Raw
	}
	return i.Time.Format(time.RFC3339)
}
