package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts are tried in order after RFC 3339. They carry no zone
// and are read in local time.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp is a time decoded from the backend. Besides RFC 3339 it
// accepts zone-less datetimes and plain dates.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses s with the layouts Timestamp accepts.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// UnmarshalJSON accepts a JSON string, null, or an empty string.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ptr returns nil for a missing or zero timestamp.
func (t *Timestamp) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// UnmarshalJSON decodes n, reading its timestamps with Timestamp.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	aux := struct {
		*plain
		CreatedAt   Timestamp  `json:"created_at"`
		ExpiresAt   *Timestamp `json:"expires_at,omitempty"`
		ScheduledAt *Timestamp `json:"scheduled_at,omitempty"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.CreatedAt = aux.CreatedAt.Time
	n.ExpiresAt = aux.ExpiresAt.ptr()
	n.ScheduledAt = aux.ScheduledAt.ptr()
	return nil
}

// UnmarshalJSON decodes g, reading LastCreated with Timestamp.
func (g *GroupedNotification) UnmarshalJSON(data []byte) error {
	type plain GroupedNotification
	aux := struct {
		*plain
		LastCreated Timestamp `json:"last_created"`
	}{plain: (*plain)(g)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	g.LastCreated = aux.LastCreated.Time
	return nil
}
