package ticket

import (
	"encoding/json"
	"time"
)

// Date layouts seen in ticket payloads, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// looseTime accepts any of timeLayouts or epoch milliseconds. Anything else,
// including "" and null, decodes to unset instead of failing the payload.
type looseTime struct {
	t   time.Time
	set bool
}

func (lt *looseTime) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		lt.t, lt.set = time.UnixMilli(ms).UTC(), true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			lt.t, lt.set = t, true
			return nil
		}
	}
	return nil
}

func (lt looseTime) ptr() *time.Time {
	if !lt.set {
		return nil
	}
	t := lt.t
	return &t
}

// UnmarshalJSON decodes a ticket with lenient dates, so one odd timestamp
// does not cost the whole record.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	type plain Ticket
	aux := struct {
		*plain
		DueDate    looseTime `json:"dueDate"`
		ResolvedAt looseTime `json:"resolvedAt"`
		CreatedAt  looseTime `json:"createdAt"`
		UpdatedAt  looseTime `json:"updatedAt"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.DueDate = aux.DueDate.ptr()
	t.ResolvedAt = aux.ResolvedAt.ptr()
	t.CreatedAt = aux.CreatedAt.t
	t.UpdatedAt = aux.UpdatedAt.t
	return nil
}

func (a *Attachment) UnmarshalJSON(data []byte) error {
	type plain Attachment
	aux := struct {
		*plain
		CreatedAt looseTime `json:"createdAt"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.CreatedAt = aux.CreatedAt.t
	return nil
}
