package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction is returned for an action kind other than the two tracked ones.
var ErrUnknownAction = errors.New("schedule: unknown action")

// ActionKind identifies one of the tracked maintenance actions.
type ActionKind string

const (
	Fertilizing ActionKind = "fertilizing"
	Pesticide   ActionKind = "pesticide"
)

// ActionKinds lists the tracked actions in display order.
var ActionKinds = []ActionKind{Fertilizing, Pesticide}

// ParseActionKind matches s case-insensitively.
func ParseActionKind(s string) (ActionKind, error) {
	for _, k := range ActionKinds {
		if strings.EqualFold(strings.TrimSpace(s), string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Label is the human readable name of the action.
func (k ActionKind) Label() string {
	switch k {
	case Fertilizing:
		return "Fertilizing"
	case Pesticide:
		return "Pesticide application"
	default:
		return string(k)
	}
}

// noInterval marks a document without a usable interval.
const noInterval = -1

// ActionRecord is the last-performed day and repeat interval of one action.
type ActionRecord struct {
	LastPerformedDate *Date `json:"lastPerformedDate"`
	IntervalDays      int   `json:"intervalDays"`
}

// DefaultRecord returns the initial document for kind.
func DefaultRecord(kind ActionKind) ActionRecord {
	switch kind {
	case Pesticide:
		return ActionRecord{IntervalDays: 15}
	default:
		return ActionRecord{IntervalDays: 30}
	}
}

// Next projects the next due day of the record.
func (r ActionRecord) Next() (Date, bool) {
	return NextDate(r.LastPerformedDate, r.IntervalDays)
}

// UnmarshalJSON treats a missing or null interval as "no schedule".
func (r *ActionRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		LastPerformedDate *Date `json:"lastPerformedDate"`
		IntervalDays      *int  `json:"intervalDays"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.LastPerformedDate = raw.LastPerformedDate
	r.IntervalDays = noInterval
	if raw.IntervalDays != nil {
		r.IntervalDays = *raw.IntervalDays
	}
	return nil
}
