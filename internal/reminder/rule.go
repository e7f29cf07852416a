package reminder

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Comparison is how a reading is compared against a rule's threshold.
type Comparison string

const (
	Below Comparison = "below"
	Above Comparison = "above"
	Equal Comparison = "equal"
)

// Matches compares exactly; no tolerance is applied for Equal.
func (c Comparison) Matches(value, threshold float64) bool {
	switch c {
	case Below:
		return value < threshold
	case Above:
		return value > threshold
	case Equal:
		return value == threshold
	default:
		return false
	}
}

func (c Comparison) phrase() string {
	switch c {
	case Below:
		return "below"
	case Above:
		return "above"
	default:
		return "equal to"
	}
}

// Recurrence decides on which days a rule is evaluated.
type Recurrence string

const (
	Once    Recurrence = "once"
	Daily   Recurrence = "daily"
	Weekly  Recurrence = "weekly"
	Monthly Recurrence = "monthly"
)

// EligibleOn reports whether a rule with this recurrence is evaluated on
// the day of t. Weekly rules run on Mondays, monthly rules on the first.
func (r Recurrence) EligibleOn(t time.Time) bool {
	switch r {
	case Once, Daily:
		return true
	case Weekly:
		return t.Weekday() == time.Monday
	case Monthly:
		return t.Day() == 1
	default:
		return false
	}
}

// Rule is a threshold condition on one weather parameter. The parameter
// is the key of the list the rule is stored in.
type Rule struct {
	ID         uuid.UUID  `json:"id"`
	Comparison Comparison `json:"comparison" validate:"required,oneof=below above equal"`
	Threshold  float64    `json:"threshold"`
	Active     bool       `json:"active"`
	Recurrence Recurrence `json:"recurrence" validate:"required,oneof=once daily weekly monthly"`
}

// Normalize lower-cases the enumerated fields.
func (r Rule) Normalize() Rule {
	r.Comparison = Comparison(strings.ToLower(strings.TrimSpace(string(r.Comparison))))
	r.Recurrence = Recurrence(strings.ToLower(strings.TrimSpace(string(r.Recurrence))))
	return r
}

// Validate checks the enumerated fields and that the threshold is finite.
func (r Rule) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0) {
		return fmt.Errorf("threshold must be a finite number")
	}
	return nil
}

func (r Rule) String() string {
	state := "active"
	if !r.Active {
		state = "inactive"
	}
	return fmt.Sprintf("%s %s (%s) (%s)", r.Comparison, formatThreshold(r.Threshold), state, r.Recurrence)
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
