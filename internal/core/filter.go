// Package core provides the call filter applied between the feed and the queue.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/callhud/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Newer than (time)
	FilterOpLess      FilterOp = "<"  // Older than (time)
	FilterOpGreaterEq FilterOp = ">=" // Newer than or equal (time)
	FilterOpLessEq    FilterOp = "<=" // Older than or equal (time)
)

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // Field name: id, code, offense, location, plate, vehicle, time
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	regex *regexp.Regexp // Compiled regex for ~= operator
	age   time.Duration  // Parsed age for time comparisons
}

// FilterExpr represents a compound filter expression.
// Multiple conditions are ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition

	// Now is the reference for time conditions. Defaults to time.Now.
	Now func() time.Time
}

// ParseDuration parses a duration string with extended formats.
// Supports: 90s, 15m, 2h, 1d, 0 (no limit)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if s == "0" || s == "" {
		return 0, nil
	}

	// Handle day suffix (1d -> 24h)
	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,field3>value3"
// Multiple conditions are comma-separated and ANDed together.
//
// Supported fields: id, code, offense, location, plate, vehicle, time
// Supported operators: = (equal), != (not equal), ~ (contains), ~= (regex),
// and >, <, >=, <= for time, where the value is an age.
//
// Examples:
//   - "code=10-90" - exact code match
//   - "offense~robbery" - offense contains "robbery"
//   - "location~=(?i)^route" - location matches regex
//   - "code!=10-13,plate~46" - two conditions
//   - "time>2m" - calls raised in the last two minutes
func ParseFilter(expr string) (*FilterExpr, error) {
	filter := &FilterExpr{}
	if expr == "" {
		return filter, nil
	}

	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}

	return filter, nil
}

// parseCondition parses a single condition like "code=10-90" or "offense~theft"
func parseCondition(s string) (FilterCondition, error) {
	// Try operators in order of specificity (longest first)
	operators := []FilterOp{
		FilterOpNotEqual,  // != (must be before =)
		FilterOpGreaterEq, // >= (must be before >)
		FilterOpLessEq,    // <= (must be before <)
		FilterOpRegex,     // ~= (must be before ~)
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx > 0 {
			cond := FilterCondition{
				Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
				Operator: op,
				Value:    strings.TrimSpace(s[idx+len(op):]),
			}

			if err := cond.init(); err != nil {
				return FilterCondition{}, err
			}
			return cond, nil
		}
	}

	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

// init normalizes the field and validates the value for it.
func (c *FilterCondition) init() error {
	switch c.Field {
	case "id":
	case "code":
	case "offense", "title", "summary":
		c.Field = "offense"
	case "location", "loc", "street":
		c.Field = "location"
	case "plate":
	case "vehicle", "veh", "model":
		c.Field = "vehicle"
	case "time", "timestamp", "ts":
		c.Field = "time"
		switch c.Operator {
		case FilterOpGreater, FilterOpLess, FilterOpGreaterEq, FilterOpLessEq:
		default:
			return fmt.Errorf("time only supports >, <, >=, <=, got %s", c.Operator)
		}
		age, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid time value: %w", err)
		}
		c.age = age
		return nil
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}

	switch c.Operator {
	case FilterOpEqual, FilterOpNotEqual, FilterOpContains:
	case FilterOpRegex:
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	default:
		return fmt.Errorf("%s does not support %s", c.Field, c.Operator)
	}

	return nil
}

// Empty reports whether the expression accepts every call.
func (f *FilterExpr) Empty() bool {
	return f == nil || len(f.Conditions) == 0
}

// Match tests if a call matches the filter expression.
// All conditions must match (AND logic).
func (f *FilterExpr) Match(c model.Call) bool {
	if f.Empty() {
		return true
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}

	for i := range f.Conditions {
		if !f.Conditions[i].match(c, now) {
			return false
		}
	}
	return true
}

// String returns the expression in parseable form.
func (f *FilterExpr) String() string {
	if f.Empty() {
		return ""
	}
	parts := make([]string, len(f.Conditions))
	for i, c := range f.Conditions {
		parts[i] = c.Field + string(c.Operator) + c.Value
	}
	return strings.Join(parts, ",")
}

// Match tests if a call matches this single condition.
func (c *FilterCondition) Match(call model.Call) bool {
	return c.match(call, time.Now)
}

func (c *FilterCondition) match(call model.Call, now func() time.Time) bool {
	switch c.Field {
	case "id":
		return c.matchString(call.ID)
	case "code":
		return c.matchString(call.Code)
	case "offense":
		return c.matchString(call.Offense)
	case "location":
		return c.matchString(call.Info.Location)
	case "plate":
		return c.matchString(call.Info.Plate)
	case "vehicle":
		return c.matchString(call.Info.Vehicle)
	case "time":
		return c.matchTime(call.Info.Time, now().Add(-c.age))
	default:
		return false
	}
}

// matchString matches a string field.
func (c *FilterCondition) matchString(fieldValue string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return strings.EqualFold(fieldValue, c.Value)
	case FilterOpNotEqual:
		return !strings.EqualFold(fieldValue, c.Value)
	case FilterOpContains:
		return strings.Contains(strings.ToLower(fieldValue), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(fieldValue)
	default:
		return false
	}
}

// matchTime compares a call time against the cutoff.
func (c *FilterCondition) matchTime(fieldValue, cutoff time.Time) bool {
	if fieldValue.IsZero() {
		return false
	}
	switch c.Operator {
	case FilterOpGreater:
		return fieldValue.After(cutoff)
	case FilterOpLess:
		return fieldValue.Before(cutoff)
	case FilterOpGreaterEq:
		return !fieldValue.Before(cutoff)
	case FilterOpLessEq:
		return !fieldValue.After(cutoff)
	default:
		return false
	}
}
