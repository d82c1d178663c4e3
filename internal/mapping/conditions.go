package mapping

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/spf13/cast"

	"livesync/internal/model"
)

// Event is a document lifecycle event.
type Event string

const (
	EventInsert Event = "insert"
	EventUpdate Event = "update"
	EventDelete Event = "delete"
)

// ShouldSync reports whether a record passes the configured conditions and,
// for insert and update events, the configured update action.
func (p *Plan) ShouldSync(record model.Record, event Event) bool {
	if !p.ConditionsMet(record) {
		return false
	}

	switch p.cfg.UpdateAction() {
	case model.OnlyCreate:
		return event != EventUpdate
	case model.OnlyUpdate:
		return event != EventInsert
	}
	return true
}

// ConditionsMet evaluates every condition in order. An Only If condition
// that does not hold, or a Skip If condition that does, stops the sync.
func (p *Plan) ConditionsMet(record model.Record) bool {
	for _, cond := range p.cfg.Conditions {
		actual := record[cond.Field]
		result := compare(actual, cond.Operator, coerce(cond.Value, actual))

		switch cond.ConditionType {
		case model.OnlyIf:
			if !result {
				return false
			}
		case model.SkipIf:
			if result {
				return false
			}
		}
	}
	return true
}

// coerce converts the expected value of a condition to the type of the
// field it is compared with. A failed conversion keeps the string, so a
// missing field never equals a configured value.
func coerce(expected string, actual any) any {
	switch actual.(type) {
	case bool:
		switch strings.ToLower(strings.TrimSpace(expected)) {
		case "1", "true", "yes", "y":
			return true
		}
		return false
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		if v, err := cast.ToInt64E(strings.TrimSpace(expected)); err == nil {
			return v
		}
	case float32, float64, json.Number:
		if v, err := cast.ToFloat64E(strings.TrimSpace(expected)); err == nil {
			return v
		}
	case []any, []string:
		return parseList(expected)
	}
	return expected
}

func parseList(s string) []any {
	var list []any
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		return list
	}
	for _, part := range strings.Split(s, ",") {
		list = append(list, strings.TrimSpace(part))
	}
	return list
}

func compare(actual any, op string, expected any) bool {
	switch op {
	case "==":
		return equal(actual, expected)
	case "!=":
		return !equal(actual, expected)
	case ">", "<", ">=", "<=":
		c, ok := order(actual, expected)
		if !ok {
			return false
		}
		switch op {
		case ">":
			return c > 0
		case "<":
			return c < 0
		case ">=":
			return c >= 0
		default:
			return c <= 0
		}
	case "in":
		return member(actual, expected)
	case "not in":
		return !member(actual, expected)
	case "contains", "starts with", "ends with":
		s, ok := actual.(string)
		if !ok {
			return false
		}
		e := cast.ToString(expected)
		switch op {
		case "contains":
			return strings.Contains(s, e)
		case "starts with":
			return strings.HasPrefix(s, e)
		}
		return strings.HasSuffix(s, e)
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}

func equal(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}
	return reflect.DeepEqual(a, b)
}

func order(a, b any) (int, bool) {
	if isNumber(a) && isNumber(b) {
		x, y := cast.ToFloat64(a), cast.ToFloat64(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	x, okA := a.(string)
	y, okB := b.(string)
	if !okA || !okB {
		return 0, false
	}
	return strings.Compare(x, y), true
}

// member reports whether needle is in haystack: an element of a list, or a
// substring of a string.
func member(needle, haystack any) bool {
	switch h := haystack.(type) {
	case []any:
		n, err := cast.ToStringE(needle)
		for _, item := range h {
			if equal(needle, item) {
				return true
			}
			if s, serr := cast.ToStringE(item); err == nil && serr == nil && n == s {
				return true
			}
		}
		return false
	case string:
		if needle == nil {
			return false
		}
		return strings.Contains(h, cast.ToString(needle))
	}
	return false
}
