package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"livesync/internal/model"
)

func registerBuiltins(r *Registry) {
	r.transforms["upper"] = stringTransform(strings.ToUpper)
	r.transforms["lower"] = stringTransform(strings.ToLower)
	r.transforms["trim"] = stringTransform(strings.TrimSpace)
	r.transforms["to_string"] = stringTransform(func(s string) string { return s })

	r.transforms["to_int"] = func(value any, _ model.Record) (any, error) {
		if value == nil {
			return nil, nil
		}
		return cast.ToInt64E(value)
	}
	r.transforms["to_float"] = func(value any, _ model.Record) (any, error) {
		if value == nil {
			return nil, nil
		}
		return cast.ToFloat64E(value)
	}
	r.transforms["to_bool"] = func(value any, _ model.Record) (any, error) {
		if value == nil {
			return false, nil
		}
		return cast.ToBoolE(value)
	}
	r.transforms["date"] = timeTransform("2006-01-02")
	r.transforms["datetime"] = timeTransform(time.RFC3339)

	r.namers["same_as_source"] = func(source model.Record) (string, error) {
		name := source.Name()
		if name == "" {
			return "", fmt.Errorf("source record has no name")
		}
		return name, nil
	}
}

func stringTransform(fn func(string) string) TransformFunc {
	return func(value any, _ model.Record) (any, error) {
		if value == nil {
			return nil, nil
		}
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}

func timeTransform(layout string) TransformFunc {
	return func(value any, _ model.Record) (any, error) {
		if value == nil || value == "" {
			return nil, nil
		}
		t, err := cast.ToTimeE(value)
		if err != nil {
			return nil, err
		}
		return t.Format(layout), nil
	}
}
