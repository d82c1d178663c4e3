package mapping

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cast"

	"livesync/internal/model"
)

type compiledTransform struct {
	name string
	fn   TransformFunc
}

// Plan is a SyncConfiguration whose transform and hook names have been
// resolved against a Registry. Resolving records through a Plan never
// touches the store.
type Plan struct {
	cfg        *model.SyncConfiguration
	transforms map[string]compiledTransform
	before     HookFunc
	after      HookFunc
	namer      NameFunc
}

// Compile resolves every name referenced by cfg. Unknown names are an error.
func Compile(cfg *model.SyncConfiguration, registry *Registry) (*Plan, error) {
	p := &Plan{
		cfg:        cfg,
		transforms: make(map[string]compiledTransform, len(cfg.Transform)),
	}

	for field, name := range cfg.Transform {
		fn, err := registry.transform(name)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		p.transforms[field] = compiledTransform{name: name, fn: fn}
	}

	if cfg.Hooks != nil {
		var err error
		if p.before, err = registry.hook(cfg.Hooks.BeforeSync); err != nil {
			return nil, fmt.Errorf("before_sync: %w", err)
		}
		if p.after, err = registry.hook(cfg.Hooks.AfterSync); err != nil {
			return nil, fmt.Errorf("after_sync: %w", err)
		}
		if p.namer, err = registry.nameFunc(cfg.Hooks.SyncName); err != nil {
			return nil, fmt.Errorf("sync_name: %w", err)
		}
	}

	return p, nil
}

func (p *Plan) Config() *model.SyncConfiguration {
	return p.cfg
}

// Reverse returns the plan for the backward direction of a bidirectional
// sync.
func (p *Plan) Reverse() *Plan {
	return &Plan{
		cfg:        p.cfg.Reverse(),
		transforms: map[string]compiledTransform{},
	}
}

func (p *Plan) BeforeSync() HookFunc { return p.before }

func (p *Plan) AfterSync() HookFunc { return p.after }

// TargetName returns the name chosen by the sync_name hook, or "" when the
// store should name the new record.
func (p *Plan) TargetName(source model.Record) (string, error) {
	if p.namer == nil {
		return "", nil
	}
	return p.namer(source)
}

// PreviewEntry is one line of the human-facing mapping preview.
type PreviewEntry struct {
	SourceField   string `json:"source_field"`
	TargetField   string `json:"target_field"`
	OriginalValue any    `json:"original_value"`
	Value         any    `json:"value"`
	Transform     string `json:"transform,omitempty"`
}

// ChildPreview summarises one child mapping.
type ChildPreview struct {
	SourceTable string         `json:"source_table"`
	TargetTable string         `json:"target_table"`
	SourceCount int            `json:"source_count"`
	TargetCount int            `json:"target_count"`
	Matched     int            `json:"matched"`
	Sample      map[string]any `json:"sample"`
}

// Draft is the resolved target record plus what it took to build it.
type Draft struct {
	Record   model.Record   `json:"record"`
	Creating bool           `json:"creating"`
	Preview  []PreviewEntry `json:"field_mappings"`
	Children []ChildPreview `json:"child_mappings"`
	Skipped  []string       `json:"skipped,omitempty"`
}

// Resolve maps source onto a target draft. When existing is nil the draft
// is for a new record and default values apply; otherwise the draft starts
// from a copy of existing and defaults are left alone.
func (p *Plan) Resolve(source model.Record, existing model.Record) (*Draft, error) {
	draft := &Draft{Creating: existing == nil}

	var target model.Record
	if draft.Creating {
		target = make(model.Record, len(p.cfg.DefaultValues)+len(p.cfg.DirectFields))
		for field, v := range p.cfg.DefaultValues {
			target[field] = literal(v)
		}
	} else {
		target = existing.Clone()
	}

	for _, srcField := range slices.Sorted(maps.Keys(p.cfg.DirectFields)) {
		dstField := p.cfg.DirectFields[srcField]
		if !source.Has(srcField) {
			draft.Skipped = append(draft.Skipped, srcField)
			continue
		}

		original := source[srcField]
		value, tname, err := p.apply(srcField, original, source)
		if err != nil {
			return nil, err
		}

		if draft.Creating || !slices.Contains(model.ProtectedFields, dstField) {
			target[dstField] = value
		}

		draft.Preview = append(draft.Preview, PreviewEntry{
			SourceField:   srcField,
			TargetField:   dstField,
			OriginalValue: original,
			Value:         value,
			Transform:     tname,
		})
	}

	for _, child := range p.cfg.ChildMappings {
		if !source.Has(child.SourceTable) {
			draft.Skipped = append(draft.Skipped, child.SourceTable)
			continue
		}

		srcRows := source.Rows(child.SourceTable)
		var existingRows []map[string]any
		if !draft.Creating {
			existingRows = target.Rows(child.TargetTable)
		}

		rows, matched, err := p.resolveRows(child, srcRows, existingRows)
		if err != nil {
			return nil, err
		}
		target[child.TargetTable] = rows

		summary := ChildPreview{
			SourceTable: child.SourceTable,
			TargetTable: child.TargetTable,
			SourceCount: len(srcRows),
			TargetCount: len(rows),
			Matched:     matched,
			Sample:      map[string]any{},
		}
		if len(rows) > 0 {
			summary.Sample = rows[0]
		}
		draft.Children = append(draft.Children, summary)
	}

	draft.Record = target
	return draft, nil
}

// resolveRows maps child rows. With a key field, existing target rows are
// matched by key value; without one they are matched by position. Existing
// rows without a source counterpart are dropped. Row fields are transformed
// only through "<source_table>.<field>" keys.
func (p *Plan) resolveRows(
	child model.ChildMapping,
	srcRows []map[string]any,
	existingRows []map[string]any,
) ([]map[string]any, int, error) {
	targetKey := ""
	if child.KeyField != "" {
		targetKey = child.Fields[child.KeyField]
	}

	byKey := make(map[string]int)
	if targetKey != "" {
		for i, row := range existingRows {
			k, ok := rowKey(row, targetKey)
			if !ok {
				continue
			}
			if _, dup := byKey[k]; !dup {
				byKey[k] = i
			}
		}
	}

	fields := slices.Sorted(maps.Keys(child.Fields))
	used := make(map[int]bool)
	matched := 0
	out := make([]map[string]any, 0, len(srcRows))

	for i, srcRow := range srcRows {
		var row map[string]any

		if targetKey != "" {
			if k, ok := rowKey(srcRow, child.KeyField); ok {
				if j, ok := byKey[k]; ok && !used[j] {
					row = copyRow(existingRows[j])
					used[j] = true
				}
			}
		} else if i < len(existingRows) {
			row = copyRow(existingRows[i])
		}

		if row == nil {
			row = make(map[string]any, len(fields))
		} else {
			matched++
		}

		for _, srcField := range fields {
			v, ok := srcRow[srcField]
			if !ok {
				continue
			}
			value, _, err := p.apply(model.ChildTransformKey(child.SourceTable, srcField), v, model.Record(srcRow))
			if err != nil {
				return nil, 0, fmt.Errorf("%s row %d: %w", child.SourceTable, i, err)
			}
			row[child.Fields[srcField]] = value
		}

		out = append(out, row)
	}

	return out, matched, nil
}

// rowKey returns the key of a child row. Rows without a key, or with an
// empty one, never match another row.
func rowKey(row map[string]any, field string) (string, bool) {
	v, ok := row[field]
	if !ok || v == nil {
		return "", false
	}
	k := cast.ToString(v)
	return k, k != ""
}

func (p *Plan) apply(field string, value any, source model.Record) (any, string, error) {
	t, ok := p.transforms[field]
	if !ok {
		return value, "", nil
	}
	out, err := t.fn(value, source)
	if err != nil {
		return nil, t.name, fmt.Errorf("transform %s on field %s: %w", t.name, field, err)
	}
	return out, t.name, nil
}

// Identifiers returns target field → value pairs used to look up an
// existing target. Without an identifier mapping, the first direct field
// present on the source is used. ok is false when a value is empty.
func (p *Plan) Identifiers(source model.Record) (map[string]any, bool) {
	mapping := p.cfg.IdentifierMapping
	if len(mapping) == 0 {
		for _, srcField := range slices.Sorted(maps.Keys(p.cfg.DirectFields)) {
			if source.Has(srcField) {
				mapping = map[string]string{srcField: p.cfg.DirectFields[srcField]}
				break
			}
		}
	}
	if len(mapping) == 0 {
		return nil, false
	}

	ids := make(map[string]any, len(mapping))
	for srcField, dstField := range mapping {
		v := source[srcField]
		if v == nil || v == "" {
			return nil, false
		}
		ids[dstField] = v
	}
	return ids, true
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func literal(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
