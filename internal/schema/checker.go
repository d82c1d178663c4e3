package schema

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"livesync/internal/model"
	"livesync/internal/store"
)

// MetaSource provides record-type metadata
type MetaSource interface {
	Meta(ctx context.Context, recordType string) (*model.RecordTypeMeta, error)
}

// Checker validates configurations against record-type metadata
type Checker struct {
	meta MetaSource
}

// NewChecker creates a new checker reading metadata from meta
func NewChecker(meta MetaSource) *Checker {
	return &Checker{meta: meta}
}

// Check validates every field reference of cfg. others are the remaining
// stored configurations, used to detect bidirectional loops. An error is
// returned only when metadata cannot be read; problems with the
// configuration itself end up in the report.
func (c *Checker) Check(
	ctx context.Context,
	ls *model.LiveSync,
	cfg *model.SyncConfiguration,
	others []model.LiveSync,
) (*Report, error) {
	report := &Report{
		ConfigName: ls.Name,
		SourceType: ls.SourceType,
		TargetType: ls.TargetType,
		Issues:     []Issue{},
	}

	// Check bidirectional constraints
	c.checkDirection(ls, others, report)

	source, err := c.load(ctx, ls.SourceType, "source", report)
	if err != nil {
		return nil, err
	}
	target, err := c.load(ctx, ls.TargetType, "target", report)
	if err != nil {
		return nil, err
	}

	if source != nil && target != nil {
		c.checkFields(cfg.DirectFields, source, target, "direct_fields", report)
		c.checkFields(cfg.IdentifierMapping, source, target, "identifier_mapping", report)

		for _, field := range slices.Sorted(maps.Keys(cfg.DefaultValues)) {
			if _, ok := target.Field(field); !ok {
				report.add(MissingField, "target", field,
					"default value field %s does not exist on %s", field, target.Name)
			}
		}

		for _, cond := range cfg.Conditions {
			if _, ok := source.Field(cond.Field); !ok {
				report.add(MissingField, "source", cond.Field,
					"condition field %s does not exist on %s", cond.Field, source.Name)
			}
		}

		if f := cfg.OnDeleteField; f != "" {
			if _, ok := target.Field(f); !ok {
				report.add(MissingField, "target", f,
					"on_delete_field %s does not exist on %s", f, target.Name)
			}
		}

		if err := c.checkChildren(ctx, cfg.ChildMappings, source, target, report); err != nil {
			return nil, err
		}
	}

	report.Status = StatusValid
	if !report.Valid() {
		report.Status = StatusInvalid
	}

	return report, nil
}

func (c *Checker) load(ctx context.Context, recordType, side string, report *Report) (*model.RecordTypeMeta, error) {
	meta, err := c.meta.Meta(ctx, recordType)
	if errors.Is(err, store.ErrNotFound) {
		report.add(UnknownRecordType, side, recordType, "%s record type %q does not exist", side, recordType)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s metadata: %w", side, err)
	}
	return meta, nil
}

func (c *Checker) checkDirection(ls *model.LiveSync, others []model.LiveSync, report *Report) {
	if !ls.Bidirectional {
		return
	}

	if ls.SourceType == ls.TargetType {
		report.add(SameRecordType, "target", ls.TargetType,
			"bidirectional sync cannot use %s on both sides", ls.TargetType)
	}

	for _, other := range others {
		if other.Name == ls.Name || !other.Enabled || !other.Bidirectional {
			continue
		}
		if other.SourceType == ls.TargetType && other.TargetType == ls.SourceType {
			report.add(CircularSync, "target", ls.TargetType,
				"circular sync with bidirectional configuration %s", other.Name)
		}
	}
}

func (c *Checker) checkFields(
	mapping map[string]string,
	source, target *model.RecordTypeMeta,
	section string,
	report *Report,
) {
	for _, src := range slices.Sorted(maps.Keys(mapping)) {
		dst := mapping[src]
		if _, ok := source.Field(src); !ok {
			report.add(MissingField, "source", src,
				"%s: field %s does not exist on %s", section, src, source.Name)
		}
		if _, ok := target.Field(dst); !ok {
			report.add(MissingField, "target", dst,
				"%s: field %s does not exist on %s", section, dst, target.Name)
		}
	}
}

func (c *Checker) checkChildren(
	ctx context.Context,
	children []model.ChildMapping,
	source, target *model.RecordTypeMeta,
	report *Report,
) error {
	for _, child := range children {
		srcChild, err := c.table(ctx, source, child.SourceTable, "source", report)
		if err != nil {
			return err
		}
		dstChild, err := c.table(ctx, target, child.TargetTable, "target", report)
		if err != nil {
			return err
		}

		for _, src := range slices.Sorted(maps.Keys(child.Fields)) {
			dst := child.Fields[src]
			if srcChild != nil {
				if _, ok := srcChild.Field(src); !ok {
					report.add(MissingChildField, "source", src,
						"%s: field %s does not exist on %s", child.SourceTable, src, srcChild.Name)
				}
			}
			if dstChild != nil {
				if _, ok := dstChild.Field(dst); !ok {
					report.add(MissingChildField, "target", dst,
						"%s: field %s does not exist on %s", child.TargetTable, dst, dstChild.Name)
				}
			}
		}
	}
	return nil
}

// table resolves a Table-type field to the metadata of its child type.
func (c *Checker) table(
	ctx context.Context,
	parent *model.RecordTypeMeta,
	field, side string,
	report *Report,
) (*model.RecordTypeMeta, error) {
	f, ok := parent.Field(field)
	if !ok {
		report.add(MissingField, side, field, "table %s does not exist on %s", field, parent.Name)
		return nil, nil
	}
	if f.Type != model.FieldTypeTable {
		report.add(NotATable, side, field, "field %s on %s is %s, not a table", field, parent.Name, f.Type)
		return nil, nil
	}
	if f.Options == "" {
		return nil, nil
	}
	return c.load(ctx, f.Options, side, report)
}
