package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidConfig marks a configuration blob that cannot be accepted.
var ErrInvalidConfig = errors.New("invalid sync configuration")

type ConditionType string

const (
	OnlyIf ConditionType = "Only If"
	SkipIf ConditionType = "Skip If"
)

type UpdateAction string

const (
	CreateOrUpdate UpdateAction = "Create or Update"
	OnlyCreate     UpdateAction = "Only Create"
	OnlyUpdate     UpdateAction = "Only Update"
)

type DeleteAction string

const (
	DeleteNone     DeleteAction = "None"
	DeleteTarget   DeleteAction = "Delete"
	ArchiveTarget  DeleteAction = "Archive"
	SetTargetField DeleteAction = "Set Field"
)

var operators = map[string]bool{
	"==": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true,
	"in": true, "not in": true, "contains": true, "starts with": true, "ends with": true,
}

// ChildMapping describes how rows of one child table translate into another.
type ChildMapping struct {
	SourceTable string            `json:"source_table"`
	TargetTable string            `json:"target_table"`
	Fields      map[string]string `json:"fields"`
	KeyField    string            `json:"key_field,omitempty"`
}

// Hooks name external functions invoked around a sync.
type Hooks struct {
	BeforeSync string `json:"before_sync,omitempty"`
	AfterSync  string `json:"after_sync,omitempty"`
	SyncName   string `json:"sync_name,omitempty"`
}

// Condition guards a sync on the value of a source field.
type Condition struct {
	Field         string        `json:"field"`
	Operator      string        `json:"operator"`
	Value         string        `json:"value"`
	ConditionType ConditionType `json:"condition_type"`
}

// SyncConfiguration is the declarative mapping between one source record
// type and one target record type. It is stored as JSON text and read back
// for every test, sync and bulk run.
type SyncConfiguration struct {
	DirectFields      map[string]string `json:"direct_fields"`
	IdentifierMapping map[string]string `json:"identifier_mapping"`
	ChildMappings     []ChildMapping    `json:"child_mappings"`
	DefaultValues     map[string]any    `json:"default_values"`
	Transform         map[string]string `json:"transform"`
	Hooks             *Hooks            `json:"hooks,omitempty"`
	AllowRecreate     bool              `json:"allow_recreate"`

	Conditions     []Condition  `json:"conditions,omitempty"`
	OnUpdateAction UpdateAction `json:"on_update_action,omitempty"`
	OnDeleteAction DeleteAction `json:"on_delete_action,omitempty"`
	OnDeleteField  string       `json:"on_delete_field,omitempty"`
}

// ParseConfig decodes a configuration blob. Unknown keys and trailing data
// are rejected so that every accepted blob survives a round trip intact.
// Numbers are kept as json.Number.
func ParseConfig(data []byte) (*SyncConfiguration, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidConfig)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: document is not a JSON object", ErrInvalidConfig)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	cfg := &SyncConfiguration{}
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after document", ErrInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Marshal encodes the configuration as stored JSON text.
func (c *SyncConfiguration) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync configuration: %w", err)
	}
	return data, nil
}

// Validate checks the parts of a configuration that need no metadata.
func (c *SyncConfiguration) Validate() error {
	for i, child := range c.ChildMappings {
		if child.SourceTable == "" || child.TargetTable == "" {
			return fmt.Errorf("%w: child mapping %d needs source_table and target_table", ErrInvalidConfig, i)
		}
		if child.KeyField != "" {
			if _, ok := child.Fields[child.KeyField]; !ok {
				return fmt.Errorf("%w: key_field %q of child mapping %s is not mapped", ErrInvalidConfig, child.KeyField, child.SourceTable)
			}
		}
	}

	for i, cond := range c.Conditions {
		if cond.Field == "" {
			return fmt.Errorf("%w: condition %d has no field", ErrInvalidConfig, i)
		}
		if !operators[cond.Operator] {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidConfig, cond.Operator)
		}
		if cond.ConditionType != OnlyIf && cond.ConditionType != SkipIf {
			return fmt.Errorf("%w: unknown condition type %q", ErrInvalidConfig, cond.ConditionType)
		}
	}

	for field := range c.Transform {
		if _, ok := c.DirectFields[field]; ok {
			continue
		}
		if !c.childSourceField(field) {
			return fmt.Errorf("%w: transform for unmapped field %q", ErrInvalidConfig, field)
		}
	}

	switch c.OnUpdateAction {
	case "", CreateOrUpdate, OnlyCreate, OnlyUpdate:
	default:
		return fmt.Errorf("%w: unknown on_update_action %q", ErrInvalidConfig, c.OnUpdateAction)
	}

	switch c.OnDeleteAction {
	case "", DeleteNone, DeleteTarget, ArchiveTarget:
	case SetTargetField:
		if c.OnDeleteField == "" {
			return fmt.Errorf("%w: on_delete_field is required for %q", ErrInvalidConfig, SetTargetField)
		}
	default:
		return fmt.Errorf("%w: unknown on_delete_action %q", ErrInvalidConfig, c.OnDeleteAction)
	}

	return nil
}

// ChildTransformKey is the transform key of a field of a child table row.
// Plain field names in transform only apply to direct fields.
func ChildTransformKey(sourceTable, field string) string {
	return sourceTable + "." + field
}

func (c *SyncConfiguration) childSourceField(key string) bool {
	for _, child := range c.ChildMappings {
		for field := range child.Fields {
			if ChildTransformKey(child.SourceTable, field) == key {
				return true
			}
		}
	}
	return false
}

// UpdateAction returns the configured action, defaulting to CreateOrUpdate.
func (c *SyncConfiguration) UpdateAction() UpdateAction {
	if c.OnUpdateAction == "" {
		return CreateOrUpdate
	}
	return c.OnUpdateAction
}

// DeleteAction returns the configured action, defaulting to DeleteNone.
func (c *SyncConfiguration) DeleteAction() DeleteAction {
	if c.OnDeleteAction == "" {
		return DeleteNone
	}
	return c.OnDeleteAction
}

// Reverse returns the configuration used to sync target changes back to the
// source for bidirectional syncs. Transforms, defaults, hooks and conditions
// are written against the forward direction and are dropped. The delete
// action applies in both directions.
func (c *SyncConfiguration) Reverse() *SyncConfiguration {
	rev := &SyncConfiguration{
		DirectFields:      invert(c.DirectFields),
		IdentifierMapping: invert(c.IdentifierMapping),
		AllowRecreate:     c.AllowRecreate,
		OnUpdateAction:    c.OnUpdateAction,
		OnDeleteAction:    c.OnDeleteAction,
		OnDeleteField:     c.OnDeleteField,
	}

	for _, child := range c.ChildMappings {
		keyField := ""
		if child.KeyField != "" {
			keyField = child.Fields[child.KeyField]
		}
		rev.ChildMappings = append(rev.ChildMappings, ChildMapping{
			SourceTable: child.TargetTable,
			TargetTable: child.SourceTable,
			Fields:      invert(child.Fields),
			KeyField:    keyField,
		})
	}

	return rev
}

func invert(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
