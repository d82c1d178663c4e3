package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livesync/internal/model"
)

func mustCompile(t *testing.T, raw string) *Plan {
	t.Helper()
	cfg, err := model.ParseConfig([]byte(raw))
	require.NoError(t, err)
	plan, err := Compile(cfg, NewRegistry())
	require.NoError(t, err)
	return plan
}

func TestResolveDirectFields(t *testing.T) {
	plan := mustCompile(t, `{"direct_fields":{"a":"x","b":"y"}}`)

	draft, err := plan.Resolve(model.Record{"a": 1, "b": 2}, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(model.Record{"x": 1, "y": 2}, draft.Record); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, draft.Creating)
	want := []PreviewEntry{
		{SourceField: "a", TargetField: "x", OriginalValue: 1, Value: 1},
		{SourceField: "b", TargetField: "y", OriginalValue: 2, Value: 2},
	}
	if diff := cmp.Diff(want, draft.Preview); diff != "" {
		t.Errorf("preview mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveSkipsMissingSourceFields(t *testing.T) {
	plan := mustCompile(t, `{"direct_fields":{"a":"x","b":"y"}}`)

	draft, err := plan.Resolve(model.Record{"a": "only"}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.Record{"x": "only"}, draft.Record)
	assert.Equal(t, []string{"b"}, draft.Skipped)
}

func TestResolveDefaultValues(t *testing.T) {
	plan := mustCompile(t, `{
		"direct_fields": {"customer": "party"},
		"default_values": {"status": "Draft", "priority": 3, "party": "fallback"}
	}`)
	source := model.Record{"customer": "ACME"}

	t.Run("creating", func(t *testing.T) {
		draft, err := plan.Resolve(source, nil)
		require.NoError(t, err)
		want := model.Record{"party": "ACME", "status": "Draft", "priority": int64(3)}
		if diff := cmp.Diff(want, draft.Record); diff != "" {
			t.Errorf("draft mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("existing target", func(t *testing.T) {
		existing := model.Record{"name": "T-1", "party": "old", "status": "Submitted"}
		draft, err := plan.Resolve(source, existing)
		require.NoError(t, err)
		want := model.Record{"name": "T-1", "party": "ACME", "status": "Submitted"}
		if diff := cmp.Diff(want, draft.Record); diff != "" {
			t.Errorf("draft mismatch (-want +got):\n%s", diff)
		}
		assert.False(t, draft.Creating)
		assert.Equal(t, "old", existing["party"], "existing record must not be modified")
	})
}

func TestResolveKeepsProtectedFieldsOnUpdate(t *testing.T) {
	plan := mustCompile(t, `{"direct_fields":{"name":"name","title":"title"}}`)

	draft, err := plan.Resolve(model.Record{"name": "S-1", "title": "new"}, model.Record{"name": "T-9", "title": "old"})
	require.NoError(t, err)
	assert.Equal(t, model.Record{"name": "T-9", "title": "new"}, draft.Record)

	draft, err = plan.Resolve(model.Record{"name": "S-1", "title": "new"}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.Record{"name": "S-1", "title": "new"}, draft.Record)
}

func TestResolveChildRowsByKey(t *testing.T) {
	plan := mustCompile(t, `{
		"child_mappings": [{
			"source_table": "items",
			"target_table": "lines",
			"fields": {"sku": "item_code", "qty": "quantity"},
			"key_field": "sku"
		}]
	}`)

	source := model.Record{"items": []any{
		map[string]any{"sku": "B", "qty": 5},
		map[string]any{"sku": "A", "qty": 7},
		map[string]any{"sku": "C", "qty": 1},
	}}
	existing := model.Record{"name": "T-1", "lines": []any{
		map[string]any{"item_code": "A", "quantity": 1, "rate": 10},
		map[string]any{"item_code": "B", "quantity": 2, "rate": 20},
		map[string]any{"item_code": "Z", "quantity": 9, "rate": 90},
	}}

	draft, err := plan.Resolve(source, existing)
	require.NoError(t, err)

	want := []map[string]any{
		{"item_code": "B", "quantity": 5, "rate": 20},
		{"item_code": "A", "quantity": 7, "rate": 10},
		{"item_code": "C", "quantity": 1},
	}
	if diff := cmp.Diff(want, draft.Record.Rows("lines")); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, draft.Children, 1)
	assert.Equal(t, 3, draft.Children[0].SourceCount)
	assert.Equal(t, 3, draft.Children[0].TargetCount)
	assert.Equal(t, 2, draft.Children[0].Matched)
}

func TestResolveChildRowsKeyComparesAsString(t *testing.T) {
	plan := mustCompile(t, `{
		"child_mappings": [{
			"source_table": "items", "target_table": "lines",
			"fields": {"code": "code", "qty": "qty"}, "key_field": "code"
		}]
	}`)

	draft, err := plan.Resolve(
		model.Record{"items": []map[string]any{{"code": 10, "qty": 3}}},
		model.Record{"lines": []map[string]any{{"code": "10", "qty": 1, "uom": "Nos"}}},
	)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"code": 10, "qty": 3, "uom": "Nos"}}, draft.Record.Rows("lines"))
}

func TestResolveChildRowsWithoutKeyAreNew(t *testing.T) {
	plan := mustCompile(t, `{
		"child_mappings": [{
			"source_table": "items", "target_table": "lines",
			"fields": {"sku": "item_code", "description": "description"}, "key_field": "sku"
		}]
	}`)

	draft, err := plan.Resolve(
		model.Record{"items": []map[string]any{
			{"description": "row without sku"},
			{"sku": "", "description": "blank sku"},
			{"sku": "A", "description": "keyed"},
		}},
		model.Record{"lines": []map[string]any{
			{"item_code": "", "description": "blank-key row", "rate": 99},
			{"item_code": "A", "description": "old", "rate": 10},
		}},
	)
	require.NoError(t, err)

	want := []map[string]any{
		{"description": "row without sku"},
		{"item_code": "", "description": "blank sku"},
		{"item_code": "A", "description": "keyed", "rate": 10},
	}
	if diff := cmp.Diff(want, draft.Record.Rows("lines")); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, draft.Children[0].Matched)
}

func TestResolveChildRowsPositional(t *testing.T) {
	plan := mustCompile(t, `{
		"child_mappings": [{
			"source_table": "items", "target_table": "lines",
			"fields": {"sku": "item_code"}
		}]
	}`)

	source := model.Record{"items": []map[string]any{{"sku": "B"}, {"sku": "A"}}}
	existing := model.Record{"lines": []map[string]any{
		{"item_code": "A", "idx": 1},
		{"item_code": "B", "idx": 2},
		{"item_code": "C", "idx": 3},
	}}

	draft, err := plan.Resolve(source, existing)
	require.NoError(t, err)
	want := []map[string]any{
		{"item_code": "B", "idx": 1},
		{"item_code": "A", "idx": 2},
	}
	if diff := cmp.Diff(want, draft.Record.Rows("lines")); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveTransforms(t *testing.T) {
	plan := mustCompile(t, `{
		"direct_fields": {"email": "email_id", "qty": "quantity"},
		"child_mappings": [{"source_table": "items", "target_table": "lines", "fields": {"code": "item_code"}}],
		"transform": {"email": "lower", "qty": "to_int", "items.code": "upper"}
	}`)

	draft, err := plan.Resolve(model.Record{
		"email": "Ops@Example.COM",
		"qty":   "12",
		"items": []map[string]any{{"code": "abc"}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "ops@example.com", draft.Record["email_id"])
	assert.Equal(t, int64(12), draft.Record["quantity"])
	assert.Equal(t, []map[string]any{{"item_code": "ABC"}}, draft.Record.Rows("lines"))
	assert.Equal(t, "lower", draft.Preview[0].Transform)
	assert.Equal(t, "Ops@Example.COM", draft.Preview[0].OriginalValue)
}

func TestResolveTransformsAreScopedToTable(t *testing.T) {
	plan := mustCompile(t, `{
		"direct_fields": {"description": "description"},
		"child_mappings": [
			{"source_table": "items", "target_table": "lines", "fields": {"description": "description"}},
			{"source_table": "taxes", "target_table": "charges", "fields": {"description": "description"}}
		],
		"transform": {"description": "upper", "taxes.description": "lower"}
	}`)

	draft, err := plan.Resolve(model.Record{
		"description": "Parent",
		"items":       []map[string]any{{"description": "Item Row"}},
		"taxes":       []map[string]any{{"description": "Tax Row"}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "PARENT", draft.Record["description"])
	assert.Equal(t, []map[string]any{{"description": "Item Row"}}, draft.Record.Rows("lines"))
	assert.Equal(t, []map[string]any{{"description": "tax row"}}, draft.Record.Rows("charges"))
}

func TestResolveTransformError(t *testing.T) {
	plan := mustCompile(t, `{"direct_fields":{"qty":"qty"},"transform":{"qty":"to_int"}}`)

	_, err := plan.Resolve(model.Record{"qty": "many"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to_int")
}

func TestCompileUnknownNames(t *testing.T) {
	reg := NewRegistry()

	cfg, err := model.ParseConfig([]byte(`{"direct_fields":{"a":"b"},"transform":{"a":"rot13"}}`))
	require.NoError(t, err)
	_, err = Compile(cfg, reg)
	assert.True(t, errors.Is(err, ErrUnknownTransform))

	cfg, err = model.ParseConfig([]byte(`{"hooks":{"after_sync":"notify"}}`))
	require.NoError(t, err)
	_, err = Compile(cfg, reg)
	assert.True(t, errors.Is(err, ErrUnknownHook))

	reg.RegisterHook("notify", func(context.Context, *HookContext) error { return nil })
	plan, err := Compile(cfg, reg)
	require.NoError(t, err)
	assert.NotNil(t, plan.AfterSync())
	assert.Nil(t, plan.BeforeSync())
}

func TestCustomTransformReceivesSource(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterTransform("full_name", func(value any, source model.Record) (any, error) {
		return value.(string) + " " + source["last"].(string), nil
	})

	cfg, err := model.ParseConfig([]byte(`{"direct_fields":{"first":"full_name"},"transform":{"first":"full_name"}}`))
	require.NoError(t, err)
	plan, err := Compile(cfg, reg)
	require.NoError(t, err)

	draft, err := plan.Resolve(model.Record{"first": "Ada", "last": "Lovelace"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", draft.Record["full_name"])
}

func TestTargetName(t *testing.T) {
	plan := mustCompile(t, `{"hooks":{"sync_name":"same_as_source"}}`)

	name, err := plan.TargetName(model.Record{"name": "SO-0001"})
	require.NoError(t, err)
	assert.Equal(t, "SO-0001", name)

	_, err = plan.TargetName(model.Record{})
	assert.Error(t, err)

	name, err = mustCompile(t, `{}`).TargetName(model.Record{"name": "SO-0001"})
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestIdentifiers(t *testing.T) {
	plan := mustCompile(t, `{"direct_fields":{"code":"item_code","title":"item_name"},"identifier_mapping":{"code":"item_code"}}`)

	ids, ok := plan.Identifiers(model.Record{"code": "X-1"})
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"item_code": "X-1"}, ids)

	_, ok = plan.Identifiers(model.Record{"code": ""})
	assert.False(t, ok)

	_, ok = plan.Identifiers(model.Record{"title": "no code"})
	assert.False(t, ok)

	fallback := mustCompile(t, `{"direct_fields":{"code":"item_code","title":"item_name"}}`)
	ids, ok = fallback.Identifiers(model.Record{"title": "Widget"})
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"item_name": "Widget"}, ids)
}

func TestReversePlan(t *testing.T) {
	plan := mustCompile(t, `{
		"direct_fields": {"a": "x"},
		"child_mappings": [{"source_table": "items", "target_table": "lines", "fields": {"sku": "code"}, "key_field": "sku"}],
		"transform": {"a": "upper"}
	}`)

	draft, err := plan.Reverse().Resolve(model.Record{"x": "v", "lines": []map[string]any{{"code": "S1"}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", draft.Record["a"])
	assert.Equal(t, []map[string]any{{"sku": "S1"}}, draft.Record.Rows("items"))
}
