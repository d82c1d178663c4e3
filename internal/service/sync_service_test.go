package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"livesync/internal/jobs"
	"livesync/internal/mapping"
	"livesync/internal/model"
	"livesync/internal/schema"
	"livesync/internal/store"
)

const contactConfig = `{
	"direct_fields": {"customer_name": "full_name", "email": "email_id", "territory": "region"},
	"identifier_mapping": {"email": "email_id"}
}`

type fixture struct {
	svc   *SyncService
	store store.Store
	hub   *jobs.Hub
	hook  *logtest.Hook
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	return newFixtureWithStore(t, opts, store.NewMemoryStore())
}

func newFixtureWithStore(t *testing.T, opts Options, st store.Store) *fixture {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.SaveMeta(ctx, &model.RecordTypeMeta{
		Name: "Customer",
		Fields: []model.FieldMeta{
			{Name: "customer_name", Type: "Data"},
			{Name: "email", Type: "Data"},
			{Name: "territory", Type: "Link"},
			{Name: "status", Type: "Select"},
		},
	}))
	require.NoError(t, st.SaveMeta(ctx, &model.RecordTypeMeta{
		Name: "Contact",
		Fields: []model.FieldMeta{
			{Name: "full_name", Type: "Data"},
			{Name: "email_id", Type: "Data"},
			{Name: "region", Type: "Data"},
			{Name: "is_archived", Type: "Check"},
			{Name: "deleted_flag", Type: "Check"},
		},
	}))

	hub := jobs.NewHub()
	runner := jobs.NewRunner(st, 1, 10)
	runner.RegisterObserver(hub)
	runner.Start(ctx)
	t.Cleanup(runner.Stop)

	registry := mapping.NewRegistry()
	registry.RegisterTransform("strict", func(value any, _ model.Record) (any, error) {
		if value == "bad" {
			return nil, errors.New("rejected value")
		}
		return value, nil
	})

	logger, hook := logtest.NewNullLogger()
	svc := NewSyncService(st, registry, runner, opts, logger)
	svc.RegisterObserver(&LogObserver{Logger: logger})

	return &fixture{svc: svc, store: st, hub: hub, hook: hook}
}

func (f *fixture) saveConfig(t *testing.T, ls model.LiveSync) {
	t.Helper()
	if ls.SourceType == "" {
		ls.SourceType, ls.TargetType = "Customer", "Contact"
	}
	_, err := f.svc.SaveConfig(context.Background(), &ls)
	require.NoError(t, err)
}

func (f *fixture) insert(t *testing.T, recordType string, rec model.Record) model.Record {
	t.Helper()
	saved, err := f.store.InsertRecord(context.Background(), recordType, rec)
	require.NoError(t, err)
	return saved
}

func customer(name, email, territory string) model.Record {
	return model.Record{"name": name, "customer_name": "Customer " + name, "email": email, "territory": territory}
}

func TestRunSyncCreatesThenUpdates(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{
		Name: "customer-contact", Enabled: true, EnableLogging: true, LogLevel: model.LogInfo,
		Config: []byte(contactConfig),
	})
	src := f.insert(t, "Customer", customer("CUST-1", "a@example.com", "EU"))

	result, err := f.svc.RunSync(ctx, "customer-contact", "CUST-1")
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, result.Action)
	require.NotEmpty(t, result.TargetName)

	target, err := f.store.GetRecord(ctx, "Contact", result.TargetName)
	require.NoError(t, err)
	assert.Equal(t, "Customer CUST-1", target["full_name"])
	assert.Equal(t, "EU", target["region"])

	link, err := f.store.GetLink(ctx, "customer-contact", "Customer", "CUST-1")
	require.NoError(t, err)
	assert.Equal(t, result.TargetName, link.TargetName)

	src["customer_name"] = "Renamed"
	require.NoError(t, f.store.UpdateRecord(ctx, "Customer", src))

	again, err := f.svc.RunSync(ctx, "customer-contact", "CUST-1")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, again.Action)
	assert.Equal(t, result.TargetName, again.TargetName)

	target, err = f.store.GetRecord(ctx, "Contact", result.TargetName)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", target["full_name"])

	logs, err := f.store.ListLogs(ctx, "customer-contact", 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.StatusSuccess, logs[0].Status)
	assert.Equal(t, "Forward", logs[0].Direction)

	var completed int
	for _, entry := range f.hook.AllEntries() {
		if entry.Data["action"] != nil {
			completed++
		}
	}
	assert.Equal(t, 2, completed)
}

func TestRunSyncMatchesExistingTargetByIdentifier(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: []byte(contactConfig)})
	f.insert(t, "Customer", customer("CUST-1", "a@example.com", "EU"))
	f.insert(t, "Contact", model.Record{"name": "CONT-9", "email_id": "a@example.com", "full_name": "Old"})

	result, err := f.svc.RunSync(ctx, "customer-contact", "CUST-1")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, result.Action)
	assert.Equal(t, "CONT-9", result.TargetName)

	contacts, err := f.store.FindRecords(ctx, "Contact", nil, 0)
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
}

func TestRunSyncOrphanedLink(t *testing.T) {
	tests := []struct {
		name          string
		allowRecreate bool
		wantErr       error
		wantAction    Action
	}{
		{"blocked", false, ErrOrphanedLink, ActionFailed},
		{"recreated", true, nil, ActionCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			ctx := context.Background()

			cfg := fmt.Sprintf(`{"direct_fields": {"customer_name": "full_name"}, "allow_recreate": %t}`, tt.allowRecreate)
			f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: []byte(cfg)})
			f.insert(t, "Customer", customer("CUST-1", "a@example.com", "EU"))

			first, err := f.svc.RunSync(ctx, "customer-contact", "CUST-1")
			require.NoError(t, err)
			require.NoError(t, f.store.DeleteRecord(ctx, "Contact", first.TargetName))

			result, err := f.svc.RunSync(ctx, "customer-contact", "CUST-1")
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.NotEqual(t, first.TargetName, result.TargetName)
			}
			assert.Equal(t, tt.wantAction, result.Action)
		})
	}
}

func TestRunSyncDisabled(t *testing.T) {
	f := newFixture(t, Options{})
	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Config: []byte(contactConfig)})
	f.insert(t, "Customer", customer("CUST-1", "a@example.com", "EU"))

	_, err := f.svc.RunSync(context.Background(), "customer-contact", "CUST-1")
	assert.True(t, errors.Is(err, ErrDisabled))

	_, err = f.svc.BulkSync(context.Background(), "customer-contact", "", "", 0)
	assert.True(t, errors.Is(err, ErrDisabled))
}

func TestRunSyncHooksAndNameFunc(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	var before, after []string
	f.svc.registry.RegisterHook("track_before", func(_ context.Context, hc *mapping.HookContext) error {
		before = append(before, hc.Source.Name())
		return nil
	})
	f.svc.registry.RegisterHook("track_after", func(_ context.Context, hc *mapping.HookContext) error {
		after = append(after, hc.Target.Name())
		return errors.New("notification failed")
	})

	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: []byte(`{
		"direct_fields": {"customer_name": "full_name"},
		"hooks": {"before_sync": "track_before", "after_sync": "track_after", "sync_name": "same_as_source"}
	}`)})
	f.insert(t, "Customer", customer("CUST-1", "a@example.com", "EU"))

	result, err := f.svc.RunSync(ctx, "customer-contact", "CUST-1")
	require.NoError(t, err)
	assert.Equal(t, "CUST-1", result.TargetName)
	assert.Contains(t, result.Message, "notification failed")
	assert.Equal(t, []string{"CUST-1"}, before)
	assert.Equal(t, []string{"CUST-1"}, after)
}

func TestTestSyncWritesNothing(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Config: []byte(contactConfig)})
	f.insert(t, "Customer", customer("CUST-2", "b@example.com", "US"))
	f.insert(t, "Customer", customer("CUST-1", "a@example.com", "EU"))

	result, err := f.svc.TestSync(ctx, "customer-contact", "")
	require.NoError(t, err)
	assert.Equal(t, "CUST-1", result.SourceName)
	assert.True(t, result.WouldCreate)
	assert.True(t, result.ConditionsMet)
	assert.Empty(t, result.Issues)
	assert.Len(t, result.Draft.Preview, 3)
	assert.Equal(t, "EU", result.Draft.Record["region"])

	contacts, err := f.store.FindRecords(ctx, "Contact", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, contacts)

	_, err = f.svc.TestSync(ctx, "customer-contact", "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestBulkSyncInlineCounts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: []byte(`{
		"direct_fields": {"customer_name": "full_name", "territory": "region"},
		"transform": {"territory": "strict"}
	}`)})

	territories := []string{"EU", "bad", "US", "bad", "EU"}
	for i, territory := range territories {
		f.insert(t, "Customer", customer(fmt.Sprintf("CUST-%d", i), fmt.Sprintf("c%d@example.com", i), territory))
	}

	job, err := f.svc.BulkSync(ctx, "customer-contact", "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 5, job.Total)
	assert.Equal(t, 5, job.Processed)
	assert.Equal(t, 3, job.Succeeded)
	assert.Equal(t, 2, job.Failed)
	assert.Equal(t, 3, job.Created)
	assert.Len(t, job.Details, 5)
	assert.Equal(t, string(ActionFailed), job.Details[1].Status)
	assert.Contains(t, job.Details[1].Message, "rejected value")

	stored, err := f.svc.JobStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Succeeded, stored.Succeeded)
	assert.Equal(t, 100.0, stored.Percent())
}

func TestBulkSyncFilterAndLimit(t *testing.T) {
	f := newFixture(t, Options{MaxBulkLimit: 2, BulkSyncThreshold: 2})
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: []byte(contactConfig)})
	for i, territory := range []string{"EU", "US", "EU", "EU"} {
		f.insert(t, "Customer", customer(fmt.Sprintf("CUST-%d", i), fmt.Sprintf("c%d@example.com", i), territory))
	}

	job, err := f.svc.BulkSync(ctx, "customer-contact", "territory", "US", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Total)
	assert.Equal(t, "CUST-1", job.Details[0].Source)

	job, err = f.svc.BulkSync(ctx, "customer-contact", "territory", "EU", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Total)
}

func TestBulkSyncNumericFilterOnSQLite(t *testing.T) {
	st, err := store.Open(store.Options{Driver: "sqlite", DSN: ":memory:", LogLevel: gormlogger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := newFixtureWithStore(t, Options{}, st)
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: []byte(contactConfig)})
	for i := 0; i < 4; i++ {
		rec := customer(fmt.Sprintf("CUST-%d", i), fmt.Sprintf("c%d@example.com", i), "EU")
		rec["docstatus"] = i % 2
		rec["is_active"] = i < 3
		f.insert(t, "Customer", rec)
	}

	job, err := f.svc.BulkSync(ctx, "customer-contact", "docstatus", "1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Total, "docstatus=1 应匹配 2 条记录")
	assert.Equal(t, 2, job.Created)
	assert.Equal(t, "CUST-1", job.Details[0].Source)
	assert.Equal(t, "CUST-3", job.Details[1].Source)

	job, err = f.svc.BulkSync(ctx, "customer-contact", "is_active", "false", 0)
	require.NoError(t, err)
	require.Equal(t, 1, job.Total)
	assert.Equal(t, "CUST-3", job.Details[0].Source)
}

func TestBulkSyncInBackground(t *testing.T) {
	f := newFixture(t, Options{BulkSyncThreshold: 2})
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: []byte(contactConfig)})
	for i := 0; i < 5; i++ {
		f.insert(t, "Customer", customer(fmt.Sprintf("CUST-%d", i), fmt.Sprintf("c%d@example.com", i), "EU"))
	}

	events, unsubscribe := f.hub.Subscribe(16)
	defer unsubscribe()

	job, err := f.svc.BulkSync(ctx, "customer-contact", "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, job.Status)

	var last jobs.Event
	timeout := time.After(5 * time.Second)
wait:
	for {
		select {
		case e := <-events:
			last = e
			if e.Type != jobs.EventProgress {
				break wait
			}
		case <-timeout:
			t.Fatal("timed out waiting for bulk job")
		}
	}
	assert.Equal(t, jobs.EventCompleted, last.Type)
	assert.Equal(t, job.ID, last.JobID)

	stored, err := f.svc.JobStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, stored.Status)
	assert.Equal(t, 5, stored.Succeeded)
	assert.Len(t, stored.Details, 5)

	list, err := f.svc.ListJobs(ctx, "customer-contact", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestHandleEventRateLimit(t *testing.T) {
	f := newFixture(t, Options{RateLimitWindow: time.Second})
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: []byte(contactConfig)})

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	rec := f.insert(t, "Customer", customer("CUST-1", "a@example.com", "EU"))
	results, err := f.svc.HandleEvent(ctx, "Customer", mapping.EventInsert, rec)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ActionCreated, results[0].Action)

	results, err = f.svc.HandleEvent(ctx, "Customer", mapping.EventUpdate, rec)
	require.NoError(t, err)
	assert.Empty(t, results)

	now = now.Add(2 * time.Second)
	results, err = f.svc.HandleEvent(ctx, "Customer", mapping.EventUpdate, rec)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ActionUpdated, results[0].Action)

	results, err = f.svc.HandleEvent(ctx, "Supplier", mapping.EventInsert, model.Record{"name": "SUP-1"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHandleEventConditions(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: []byte(`{
		"direct_fields": {"customer_name": "full_name"},
		"conditions": [{"field": "status", "operator": "==", "value": "Active", "condition_type": "Only If"}],
		"on_update_action": "Only Create"
	}`)})

	inactive := customer("CUST-1", "a@example.com", "EU")
	inactive["status"] = "Inactive"
	results, err := f.svc.HandleEvent(ctx, "Customer", mapping.EventInsert, inactive)
	require.NoError(t, err)
	assert.Empty(t, results)

	active := customer("CUST-2", "b@example.com", "EU")
	active["status"] = "Active"
	results, err = f.svc.HandleEvent(ctx, "Customer", mapping.EventUpdate, active)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = f.svc.HandleEvent(ctx, "Customer", mapping.EventInsert, active)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ActionCreated, results[0].Action)
}

func TestHandleEventBidirectional(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{
		Name: "customer-contact", Enabled: true, Bidirectional: true,
		Config: []byte(contactConfig),
	})

	contact := f.insert(t, "Contact", model.Record{
		"name": "CONT-1", "full_name": "Ada", "email_id": "ada@example.com", "region": "EU",
	})
	results, err := f.svc.HandleEvent(ctx, "Contact", mapping.EventInsert, contact)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Customer", results[0].TargetType)

	customers, err := f.store.FindRecords(ctx, "Customer", map[string]any{"email": "ada@example.com"}, 0)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Ada", customers[0]["customer_name"])
	assert.Equal(t, "EU", customers[0]["territory"])

	link, err := f.store.GetLink(ctx, "customer-contact", "Contact", "CONT-1")
	require.NoError(t, err)
	assert.Equal(t, "Customer", link.TargetType)
}

func TestHandleDeleteActions(t *testing.T) {
	tests := []struct {
		action string
		check  func(t *testing.T, target model.Record, err error)
	}{
		{"Delete", func(t *testing.T, _ model.Record, err error) {
			assert.True(t, errors.Is(err, store.ErrNotFound))
		}},
		{"Archive", func(t *testing.T, target model.Record, err error) {
			require.NoError(t, err)
			assert.EqualValues(t, 1, target["is_archived"])
		}},
		{"Set Field", func(t *testing.T, target model.Record, err error) {
			require.NoError(t, err)
			assert.EqualValues(t, 1, target["deleted_flag"])
		}},
		{"None", func(t *testing.T, target model.Record, err error) {
			require.NoError(t, err)
			assert.NotContains(t, target, "is_archived")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			f := newFixture(t, Options{})
			ctx := context.Background()

			cfg := map[string]any{
				"direct_fields":    map[string]string{"customer_name": "full_name"},
				"on_delete_action": tt.action,
			}
			if tt.action == "Set Field" {
				cfg["on_delete_field"] = "deleted_flag"
			}
			data, err := json.Marshal(cfg)
			require.NoError(t, err)
			f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: data})

			rec := f.insert(t, "Customer", customer("CUST-1", "a@example.com", "EU"))
			results, err := f.svc.HandleEvent(ctx, "Customer", mapping.EventInsert, rec)
			require.NoError(t, err)
			require.Len(t, results, 1)
			targetName := results[0].TargetName

			require.NoError(t, f.store.DeleteRecord(ctx, "Customer", "CUST-1"))
			_, err = f.svc.HandleEvent(ctx, "Customer", mapping.EventDelete, rec)
			require.NoError(t, err)

			target, err := f.store.GetRecord(ctx, "Contact", targetName)
			tt.check(t, target, err)
		})
	}
}

func TestHandleDeleteBackward(t *testing.T) {
	tests := []struct {
		action string
		field  string
		check  func(t *testing.T, source model.Record, result *Result)
	}{
		{"Archive", "", func(t *testing.T, source model.Record, result *Result) {
			assert.Equal(t, ActionArchived, result.Action)
			assert.Equal(t, "Archived", source["status"])
		}},
		{"Set Field", "deleted_flag", func(t *testing.T, source model.Record, result *Result) {
			// Customer 没有 deleted_flag 字段
			assert.Equal(t, ActionSkipped, result.Action)
			assert.NotContains(t, source, "deleted_flag")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			f := newFixture(t, Options{})
			ctx := context.Background()

			cfg := map[string]any{
				"direct_fields":      map[string]string{"customer_name": "full_name", "email": "email_id"},
				"identifier_mapping": map[string]string{"email": "email_id"},
				"on_delete_action":   tt.action,
			}
			if tt.field != "" {
				cfg["on_delete_field"] = tt.field
			}
			data, err := json.Marshal(cfg)
			require.NoError(t, err)
			f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Bidirectional: true, Config: data})

			rec := f.insert(t, "Customer", customer("CUST-1", "a@example.com", "EU"))
			results, err := f.svc.HandleEvent(ctx, "Customer", mapping.EventInsert, rec)
			require.NoError(t, err)
			require.Len(t, results, 1)

			contact, err := f.store.GetRecord(ctx, "Contact", results[0].TargetName)
			require.NoError(t, err)
			require.NoError(t, f.store.DeleteRecord(ctx, "Contact", contact.Name()))

			results, err = f.svc.HandleEvent(ctx, "Contact", mapping.EventDelete, contact)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "Customer", results[0].TargetType)
			assert.Equal(t, "CUST-1", results[0].TargetName)

			source, err := f.store.GetRecord(ctx, "Customer", "CUST-1")
			require.NoError(t, err)
			tt.check(t, source, results[0])
		})
	}
}

func TestSaveConfigRejectsInvalid(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.saveConfig(t, model.LiveSync{Name: "customer-contact", Enabled: true, Config: []byte(contactConfig)})

	_, err := f.svc.SaveConfig(ctx, &model.LiveSync{
		Name: "customer-contact", SourceType: "Customer", TargetType: "Contact",
		Config: []byte(`{"direct_fields": {`),
	})
	assert.True(t, errors.Is(err, model.ErrInvalidConfig), "got %v", err)

	report, err := f.svc.SaveConfig(ctx, &model.LiveSync{
		Name: "customer-contact", SourceType: "Customer", TargetType: "Contact",
		Config: []byte(`{"direct_fields": {"nickname": "full_name"}}`),
	})
	var verr *schema.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	require.NotNil(t, report)
	assert.Equal(t, schema.MissingField, report.Issues[0].Type)

	_, err = f.svc.SaveConfig(ctx, &model.LiveSync{
		Name: "customer-contact", SourceType: "Customer", TargetType: "Contact",
		Config: []byte(`{"direct_fields": {"email": "email_id"}, "transform": {"email": "rot13"}}`),
	})
	assert.True(t, errors.Is(err, mapping.ErrUnknownTransform), "got %v", err)

	stored, err := f.svc.GetConfig(ctx, "customer-contact")
	require.NoError(t, err)
	assert.JSONEq(t, contactConfig, string(stored.Config))
	assert.Equal(t, model.LogError, stored.LogLevel)

	report, err = f.svc.CheckConfig(ctx, "customer-contact")
	require.NoError(t, err)
	assert.True(t, report.Valid())
}
