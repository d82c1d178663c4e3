package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"livesync/internal/model"
)

type linkKey struct {
	config, sourceType, sourceName string
}

// MemoryStore 内存存储，用于测试和本地调试
type MemoryStore struct {
	records map[string]map[string]model.Record // recordType -> name -> record
	metas   map[string]model.RecordTypeMeta
	configs map[string]model.LiveSync
	links   map[linkKey]model.SyncLink
	logs    []model.SyncLog
	jobs    map[string]model.Job
	mutex   sync.RWMutex
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]model.Record),
		metas:   make(map[string]model.RecordTypeMeta),
		configs: make(map[string]model.LiveSync),
		links:   make(map[linkKey]model.SyncLink),
		jobs:    make(map[string]model.Job),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetRecord(_ context.Context, recordType, name string) (model.Record, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rec, ok := m.records[recordType][name]
	if !ok {
		return nil, fmt.Errorf("record %s/%s: %w", recordType, name, ErrNotFound)
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) FindRecords(_ context.Context, recordType string, where map[string]any, limit int) ([]model.Record, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	names := slices.Sorted(maps.Keys(m.records[recordType]))
	out := make([]model.Record, 0)
	for _, name := range names {
		rec := m.records[recordType][name]
		if !matches(rec, where) {
			continue
		}
		out = append(out, rec.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func matches(rec model.Record, where map[string]any) bool {
	for field, want := range where {
		got, ok := rec[field]
		if !ok {
			return false
		}
		g, gerr := cast.ToStringE(got)
		w, werr := cast.ToStringE(want)
		if gerr != nil || werr != nil || g != w {
			return false
		}
	}
	return true
}

func (m *MemoryStore) InsertRecord(_ context.Context, recordType string, rec model.Record) (model.Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rec = rec.Clone()
	if rec == nil {
		rec = model.Record{}
	}
	name := rec.Name()
	if name == "" {
		name = uuid.NewString()
	}
	rec[model.NameField] = name

	byName, ok := m.records[recordType]
	if !ok {
		byName = make(map[string]model.Record)
		m.records[recordType] = byName
	}
	if _, exists := byName[name]; exists {
		return nil, fmt.Errorf("record %s/%s: %w", recordType, name, ErrExists)
	}
	byName[name] = rec
	return rec.Clone(), nil
}

func (m *MemoryStore) UpdateRecord(_ context.Context, recordType string, rec model.Record) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	name := rec.Name()
	if _, ok := m.records[recordType][name]; !ok {
		return fmt.Errorf("record %s/%s: %w", recordType, name, ErrNotFound)
	}
	m.records[recordType][name] = rec.Clone()
	return nil
}

func (m *MemoryStore) DeleteRecord(_ context.Context, recordType, name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.records[recordType][name]; !ok {
		return fmt.Errorf("record %s/%s: %w", recordType, name, ErrNotFound)
	}
	delete(m.records[recordType], name)
	return nil
}

func (m *MemoryStore) Meta(_ context.Context, recordType string) (*model.RecordTypeMeta, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	meta, ok := m.metas[recordType]
	if !ok {
		return nil, fmt.Errorf("record type %s: %w", recordType, ErrNotFound)
	}
	meta.Fields = slices.Clone(meta.Fields)
	return &meta, nil
}

func (m *MemoryStore) SaveMeta(_ context.Context, meta *model.RecordTypeMeta) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.metas[meta.Name] = model.RecordTypeMeta{Name: meta.Name, Fields: slices.Clone(meta.Fields)}
	return nil
}

func (m *MemoryStore) GetConfig(_ context.Context, name string) (*model.LiveSync, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ls, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("live sync %s: %w", name, ErrNotFound)
	}
	ls.Config = slices.Clone(ls.Config)
	return &ls, nil
}

func (m *MemoryStore) ListConfigs(_ context.Context) ([]model.LiveSync, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]model.LiveSync, 0, len(m.configs))
	for _, name := range slices.Sorted(maps.Keys(m.configs)) {
		out = append(out, m.configs[name])
	}
	return out, nil
}

func (m *MemoryStore) SaveConfig(_ context.Context, ls *model.LiveSync) error {
	if _, err := model.ParseConfig(ls.Config); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	if existing, ok := m.configs[ls.Name]; ok {
		ls.CreatedAt = existing.CreatedAt
	} else {
		ls.CreatedAt = now
	}
	ls.UpdatedAt = now

	stored := *ls
	stored.Config = slices.Clone(ls.Config)
	m.configs[ls.Name] = stored
	return nil
}

func (m *MemoryStore) GetLink(_ context.Context, configName, sourceType, sourceName string) (*model.SyncLink, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	link, ok := m.links[linkKey{configName, sourceType, sourceName}]
	if !ok {
		return nil, fmt.Errorf("link %s %s/%s: %w", configName, sourceType, sourceName, ErrNotFound)
	}
	return &link, nil
}

func (m *MemoryStore) SaveLink(_ context.Context, link *model.SyncLink) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	link.UpdatedAt = time.Now()
	m.links[linkKey{link.ConfigName, link.SourceType, link.SourceName}] = *link
	return nil
}

func (m *MemoryStore) DeleteLink(_ context.Context, configName, sourceType, sourceName string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.links, linkKey{configName, sourceType, sourceName})
	return nil
}

func (m *MemoryStore) AddLog(_ context.Context, entry *model.SyncLog) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.ID = uint(len(m.logs) + 1)
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *MemoryStore) ListLogs(_ context.Context, configName string, limit int) ([]model.SyncLog, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]model.SyncLog, 0)
	for i := len(m.logs) - 1; i >= 0; i-- {
		if configName != "" && m.logs[i].ConfigName != configName {
			continue
		}
		out = append(out, m.logs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) SaveJob(_ context.Context, job *model.Job) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := *job
	stored.Details = slices.Clone(job.Details)
	m.jobs[job.ID] = stored
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	job.Details = slices.Clone(job.Details)
	return &job, nil
}

func (m *MemoryStore) ListJobs(_ context.Context, configName string, limit int) ([]model.Job, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]model.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if configName != "" && job.ConfigName != configName {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
