package store

import (
	"context"
	"errors"

	"livesync/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// RecordStore 文档存储：记录与记录类型元数据
type RecordStore interface {
	GetRecord(ctx context.Context, recordType, name string) (model.Record, error)
	// FindRecords 按字段等值过滤，limit <= 0 表示不限制，结果按 name 排序
	FindRecords(ctx context.Context, recordType string, where map[string]any, limit int) ([]model.Record, error)
	// InsertRecord 插入记录，name 为空时自动生成，返回写入后的记录
	InsertRecord(ctx context.Context, recordType string, rec model.Record) (model.Record, error)
	UpdateRecord(ctx context.Context, recordType string, rec model.Record) error
	DeleteRecord(ctx context.Context, recordType, name string) error

	Meta(ctx context.Context, recordType string) (*model.RecordTypeMeta, error)
	SaveMeta(ctx context.Context, meta *model.RecordTypeMeta) error
}

// ConfigStore Live Sync 配置存储
type ConfigStore interface {
	GetConfig(ctx context.Context, name string) (*model.LiveSync, error)
	ListConfigs(ctx context.Context) ([]model.LiveSync, error)
	// SaveConfig 保存前校验 JSON，校验失败时保留原有配置
	SaveConfig(ctx context.Context, ls *model.LiveSync) error
}

// LinkStore 源记录与目标记录的关联
type LinkStore interface {
	GetLink(ctx context.Context, configName, sourceType, sourceName string) (*model.SyncLink, error)
	SaveLink(ctx context.Context, link *model.SyncLink) error
	DeleteLink(ctx context.Context, configName, sourceType, sourceName string) error
}

// LogStore 同步日志
type LogStore interface {
	AddLog(ctx context.Context, entry *model.SyncLog) error
	ListLogs(ctx context.Context, configName string, limit int) ([]model.SyncLog, error)
}

// JobStore 批量任务
type JobStore interface {
	SaveJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, configName string, limit int) ([]model.Job, error)
}

// Store 汇总所有存储接口
type Store interface {
	RecordStore
	ConfigStore
	LinkStore
	LogStore
	JobStore
	Close() error
}
