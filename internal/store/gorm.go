package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"livesync/internal/model"
)

// recordRow 记录表，data 列保存整条记录的 JSON
type recordRow struct {
	ID         uint           `gorm:"primaryKey"`
	RecordType string         `gorm:"size:140;uniqueIndex:idx_record_type_name"`
	Name       string         `gorm:"size:140;uniqueIndex:idx_record_type_name"`
	Data       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (recordRow) TableName() string {
	return "sync_records"
}

// metaRow 记录类型元数据
type metaRow struct {
	Name   string            `gorm:"primaryKey;size:140"`
	Fields []model.FieldMeta `gorm:"serializer:json"`
}

func (metaRow) TableName() string {
	return "record_types"
}

// Options 数据库连接参数
type Options struct {
	Driver       string // mysql 或 sqlite
	DSN          string
	LogLevel     logger.LogLevel
	MaxOpenConns int
}

// GormStore 基于 gorm 的存储实现
type GormStore struct {
	db *gorm.DB
}

// Open 打开数据库并自动迁移表结构
func Open(opts Options) (*GormStore, error) {
	db, err := initDB(opts)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	s := NewGormStore(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewGormStore 使用已打开的连接创建存储
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func initDB(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "mysql":
		dialector = mysql.Open(opts.DSN)
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}

	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxOpen := opts.MaxOpenConns
	if opts.Driver == "sqlite" {
		// sqlite 内存库每个连接都是独立的数据库
		maxOpen = 1
	}
	if maxOpen <= 0 {
		maxOpen = 100
	}
	sqlDB.SetMaxIdleConns(min(10, maxOpen))
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate 创建或更新所有表
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(
		&recordRow{},
		&metaRow{},
		&model.LiveSync{},
		&model.SyncLink{},
		&model.SyncLog{},
		&model.Job{},
	); err != nil {
		return fmt.Errorf("迁移表结构失败: %w", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func decodeRecord(row *recordRow) (model.Record, error) {
	rec := model.Record{}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &rec); err != nil {
			return nil, fmt.Errorf("解析记录 %s/%s 失败: %w", row.RecordType, row.Name, err)
		}
	}
	rec[model.NameField] = row.Name
	return rec, nil
}

// ---------------------------------------------------------------- records

func (s *GormStore) GetRecord(ctx context.Context, recordType, name string) (model.Record, error) {
	var row recordRow
	err := s.db.WithContext(ctx).
		Where("record_type = ? AND name = ?", recordType, name).
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "record %s/%s", recordType, name)
	}
	return decodeRecord(&row)
}

func (s *GormStore) FindRecords(ctx context.Context, recordType string, where map[string]any, limit int) ([]model.Record, error) {
	q := s.db.WithContext(ctx).Where("record_type = ?", recordType)

	for _, field := range slices.Sorted(maps.Keys(where)) {
		value, err := cast.ToStringE(where[field])
		if err != nil {
			return nil, fmt.Errorf("查询记录 %s 失败: 字段 %s 的过滤值无法比较: %w", recordType, field, err)
		}
		if field == model.NameField {
			q = q.Where("name = ?", value)
			continue
		}
		q = q.Where(jsonTextEquals{column: "data", field: field, value: value})
	}

	q = q.Order("name")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []recordRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询记录 %s 失败: %w", recordType, err)
	}

	out := make([]model.Record, 0, len(rows))
	for i := range rows {
		rec, err := decodeRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// jsonTextEquals 按文本比较 JSON 字段的值，和 MemoryStore 一样：
// 5、"5" 与过滤值 "5" 相等，true 与 "true" 相等，JSON null 视为 ""。
type jsonTextEquals struct {
	column string
	field  string
	value  string
}

func (e jsonTextEquals) Build(builder clause.Builder) {
	stmt, ok := builder.(*gorm.Statement)
	if !ok {
		return
	}
	path := "$." + e.field

	switch stmt.Dialector.Name() {
	case "mysql":
		builder.WriteString("CASE JSON_TYPE(JSON_EXTRACT(")
		builder.WriteQuoted(e.column)
		builder.WriteByte(',')
		builder.AddVar(stmt, path)
		builder.WriteString(")) WHEN 'NULL' THEN '' ELSE JSON_UNQUOTE(JSON_EXTRACT(")
		builder.WriteQuoted(e.column)
		builder.WriteByte(',')
		builder.AddVar(stmt, path)
		builder.WriteString(")) END = ")
	default:
		// sqlite 的 JSON_EXTRACT 把 true/false 取成 1/0
		builder.WriteString("CASE JSON_TYPE(")
		builder.WriteQuoted(e.column)
		builder.WriteByte(',')
		builder.AddVar(stmt, path)
		builder.WriteString(") WHEN 'true' THEN 'true' WHEN 'false' THEN 'false' WHEN 'null' THEN '' ELSE CAST(JSON_EXTRACT(")
		builder.WriteQuoted(e.column)
		builder.WriteByte(',')
		builder.AddVar(stmt, path)
		builder.WriteString(") AS TEXT) END = ")
	}
	builder.AddVar(stmt, e.value)
}

func (s *GormStore) InsertRecord(ctx context.Context, recordType string, rec model.Record) (model.Record, error) {
	rec = rec.Clone()
	if rec == nil {
		rec = model.Record{}
	}
	name := rec.Name()
	if name == "" {
		name = uuid.NewString()
	}
	rec[model.NameField] = name

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("序列化记录失败: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&recordRow{}).
			Where("record_type = ? AND name = ?", recordType, name).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("record %s/%s: %w", recordType, name, ErrExists)
		}
		return tx.Create(&recordRow{RecordType: recordType, Name: name, Data: data}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("插入记录失败: %w", err)
	}
	return rec, nil
}

func (s *GormStore) UpdateRecord(ctx context.Context, recordType string, rec model.Record) error {
	name := rec.Name()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&recordRow{}).
			Where("record_type = ? AND name = ?", recordType, name).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("record %s/%s: %w", recordType, name, ErrNotFound)
		}
		return tx.Model(&recordRow{}).
			Where("record_type = ? AND name = ?", recordType, name).
			Updates(map[string]any{"data": datatypes.JSON(data), "updated_at": time.Now()}).Error
	})
	if err != nil {
		return fmt.Errorf("更新记录失败: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteRecord(ctx context.Context, recordType, name string) error {
	result := s.db.WithContext(ctx).
		Where("record_type = ? AND name = ?", recordType, name).
		Delete(&recordRow{})
	if result.Error != nil {
		return fmt.Errorf("删除记录失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("record %s/%s: %w", recordType, name, ErrNotFound)
	}
	return nil
}

func (s *GormStore) Meta(ctx context.Context, recordType string) (*model.RecordTypeMeta, error) {
	var row metaRow
	if err := s.db.WithContext(ctx).Where("name = ?", recordType).First(&row).Error; err != nil {
		return nil, notFound(err, "record type %s", recordType)
	}
	return &model.RecordTypeMeta{Name: row.Name, Fields: row.Fields}, nil
}

func (s *GormStore) SaveMeta(ctx context.Context, meta *model.RecordTypeMeta) error {
	row := &metaRow{Name: meta.Name, Fields: meta.Fields}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"fields"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("保存元数据 %s 失败: %w", meta.Name, err)
	}
	return nil
}

// ---------------------------------------------------------------- configs

func (s *GormStore) GetConfig(ctx context.Context, name string) (*model.LiveSync, error) {
	var ls model.LiveSync
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&ls).Error; err != nil {
		return nil, notFound(err, "live sync %s", name)
	}
	return &ls, nil
}

func (s *GormStore) ListConfigs(ctx context.Context) ([]model.LiveSync, error) {
	var out []model.LiveSync
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询配置失败: %w", err)
	}
	return out, nil
}

func (s *GormStore) SaveConfig(ctx context.Context, ls *model.LiveSync) error {
	if _, err := model.ParseConfig(ls.Config); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.LiveSync
		err := tx.Where("name = ?", ls.Name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(ls).Error
		}
		if err != nil {
			return err
		}
		ls.CreatedAt = existing.CreatedAt
		return tx.Save(ls).Error
	})
}

// ---------------------------------------------------------------- links

func (s *GormStore) GetLink(ctx context.Context, configName, sourceType, sourceName string) (*model.SyncLink, error) {
	var link model.SyncLink
	err := s.db.WithContext(ctx).
		Where("config_name = ? AND source_type = ? AND source_name = ?", configName, sourceType, sourceName).
		First(&link).Error
	if err != nil {
		return nil, notFound(err, "link %s %s/%s", configName, sourceType, sourceName)
	}
	return &link, nil
}

func (s *GormStore) SaveLink(ctx context.Context, link *model.SyncLink) error {
	link.UpdatedAt = time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_name"}, {Name: "source_type"}, {Name: "source_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"target_type", "target_name", "updated_at"}),
	}).Create(link).Error
	if err != nil {
		return fmt.Errorf("保存关联失败: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteLink(ctx context.Context, configName, sourceType, sourceName string) error {
	err := s.db.WithContext(ctx).
		Where("config_name = ? AND source_type = ? AND source_name = ?", configName, sourceType, sourceName).
		Delete(&model.SyncLink{}).Error
	if err != nil {
		return fmt.Errorf("删除关联失败: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------- logs

func (s *GormStore) AddLog(ctx context.Context, entry *model.SyncLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("写入同步日志失败: %w", err)
	}
	return nil
}

func (s *GormStore) ListLogs(ctx context.Context, configName string, limit int) ([]model.SyncLog, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if configName != "" {
		q = q.Where("config_name = ?", configName)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []model.SyncLog
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询同步日志失败: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------- jobs

func (s *GormStore) SaveJob(ctx context.Context, job *model.Job) error {
	if err := s.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("保存任务 %s 失败: %w", job.ID, err)
	}
	return nil
}

func (s *GormStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, notFound(err, "job %s", id)
	}
	return &job, nil
}

func (s *GormStore) ListJobs(ctx context.Context, configName string, limit int) ([]model.Job, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if configName != "" {
		q = q.Where("config_name = ?", configName)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []model.Job
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	return out, nil
}
