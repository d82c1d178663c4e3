package service

import (
	"context"
	"errors"
	"fmt"

	"livesync/internal/mapping"
	"livesync/internal/model"
)

// archiveFields 按顺序尝试的归档字段及其取值
var archiveFields = []struct {
	field string
	value any
}{
	{"archived", 1},
	{"is_archived", 1},
	{"status", "Archived"},
}

// HandleEvent 处理记录的新增、修改和删除事件。
// 涉及该记录类型的每个已启用配置各同步一次，单个配置失败不影响其他配置，
// 所有错误合并后返回。
func (s *SyncService) HandleEvent(
	ctx context.Context,
	recordType string,
	event mapping.Event,
	rec model.Record,
) ([]*Result, error) {
	configs, err := s.configsFor(ctx, recordType)
	if err != nil {
		return nil, fmt.Errorf("加载同步配置失败: %w", err)
	}

	var (
		results []*Result
		errs    []error
	)
	for _, l := range configs {
		forward, _ := l.ls.Involves(recordType)

		var (
			result *Result
			err    error
		)
		if event == mapping.EventDelete {
			result, err = s.handleDelete(ctx, l, forward, rec)
		} else {
			result, err = s.handleChange(ctx, l, forward, event, rec)
		}
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.ls.Name, err))
		}
	}
	return results, errors.Join(errs...)
}

func (s *SyncService) handleChange(
	ctx context.Context,
	l *loaded,
	forward bool,
	event mapping.Event,
	rec model.Record,
) (*Result, error) {
	plan, sourceType, _ := l.direction(forward)
	logger := s.logger.WithField("config", l.ls.Name).WithField("record", sourceType+"/"+rec.Name())

	if !plan.ShouldSync(rec, event) {
		logger.Debugf("%s 事件不满足同步条件", event)
		return nil, nil
	}
	if !s.allow(rateKey{config: l.ls.Name, recordType: sourceType, name: rec.Name()}) {
		logger.Debug("同步过于频繁，已忽略")
		return nil, nil
	}
	return s.syncRecord(ctx, l, forward, rec, event)
}

// handleDelete 源记录被删除后按 on_delete_action 处理目标记录
func (s *SyncService) handleDelete(ctx context.Context, l *loaded, forward bool, rec model.Record) (*Result, error) {
	plan, sourceType, targetType := l.direction(forward)
	cfg := plan.Config()
	action := cfg.DeleteAction()
	if action == model.DeleteNone {
		return nil, nil
	}

	task := &SyncTask{
		ConfigName: l.ls.Name,
		SourceType: sourceType,
		SourceName: rec.Name(),
		TargetType: targetType,
		Forward:    forward,
		Event:      mapping.EventDelete,
	}

	return s.track(ctx, l.ls, task, func(result *Result) error {
		target, err := s.match(ctx, l.ls.Name, plan, sourceType, targetType, rec)
		if errors.Is(err, ErrOrphanedLink) {
			target, err = nil, nil
		}
		if err != nil {
			return err
		}
		if target == nil {
			result.Action = ActionSkipped
			result.Message = "no target"
			return s.dropLink(ctx, l.ls.Name, sourceType, task.SourceName)
		}
		result.TargetName = target.Name()

		switch action {
		case model.DeleteTarget:
			if err := s.store.DeleteRecord(ctx, targetType, target.Name()); err != nil {
				return fmt.Errorf("删除目标记录失败: %w", err)
			}
			result.Action = ActionDeleted
			return s.dropLink(ctx, l.ls.Name, sourceType, task.SourceName)

		case model.ArchiveTarget:
			field, value, err := s.archiveField(ctx, targetType, target)
			if err != nil {
				return err
			}
			target[field] = value
			result.Action = ActionArchived

		case model.SetTargetField:
			if !s.hasField(ctx, targetType, target, cfg.OnDeleteField) {
				result.Action = ActionSkipped
				result.Message = fmt.Sprintf("%s 没有字段 %s", targetType, cfg.OnDeleteField)
				return nil
			}
			target[cfg.OnDeleteField] = 1
			result.Action = ActionUpdated
		}

		if err := s.store.UpdateRecord(ctx, targetType, target); err != nil {
			return fmt.Errorf("更新目标记录失败: %w", err)
		}
		return nil
	})
}

// archiveField 选择目标记录上可用的归档字段
func (s *SyncService) archiveField(ctx context.Context, targetType string, target model.Record) (string, any, error) {
	for _, f := range archiveFields {
		if s.hasField(ctx, targetType, target, f.field) {
			return f.field, f.value, nil
		}
	}
	return "", nil, fmt.Errorf("%s 没有可用于归档的字段", targetType)
}

// hasField 字段在记录上或记录类型元数据中存在
func (s *SyncService) hasField(ctx context.Context, recordType string, rec model.Record, field string) bool {
	if rec.Has(field) {
		return true
	}
	meta, err := s.store.Meta(ctx, recordType)
	if err != nil {
		return false
	}
	_, ok := meta.Field(field)
	return ok
}

func (s *SyncService) dropLink(ctx context.Context, configName, sourceType, sourceName string) error {
	if sourceName == "" {
		return nil
	}
	if err := s.store.DeleteLink(ctx, configName, sourceType, sourceName); err != nil {
		return fmt.Errorf("删除同步关联失败: %w", err)
	}
	return nil
}
