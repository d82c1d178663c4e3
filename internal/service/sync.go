package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	"livesync/internal/mapping"
	"livesync/internal/model"
	"livesync/internal/schema"
	"livesync/internal/store"
)

// eventManual 标记由接口或命令行触发的同步
const eventManual mapping.Event = "manual"

type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionSkipped  Action = "skipped"
	ActionDeleted  Action = "deleted"
	ActionArchived Action = "archived"
	ActionFailed   Action = "failed"
)

// Result 单条记录的同步结果
type Result struct {
	Action     Action `json:"action"`
	SourceType string `json:"source_type"`
	SourceName string `json:"source_name"`
	TargetType string `json:"target_type"`
	TargetName string `json:"target_name,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Succeeded 失败以外的结果都算成功
func (r *Result) Succeeded() bool {
	return r.Action != ActionFailed
}

// TestResult 试运行结果，不写入任何数据
type TestResult struct {
	ConfigName    string         `json:"config"`
	SourceType    string         `json:"source_type"`
	SourceName    string         `json:"source_name"`
	TargetType    string         `json:"target_type"`
	TargetName    string         `json:"target_name,omitempty"`
	WouldCreate   bool           `json:"would_create"`
	ConditionsMet bool           `json:"conditions_met"`
	Draft         *mapping.Draft `json:"draft"`
	Issues        []schema.Issue `json:"issues"`
}

// RunSync 同步单条源记录
func (s *SyncService) RunSync(ctx context.Context, name, sourceName string) (*Result, error) {
	l, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if !l.ls.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrDisabled, name)
	}

	source, err := s.store.GetRecord(ctx, l.ls.SourceType, sourceName)
	if err != nil {
		return nil, fmt.Errorf("读取源记录 %s 失败: %w", sourceName, err)
	}
	return s.syncRecord(ctx, l, true, source, eventManual)
}

// TestSync 试运行：解析映射并返回预览。sourceName 为空时取第一条源记录。
func (s *SyncService) TestSync(ctx context.Context, name, sourceName string) (*TestResult, error) {
	l, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}

	var source model.Record
	if sourceName == "" {
		found, err := s.store.FindRecords(ctx, l.ls.SourceType, nil, 1)
		if err != nil {
			return nil, fmt.Errorf("查询源记录失败: %w", err)
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("没有可用于测试的 %s 记录: %w", l.ls.SourceType, store.ErrNotFound)
		}
		source = found[0]
	} else {
		source, err = s.store.GetRecord(ctx, l.ls.SourceType, sourceName)
		if err != nil {
			return nil, fmt.Errorf("读取源记录 %s 失败: %w", sourceName, err)
		}
	}

	target, err := s.match(ctx, l.ls.Name, l.plan, l.ls.SourceType, l.ls.TargetType, source)
	if err != nil {
		return nil, err
	}

	draft, err := l.plan.Resolve(source, target)
	if err != nil {
		return nil, err
	}

	others, err := s.store.ListConfigs(ctx)
	if err != nil {
		return nil, err
	}
	report, err := s.checker.Check(ctx, l.ls, l.plan.Config(), others)
	if err != nil {
		return nil, err
	}

	result := &TestResult{
		ConfigName:    l.ls.Name,
		SourceType:    l.ls.SourceType,
		SourceName:    source.Name(),
		TargetType:    l.ls.TargetType,
		WouldCreate:   target == nil,
		ConditionsMet: l.plan.ConditionsMet(source),
		Draft:         draft,
		Issues:        report.Issues,
	}
	if target != nil {
		result.TargetName = target.Name()
	}
	return result, nil
}

// syncRecord 按配置方向把一条源记录写入目标
func (s *SyncService) syncRecord(
	ctx context.Context,
	l *loaded,
	forward bool,
	source model.Record,
	event mapping.Event,
) (*Result, error) {
	plan, sourceType, targetType := l.direction(forward)
	task := &SyncTask{
		ConfigName: l.ls.Name,
		SourceType: sourceType,
		SourceName: source.Name(),
		TargetType: targetType,
		Forward:    forward,
		Event:      event,
	}

	return s.track(ctx, l.ls, task, func(result *Result) error {
		if !plan.ConditionsMet(source) {
			result.Action = ActionSkipped
			result.Message = "conditions not met"
			return nil
		}

		target, err := s.match(ctx, l.ls.Name, plan, sourceType, targetType, source)
		if err != nil {
			return err
		}

		switch plan.Config().UpdateAction() {
		case model.OnlyCreate:
			if target != nil {
				result.Action = ActionSkipped
				result.TargetName = target.Name()
				result.Message = "target already exists"
				return nil
			}
		case model.OnlyUpdate:
			if target == nil {
				result.Action = ActionSkipped
				result.Message = "no target to update"
				return nil
			}
		}

		hc := &mapping.HookContext{
			ConfigName: l.ls.Name,
			Forward:    forward,
			Source:     source,
			Target:     target,
		}
		if before := plan.BeforeSync(); before != nil {
			if err := before(ctx, hc); err != nil {
				return fmt.Errorf("before_sync 钩子失败: %w", err)
			}
		}

		draft, err := plan.Resolve(source, target)
		if err != nil {
			return err
		}

		if target == nil {
			name, err := plan.TargetName(source)
			if err != nil {
				return fmt.Errorf("生成目标名称失败: %w", err)
			}
			if name != "" {
				draft.Record[model.NameField] = name
			}
			target, err = s.store.InsertRecord(ctx, targetType, draft.Record)
			if err != nil {
				return fmt.Errorf("创建目标记录失败: %w", err)
			}
			result.Action = ActionCreated
		} else {
			draft.Record[model.NameField] = target.Name()
			if err := s.store.UpdateRecord(ctx, targetType, draft.Record); err != nil {
				return fmt.Errorf("更新目标记录失败: %w", err)
			}
			target = draft.Record
			result.Action = ActionUpdated
		}
		result.TargetName = target.Name()

		if task.SourceName != "" {
			link := &model.SyncLink{
				ConfigName: l.ls.Name,
				SourceType: sourceType,
				SourceName: task.SourceName,
				TargetType: targetType,
				TargetName: result.TargetName,
			}
			if err := s.store.SaveLink(ctx, link); err != nil {
				return fmt.Errorf("保存同步关联失败: %w", err)
			}
		}

		if after := plan.AfterSync(); after != nil {
			hc.Target = target
			if err := after(ctx, hc); err != nil {
				// 目标已写入，after_sync 失败只记录
				s.logger.WithError(err).WithField("config", l.ls.Name).Warn("after_sync 钩子失败")
				result.Message = "after_sync: " + err.Error()
			}
		}
		return nil
	})
}

// track 通知观察者并按日志级别写入同步日志
func (s *SyncService) track(
	ctx context.Context,
	ls *model.LiveSync,
	task *SyncTask,
	fn func(result *Result) error,
) (*Result, error) {
	result := &Result{
		SourceType: task.SourceType,
		SourceName: task.SourceName,
		TargetType: task.TargetType,
	}

	s.notifyStart(task)
	if err := fn(result); err != nil {
		result.Action = ActionFailed
		result.Message = err.Error()
		s.notifyError(task, err)
		s.writeLog(ctx, ls, task, result, err)
		return result, err
	}

	s.notifyComplete(task, result)
	s.writeLog(ctx, ls, task, result, nil)
	return result, nil
}

func (s *SyncService) writeLog(ctx context.Context, ls *model.LiveSync, task *SyncTask, result *Result, err error) {
	status := model.StatusSuccess
	switch {
	case err != nil:
		status = model.StatusError
	case result.Action == ActionSkipped:
		status = model.StatusSkipped
	}
	if !ls.ShouldLog(status) {
		return
	}

	entry := &model.SyncLog{
		ConfigName: ls.Name,
		Timestamp:  s.now(),
		SourceType: task.SourceType,
		SourceName: task.SourceName,
		TargetType: task.TargetType,
		TargetName: result.TargetName,
		Status:     status,
		Direction:  task.Direction(),
		Event:      string(task.Event),
	}
	if err != nil {
		entry.ErrorType = errorType(err)
		entry.ErrorMessage = err.Error()
	}
	if details, jerr := json.Marshal(result); jerr == nil {
		entry.Details = datatypes.JSON(details)
	}

	if err := s.store.AddLog(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("config", ls.Name).Warn("写入同步日志失败")
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrOrphanedLink):
		return "Orphaned Link"
	case errors.Is(err, mapping.ErrUnknownTransform), errors.Is(err, mapping.ErrUnknownHook):
		return "Configuration"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	}
	return "System"
}
