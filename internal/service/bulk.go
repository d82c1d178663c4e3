package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"livesync/internal/model"
)

// BulkSync 批量同步符合过滤条件的源记录。
// 记录数不超过阈值时在当前请求内执行，否则交给后台任务执行器，
// 返回的任务可通过 JobStatus 查询进度。
func (s *SyncService) BulkSync(
	ctx context.Context,
	name, filterField, filterValue string,
	limit int,
) (*model.Job, error) {
	l, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if !l.ls.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrDisabled, name)
	}

	if limit <= 0 || limit > s.opts.MaxBulkLimit {
		limit = s.opts.MaxBulkLimit
	}

	var where map[string]any
	if filterField != "" {
		where = map[string]any{filterField: filterValue}
	}
	records, err := s.store.FindRecords(ctx, l.ls.SourceType, where, limit)
	if err != nil {
		return nil, fmt.Errorf("查询源记录失败: %w", err)
	}

	job := &model.Job{
		ID:          uuid.NewString(),
		ConfigName:  name,
		Status:      model.JobPending,
		FilterField: filterField,
		FilterValue: filterValue,
		Total:       len(records),
		Details:     []model.RecordDetail{},
		CreatedAt:   s.now(),
	}

	work := func(ctx context.Context, job *model.Job, progress func()) error {
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}

			result, err := s.syncRecord(ctx, l, true, rec, eventManual)
			detail := model.RecordDetail{
				Source: rec.Name(),
				Status: string(result.Action),
				Target: result.TargetName,
			}
			if err != nil {
				detail.Message = err.Error()
			} else {
				detail.Message = result.Message
			}
			record(job, result.Action, detail)
			progress()
		}
		return nil
	}

	if len(records) <= s.opts.BulkSyncThreshold {
		start := time.Now()
		if err := s.runner.Run(ctx, job, work); err != nil {
			return job, err
		}
		s.logger.WithField("config", name).Infof("批量同步完成，共 %d 条，耗时 %v", job.Total, time.Since(start))
		return job, nil
	}

	// 提交后任务由执行器修改，返回提交前的快照
	snapshot := *job
	if err := s.runner.Submit(ctx, job, work); err != nil {
		return nil, fmt.Errorf("提交批量同步任务失败: %w", err)
	}
	return &snapshot, nil
}

// record 累计单条记录的结果
func record(job *model.Job, action Action, detail model.RecordDetail) {
	job.Processed++
	switch action {
	case ActionFailed:
		job.Failed++
	case ActionCreated:
		job.Succeeded++
		job.Created++
	case ActionUpdated:
		job.Succeeded++
		job.Updated++
	default:
		job.Succeeded++
		job.Skipped++
	}
	job.Details = append(job.Details, detail)
}

// JobStatus 查询任务状态
func (s *SyncService) JobStatus(ctx context.Context, id string) (*model.Job, error) {
	return s.store.GetJob(ctx, id)
}

// ListJobs 按创建时间倒序列出任务，configName 为空时列出全部
func (s *SyncService) ListJobs(ctx context.Context, configName string, limit int) ([]model.Job, error) {
	return s.store.ListJobs(ctx, configName, limit)
}
