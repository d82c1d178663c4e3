package service

import (
	"context"
	"fmt"

	"livesync/internal/mapping"
	"livesync/internal/model"
	"livesync/internal/schema"
)

// SaveConfig 校验并保存配置。JSON 无效、钩子或转换函数未注册、
// 字段校验不通过时都不会写入，原有配置保持不变。
func (s *SyncService) SaveConfig(ctx context.Context, ls *model.LiveSync) (*schema.Report, error) {
	report, err := s.ValidateConfig(ctx, ls)
	if err != nil {
		return report, err
	}

	if ls.LogLevel == "" {
		ls.LogLevel = model.LogError
	}
	if err := s.store.SaveConfig(ctx, ls); err != nil {
		return report, fmt.Errorf("保存配置 %s 失败: %w", ls.Name, err)
	}
	s.invalidate()

	s.logger.WithField("config", ls.Name).Infof("配置已保存: %s -> %s", ls.SourceType, ls.TargetType)
	return report, nil
}

// ValidateConfig 执行保存前的全部校验，但不写入
func (s *SyncService) ValidateConfig(ctx context.Context, ls *model.LiveSync) (*schema.Report, error) {
	cfg, err := model.ParseConfig(ls.Config)
	if err != nil {
		return nil, err
	}
	if _, err := mapping.Compile(cfg, s.registry); err != nil {
		return nil, err
	}

	others, err := s.store.ListConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取已有配置失败: %w", err)
	}
	report, err := s.checker.Check(ctx, ls, cfg, others)
	if err != nil {
		return nil, err
	}
	return report, report.Err()
}

// CheckConfig 对已保存的配置做字段校验
func (s *SyncService) CheckConfig(ctx context.Context, name string) (*schema.Report, error) {
	ls, err := s.store.GetConfig(ctx, name)
	if err != nil {
		return nil, err
	}
	cfg, err := ls.Configuration()
	if err != nil {
		return nil, err
	}
	others, err := s.store.ListConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取已有配置失败: %w", err)
	}
	return s.checker.Check(ctx, ls, cfg, others)
}

func (s *SyncService) GetConfig(ctx context.Context, name string) (*model.LiveSync, error) {
	return s.store.GetConfig(ctx, name)
}

func (s *SyncService) ListConfigs(ctx context.Context) ([]model.LiveSync, error) {
	return s.store.ListConfigs(ctx)
}
