package service

import (
	"context"
	"errors"
	"fmt"

	"livesync/internal/mapping"
	"livesync/internal/model"
	"livesync/internal/store"
)

// match 查找源记录对应的目标记录，未找到时返回 nil。
// 先按标识字段查询，再查上次同步留下的关联；关联的目标已被删除且
// 不允许重建时返回 ErrOrphanedLink。
func (s *SyncService) match(
	ctx context.Context,
	configName string,
	plan *mapping.Plan,
	sourceType, targetType string,
	source model.Record,
) (model.Record, error) {
	if ids, ok := plan.Identifiers(source); ok {
		found, err := s.store.FindRecords(ctx, targetType, ids, 1)
		if err != nil {
			return nil, fmt.Errorf("查询目标记录失败: %w", err)
		}
		if len(found) > 0 {
			return found[0], nil
		}
	}

	name := source.Name()
	if name == "" {
		return nil, nil
	}

	link, err := s.store.GetLink(ctx, configName, sourceType, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询同步关联失败: %w", err)
	}

	target, err := s.store.GetRecord(ctx, link.TargetType, link.TargetName)
	if err == nil {
		return target, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("读取关联目标记录失败: %w", err)
	}

	if plan.Config().AllowRecreate {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s %s", ErrOrphanedLink, link.TargetType, link.TargetName)
}
