package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"livesync/internal/config"
	"livesync/internal/jobs"
	"livesync/internal/mapping"
	"livesync/internal/model"
	"livesync/internal/schema"
	"livesync/internal/store"
)

var (
	ErrOrphanedLink = errors.New("linked target record was deleted")
	ErrDisabled     = errors.New("live sync is disabled")
)

// Options 同步参数
type Options struct {
	BulkSyncThreshold int
	MaxBulkLimit      int
	RateLimitWindow   time.Duration
}

// OptionsFromConfig 从配置文件读取同步参数
func OptionsFromConfig(cfg config.SyncConfig) Options {
	return Options{
		BulkSyncThreshold: cfg.BulkSyncThreshold,
		MaxBulkLimit:      cfg.MaxBulkLimit,
		RateLimitWindow:   cfg.RateLimitWindow,
	}
}

// SyncTask 定义单条记录的同步任务
type SyncTask struct {
	ConfigName string
	SourceType string
	SourceName string
	TargetType string
	Forward    bool
	Event      mapping.Event
}

// Direction 返回同步方向
func (t *SyncTask) Direction() string {
	if t.Forward {
		return "Forward"
	}
	return "Backward"
}

// SyncObserver 同步观察者接口
type SyncObserver interface {
	OnSyncStart(task *SyncTask)
	OnSyncComplete(task *SyncTask, result *Result)
	OnSyncError(task *SyncTask, err error)
}

// loaded 已编译的配置
type loaded struct {
	ls   *model.LiveSync
	plan *mapping.Plan
}

// direction 返回指定方向的映射计划和记录类型
func (l *loaded) direction(forward bool) (plan *mapping.Plan, sourceType, targetType string) {
	if forward {
		return l.plan, l.ls.SourceType, l.ls.TargetType
	}
	return l.plan.Reverse(), l.ls.TargetType, l.ls.SourceType
}

type rateKey struct {
	config, recordType, name string
}

// SyncService 同步服务
type SyncService struct {
	store     store.Store
	registry  *mapping.Registry
	checker   *schema.Checker
	runner    *jobs.Runner
	opts      Options
	logger    logrus.FieldLogger
	observers []SyncObserver

	cache    map[string][]*loaded // key: recordType
	lastSync map[rateKey]time.Time
	now      func() time.Time
	mutex    sync.RWMutex
}

// NewSyncService 创建同步服务
func NewSyncService(
	st store.Store,
	registry *mapping.Registry,
	runner *jobs.Runner,
	opts Options,
	logger logrus.FieldLogger,
) *SyncService {
	if opts.BulkSyncThreshold <= 0 {
		opts.BulkSyncThreshold = 50
	}
	if opts.MaxBulkLimit <= 0 {
		opts.MaxBulkLimit = 500
	}
	return &SyncService{
		store:    st,
		registry: registry,
		checker:  schema.NewChecker(st),
		runner:   runner,
		opts:     opts,
		logger:   logger,
		cache:    make(map[string][]*loaded),
		lastSync: make(map[rateKey]time.Time),
		now:      time.Now,
	}
}

// RegisterObserver 注册观察者
func (s *SyncService) RegisterObserver(observer SyncObserver) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.observers = append(s.observers, observer)
}

// load 读取并编译配置
func (s *SyncService) load(ctx context.Context, name string) (*loaded, error) {
	ls, err := s.store.GetConfig(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.compile(ls)
}

func (s *SyncService) compile(ls *model.LiveSync) (*loaded, error) {
	cfg, err := ls.Configuration()
	if err != nil {
		return nil, fmt.Errorf("配置 %s 解析失败: %w", ls.Name, err)
	}
	plan, err := mapping.Compile(cfg, s.registry)
	if err != nil {
		return nil, fmt.Errorf("配置 %s 编译失败: %w", ls.Name, err)
	}
	return &loaded{ls: ls, plan: plan}, nil
}

// configsFor 返回涉及该记录类型的已启用配置，结果按记录类型缓存
func (s *SyncService) configsFor(ctx context.Context, recordType string) ([]*loaded, error) {
	s.mutex.RLock()
	cached, ok := s.cache[recordType]
	s.mutex.RUnlock()
	if ok {
		return cached, nil
	}

	all, err := s.store.ListConfigs(ctx)
	if err != nil {
		return nil, err
	}

	var out []*loaded
	for i := range all {
		ls := &all[i]
		if !ls.Enabled {
			continue
		}
		if _, ok := ls.Involves(recordType); !ok {
			continue
		}
		l, err := s.compile(ls)
		if err != nil {
			s.logger.WithError(err).WithField("config", ls.Name).Warn("跳过无法加载的配置")
			continue
		}
		out = append(out, l)
	}

	s.mutex.Lock()
	s.cache[recordType] = out
	s.mutex.Unlock()
	return out, nil
}

// invalidate 配置变更后清空缓存
func (s *SyncService) invalidate() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cache = make(map[string][]*loaded)
}

// allow 限制同一条记录在窗口期内只同步一次
func (s *SyncService) allow(key rateKey) bool {
	if s.opts.RateLimitWindow <= 0 {
		return true
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	if last, ok := s.lastSync[key]; ok && now.Sub(last) < s.opts.RateLimitWindow {
		return false
	}

	// 顺便清理过期的记录
	for k, t := range s.lastSync {
		if now.Sub(t) >= s.opts.RateLimitWindow {
			delete(s.lastSync, k)
		}
	}
	s.lastSync[key] = now
	return true
}

func (s *SyncService) snapshotObservers() []SyncObserver {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]SyncObserver(nil), s.observers...)
}

func (s *SyncService) notifyStart(task *SyncTask) {
	for _, observer := range s.snapshotObservers() {
		observer.OnSyncStart(task)
	}
}

func (s *SyncService) notifyComplete(task *SyncTask, result *Result) {
	for _, observer := range s.snapshotObservers() {
		observer.OnSyncComplete(task, result)
	}
}

func (s *SyncService) notifyError(task *SyncTask, err error) {
	for _, observer := range s.snapshotObservers() {
		observer.OnSyncError(task, err)
	}
}
