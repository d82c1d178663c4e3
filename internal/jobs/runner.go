package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"livesync/internal/model"
	"livesync/internal/store"
)

var (
	ErrNotRunning = errors.New("job runner is not running")
	ErrStopped    = errors.New("job runner stopped")
)

// Work 任务执行函数，每处理完一条记录调用一次 progress
type Work func(ctx context.Context, job *model.Job, progress func()) error

type task struct {
	job  *model.Job
	work Work
}

// Runner 后台任务执行器
type Runner struct {
	store     store.JobStore
	queue     chan task
	workers   int
	observers []Observer
	pending   map[string]*model.Job // 已提交但尚未结束的任务
	group     *errgroup.Group
	cancel    context.CancelFunc
	done      chan struct{}
	mutex     sync.RWMutex
}

// NewRunner 创建任务执行器
func NewRunner(js store.JobStore, workers, queueSize int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Runner{
		store:   js,
		queue:   make(chan task, queueSize),
		workers: workers,
		pending: make(map[string]*model.Job),
		done:    make(chan struct{}),
	}
}

// RegisterObserver 注册观察者
func (r *Runner) RegisterObserver(observer Observer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.observers = append(r.observers, observer)
}

// Start 启动工作协程
func (r *Runner) Start(ctx context.Context) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.group != nil {
		return
	}
	select {
	case <-r.done:
		// 执行器停止后不能再次启动
		return
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			r.worker(gctx)
			return nil
		})
	}
	r.group = g
	r.cancel = cancel
}

// Stop 停止执行器并等待工作协程退出，未结束的任务标记为失败
func (r *Runner) Stop() {
	r.mutex.Lock()
	g, cancel := r.group, r.cancel
	if g == nil {
		r.mutex.Unlock()
		return
	}
	r.group = nil
	r.mutex.Unlock()

	close(r.done)
	cancel()
	_ = g.Wait()

	r.mutex.Lock()
	remaining := make([]*model.Job, 0, len(r.pending))
	for _, job := range r.pending {
		remaining = append(remaining, job)
	}
	r.pending = make(map[string]*model.Job)
	r.mutex.Unlock()

	for _, job := range remaining {
		r.finish(context.Background(), job, ErrStopped)
	}
}

// Submit 提交任务到队列，任务以 pending 状态持久化
func (r *Runner) Submit(ctx context.Context, job *model.Job, work Work) error {
	r.mutex.Lock()
	if r.group == nil {
		r.mutex.Unlock()
		return ErrNotRunning
	}
	job.Status = model.JobPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	r.pending[job.ID] = job
	r.mutex.Unlock()

	if err := r.store.SaveJob(ctx, job); err != nil {
		r.forget(job)
		return err
	}

	select {
	case r.queue <- task{job: job, work: work}:
		return nil
	case <-r.done:
		r.forget(job)
		return ErrStopped
	case <-ctx.Done():
		r.forget(job)
		return ctx.Err()
	}
}

// Run 在当前协程内执行任务，返回前任务已处于终态
func (r *Runner) Run(ctx context.Context, job *model.Job, work Work) error {
	job.Status = model.JobPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	return r.execute(ctx, job, work)
}

func (r *Runner) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.queue:
			if ctx.Err() != nil {
				return
			}
			_ = r.execute(ctx, t.job, t.work)
			r.forget(t.job)
		}
	}
}

func (r *Runner) forget(job *model.Job) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.pending, job.ID)
}

func (r *Runner) execute(ctx context.Context, job *model.Job, work Work) error {
	now := time.Now()
	job.Status = model.JobRunning
	job.StartedAt = &now
	if err := r.store.SaveJob(ctx, job); err != nil {
		r.finish(context.Background(), job, err)
		return err
	}
	r.notifyStart(job)

	progress := func() {
		if err := r.store.SaveJob(ctx, job); err != nil {
			job.Error = err.Error()
		}
		r.notifyProgress(job)
	}

	if err := work(ctx, job, progress); err != nil {
		r.finish(context.Background(), job, err)
		return err
	}

	r.finish(ctx, job, nil)
	return nil
}

// finish 将任务置为终态并持久化
func (r *Runner) finish(ctx context.Context, job *model.Job, err error) {
	now := time.Now()
	job.FinishedAt = &now
	if err != nil {
		job.Status = model.JobFailed
		job.Error = err.Error()
	} else {
		job.Status = model.JobCompleted
	}

	if saveErr := r.store.SaveJob(ctx, job); saveErr != nil && err == nil {
		err = fmt.Errorf("保存任务状态失败: %w", saveErr)
		job.Status = model.JobFailed
		job.Error = err.Error()
	}

	if err != nil {
		r.notifyError(job, err)
		return
	}
	r.notifyComplete(job)
}

func (r *Runner) snapshotObservers() []Observer {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]Observer(nil), r.observers...)
}

func (r *Runner) notifyStart(job *model.Job) {
	for _, observer := range r.snapshotObservers() {
		observer.OnJobStart(job)
	}
}

func (r *Runner) notifyProgress(job *model.Job) {
	for _, observer := range r.snapshotObservers() {
		observer.OnJobProgress(job)
	}
}

func (r *Runner) notifyComplete(job *model.Job) {
	for _, observer := range r.snapshotObservers() {
		observer.OnJobComplete(job)
	}
}

func (r *Runner) notifyError(job *model.Job, err error) {
	for _, observer := range r.snapshotObservers() {
		observer.OnJobError(job, err)
	}
}
