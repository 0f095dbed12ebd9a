package queue

import (
	"context"
	"sync"
	"time"

	"bjl-server/common/logger"

	"go.uber.org/zap"
)

// Result 任务处理结果，三态显式返回，由执行器统一决定重试与否
type Result int

const (
	Done  Result = iota // 成功，任务移除
	Retry               // 瞬时失败，延迟重投
	Fatal               // 致命失败，立即移除并落死信
)

// 默认重试策略：延迟 10 秒，最多重试 3 次（即同一任务最多执行 4 次）
const (
	DefaultRetryDelay = 10 * time.Second
	DefaultMaxRetries = 3
)

// Task 一条对账任务
type Task struct {
	Kind    string // 任务类型，路由到对应 Handler
	Key     string // 业务键（局号/关联ID），用于日志与死信
	Payload []byte // 任务载荷(JSON)
	TraceID string

	// Attempts 已执行次数，执行器维护
	Attempts int

	notBefore time.Time
}

// Handler 任务处理函数。返回 Retry 时附带的 error 仅用于日志与死信记录。
type Handler func(ctx context.Context, task *Task) (Result, error)

// DeadLetterFunc 死信回调。reason 为 exhausted（重试耗尽）或 fatal。
// 回调内部失败只能记日志，任务仍然离队。
type DeadLetterFunc func(ctx context.Context, task *Task, reason string, lastErr error)

// Queue 进程内延迟重试执行器。
// 任务入队后不可取消，终态只有 Done / Fatal / 重试耗尽，后两者必定落死信，绝不静默丢弃。
type Queue struct {
	mu       sync.Mutex
	pending  []*Task
	handlers map[string]Handler

	retryDelay time.Duration
	maxRetries int
	workers    int
	onDead     DeadLetterFunc

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Option 队列配置项
type Option func(*Queue)

func WithRetryDelay(d time.Duration) Option { return func(q *Queue) { q.retryDelay = d } }
func WithMaxRetries(n int) Option           { return func(q *Queue) { q.maxRetries = n } }
func WithWorkers(n int) Option              { return func(q *Queue) { q.workers = n } }
func WithDeadLetter(f DeadLetterFunc) Option {
	return func(q *Queue) { q.onDead = f }
}

// New 创建队列（未启动）
func New(opts ...Option) *Queue {
	q := &Queue{
		handlers:   make(map[string]Handler),
		retryDelay: DefaultRetryDelay,
		maxRetries: DefaultMaxRetries,
		workers:    4,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.onDead == nil {
		q.onDead = func(_ context.Context, task *Task, reason string, lastErr error) {
			logger.Error("recon task dropped without dead letter sink",
				zap.String("kind", task.Kind),
				zap.String("key", task.Key),
				zap.String("reason", reason),
				zap.Error(lastErr))
		}
	}
	return q
}

// Register 注册任务类型的处理函数，需在 Start 之前完成
func (q *Queue) Register(kind string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Enqueue 入队一条任务，立即可执行
func (q *Queue) Enqueue(task *Task) {
	q.EnqueueDelayed(task, 0)
}

// EnqueueDelayed 入队一条延迟任务
func (q *Queue) EnqueueDelayed(task *Task, delay time.Duration) {
	task.notBefore = time.Now().Add(delay)
	q.mu.Lock()
	q.pending = append(q.pending, task)
	q.mu.Unlock()
}

// Start 启动调度循环与工作协程
func (q *Queue) Start(parent context.Context) {
	q.ctx, q.cancel = context.WithCancel(parent)

	ch := make(chan *Task, q.workers*2)

	// 调度循环：扫描到期任务投给工作协程
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-q.ctx.Done():
				close(ch)
				return
			case <-ticker.C:
				for _, task := range q.takeDue() {
					select {
					case ch <- task:
					case <-q.ctx.Done():
						close(ch)
						return
					}
				}
			}
		}
	}()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for task := range ch {
				q.run(task)
			}
		}()
	}

	logger.Info("recon queue started",
		zap.Int("workers", q.workers),
		zap.Duration("retry_delay", q.retryDelay),
		zap.Int("max_retries", q.maxRetries))
}

// Stop 停止队列并等待在途任务结束
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	logger.Info("recon queue stopped")
}

// PendingCount 当前待执行任务数（监控/测试用）
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) takeDue() []*Task {
	now := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*Task
	rest := q.pending[:0]
	for _, task := range q.pending {
		if task.notBefore.After(now) {
			rest = append(rest, task)
			continue
		}
		due = append(due, task)
	}
	q.pending = rest
	return due
}

func (q *Queue) run(task *Task) {
	q.mu.Lock()
	h := q.handlers[task.Kind]
	q.mu.Unlock()

	if h == nil {
		// 未注册的任务类型是配置缺陷，按致命处理
		q.onDead(q.ctx, task, "fatal", ErrNoHandler)
		return
	}

	task.Attempts++
	res, err := func() (res Result, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("recon task panic",
					zap.String("kind", task.Kind),
					zap.String("key", task.Key),
					zap.Any("panic", r))
				res, err = Fatal, ErrHandlerPanic
			}
		}()
		return h(q.ctx, task)
	}()

	switch res {
	case Done:
		return
	case Fatal:
		logger.Error("recon task fatal",
			zap.String("kind", task.Kind),
			zap.String("key", task.Key),
			zap.Int("attempts", task.Attempts),
			zap.Error(err))
		q.onDead(q.ctx, task, "fatal", err)
	case Retry:
		// 重试次数 = 执行次数 - 1
		if task.Attempts-1 >= q.maxRetries {
			logger.Error("recon task retries exhausted, manual follow-up required",
				zap.String("kind", task.Kind),
				zap.String("key", task.Key),
				zap.Int("attempts", task.Attempts),
				zap.Error(err))
			q.onDead(q.ctx, task, "exhausted", err)
			return
		}
		logger.Warn("recon task retry scheduled",
			zap.String("kind", task.Kind),
			zap.String("key", task.Key),
			zap.Int("attempts", task.Attempts),
			zap.Error(err))
		q.EnqueueDelayed(task, q.retryDelay)
	}
}
