package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Task 一个后台清理任务
//
// Name 用于日志定位，Run 不返回错误，失败处理由任务自身负责。
type Task struct {
	Name string
	Run  func()
}

// WorkerPool 执行异步清理任务的固定大小协程池
//
// 删除胶囊后的图片目录回收走这里，请求不等待磁盘操作。
// 队列满时由调用方决定退化策略。
type WorkerPool struct {
	workers  int
	tasks    chan Task
	log      *zap.Logger
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewWorkerPool 创建协程池，workers 为并发数，queueSize 为积压上限。
func NewWorkerPool(workers, queueSize int, log *zap.Logger) *WorkerPool {
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan Task, queueSize),
		log:     log,
		stop:    make(chan struct{}),
	}
}

// Start 启动工作协程，ctx 取消时全部退出。
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// TrySubmit 尝试入队，队列已满立即返回 false。
func (p *WorkerPool) TrySubmit(task Task) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Stop 通知工作协程退出并等待当前任务跑完，已入队未开始的任务丢弃。
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case task := <-p.tasks:
			p.run(task)
		}
	}
}

func (p *WorkerPool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("background task panicked",
				zap.String("task", task.Name),
				zap.Any("panic", r),
			)
		}
	}()
	task.Run()
}
