package compose

import (
	"github.com/bytedance/gopkg/util/gopool"

	"github.com/favbox/streamwork/callbacks"
)

// Executor 后台任务执行器，组合器的并发子任务经由它调度。
type Executor interface {
	Go(fn func())
}

// goExecutor 默认执行器，每个任务一个协程。
type goExecutor struct{}

func (goExecutor) Go(fn func()) {
	go fn()
}

// poolExecutor 协程池执行器。
type poolExecutor struct {
	pool gopool.Pool
}

func (p poolExecutor) Go(fn func()) {
	p.pool.Go(fn)
}

// NewPoolExecutor 创建容量受限的协程池执行器。
// 适合子任务数量大、需要限制并发度的场景。
func NewPoolExecutor(name string, cap int32) Executor {
	return poolExecutor{pool: gopool.NewPool(name, cap, gopool.NewConfig())}
}

// Option 执行单元的调用选项。
// 选项原样传入嵌套的子单元，对整棵调用树生效。
type Option struct {
	handlers []callbacks.Handler
	executor Executor
	runName  string
}

// WithCallbacks 为本次调用追加回调处理器。
func WithCallbacks(handlers ...callbacks.Handler) Option {
	return Option{handlers: handlers}
}

// WithExecutor 指定本次调用的后台任务执行器。
// 未指定时每个子任务各起一个协程。
func WithExecutor(e Executor) Option {
	return Option{executor: e}
}

// WithRunName 指定本次调用在回调中展示的运行名称。
func WithRunName(name string) Option {
	return Option{runName: name}
}

// options 聚合后的调用配置。
type options struct {
	handlers []callbacks.Handler
	executor Executor
	runName  string
}

func getOptions(opts ...Option) *options {
	o := &options{
		executor: goExecutor{},
	}

	for _, opt := range opts {
		if len(opt.handlers) > 0 {
			o.handlers = append(o.handlers, opt.handlers...)
		}
		if opt.executor != nil {
			o.executor = opt.executor
		}
		if opt.runName != "" {
			o.runName = opt.runName
		}
	}

	return o
}
