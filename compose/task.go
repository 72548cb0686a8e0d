package compose

import (
	"context"
	"runtime/debug"

	"github.com/favbox/streamwork/internal/safe"
)

// task 组合器内单个子任务的执行载体。
type task struct {
	ctx    context.Context
	key    string
	action *composableRunnable
	input  any
	output any
	opts   []Option
	err    error
}

// taskManager 调度子任务并收集完成结果。
// done 通道按提交上限缓冲，先行返回的调用方放弃等待时，
// 剩余任务仍可写入完成信号而不阻塞。
type taskManager struct {
	executor Executor
	done     chan *task
}

func newTaskManager(executor Executor, cap int) *taskManager {
	return &taskManager{
		executor: executor,
		done:     make(chan *task, cap),
	}
}

// execute 执行单个任务，panic 转为错误后发送完成信号。
func (m *taskManager) execute(currentTask *task) {
	defer func() {
		panicInfo := recover()
		if panicInfo != nil {
			currentTask.output = nil
			currentTask.err = safe.NewPanicErr(panicInfo, debug.Stack())
		}

		m.done <- currentTask
	}()

	ctx := subRunCtx(currentTask.ctx, currentTask.key, currentTask.action.meta)
	currentTask.output, currentTask.err = currentTask.action.i(ctx, currentTask.input, currentTask.opts...)
}

// submit 把任务交给执行器异步运行。
func (m *taskManager) submit(tasks []*task) {
	for _, currentTask := range tasks {
		currentTask := currentTask
		m.executor.Go(func() {
			m.execute(currentTask)
		})
	}
}

// wait 等待下一个完成的任务。
func (m *taskManager) wait() *task {
	return <-m.done
}
