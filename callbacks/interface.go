// Package callbacks 提供执行单元生命周期的回调切面。
// 处理器随上下文注入，在单元执行的开始、结束、出错及流式时机触发。
package callbacks

import (
	"context"

	"github.com/favbox/streamwork/internal/callbacks"
)

// Component 执行单元分类类型别名。
type Component = callbacks.Component

// RunInfo 回调运行信息类型别名，携带当前执行单元的名称和分类。
type RunInfo = callbacks.RunInfo

// CallbackInput 回调输入类型别名。
// 具体类型由执行单元决定，处理器内按需断言。
type CallbackInput = callbacks.CallbackInput

// CallbackOutput 回调输出类型别名，与 CallbackInput 配套。
type CallbackOutput = callbacks.CallbackOutput

// Handler 回调处理器接口类型别名，覆盖五个回调时机。
type Handler = callbacks.Handler

// AppendGlobalHandlers 追加全局回调处理器。
// 全局处理器在所有执行单元中触发，先于单元专属处理器执行。
// 非并发安全，只应在进程初始化期间调用。
func AppendGlobalHandlers(handlers ...Handler) {
	callbacks.GlobalHandlers = append(callbacks.GlobalHandlers, handlers...)
}

// CallbackTiming 回调时机枚举类型别名。
type CallbackTiming = callbacks.CallbackTiming

const (
	// TimingOnStart 执行单元开始时机
	TimingOnStart CallbackTiming = iota
	// TimingOnEnd 执行单元结束时机
	TimingOnEnd
	// TimingOnError 执行单元出错时机
	TimingOnError
	// TimingOnStartWithStreamInput 流式输入开始时机
	TimingOnStartWithStreamInput
	// TimingOnEndWithStreamOutput 流式输出开始时机
	TimingOnEndWithStreamOutput
)

// TimingChecker 回调时机检查器接口别名。
// 实现该接口的处理器可以跳过不关心的时机，HandlerBuilder 构建的处理器自动实现。
type TimingChecker = callbacks.TimingChecker

// InitCallbacks 为一次运行建立回调作用域，写入处理器链与运行信息。
func InitCallbacks(ctx context.Context, info *RunInfo, handlers ...Handler) context.Context {
	return callbacks.InitCallbacks(ctx, info, handlers...)
}

// ReuseHandlers 沿用上下文中的处理器链，仅替换运行信息。
// 供执行单元在进入嵌套子单元前标记子单元身份。
func ReuseHandlers(ctx context.Context, info *RunInfo) context.Context {
	return callbacks.ReuseHandlers(ctx, info)
}
