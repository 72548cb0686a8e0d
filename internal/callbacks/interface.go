package callbacks

import (
	"context"

	"github.com/favbox/streamwork/schema"
)

// Component 执行单元的分类标识，如 Lambda、Parallel 等。
type Component string

// RunInfo 回调运行信息，描述当前执行单元。
type RunInfo struct {
	// Name 展示用的运行名称，不要求唯一
	Name string
	// Type 执行单元的具体实现类型
	Type string
	// Component 执行单元的分类
	Component Component
}

// CallbackInput 传入回调处理器的输入的统一类型抽象。
type CallbackInput any

// CallbackOutput 传入回调处理器的输出的统一类型抽象。
type CallbackOutput any

// Handler 回调处理器接口，覆盖执行单元生命周期的五个时机。
type Handler interface {
	// OnStart 执行单元开始时触发。
	OnStart(ctx context.Context, info *RunInfo, input CallbackInput) context.Context

	// OnEnd 执行单元正常结束时触发。
	OnEnd(ctx context.Context, info *RunInfo, output CallbackOutput) context.Context

	// OnError 执行单元出错时触发。
	OnError(ctx context.Context, info *RunInfo, err error) context.Context

	// OnStartWithStreamInput 流式输入开始时触发。
	OnStartWithStreamInput(ctx context.Context, info *RunInfo,
		input *schema.StreamReader[CallbackInput]) context.Context

	// OnEndWithStreamOutput 流式输出开始时触发。
	OnEndWithStreamOutput(ctx context.Context, info *RunInfo,
		output *schema.StreamReader[CallbackOutput]) context.Context
}

// CallbackTiming 回调时机。
type CallbackTiming uint8

// TimingChecker 可选实现，按时机判断处理器是否需要触发。
// 未实现该接口的处理器在所有时机都触发。
type TimingChecker interface {
	Needed(ctx context.Context, info *RunInfo, timing CallbackTiming) bool
}
