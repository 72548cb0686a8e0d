package compose

import (
	"context"

	"github.com/favbox/streamwork/callbacks"
	icb "github.com/favbox/streamwork/internal/callbacks"
	"github.com/favbox/streamwork/schema"
)

// on 单个回调时机的处理函数。
type on[T any] func(context.Context, T) (context.Context, T)

func onStart[T any](ctx context.Context, input T) (context.Context, T) {
	return icb.On(ctx, input, icb.OnStartHandle[T], callbacks.TimingOnStart, true)
}

func onEnd[T any](ctx context.Context, output T) (context.Context, T) {
	return icb.On(ctx, output, icb.OnEndHandle[T], callbacks.TimingOnEnd, false)
}

func onError(ctx context.Context, err error) (context.Context, error) {
	return icb.On(ctx, err, icb.OnErrorHandle, callbacks.TimingOnError, false)
}

func onStartWithStreamInput[T any](ctx context.Context, input *schema.StreamReader[T]) (
	context.Context, *schema.StreamReader[T]) {

	return icb.On(ctx, input, icb.OnStartWithStreamInputHandle[T], callbacks.TimingOnStartWithStreamInput, true)
}

func onEndWithStreamOutput[T any](ctx context.Context, output *schema.StreamReader[T]) (
	context.Context, *schema.StreamReader[T]) {

	return icb.On(ctx, output, icb.OnEndWithStreamOutputHandle[T], callbacks.TimingOnEndWithStreamOutput, false)
}

// runWithCallbacks 为执行函数织入回调：开始回调在执行前触发，
// 成功走结束回调，失败走错误回调。
func runWithCallbacks[I, O any](r func(context.Context, I, ...Option) (O, error),
	onStart on[I], onEnd on[O], onError on[error]) func(context.Context, I, ...Option) (O, error) {

	return func(ctx context.Context, input I, opts ...Option) (output O, err error) {
		ctx, input = onStart(ctx, input)

		output, err = r(ctx, input, opts...)
		if err != nil {
			ctx, err = onError(ctx, err)
			return output, err
		}

		ctx, output = onEnd(ctx, output)

		return output, nil
	}
}

func invokeWithCallbacks[I, O any](i Invoke[I, O]) Invoke[I, O] {
	return runWithCallbacks(i, onStart[I], onEnd[O], onError)
}

func streamWithCallbacks[I, O any](s Stream[I, O]) Stream[I, O] {
	return runWithCallbacks(s, onStart[I], onEndWithStreamOutput[O], onError)
}

func collectWithCallbacks[I, O any](c Collect[I, O]) Collect[I, O] {
	return runWithCallbacks(c, onStartWithStreamInput[I], onEnd[O], onError)
}

func transformWithCallbacks[I, O any](t Transform[I, O]) Transform[I, O] {
	return runWithCallbacks(t, onStartWithStreamInput[I], onEndWithStreamOutput[O], onError)
}

// initRunCallbacks 在进入执行单元时建立回调作用域：
// 由元数据和选项拼出运行信息，选项携带的处理器追加到现有处理器链之后。
func initRunCallbacks(ctx context.Context, meta *executorMeta, opts ...Option) context.Context {
	ri := &callbacks.RunInfo{}
	if meta != nil {
		ri.Component = meta.component
		ri.Type = meta.componentImplType
	}

	var cbs []callbacks.Handler
	for i := range opts {
		if opts[i].runName != "" {
			ri.Name = opts[i].runName
		}
		if len(opts[i].handlers) != 0 {
			cbs = append(cbs, opts[i].handlers...)
		}
	}

	if len(cbs) == 0 {
		return icb.ReuseHandlers(ctx, ri)
	}

	return icb.AppendHandlers(ctx, ri, cbs...)
}

// subRunCtx 进入嵌套子单元前标记子单元身份，处理器链保持不变。
func subRunCtx(ctx context.Context, name string, meta *executorMeta) context.Context {
	ri := &callbacks.RunInfo{Name: name}
	if meta != nil {
		ri.Component = meta.component
		ri.Type = meta.componentImplType
	}

	return icb.ReuseHandlers(ctx, ri)
}
