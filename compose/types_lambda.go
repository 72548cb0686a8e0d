package compose

import (
	"context"
	"fmt"

	"github.com/favbox/streamwork/schema"
)

// Invoke 单值执行函数：单值输入 => 单值输出。
type Invoke[I, O any] func(ctx context.Context, input I, opts ...Option) (output O, err error)

// Stream 流式输出函数：单值输入 => 流式输出。
type Stream[I, O any] func(ctx context.Context,
	input I, opts ...Option) (output *schema.StreamReader[O], err error)

// Collect 聚合函数：流式输入 => 单值输出。
type Collect[I, O any] func(ctx context.Context,
	input *schema.StreamReader[I], opts ...Option) (output O, err error)

// Transform 转换函数：流式输入 => 流式输出。
type Transform[I, O any] func(ctx context.Context,
	input *schema.StreamReader[I], opts ...Option) (output *schema.StreamReader[O], err error)

// InvokeWOOpt 无选项版本的 Invoke。
type InvokeWOOpt[I, O any] func(ctx context.Context, input I) (output O, err error)

// StreamWOOpt 无选项版本的 Stream。
type StreamWOOpt[I, O any] func(ctx context.Context,
	input I) (output *schema.StreamReader[O], err error)

// CollectWOOpt 无选项版本的 Collect。
type CollectWOOpt[I, O any] func(ctx context.Context,
	input *schema.StreamReader[I]) (output O, err error)

// TransformWOOpt 无选项版本的 Transform。
type TransformWOOpt[I, O any] func(ctx context.Context,
	input *schema.StreamReader[I]) (output *schema.StreamReader[O], err error)

// Lambda 将普通函数规范化后的执行单元。
// 创建即完成规范化，四种模式缺失的部分由默认推导补全，
// 可直接加入 Parallel，或经 CompileLambda 编译为带类型的 Runnable。
//
// 示例：
//
//	lambda := compose.InvokableLambda(func(ctx context.Context, input string) (string, error) {
//		return input + "!", nil
//	})
type Lambda struct {
	executor *composableRunnable
}

// lambdaOpts 创建 Lambda 的配置。
type lambdaOpts struct {
	// enableComponentCallback 为 true 表示函数自身处理回调，框架不再织入
	enableComponentCallback bool
	// componentImplType 实现类型标识，用于回调运行信息
	componentImplType string
}

// LambdaOpt 创建 Lambda 的选项函数。
type LambdaOpt func(o *lambdaOpts)

// WithLambdaCallbackEnable 声明 Lambda 函数自身处理回调。
// 设置后框架不再为其织入默认回调，避免重复触发。
func WithLambdaCallbackEnable(y bool) LambdaOpt {
	return func(o *lambdaOpts) {
		o.enableComponentCallback = y
	}
}

// WithLambdaType 设置 Lambda 的实现类型标识，便于在回调中区分。
func WithLambdaType(t string) LambdaOpt {
	return func(o *lambdaOpts) {
		o.componentImplType = t
	}
}

// InvokableLambdaWithOption 由带选项的 Invoke 函数创建 Lambda。
func InvokableLambdaWithOption[I, O any](i Invoke[I, O], opts ...LambdaOpt) *Lambda {
	return anyLambda(i, nil, nil, nil, opts...)
}

// InvokableLambda 由 Invoke 函数创建 Lambda。
func InvokableLambda[I, O any](i InvokeWOOpt[I, O], opts ...LambdaOpt) *Lambda {
	f := func(ctx context.Context, input I, _ ...Option) (output O, err error) {
		return i(ctx, input)
	}

	return anyLambda(f, nil, nil, nil, opts...)
}

// StreamableLambdaWithOption 由带选项的 Stream 函数创建 Lambda。
func StreamableLambdaWithOption[I, O any](s Stream[I, O], opts ...LambdaOpt) *Lambda {
	return anyLambda(nil, s, nil, nil, opts...)
}

// StreamableLambda 由 Stream 函数创建 Lambda。
func StreamableLambda[I, O any](s StreamWOOpt[I, O], opts ...LambdaOpt) *Lambda {
	f := func(ctx context.Context, input I, _ ...Option) (
		output *schema.StreamReader[O], err error) {

		return s(ctx, input)
	}

	return anyLambda(nil, f, nil, nil, opts...)
}

// CollectableLambdaWithOption 由带选项的 Collect 函数创建 Lambda。
func CollectableLambdaWithOption[I, O any](c Collect[I, O], opts ...LambdaOpt) *Lambda {
	return anyLambda(nil, nil, c, nil, opts...)
}

// CollectableLambda 由 Collect 函数创建 Lambda。
func CollectableLambda[I, O any](c CollectWOOpt[I, O], opts ...LambdaOpt) *Lambda {
	f := func(ctx context.Context, input *schema.StreamReader[I],
		_ ...Option) (output O, err error) {

		return c(ctx, input)
	}

	return anyLambda(nil, nil, f, nil, opts...)
}

// TransformableLambdaWithOption 由带选项的 Transform 函数创建 Lambda。
func TransformableLambdaWithOption[I, O any](t Transform[I, O], opts ...LambdaOpt) *Lambda {
	return anyLambda(nil, nil, nil, t, opts...)
}

// TransformableLambda 由 Transform 函数创建 Lambda。
func TransformableLambda[I, O any](t TransformWOOpt[I, O], opts ...LambdaOpt) *Lambda {
	f := func(ctx context.Context, input *schema.StreamReader[I],
		_ ...Option) (output *schema.StreamReader[O], err error) {

		return t(ctx, input)
	}

	return anyLambda(nil, nil, nil, f, opts...)
}

// AnyLambda 由四种模式函数的任意组合创建 Lambda。
// 至少提供一种，其余为 nil 时由默认推导补全。
func AnyLambda[I, O any](i Invoke[I, O], s Stream[I, O],
	c Collect[I, O], t Transform[I, O], opts ...LambdaOpt) (*Lambda, error) {

	if i == nil && s == nil && c == nil && t == nil {
		return nil, fmt.Errorf("needs to have at least one of four lambda types: invoke/stream/collect/transform, got none")
	}

	return anyLambda(i, s, c, t, opts...), nil
}

func anyLambda[I, O any](i Invoke[I, O], s Stream[I, O],
	c Collect[I, O], t Transform[I, O], opts ...LambdaOpt) *Lambda {

	opt := getLambdaOpt(opts...)

	executor := runnableLambda(i, s, c, t,
		!opt.enableComponentCallback,
	)
	executor.meta = &executorMeta{
		component:                  ComponentOfLambda,
		isComponentCallbackEnabled: opt.enableComponentCallback,
		componentImplType:          opt.componentImplType,
	}

	return &Lambda{
		executor: executor,
	}
}

func getLambdaOpt(opts ...LambdaOpt) *lambdaOpts {
	opt := &lambdaOpts{}

	for _, optFn := range opts {
		optFn(opt)
	}
	return opt
}

// CompileLambda 将 Lambda 编译为带类型的可执行单元。
// 类型参数需与创建 Lambda 时一致。
func CompileLambda[I, O any](l *Lambda) (Runnable[I, O], error) {
	cr := l.executor
	ctxWrapper := func(ctx context.Context, opts ...Option) context.Context {
		return initRunCallbacks(ctx, cr.meta, opts...)
	}

	return toGenericRunnable[I, O](cr, ctxWrapper)
}

// ToList 创建把单值转换为单元素列表的 Lambda，用于打通标量与列表的衔接。
func ToList[I any](opts ...LambdaOpt) *Lambda {
	i := func(ctx context.Context, input I, _ ...Option) (output []I, err error) {
		return []I{input}, nil
	}

	t := func(ctx context.Context, inputS *schema.StreamReader[I], _ ...Option) (outputS *schema.StreamReader[[]I], err error) {
		return schema.StreamReaderWithConvert(inputS, func(i I) ([]I, error) {
			return []I{i}, nil
		}), nil
	}

	return anyLambda(i, nil, nil, t, opts...)
}
