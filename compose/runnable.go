package compose

import (
	"context"
	"fmt"
	"reflect"

	"github.com/favbox/streamwork/callbacks"
	"github.com/favbox/streamwork/internal/generic"
	"github.com/favbox/streamwork/schema"
)

// 执行单元的分类标识。
const (
	ComponentOfLambda      callbacks.Component = "Lambda"
	ComponentOfPassthrough callbacks.Component = "Passthrough"
	ComponentOfParallel    callbacks.Component = "Parallel"
	ComponentOfAssign      callbacks.Component = "Assign"
)

// Runnable 执行单元接口，定义四种数据流模式：
//   - Invoke：单值输入 => 单值输出
//   - Stream：单值输入 => 流式输出
//   - Collect：流式输入 => 单值输出
//   - Transform：流式输入 => 流式输出
//
// 实现任意一种模式即可通过默认推导补全其余三种，
// 且推导保证流式与单值调用的结果等价。
type Runnable[I, O any] interface {
	Invoke(ctx context.Context, input I, opts ...Option) (output O, err error)
	Stream(ctx context.Context, input I, opts ...Option) (output *schema.StreamReader[O], err error)
	Collect(ctx context.Context, input *schema.StreamReader[I], opts ...Option) (output O, err error)
	Transform(ctx context.Context, input *schema.StreamReader[I], opts ...Option) (output *schema.StreamReader[O], err error)
}

// invoke 类型擦除后的单值执行函数。
type invoke func(ctx context.Context, input any, opts ...Option) (output any, err error)

// transform 类型擦除后的流式转换函数。
type transform func(ctx context.Context, input streamReader, opts ...Option) (output streamReader, err error)

// executorMeta 执行单元的元数据，用于回调运行信息。
type executorMeta struct {
	component                  callbacks.Component
	isComponentCallbackEnabled bool
	componentImplType          string
}

// composableRunnable 类型擦除的执行单元，组合器的内部载体。
// invoke 与 transform 两条通路足以覆盖四种模式。
type composableRunnable struct {
	i invoke
	t transform

	inputType  reflect.Type
	outputType reflect.Type

	isPassthrough bool

	meta *executorMeta
}

// runnableLambda 将四种模式的函数子集打包为类型擦除的执行单元。
func runnableLambda[I, O any](i Invoke[I, O], s Stream[I, O], c Collect[I, O],
	t Transform[I, O], enableCallback bool) *composableRunnable {
	rp := newRunnablePacker(i, s, c, t, enableCallback)

	return rp.toComposableRunnable()
}

// runnablePacker 四种模式齐备的执行单元，实现 Runnable[I, O]。
type runnablePacker[I, O any] struct {
	i Invoke[I, O]
	s Stream[I, O]
	c Collect[I, O]
	t Transform[I, O]
}

// wrapRunnableCtx 在每种模式执行前套用上下文包装函数。
func (rp *runnablePacker[I, O]) wrapRunnableCtx(ctxWrapper func(ctx context.Context, opts ...Option) context.Context) {
	i, s, c, t := rp.i, rp.s, rp.c, rp.t
	rp.i = func(ctx context.Context, input I, opts ...Option) (output O, err error) {
		ctx = ctxWrapper(ctx, opts...)
		return i(ctx, input, opts...)
	}
	rp.s = func(ctx context.Context, input I, opts ...Option) (output *schema.StreamReader[O], err error) {
		ctx = ctxWrapper(ctx, opts...)
		return s(ctx, input, opts...)
	}
	rp.c = func(ctx context.Context, input *schema.StreamReader[I], opts ...Option) (output O, err error) {
		ctx = ctxWrapper(ctx, opts...)
		return c(ctx, input, opts...)
	}
	rp.t = func(ctx context.Context, input *schema.StreamReader[I], opts ...Option) (output *schema.StreamReader[O], err error) {
		ctx = ctxWrapper(ctx, opts...)
		return t(ctx, input, opts...)
	}
}

func (rp *runnablePacker[I, O]) toComposableRunnable() *composableRunnable {
	inputType := generic.TypeOf[I]()
	outputType := generic.TypeOf[O]()
	c := &composableRunnable{
		inputType:  inputType,
		outputType: outputType,
	}

	i := func(ctx context.Context, input any, opts ...Option) (output any, err error) {
		in, ok := input.(I)
		if !ok {
			// 无类型 nil 会丢失原始类型信息导致断言失败，
			// 目标类型是接口时显式构造类型化的 nil
			if input == nil && inputType.Kind() == reflect.Interface {
				var i I
				in = i
			} else {
				return nil, newUnexpectedInputTypeErr(inputType, reflect.TypeOf(input))
			}
		}

		return rp.Invoke(ctx, in, opts...)
	}

	t := func(ctx context.Context, input streamReader, opts ...Option) (output streamReader, err error) {
		in, ok := unpackStreamReader[I](input)
		if !ok {
			return nil, newUnexpectedInputTypeErr(inputType, input.getChunkType())
		}

		out, err := rp.Transform(ctx, in, opts...)
		if err != nil {
			return nil, err
		}

		return packStreamReader(out), nil
	}

	c.i = i
	c.t = t

	return c
}

// Invoke 单值输入 => 单值输出。
func (rp *runnablePacker[I, O]) Invoke(ctx context.Context,
	input I, opts ...Option) (output O, err error) {
	return rp.i(ctx, input, opts...)
}

// Stream 单值输入 => 流式输出。
func (rp *runnablePacker[I, O]) Stream(ctx context.Context,
	input I, opts ...Option) (output *schema.StreamReader[O], err error) {

	return rp.s(ctx, input, opts...)
}

// Collect 流式输入 => 单值输出。
func (rp *runnablePacker[I, O]) Collect(ctx context.Context,
	input *schema.StreamReader[I], opts ...Option) (output O, err error) {
	return rp.c(ctx, input, opts...)
}

// Transform 流式输入 => 流式输出。
func (rp *runnablePacker[I, O]) Transform(ctx context.Context,
	input *schema.StreamReader[I], opts ...Option) (output *schema.StreamReader[O], err error) {
	return rp.t(ctx, input, opts...)
}

func defaultImplConcatStreamReader[T any](
	sr *schema.StreamReader[T]) (T, error) {

	c, err := concatStreamReader(sr)
	if err != nil {
		var t T
		return t, fmt.Errorf("concat stream reader fail: %w", err)
	}

	return c, nil
}

// invokeByStream 排空流式输出并合并为单值。
func invokeByStream[I, O any](s Stream[I, O]) Invoke[I, O] {
	return func(ctx context.Context, input I, opts ...Option) (output O, err error) {
		sr, err := s(ctx, input, opts...)
		if err != nil {
			return output, err
		}

		return defaultImplConcatStreamReader(sr)
	}
}

// invokeByCollect 把单值包装为单块流后聚合。
func invokeByCollect[I, O any](c Collect[I, O]) Invoke[I, O] {
	return func(ctx context.Context, input I, opts ...Option) (output O, err error) {
		sr := schema.StreamReaderFromArray([]I{input})

		return c(ctx, sr, opts...)
	}
}

// invokeByTransform 单块流进、排空合并出。
func invokeByTransform[I, O any](t Transform[I, O]) Invoke[I, O] {
	return func(ctx context.Context, input I, opts ...Option) (output O, err error) {
		srInput := schema.StreamReaderFromArray([]I{input})

		srOutput, err := t(ctx, srInput, opts...)
		if err != nil {
			return output, err
		}

		return defaultImplConcatStreamReader(srOutput)
	}
}

// streamByTransform 把单值包装为单块流后转换。
func streamByTransform[I, O any](t Transform[I, O]) Stream[I, O] {
	return func(ctx context.Context, input I, opts ...Option) (output *schema.StreamReader[O], err error) {
		srInput := schema.StreamReaderFromArray([]I{input})

		return t(ctx, srInput, opts...)
	}
}

// streamByInvoke 完整结果作为单块流输出。
func streamByInvoke[I, O any](i Invoke[I, O]) Stream[I, O] {
	return func(ctx context.Context, input I, opts ...Option) (output *schema.StreamReader[O], err error) {
		out, err := i(ctx, input, opts...)
		if err != nil {
			return nil, err
		}

		return schema.StreamReaderFromArray([]O{out}), nil
	}
}

func streamByCollect[I, O any](c Collect[I, O]) Stream[I, O] {
	return func(ctx context.Context, input I, opts ...Option) (output *schema.StreamReader[O], err error) {
		srInput := schema.StreamReaderFromArray([]I{input})
		out, err := c(ctx, srInput, opts...)
		if err != nil {
			return nil, err
		}

		return schema.StreamReaderFromArray([]O{out}), nil
	}
}

func collectByTransform[I, O any](t Transform[I, O]) Collect[I, O] {
	return func(ctx context.Context, input *schema.StreamReader[I], opts ...Option) (output O, err error) {
		srOutput, err := t(ctx, input, opts...)
		if err != nil {
			return output, err
		}

		return defaultImplConcatStreamReader(srOutput)
	}
}

// collectByInvoke 先排空输入流合并为单值，再单值执行。
func collectByInvoke[I, O any](i Invoke[I, O]) Collect[I, O] {
	return func(ctx context.Context, input *schema.StreamReader[I], opts ...Option) (output O, err error) {
		in, err := defaultImplConcatStreamReader(input)
		if err != nil {
			return output, err
		}

		return i(ctx, in, opts...)
	}
}

func collectByStream[I, O any](s Stream[I, O]) Collect[I, O] {
	return func(ctx context.Context, input *schema.StreamReader[I], opts ...Option) (output O, err error) {
		in, err := defaultImplConcatStreamReader(input)
		if err != nil {
			return output, err
		}

		srOutput, err := s(ctx, in, opts...)
		if err != nil {
			return output, err
		}

		return defaultImplConcatStreamReader(srOutput)
	}
}

func transformByStream[I, O any](s Stream[I, O]) Transform[I, O] {
	return func(ctx context.Context, input *schema.StreamReader[I],
		opts ...Option) (output *schema.StreamReader[O], err error) {
		in, err := defaultImplConcatStreamReader(input)
		if err != nil {
			return output, err
		}

		return s(ctx, in, opts...)
	}
}

func transformByCollect[I, O any](c Collect[I, O]) Transform[I, O] {
	return func(ctx context.Context, input *schema.StreamReader[I],
		opts ...Option) (output *schema.StreamReader[O], err error) {
		out, err := c(ctx, input, opts...)
		if err != nil {
			return output, err
		}

		return schema.StreamReaderFromArray([]O{out}), nil
	}
}

func transformByInvoke[I, O any](i Invoke[I, O]) Transform[I, O] {
	return func(ctx context.Context, input *schema.StreamReader[I],
		opts ...Option) (output *schema.StreamReader[O], err error) {
		in, err := defaultImplConcatStreamReader(input)
		if err != nil {
			return output, err
		}

		out, err := i(ctx, in, opts...)
		if err != nil {
			return output, err
		}

		return schema.StreamReaderFromArray([]O{out}), nil
	}
}

// newRunnablePacker 由任意模式子集补全四种模式。
// 缺失的模式按"语义最接近的已有模式"优先推导：
// 推导自流式模式时保留流语义，推导自单值模式时包装为单块流。
func newRunnablePacker[I, O any](i Invoke[I, O], s Stream[I, O],
	c Collect[I, O], t Transform[I, O], enableCallback bool) *runnablePacker[I, O] {

	r := &runnablePacker[I, O]{}

	if enableCallback {
		if i != nil {
			i = invokeWithCallbacks(i)
		}

		if s != nil {
			s = streamWithCallbacks(s)
		}

		if c != nil {
			c = collectWithCallbacks(c)
		}

		if t != nil {
			t = transformWithCallbacks(t)
		}
	}

	if i != nil {
		r.i = i
	} else if s != nil {
		r.i = invokeByStream(s)
	} else if c != nil {
		r.i = invokeByCollect(c)
	} else {
		r.i = invokeByTransform(t)
	}

	if s != nil {
		r.s = s
	} else if t != nil {
		r.s = streamByTransform(t)
	} else if i != nil {
		r.s = streamByInvoke(i)
	} else {
		r.s = streamByCollect(c)
	}

	if c != nil {
		r.c = c
	} else if t != nil {
		r.c = collectByTransform(t)
	} else if i != nil {
		r.c = collectByInvoke(i)
	} else {
		r.c = collectByStream(s)
	}

	if t != nil {
		r.t = t
	} else if s != nil {
		r.t = transformByStream(s)
	} else if c != nil {
		r.t = transformByCollect(c)
	} else {
		r.t = transformByInvoke(i)
	}

	return r
}

// toGenericRunnable 把类型擦除的执行单元还原为带类型的 Runnable。
func toGenericRunnable[I, O any](cr *composableRunnable,
	ctxWrapper func(ctx context.Context, opts ...Option) context.Context) (*runnablePacker[I, O], error) {
	i := func(ctx context.Context, input I, opts ...Option) (output O, err error) {
		out, err := cr.i(ctx, input, opts...)
		if err != nil {
			return output, err
		}

		to, ok := out.(O)
		if !ok {
			if out == nil && generic.TypeOf[O]().Kind() == reflect.Interface {
				var o O
				to = o
			} else {
				return output, newUnexpectedOutputTypeErr(generic.TypeOf[O](), reflect.TypeOf(out))
			}
		}
		return to, nil
	}

	t := func(ctx context.Context, input *schema.StreamReader[I],
		opts ...Option) (output *schema.StreamReader[O], err error) {
		in := packStreamReader(input)
		out, err := cr.t(ctx, in, opts...)

		if err != nil {
			return nil, err
		}

		output, ok := unpackStreamReader[O](out)
		if !ok {
			panic("impossible")
		}

		return output, nil
	}

	r := newRunnablePacker(i, nil, nil, t, false)
	r.wrapRunnableCtx(ctxWrapper)

	return r, nil
}

// outputKeyedComposableRunnable 把执行单元的输出包装为单键记录 {key: output}。
func outputKeyedComposableRunnable(key string, r *composableRunnable) *composableRunnable {
	wrapper := *r
	i := r.i
	wrapper.i = func(ctx context.Context, input any, opts ...Option) (output any, err error) {
		out, err := i(ctx, input, opts...)
		if err != nil {
			return nil, err
		}

		return map[string]any{key: out}, nil
	}

	t := r.t
	wrapper.t = func(ctx context.Context, input streamReader, opts ...Option) (output streamReader, err error) {
		out, err := t(ctx, input, opts...)
		if err != nil {
			return nil, err
		}

		return out.withKey(key), nil
	}

	wrapper.outputType = generic.TypeOf[map[string]any]()

	return &wrapper
}
