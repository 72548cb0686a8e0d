package compose

import (
	"context"

	"github.com/favbox/streamwork/schema"
)

// composablePassthrough 类型擦除的恒等单元，输入原样输出。
func composablePassthrough() *composableRunnable {
	r := &composableRunnable{isPassthrough: true}

	r.i = func(ctx context.Context, input any, opts ...Option) (output any, err error) {
		return input, nil
	}

	r.t = func(ctx context.Context, input streamReader, opts ...Option) (output streamReader, err error) {
		return input, nil
	}

	r.meta = &executorMeta{
		component:         ComponentOfPassthrough,
		componentImplType: "Passthrough",
	}

	return r
}

// Passthrough 创建恒等单元：单值调用原样返回输入，
// 流式调用原样传递输入流，数据块不落地、不复制。
func Passthrough[T any]() Runnable[T, T] {
	i := func(ctx context.Context, input T, _ ...Option) (T, error) {
		return input, nil
	}

	t := func(ctx context.Context, input *schema.StreamReader[T], _ ...Option) (*schema.StreamReader[T], error) {
		return input, nil
	}

	meta := &executorMeta{
		component:         ComponentOfPassthrough,
		componentImplType: "Passthrough",
	}

	r := newRunnablePacker(i, nil, nil, t, true)
	r.wrapRunnableCtx(func(ctx context.Context, opts ...Option) context.Context {
		return initRunCallbacks(ctx, meta, opts...)
	})

	return r
}
