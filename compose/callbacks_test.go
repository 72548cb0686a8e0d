package compose

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/favbox/streamwork/callbacks"
)

type callbackRecorder struct {
	mu     sync.Mutex
	events []string
	infos  []*callbacks.RunInfo
}

func (r *callbackRecorder) record(event string, info *callbacks.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.infos = append(r.infos, info)
}

func (r *callbackRecorder) handler() callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			r.record("start", info)
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			r.record("end", info)
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			r.record("error", info)
			return ctx
		}).
		Build()
}

// 单元执行时触发开始与结束回调，运行信息携带名称与分类。
func TestCallbacksOnLambda(t *testing.T) {
	ctx := context.Background()
	rec := &callbackRecorder{}

	r, err := CompileLambda[string, string](InvokableLambda(
		func(ctx context.Context, input string) (string, error) {
			return input + "!", nil
		}))
	assert.NoError(t, err)

	out, err := r.Invoke(ctx, "hi",
		WithCallbacks(rec.handler()), WithRunName("greeter"))
	assert.NoError(t, err)
	assert.Equal(t, "hi!", out)

	assert.Equal(t, []string{"start", "end"}, rec.events)
	assert.Equal(t, "greeter", rec.infos[0].Name)
	assert.Equal(t, ComponentOfLambda, rec.infos[0].Component)
}

func TestCallbacksOnLambdaError(t *testing.T) {
	ctx := context.Background()
	rec := &callbackRecorder{}
	wantErr := errors.New("fail")

	r, err := CompileLambda[string, string](InvokableLambda(
		func(ctx context.Context, input string) (string, error) {
			return "", wantErr
		}))
	assert.NoError(t, err)

	_, err = r.Invoke(ctx, "hi", WithCallbacks(rec.handler()))
	assert.ErrorIs(t, err, wantErr)

	assert.Equal(t, []string{"start", "error"}, rec.events)
}

// 组合器的回调随上下文传入嵌套子单元，运行信息按子单元键区分。
func TestCallbacksPropagateIntoParallelSteps(t *testing.T) {
	ctx := context.Background()
	rec := &callbackRecorder{}

	r, err := NewParallel().
		AddLambda("left", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return 1, nil
		})).
		Compile()
	assert.NoError(t, err)

	_, err = r.Invoke(ctx, map[string]any{},
		WithCallbacks(rec.handler()), WithRunName("fanout"))
	assert.NoError(t, err)

	names := map[string]callbacks.Component{}
	for _, info := range rec.infos {
		names[info.Name] = info.Component
	}

	assert.Equal(t, ComponentOfParallel, names["fanout"])
	assert.Equal(t, ComponentOfLambda, names["left"])
}
