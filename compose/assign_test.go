package compose

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/favbox/streamwork/schema"
)

func TestAssignInvoke(t *testing.T) {
	ctx := context.Background()

	r, err := Assign(NewParallel().
		AddLambda("total", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return input["a"].(int) + input["b"].(int), nil
		})))
	assert.NoError(t, err)

	out, err := r.Invoke(ctx, map[string]any{"a": 1, "b": 2})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "total": 3}, out)
}

// 多个映射键：覆盖已有键与新增键同时生效。
func TestAssignOverrideAndExtend(t *testing.T) {
	ctx := context.Background()

	r, err := Assign(NewParallel().
		AddLambda("b", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return 99, nil
		})).
		AddLambda("c", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return input["a"].(int) + input["b"].(int), nil
		})))
	assert.NoError(t, err)

	out, err := r.Invoke(ctx, map[string]any{"a": 1, "b": 2})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 99, "c": 3}, out)
}

// 映射器与输入记录键冲突时，映射器的值胜出。
func TestAssignMapperKeyWins(t *testing.T) {
	ctx := context.Background()

	r, err := Assign(NewParallel().
		AddLambda("a", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return "overridden", nil
		})))
	assert.NoError(t, err)

	out, err := r.Invoke(ctx, map[string]any{"a": "origin", "b": 2})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "overridden", "b": 2}, out)
}

func TestAssignInvokeTypeMismatch(t *testing.T) {
	ctx := context.Background()

	r, err := Assign(NewParallel().AddPassthrough("p"))
	assert.NoError(t, err)

	_, err = r.Invoke(ctx, 42)
	assert.Error(t, err)

	var tme *TypeMismatchError
	assert.True(t, errors.As(err, &tme))
}

// 流式合并赋值：透传数据块剔除映射器键后即刻下发，
// 结构上先于映射器数据块出现；剔空的数据块被丢弃。
func TestAssignTransformOrdering(t *testing.T) {
	ctx := context.Background()

	// 映射器故意很快返回，以验证顺序由结构而非速度决定
	r, err := Assign(NewParallel().
		AddLambda("mapped", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return "result", nil
		})))
	assert.NoError(t, err)

	out, err := r.Transform(ctx, schema.StreamReaderFromArray([]any{
		map[string]any{"a": 1},
		map[string]any{"mapped": "stale"}, // 被剔空后丢弃
		map[string]any{"b": 2},
	}))
	assert.NoError(t, err)
	defer out.Close()

	var got []map[string]any
	for {
		chunk, err := out.Recv()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		got = append(got, chunk)
	}

	assert.Equal(t, []map[string]any{
		{"a": 1},
		{"b": 2},
		{"mapped": "result"},
	}, got)
}

// 透传分支不等映射器：即使映射器阻塞，透传数据块也应先到达。
func TestAssignTransformPassthroughNotBlocked(t *testing.T) {
	ctx := context.Background()

	release := make(chan struct{})
	r, err := Assign(NewParallel().
		AddLambda("slow", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			<-release
			return "late", nil
		})))
	assert.NoError(t, err)

	out, err := r.Transform(ctx, schema.StreamReaderFromArray([]any{
		map[string]any{"a": 1},
	}))
	assert.NoError(t, err)
	defer out.Close()

	type recvResult struct {
		rec map[string]any
		err error
	}
	firstCh := make(chan recvResult, 1)
	go func() {
		rec, err := out.Recv()
		firstCh <- recvResult{rec: rec, err: err}
	}()

	select {
	case first := <-firstCh:
		assert.NoError(t, first.err)
		assert.Equal(t, map[string]any{"a": 1}, first.rec)
	case <-time.After(time.Second):
		t.Fatal("passthrough chunk blocked behind mapper")
	}

	close(release)

	second, err := out.Recv()
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"slow": "late"}, second)

	_, err = out.Recv()
	assert.Equal(t, io.EOF, err)
}

// 配置的执行器只供映射分支的子任务使用，引擎内部的搬运与预取协程不占用它：
// 容量为 1 的协程池下排空输出流也不会卡死。
func TestAssignTransformBoundedExecutor(t *testing.T) {
	ctx := context.Background()

	r, err := Assign(NewParallel().
		AddLambda("total", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return input["a"].(int) + input["b"].(int), nil
		})))
	assert.NoError(t, err)

	out, err := r.Transform(ctx, schema.StreamReaderFromArray([]any{
		map[string]any{"a": 1},
		map[string]any{"b": 2},
		map[string]any{},
	}), WithExecutor(NewPoolExecutor("assign-test", 1)))
	assert.NoError(t, err)
	defer out.Close()

	type drainResult struct {
		chunks []map[string]any
		err    error
	}
	done := make(chan drainResult, 1)
	go func() {
		var chunks []map[string]any
		for {
			chunk, err := out.Recv()
			if err == io.EOF {
				done <- drainResult{chunks: chunks}
				return
			}
			if err != nil {
				done <- drainResult{err: err}
				return
			}
			chunks = append(chunks, chunk)
		}
	}()

	select {
	case got := <-done:
		assert.NoError(t, got.err)
		assert.Equal(t, []map[string]any{
			{"a": 1},
			{"b": 2},
			{"total": 3},
		}, got.chunks)
	case <-time.After(3 * time.Second):
		t.Fatal("drain did not finish with a single-worker executor")
	}
}

// 流中出现非记录数据块时，错误从输出流上浮。
func TestAssignTransformTypeMismatch(t *testing.T) {
	ctx := context.Background()

	r, err := Assign(NewParallel().AddPassthrough("p"))
	assert.NoError(t, err)

	out, err := r.Transform(ctx, schema.StreamReaderFromArray([]any{"scalar"}))
	assert.NoError(t, err)
	defer out.Close()

	var recvErr error
	for {
		_, err := out.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			recvErr = err
			break
		}
	}

	assert.Error(t, recvErr)
	var tme *TypeMismatchError
	assert.True(t, errors.As(recvErr, &tme))
}

// 映射器失败时错误携带子单元键穿过合并赋值层，且不被二次包装。
func TestAssignMapperFailure(t *testing.T) {
	ctx := context.Background()
	wantErr := errors.New("mapper down")

	r, err := Assign(NewParallel().
		AddLambda("broken", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return nil, wantErr
		})))
	assert.NoError(t, err)

	_, err = r.Invoke(ctx, map[string]any{"a": 1})
	assert.Error(t, err)

	var ufe *UnitFailureError
	assert.True(t, errors.As(err, &ufe))
	assert.Equal(t, "broken", ufe.Unit)
	assert.ErrorIs(t, err, wantErr)
}
