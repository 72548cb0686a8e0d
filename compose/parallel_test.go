package compose

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/favbox/streamwork/schema"
)

func TestParallelInvoke(t *testing.T) {
	ctx := context.Background()

	r, err := NewParallel().
		AddLambda("b", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return 99, nil
		})).
		AddLambda("c", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return input["a"].(int) + input["b"].(int), nil
		})).
		Compile()
	assert.NoError(t, err)

	out, err := r.Invoke(ctx, map[string]any{"a": 1, "b": 2})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"b": 99, "c": 3}, out)
}

// 各子单元拿到的是输入记录的深拷贝，修改互不可见。
func TestParallelInputIsolation(t *testing.T) {
	ctx := context.Background()

	r, err := NewParallel().
		AddLambda("mutated", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			input["a"] = "changed"
			return input["a"], nil
		})).
		AddLambda("observed", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return input["a"], nil
		})).
		Compile()
	assert.NoError(t, err)

	in := map[string]any{"a": "origin"}
	out, err := r.Invoke(ctx, in)
	assert.NoError(t, err)

	assert.Equal(t, "changed", out["mutated"])
	assert.Equal(t, "origin", out["observed"])
	assert.Equal(t, "origin", in["a"])
}

func TestParallelAddPassthrough(t *testing.T) {
	ctx := context.Background()

	r, err := NewParallel().
		AddPassthrough("origin").
		AddLambda("double", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return input["n"].(int) * 2, nil
		})).
		Compile()
	assert.NoError(t, err)

	out, err := r.Invoke(ctx, map[string]any{"n": 21})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 21}, out["origin"])
	assert.Equal(t, 42, out["double"])
}

func TestParallelDuplicateKey(t *testing.T) {
	identity := InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
		return input, nil
	})

	_, err := NewParallel().
		AddLambda("x", identity).
		AddLambda("x", identity).
		Compile()
	assert.ErrorContains(t, err, "duplicated")
}

func TestParallelNoSteps(t *testing.T) {
	_, err := NewParallel().Compile()
	assert.Error(t, err)
}

// 非记录输入以 *TypeMismatchError 失败。
func TestParallelInputTypeMismatch(t *testing.T) {
	ctx := context.Background()

	r, err := NewParallel().
		AddPassthrough("p").
		Compile()
	assert.NoError(t, err)

	_, err = r.Invoke(ctx, "not a record")
	assert.Error(t, err)

	var tme *TypeMismatchError
	assert.True(t, errors.As(err, &tme))
}

// 子单元失败以 *UnitFailureError 上浮，并携带其登记键。
func TestParallelStepFailure(t *testing.T) {
	ctx := context.Background()
	wantErr := errors.New("step exploded")

	r, err := NewParallel().
		AddLambda("ok", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return "fine", nil
		})).
		AddLambda("bad", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return nil, wantErr
		})).
		Compile()
	assert.NoError(t, err)

	_, err = r.Invoke(ctx, map[string]any{})
	assert.Error(t, err)

	var ufe *UnitFailureError
	assert.True(t, errors.As(err, &ufe))
	assert.Equal(t, "bad", ufe.Unit)
	assert.ErrorIs(t, err, wantErr)
}

// 子单元 panic 被捕获为错误而不是击穿调用方。
func TestParallelStepPanic(t *testing.T) {
	ctx := context.Background()

	r, err := NewParallel().
		AddLambda("panicky", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			panic("boom")
		})).
		Compile()
	assert.NoError(t, err)

	_, err = r.Invoke(ctx, map[string]any{})
	assert.Error(t, err)

	var ufe *UnitFailureError
	assert.True(t, errors.As(err, &ufe))
	assert.Equal(t, "panicky", ufe.Unit)
	assert.Contains(t, err.Error(), "boom")
}

// 流式扇出：每个数据块包装为 {键: 数据块}，同一子单元保持原有顺序。
func TestParallelTransform(t *testing.T) {
	ctx := context.Background()

	r, err := NewParallel().
		AddLambda("upper", TransformableLambda(func(ctx context.Context,
			input *schema.StreamReader[map[string]any]) (*schema.StreamReader[any], error) {
			return schema.StreamReaderWithConvert(input, func(rec map[string]any) (any, error) {
				return rec["word"], nil
			}), nil
		})).
		Compile()
	assert.NoError(t, err)

	in := schema.StreamReaderFromArray([]any{
		map[string]any{"word": "a"},
		map[string]any{"word": "b"},
	})

	out, err := r.Transform(ctx, in)
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
		{"upper": "a"},
		{"upper": "b"},
	}, got)
}

func TestParallelTransformMultiStep(t *testing.T) {
	ctx := context.Background()

	r, err := NewParallel().
		AddLambda("x", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return input["n"], nil
		})).
		AddLambda("y", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return input["n"].(int) + 1, nil
		})).
		Compile()
	assert.NoError(t, err)

	out, err := r.Transform(ctx, schema.StreamReaderFromArray([]any{
		map[string]any{"n": 10},
	}))
	assert.NoError(t, err)
	defer out.Close()

	merged := map[string]any{}
	for {
		chunk, err := out.Recv()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		for k, v := range chunk {
			merged[k] = v
		}
	}

	assert.Equal(t, map[string]any{"x": 10, "y": 11}, merged)
}

// 流中出现非记录数据块时，错误从输出流上浮。
func TestParallelTransformTypeMismatch(t *testing.T) {
	ctx := context.Background()

	r, err := NewParallel().
		AddPassthrough("p").
		Compile()
	assert.NoError(t, err)

	out, err := r.Transform(ctx, schema.StreamReaderFromArray([]any{42}))
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

// 自定义执行器承接并行子任务。
func TestParallelWithPoolExecutor(t *testing.T) {
	ctx := context.Background()

	r, err := NewParallel().
		AddLambda("a", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return 1, nil
		})).
		AddLambda("b", InvokableLambda(func(ctx context.Context, input map[string]any) (any, error) {
			return 2, nil
		})).
		Compile()
	assert.NoError(t, err)

	out, err := r.Invoke(ctx, map[string]any{},
		WithExecutor(NewPoolExecutor("parallel-test", 4)))
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, out)
}
