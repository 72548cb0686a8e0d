package compose

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"runtime/debug"

	"github.com/mitchellh/copystructure"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/favbox/streamwork/internal/generic"
	"github.com/favbox/streamwork/internal/safe"
	"github.com/favbox/streamwork/schema"
)

var recordType = generic.TypeOf[map[string]any]()

// Parallel 并行映射组合器的构建器。
// 多个命名子单元共享同一输入记录，输出合并为 {键: 子单元输出} 的记录。
// 子单元按加入顺序登记，流式输出的分支顺序与登记顺序一致。
//
// 示例：
//
//	r, err := compose.NewParallel().
//		AddLambda("total", sumLambda).
//		AddLambda("count", countLambda).
//		Compile()
type Parallel struct {
	steps *orderedmap.OrderedMap[string, *composableRunnable]
	err   error
}

// NewParallel 创建并行映射组合器的构建器。
func NewParallel() *Parallel {
	return &Parallel{
		steps: orderedmap.New[string, *composableRunnable](),
	}
}

// AddLambda 以指定键加入一个 Lambda 子单元，键重复时 Compile 报错。
func (p *Parallel) AddLambda(key string, l *Lambda) *Parallel {
	return p.addStep(key, l.executor)
}

// AddPassthrough 以指定键加入一个恒等子单元，输出键下是完整的输入记录。
func (p *Parallel) AddPassthrough(key string) *Parallel {
	return p.addStep(key, composablePassthrough())
}

func (p *Parallel) addStep(key string, cr *composableRunnable) *Parallel {
	if p.err != nil {
		return p
	}

	if _, ok := p.steps.Get(key); ok {
		p.err = fmt.Errorf("parallel step key is duplicated: %s", key)
		return p
	}

	p.steps.Set(key, outputKeyedComposableRunnable(key, cr))
	return p
}

// Compile 编译为可执行单元。
// 输入必须是记录，否则以 *TypeMismatchError 失败；
// 子单元失败以 *UnitFailureError 上浮，携带其登记键。
func (p *Parallel) Compile() (Runnable[any, map[string]any], error) {
	if p.err != nil {
		return nil, p.err
	}

	if p.steps.Len() == 0 {
		return nil, fmt.Errorf("parallel needs at least one step")
	}

	meta := &executorMeta{
		component:         ComponentOfParallel,
		componentImplType: "Parallel",
	}

	r := newRunnablePacker(p.invoke, nil, nil, p.transform, true)
	r.wrapRunnableCtx(func(ctx context.Context, opts ...Option) context.Context {
		return initRunCallbacks(ctx, meta, opts...)
	})

	return r, nil
}

// invoke 扇出执行所有子单元并合并结果。
// 每个子单元拿到输入记录的独立深拷贝，互不干扰；
// 首个失败立即返回，其余子任务被放弃但不会阻塞。
func (p *Parallel) invoke(ctx context.Context, input any, opts ...Option) (map[string]any, error) {
	rec, ok := input.(map[string]any)
	if !ok {
		return nil, newUnexpectedInputTypeErr(recordType, reflect.TypeOf(input))
	}

	o := getOptions(opts...)
	n := p.steps.Len()

	tasks := make([]*task, 0, n)
	for pair := p.steps.Oldest(); pair != nil; pair = pair.Next() {
		cp, err := copystructure.Copy(rec)
		if err != nil {
			return nil, fmt.Errorf("copy input record for step %q fail: %w", pair.Key, err)
		}

		tasks = append(tasks, &task{
			ctx:    ctx,
			key:    pair.Key,
			action: pair.Value,
			input:  cp,
			opts:   opts,
		})
	}

	tm := newTaskManager(o.executor, n)
	tm.submit(tasks)

	result := make(map[string]any, n)
	for i := 0; i < n; i++ {
		t := tm.wait()
		if t.err != nil {
			return nil, newUnitFailureErr(t.key, t.err)
		}

		// 子单元已被包装为输出单键记录 {键: 输出}
		for k, v := range t.output.(map[string]any) {
			result[k] = v
		}
	}

	return result, nil
}

// transform 流式扇出：输入流复制为每个子单元一个分支，
// 各子单元在独立协程中转换自己的分支，数据块包装为 {键: 数据块}，
// 输出按就绪先后合并，同一子单元的数据块保持原有顺序。
func (p *Parallel) transform(ctx context.Context, input *schema.StreamReader[any],
	opts ...Option) (*schema.StreamReader[map[string]any], error) {
	o := getOptions(opts...)
	n := p.steps.Len()

	recordIn := schema.StreamReaderWithConvert(input, func(v any) (map[string]any, error) {
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, newUnexpectedInputTypeErr(recordType, reflect.TypeOf(v))
		}
		return rec, nil
	})

	branches := recordIn.Copy(n)

	outs := make([]*schema.StreamReader[map[string]any], 0, n)
	i := 0
	for pair := p.steps.Oldest(); pair != nil; pair = pair.Next() {
		key, step, branch := pair.Key, pair.Value, branches[i]
		i++

		sr, sw := schema.Pipe[map[string]any](5)
		o.executor.Go(func() {
			runStepTransform(ctx, key, step, branch, sw, opts...)
		})

		outs = append(outs, sr)
	}

	return schema.MergeStreamReaders(outs), nil
}

// runStepTransform 在子单元自己的协程里完成一个分支的转换与搬运。
func runStepTransform(ctx context.Context, key string, step *composableRunnable,
	branch *schema.StreamReader[map[string]any], sw *schema.StreamWriter[map[string]any], opts ...Option) {
	defer sw.Close()
	defer func() {
		if panicInfo := recover(); panicInfo != nil {
			sw.Send(nil, newUnitFailureErr(key, safe.NewPanicErr(panicInfo, debug.Stack())))
		}
	}()

	ctx = subRunCtx(ctx, key, step.meta)

	out, err := step.t(ctx, packStreamReader(branch), opts...)
	if err != nil {
		branch.Close()
		sw.Send(nil, newUnitFailureErr(key, err))
		return
	}

	recs, ok := unpackStreamReader[map[string]any](out)
	if !ok {
		panic("impossible")
	}
	defer recs.Close()

	for {
		chunk, err := recs.Recv()
		if err != nil {
			if err == io.EOF {
				return
			}

			sw.Send(nil, newUnitFailureErr(key, err))
			return
		}

		if sw.Send(chunk, nil) {
			return
		}
	}
}
