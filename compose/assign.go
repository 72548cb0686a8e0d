package compose

import (
	"context"
	"io"
	"reflect"
	"runtime/debug"

	"github.com/favbox/streamwork/internal/safe"
	"github.com/favbox/streamwork/schema"
)

// assign 合并赋值组合器：透传输入记录，叠加映射器产出的键。
type assign struct {
	mapper Runnable[any, map[string]any]

	// mapperKeys 映射器将产出的键，透传分支按此过滤，避免新旧值混流
	mapperKeys []string
}

// Assign 创建合并赋值组合器。
// 单值调用：输出为输入记录与映射器输出的浅合并，映射器的键胜出。
// 流式调用：输入流复制为两路，透传分支的数据块剔除映射器键后即刻下发，
// 映射器分支在后台并行转换，其首个数据块在透传期间预取；
// 透传数据块结构上先于映射数据块出现在输出流中。
//
// 示例：
//
//	r, err := compose.Assign(compose.NewParallel().
//		AddLambda("summary", summarize))
//	// 输入 {"text": ..., "lang": ...} => 输出 {"text": ..., "lang": ..., "summary": ...}
func Assign(p *Parallel) (Runnable[any, map[string]any], error) {
	mapper, err := p.Compile()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, p.steps.Len())
	for pair := p.steps.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}

	a := &assign{
		mapper:     mapper,
		mapperKeys: keys,
	}

	meta := &executorMeta{
		component:         ComponentOfAssign,
		componentImplType: "Assign",
	}

	r := newRunnablePacker(a.invoke, nil, nil, a.transform, true)
	r.wrapRunnableCtx(func(ctx context.Context, opts ...Option) context.Context {
		return initRunCallbacks(ctx, meta, opts...)
	})

	return r, nil
}

func (a *assign) invoke(ctx context.Context, input any, opts ...Option) (map[string]any, error) {
	rec, ok := input.(map[string]any)
	if !ok {
		return nil, newUnexpectedInputTypeErr(recordType, reflect.TypeOf(input))
	}

	mapped, err := a.mapper.Invoke(ctx, rec, opts...)
	if err != nil {
		return nil, err
	}

	// 键冲突时映射器的值胜出
	return schema.MergeRecords(rec, mapped), nil
}

func (a *assign) transform(ctx context.Context, input *schema.StreamReader[any],
	opts ...Option) (*schema.StreamReader[map[string]any], error) {
	recordIn := schema.StreamReaderWithConvert(input, func(v any) (map[string]any, error) {
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, newUnexpectedInputTypeErr(recordType, reflect.TypeOf(v))
		}
		return rec, nil
	})

	branches := recordIn.Copy(2)
	passBranch, mapBranch := branches[0], branches[1]

	mapOut, err := a.mapper.Transform(ctx,
		schema.StreamReaderWithConvert(mapBranch, func(r map[string]any) (any, error) {
			return r, nil
		}), opts...)
	if err != nil {
		passBranch.Close()
		mapBranch.Close()
		return nil, err
	}

	sr, sw := schema.Pipe[map[string]any](5)
	go a.pump(passBranch, mapOut, sw)

	return sr, nil
}

// pump 按结构顺序产出数据块：先排空透传分支，再接映射器分支。
// 映射器的首个数据块在透传期间后台预取，两个分支由此真正并行。
// 搬运协程与预取协程是引擎自身的管道，不经过配置的执行器，
// 执行器再小也只影响映射分支的子任务排队，不会卡住排空方。
func (a *assign) pump(passBranch *schema.StreamReader[map[string]any],
	mapOut *schema.StreamReader[map[string]any], sw *schema.StreamWriter[map[string]any]) {
	defer sw.Close()
	defer mapOut.Close()
	defer passBranch.Close()
	defer func() {
		if panicInfo := recover(); panicInfo != nil {
			sw.Send(nil, safe.NewPanicErr(panicInfo, debug.Stack()))
		}
	}()

	type mapChunk struct {
		rec map[string]any
		err error
	}

	// 预取恰好一个映射数据块，只做单块前瞻
	first := make(chan mapChunk, 1)
	go func() {
		rec, err := mapOut.Recv()
		first <- mapChunk{rec: rec, err: err}
	}()

	// 透传分支：剔除映射器键后即刻下发，剔空的数据块丢弃
	for {
		rec, err := passBranch.Recv()
		if err != nil {
			if err == io.EOF {
				break
			}

			sw.Send(nil, err)
			return
		}

		filtered := schema.FilterRecord(rec, a.mapperKeys...)
		if len(filtered) == 0 {
			continue
		}

		if sw.Send(filtered, nil) {
			return
		}
	}

	// 映射器分支：先是预取的数据块，然后照常排空
	chunk := <-first
	for {
		if chunk.err != nil {
			if chunk.err == io.EOF {
				return
			}

			sw.Send(nil, chunk.err)
			return
		}

		if sw.Send(chunk.rec, nil) {
			return
		}

		chunk.rec, chunk.err = mapOut.Recv()
	}
}
