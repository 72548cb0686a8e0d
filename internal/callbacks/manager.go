package callbacks

import "context"

// CtxManagerKey 管理器在上下文中的键。
type CtxManagerKey struct{}

// CtxRunInfoKey 运行信息在上下文中的键。
type CtxRunInfoKey struct{}

// manager 持有一次运行的处理器链与运行信息，随上下文传递。
type manager struct {
	globalHandlers []Handler
	handlers       []Handler
	runInfo        *RunInfo
}

// GlobalHandlers 全局回调处理器，所有执行单元共享。
var GlobalHandlers []Handler

func newManager(runInfo *RunInfo, handlers ...Handler) (*manager, bool) {
	if len(handlers)+len(GlobalHandlers) == 0 {
		return nil, false
	}

	hs := make([]Handler, len(GlobalHandlers))
	copy(hs, GlobalHandlers)

	return &manager{
		globalHandlers: hs,
		handlers:       handlers,
		runInfo:        runInfo,
	}, true
}

// withRunInfo 复制管理器并替换运行信息，处理器链保持不变。
func (m *manager) withRunInfo(runInfo *RunInfo) *manager {
	if m == nil {
		return nil
	}

	n := *m
	n.runInfo = runInfo
	return &n
}

func managerFromCtx(ctx context.Context) (*manager, bool) {
	v := ctx.Value(CtxManagerKey{})
	m, ok := v.(*manager)
	if ok && m != nil {
		n := *m
		return &n, true
	}

	return nil, false
}

func ctxWithManager(ctx context.Context, manager *manager) context.Context {
	return context.WithValue(ctx, CtxManagerKey{}, manager)
}
