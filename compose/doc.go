// Package compose 提供流式执行单元的组合能力。
//
// 核心抽象是 Runnable：一个执行单元同时支持四种数据流模式
// （Invoke/Stream/Collect/Transform），只需实现其中任意一种，
// 其余模式自动推导。在此之上提供三类组合器：
//   - Passthrough：恒等单元，输入原样输出
//   - Parallel：并行映射，多个命名子单元共享同一输入记录
//   - Assign：合并赋值，透传输入记录并叠加映射器产出的键
package compose
