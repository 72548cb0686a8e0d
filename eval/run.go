// Package eval 提供执行记录的评估管线：
// 把一次运行的轨迹和参照示例映射为评估输入，交给字符串评估器打分，
// 产出可序列化的反馈记录。评估器和向量化器均为外部边界接口。
package eval

import (
	"fmt"

	"github.com/favbox/streamwork/schema"
)

// RunType 运行记录的类别，取值封闭。
type RunType string

const (
	// RunTypeLLM 模型调用运行
	RunTypeLLM RunType = "llm"
	// RunTypeChain 链式运行
	RunTypeChain RunType = "chain"
	// RunTypeTool 工具调用运行
	RunTypeTool RunType = "tool"
)

// Run 一次执行的不透明轨迹记录。
type Run struct {
	ID      string
	Name    string
	Type    RunType
	Inputs  map[string]any
	Outputs map[string]any
	Error   string
}

// Example 参照示例，为评估提供基准答案。
type Example struct {
	ID      string
	Inputs  map[string]any
	Outputs map[string]any
}

// SourceMappingError 表示源记录无法映射为评估输入，如键缺失或记录为空。
// 映射失败直接上浮，不做重试。
type SourceMappingError struct {
	// Source 出问题的源，如 "run.inputs"、"example.outputs"
	Source string
	Reason string
}

func (e *SourceMappingError) Error() string {
	return fmt.Sprintf("cannot map %s to evaluation input: %s", e.Source, e.Reason)
}

func newSourceMappingErr(source, format string, args ...any) error {
	return &SourceMappingError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// RunMapper 把运行记录映射为评估输入 {input, prediction}。
type RunMapper struct {
	// InputKey 从 run.Inputs 取值的键，空则要求恰好一个键
	InputKey string
	// PredictionKey 从 run.Outputs 取值的键，空则要求恰好一个键
	PredictionKey string
}

// Map 按运行类别映射，类别未知时报错。
func (m *RunMapper) Map(run *Run) (input string, prediction string, err error) {
	if run == nil {
		return "", "", newSourceMappingErr("run", "run is nil")
	}

	if run.Error != "" {
		return "", "", newSourceMappingErr("run", "run failed with error: %s", run.Error)
	}

	switch run.Type {
	case RunTypeLLM:
		return m.mapLLMRun(run)
	case RunTypeChain:
		return m.mapChainRun(run)
	case RunTypeTool:
		return m.mapToolRun(run)
	default:
		return "", "", newSourceMappingErr("run", "unsupported run type: %s", run.Type)
	}
}

// mapLLMRun 模型运行以约定键取提示词和生成文本。
func (m *RunMapper) mapLLMRun(run *Run) (string, string, error) {
	input, err := pickString(run.Inputs, "prompt", "run.inputs")
	if err != nil {
		return "", "", err
	}

	prediction, err := pickString(run.Outputs, "generation", "run.outputs")
	if err != nil {
		return "", "", err
	}

	return input, prediction, nil
}

// mapChainRun 链式运行按配置的键取值，未配置时要求输入输出各只有一个键。
func (m *RunMapper) mapChainRun(run *Run) (string, string, error) {
	input, err := pickString(run.Inputs, m.InputKey, "run.inputs")
	if err != nil {
		return "", "", err
	}

	prediction, err := pickString(run.Outputs, m.PredictionKey, "run.outputs")
	if err != nil {
		return "", "", err
	}

	return input, prediction, nil
}

// mapToolRun 工具运行以约定键取调用入参和返回值。
func (m *RunMapper) mapToolRun(run *Run) (string, string, error) {
	input, err := pickString(run.Inputs, "input", "run.inputs")
	if err != nil {
		return "", "", err
	}

	prediction, err := pickString(run.Outputs, "output", "run.outputs")
	if err != nil {
		return "", "", err
	}

	return input, prediction, nil
}

// ExampleMapper 把参照示例映射为评估基准 {reference}。
type ExampleMapper struct {
	// ReferenceKey 从 example.Outputs 取值的键，空则要求恰好一个键
	ReferenceKey string
}

// Map 取出参照文本。
func (m *ExampleMapper) Map(example *Example) (reference string, err error) {
	if example == nil {
		return "", newSourceMappingErr("example", "example is nil")
	}

	return pickString(example.Outputs, m.ReferenceKey, "example.outputs")
}

// pickString 从记录中取字符串值。
// key 为空时要求记录恰好一个键，多键必须显式指定。
func pickString(m map[string]any, key string, source string) (string, error) {
	if len(m) == 0 {
		return "", newSourceMappingErr(source, "no values present")
	}

	if key == "" {
		if len(m) > 1 {
			return "", newSourceMappingErr(source, "multiple keys present, a key must be specified")
		}
		for _, v := range m {
			return toText(v, source)
		}
	}

	v, ok := m[key]
	if !ok {
		return "", newSourceMappingErr(source, "key %q not found", key)
	}

	return toText(v, source)
}

// toText 把记录里的值转为评估用的文本。
// 嵌套记录序列化为 JSON，其他非字符串值无法评估。
func toText(v any, source string) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	case schema.Record:
		data, err := schema.MarshalRecord(t)
		if err != nil {
			return "", newSourceMappingErr(source, "cannot serialize record value: %s", err)
		}
		return string(data), nil
	default:
		return "", newSourceMappingErr(source, "value of type %T is not a string", v)
	}
}
