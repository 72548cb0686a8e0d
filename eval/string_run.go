package eval

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/favbox/streamwork/compose"
)

// StringEvalInput 字符串评估器的输入。
type StringEvalInput struct {
	// Prediction 被评估的预测文本
	Prediction string
	// Reference 参照文本，评估器声明需要时必填
	Reference string
	// Input 产生预测的原始输入，评估器声明需要时必填
	Input string
}

// EvaluationResult 一次评估的反馈记录。
type EvaluationResult struct {
	// Key 反馈的维度名，如 "correctness"
	Key string `json:"key"`
	// Score 数值得分
	Score float64 `json:"score"`
	// Comment 评估器附带的说明
	Comment string `json:"comment,omitempty"`
}

// String 返回 JSON 形式的反馈，便于日志与持久化。
func (r *EvaluationResult) String() string {
	s, err := sonic.MarshalString(r)
	if err != nil {
		return fmt.Sprintf("{key: %s, score: %v}", r.Key, r.Score)
	}

	return s
}

// StringEvaluator 字符串评估器边界接口，由外部实现。
type StringEvaluator interface {
	// EvaluateStrings 对一条评估输入打分。
	EvaluateStrings(ctx context.Context, input *StringEvalInput) (*EvaluationResult, error)

	// EvaluationName 反馈维度名。
	EvaluationName() string

	// RequiresReference 是否需要参照文本。
	RequiresReference() bool

	// RequiresInput 是否需要原始输入。
	RequiresInput() bool
}

// 评估单元输入输出记录的约定键。
const (
	KeyRun      = "run"
	KeyExample  = "example"
	KeyFeedback = "feedback"
)

// NewStringRunEvaluator 把运行映射、示例映射和字符串评估器装配为一个执行单元。
// 输入记录 {run: *Run, example: *Example}，输出记录 {feedback: *EvaluationResult}。
// 映射失败以 *SourceMappingError 上浮。
func NewStringRunEvaluator(evaluator StringEvaluator,
	runMapper *RunMapper, exampleMapper *ExampleMapper) (compose.Runnable[map[string]any, map[string]any], error) {
	if evaluator == nil {
		return nil, fmt.Errorf("string evaluator is required")
	}
	if runMapper == nil {
		runMapper = &RunMapper{}
	}
	if exampleMapper == nil {
		exampleMapper = &ExampleMapper{}
	}

	l := compose.InvokableLambda(func(ctx context.Context, in map[string]any) (map[string]any, error) {
		run, err := pickRun(in)
		if err != nil {
			return nil, err
		}

		input, prediction, err := runMapper.Map(run)
		if err != nil {
			return nil, err
		}

		evalInput := &StringEvalInput{
			Prediction: prediction,
		}
		if evaluator.RequiresInput() {
			evalInput.Input = input
		}

		if evaluator.RequiresReference() {
			example, err := pickExample(in)
			if err != nil {
				return nil, err
			}

			reference, err := exampleMapper.Map(example)
			if err != nil {
				return nil, err
			}
			evalInput.Reference = reference
		}

		result, err := evaluator.EvaluateStrings(ctx, evalInput)
		if err != nil {
			return nil, err
		}

		return map[string]any{KeyFeedback: result}, nil
	}, compose.WithLambdaType(evaluator.EvaluationName()))

	return compose.CompileLambda[map[string]any, map[string]any](l)
}

func pickRun(in map[string]any) (*Run, error) {
	v, ok := in[KeyRun]
	if !ok {
		return nil, newSourceMappingErr("input", "key %q not found", KeyRun)
	}

	run, ok := v.(*Run)
	if !ok {
		return nil, newSourceMappingErr("input", "key %q holds %T, want *Run", KeyRun, v)
	}

	return run, nil
}

func pickExample(in map[string]any) (*Example, error) {
	v, ok := in[KeyExample]
	if !ok {
		return nil, newSourceMappingErr("input", "key %q not found", KeyExample)
	}

	example, ok := v.(*Example)
	if !ok {
		return nil, newSourceMappingErr("input", "key %q holds %T, want *Example", KeyExample, v)
	}

	return example, nil
}
