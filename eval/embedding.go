package eval

import (
	"context"
	"fmt"
	"math"
)

// Embedder 文本向量化边界接口，由外部实现。
type Embedder interface {
	EmbedStrings(ctx context.Context, texts []string) ([][]float64, error)
}

// DistanceMetric 向量距离度量。
type DistanceMetric string

const (
	DistanceCosine    DistanceMetric = "cosine"
	DistanceEuclidean DistanceMetric = "euclidean"
	DistanceManhattan DistanceMetric = "manhattan"
	DistanceChebyshev DistanceMetric = "chebyshev"
	DistanceHamming   DistanceMetric = "hamming"
)

// EmbeddingDistanceEvaluator 向量距离评估器：
// 将预测文本与参照文本向量化后计算距离，距离越小越相似。
// 实现 StringEvaluator，可直接装配进评估单元。
type EmbeddingDistanceEvaluator struct {
	embedder Embedder
	metric   DistanceMetric
}

// NewEmbeddingDistanceEvaluator 创建向量距离评估器。
func NewEmbeddingDistanceEvaluator(embedder Embedder, metric DistanceMetric) (*EmbeddingDistanceEvaluator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	switch metric {
	case DistanceCosine, DistanceEuclidean, DistanceManhattan, DistanceChebyshev, DistanceHamming:
	default:
		return nil, fmt.Errorf("unsupported distance metric: %s", metric)
	}

	return &EmbeddingDistanceEvaluator{
		embedder: embedder,
		metric:   metric,
	}, nil
}

// EvaluateStrings 计算预测与参照的向量距离。
func (e *EmbeddingDistanceEvaluator) EvaluateStrings(ctx context.Context,
	input *StringEvalInput) (*EvaluationResult, error) {

	return e.score(ctx, input.Prediction, input.Reference)
}

// EvaluateStringPairs 计算两个预测之间的向量距离，用于成对比较。
func (e *EmbeddingDistanceEvaluator) EvaluateStringPairs(ctx context.Context,
	prediction, predictionB string) (*EvaluationResult, error) {

	return e.score(ctx, prediction, predictionB)
}

func (e *EmbeddingDistanceEvaluator) EvaluationName() string {
	return fmt.Sprintf("embedding_%s_distance", e.metric)
}

func (e *EmbeddingDistanceEvaluator) RequiresReference() bool { return true }

func (e *EmbeddingDistanceEvaluator) RequiresInput() bool { return false }

func (e *EmbeddingDistanceEvaluator) score(ctx context.Context, a, b string) (*EvaluationResult, error) {
	vectors, err := e.embedder.EmbedStrings(ctx, []string{a, b})
	if err != nil {
		return nil, fmt.Errorf("embed strings fail: %w", err)
	}

	if len(vectors) != 2 {
		return nil, fmt.Errorf("embedder returned %d vectors, want 2", len(vectors))
	}

	distance, err := computeDistance(e.metric, vectors[0], vectors[1])
	if err != nil {
		return nil, err
	}

	return &EvaluationResult{
		Key:   e.EvaluationName(),
		Score: distance,
	}, nil
}

func computeDistance(metric DistanceMetric, a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}

	if len(a) == 0 {
		return 0, fmt.Errorf("vectors are empty")
	}

	switch metric {
	case DistanceCosine:
		return cosineDistance(a, b)
	case DistanceEuclidean:
		return euclideanDistance(a, b), nil
	case DistanceManhattan:
		return manhattanDistance(a, b), nil
	case DistanceChebyshev:
		return chebyshevDistance(a, b), nil
	case DistanceHamming:
		return hammingDistance(a, b), nil
	default:
		return 0, fmt.Errorf("unsupported distance metric: %s", metric)
	}
}

// cosineDistance = 1 - 余弦相似度。
func cosineDistance(a, b []float64) (float64, error) {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("cannot compute cosine distance for zero vector")
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return math.Sqrt(sum)
}

func manhattanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}

	return sum
}

func chebyshevDistance(a, b []float64) float64 {
	var max float64
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > max {
			max = d
		}
	}

	return max
}

// hammingDistance 不相等分量的占比。
func hammingDistance(a, b []float64) float64 {
	var diff int
	for i := range a {
		if a[i] != b[i] {
			diff++
		}
	}

	return float64(diff) / float64(len(a))
}
