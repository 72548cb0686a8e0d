package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

// fakeEmbedder 以固定映射返回向量。
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}

	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.vectors[t])
	}
	return out, nil
}

func TestEmbeddingDistanceEvaluator(t *testing.T) {
	ctx := context.Background()

	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"right": {1, 0},
		"up":    {0, 1},
		"same":  {1, 0},
		"far":   {4, 5},
	}}

	convey.Convey("cosine_orthogonal", t, func() {
		e, err := NewEmbeddingDistanceEvaluator(embedder, DistanceCosine)
		convey.So(err, convey.ShouldBeNil)

		result, err := e.EvaluateStrings(ctx, &StringEvalInput{
			Prediction: "right",
			Reference:  "up",
		})

		convey.So(err, convey.ShouldBeNil)
		convey.So(result.Key, convey.ShouldEqual, "embedding_cosine_distance")
		convey.So(result.Score, convey.ShouldAlmostEqual, 1.0)
	})

	convey.Convey("cosine_identical", t, func() {
		e, _ := NewEmbeddingDistanceEvaluator(embedder, DistanceCosine)

		result, err := e.EvaluateStrings(ctx, &StringEvalInput{
			Prediction: "right",
			Reference:  "same",
		})

		convey.So(err, convey.ShouldBeNil)
		convey.So(result.Score, convey.ShouldAlmostEqual, 0.0)
	})

	convey.Convey("euclidean", t, func() {
		e, _ := NewEmbeddingDistanceEvaluator(embedder, DistanceEuclidean)

		result, err := e.EvaluateStrings(ctx, &StringEvalInput{
			Prediction: "right",
			Reference:  "far",
		})

		convey.So(err, convey.ShouldBeNil)
		// sqrt((4-1)^2 + (5-0)^2) = sqrt(34)
		convey.So(result.Score, convey.ShouldAlmostEqual, 5.8309518948453, 1e-9)
	})

	convey.Convey("manhattan", t, func() {
		e, _ := NewEmbeddingDistanceEvaluator(embedder, DistanceManhattan)

		result, err := e.EvaluateStrings(ctx, &StringEvalInput{
			Prediction: "right",
			Reference:  "far",
		})

		convey.So(err, convey.ShouldBeNil)
		convey.So(result.Score, convey.ShouldAlmostEqual, 8.0)
	})

	convey.Convey("chebyshev", t, func() {
		e, _ := NewEmbeddingDistanceEvaluator(embedder, DistanceChebyshev)

		result, err := e.EvaluateStrings(ctx, &StringEvalInput{
			Prediction: "right",
			Reference:  "far",
		})

		convey.So(err, convey.ShouldBeNil)
		convey.So(result.Score, convey.ShouldAlmostEqual, 5.0)
	})

	convey.Convey("hamming", t, func() {
		e, _ := NewEmbeddingDistanceEvaluator(embedder, DistanceHamming)

		result, err := e.EvaluateStrings(ctx, &StringEvalInput{
			Prediction: "right",
			Reference:  "up",
		})

		convey.So(err, convey.ShouldBeNil)
		convey.So(result.Score, convey.ShouldAlmostEqual, 1.0)
	})

	convey.Convey("pairwise", t, func() {
		e, _ := NewEmbeddingDistanceEvaluator(embedder, DistanceManhattan)

		result, err := e.EvaluateStringPairs(ctx, "right", "up")

		convey.So(err, convey.ShouldBeNil)
		convey.So(result.Score, convey.ShouldAlmostEqual, 2.0)
	})

	convey.Convey("zero_vector_cosine", t, func() {
		zero := &fakeEmbedder{vectors: map[string][]float64{
			"a": {0, 0},
			"b": {1, 1},
		}}
		e, _ := NewEmbeddingDistanceEvaluator(zero, DistanceCosine)

		_, err := e.EvaluateStrings(ctx, &StringEvalInput{Prediction: "a", Reference: "b"})
		convey.So(err, convey.ShouldNotBeNil)
	})

	convey.Convey("length_mismatch", t, func() {
		bad := &fakeEmbedder{vectors: map[string][]float64{
			"a": {1, 2},
			"b": {1, 2, 3},
		}}
		e, _ := NewEmbeddingDistanceEvaluator(bad, DistanceEuclidean)

		_, err := e.EvaluateStrings(ctx, &StringEvalInput{Prediction: "a", Reference: "b"})
		convey.So(err, convey.ShouldNotBeNil)
	})

	convey.Convey("embedder_failure", t, func() {
		broken := &fakeEmbedder{err: errors.New("quota exceeded")}
		e, _ := NewEmbeddingDistanceEvaluator(broken, DistanceCosine)

		_, err := e.EvaluateStrings(ctx, &StringEvalInput{Prediction: "a", Reference: "b"})
		convey.So(err, convey.ShouldNotBeNil)
	})

	convey.Convey("invalid_metric", t, func() {
		_, err := NewEmbeddingDistanceEvaluator(embedder, DistanceMetric("minkowski"))
		convey.So(err, convey.ShouldNotBeNil)
	})

	convey.Convey("nil_embedder", t, func() {
		_, err := NewEmbeddingDistanceEvaluator(nil, DistanceCosine)
		convey.So(err, convey.ShouldNotBeNil)
	})
}
