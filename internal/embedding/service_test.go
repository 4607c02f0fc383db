package embedding

import (
	"context"
	"errors"
	"testing"
)

type fakeClient struct {
	calls  [][]string
	failAt int // 1-based batch number to fail, 0 never
}

func (f *fakeClient) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *fakeClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.failAt == len(f.calls) {
		return nil, errors.New("boom")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeClient) Dimensions() int { return 2 }

func TestServiceEmbedBatchBatchesAndMapsBack(t *testing.T) {
	client := &fakeClient{}
	svc := NewServiceWithClient(client, "test-model", 2)

	var progress []int
	texts := []string{"a", "", "ccc", "dd", "eeeee"}
	got, err := svc.EmbedBatch(context.Background(), texts, func(done int) {
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}

	if len(client.calls) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(client.calls))
	}
	if len(client.calls[0]) != 2 || len(client.calls[1]) != 2 {
		t.Errorf("unexpected batch sizes: %v", client.calls)
	}
	if got[1] != nil {
		t.Errorf("empty text should map to nil vector, got %v", got[1])
	}
	for i, want := range []float32{1, 0, 3, 2, 5} {
		if want == 0 {
			continue
		}
		if got[i][0] != want {
			t.Errorf("result %d = %v, want first component %v", i, got[i], want)
		}
	}
	if len(progress) != 2 || progress[1] != 4 {
		t.Errorf("progress = %v, want [2 4]", progress)
	}
}

func TestServiceEmbedBatchErrors(t *testing.T) {
	svc := NewServiceWithClient(&fakeClient{}, "m", 10)
	if _, err := svc.EmbedBatch(context.Background(), []string{"", ""}, nil); err == nil {
		t.Error("expected error when all texts are empty")
	}

	failing := NewServiceWithClient(&fakeClient{failAt: 2}, "m", 1)
	if _, err := failing.EmbedBatch(context.Background(), []string{"a", "b", "c"}, nil); err == nil {
		t.Error("expected batch error to propagate")
	}

	if _, err := svc.Embed(context.Background(), ""); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestServiceDefaultsBatchSize(t *testing.T) {
	svc := NewServiceWithClient(&fakeClient{}, "m", 0)
	if svc.batchSize <= 0 {
		t.Errorf("batchSize = %d, want positive default", svc.batchSize)
	}
	if svc.Model() != "m" || svc.Dimensions() != 2 {
		t.Errorf("unexpected model/dimensions: %s/%d", svc.Model(), svc.Dimensions())
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{name: "identical vectors", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, expected: 1.0},
		{name: "orthogonal vectors", a: []float32{1, 0, 0}, b: []float32{0, 1, 0}, expected: 0.0},
		{name: "opposite vectors", a: []float32{1, 1, 1}, b: []float32{-1, -1, -1}, expected: -1.0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Similarity(tt.a, tt.b)
			diff := result - tt.expected
			if diff < 0 {
				diff = -diff
			}
			if diff > 0.001 {
				t.Errorf("Similarity() = %v, want %v (diff: %v)", result, tt.expected, diff)
			}
		})
	}
}

func TestL2Distance(t *testing.T) {
	if got := L2Distance([]float32{0, 0, 0}, []float32{3, 4, 0}); got < 4.999 || got > 5.001 {
		t.Errorf("L2Distance() = %v, want 5", got)
	}
	if got := L2Distance([]float32{1, 2}, []float32{1, 2}); got != 0 {
		t.Errorf("L2Distance() = %v, want 0", got)
	}
}

func TestDimensionMismatchPanics(t *testing.T) {
	for name, fn := range map[string]func(){
		"similarity": func() { Similarity([]float32{1, 2}, []float32{1, 2, 3}) },
		"l2":         func() { L2Distance([]float32{1, 2}, []float32{1, 2, 3}) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Error("Expected panic for dimension mismatch")
				}
			}()
			fn()
		})
	}
}
