package recognize

import (
	"math"
	"testing"
)

func db(people map[int64][][]float32) Database {
	d := make(Database, len(people))
	var faceID int64
	for personID, embeddings := range people {
		for _, e := range embeddings {
			faceID++
			d[personID] = append(d[personID], Reference{FaceID: faceID, Embedding: e})
		}
	}
	return d
}

func TestMatcherBest(t *testing.T) {
	m := Matcher{Threshold: 0.75, Margin: 0.05}

	tests := []struct {
		name       string
		query      []float32
		db         Database
		wantPerson int64
		wantSim    float64
	}{
		{
			name:       "exact match",
			query:      []float32{1, 0, 0},
			db:         db(map[int64][][]float32{1: {{1, 0, 0}}}),
			wantPerson: 1,
			wantSim:    1,
		},
		{
			name:       "empty database",
			query:      []float32{1, 0, 0},
			db:         Database{},
			wantPerson: 0,
		},
		{
			name:       "empty query",
			query:      nil,
			db:         db(map[int64][][]float32{1: {{1, 0, 0}}}),
			wantPerson: 0,
		},
		{
			name:       "below threshold",
			query:      []float32{1, 0, 0},
			db:         db(map[int64][][]float32{1: {{0.6, 0.8, 0}}}),
			wantPerson: 0,
		},
		{
			name:  "two people too close together",
			query: []float32{1, 0, 0},
			db: db(map[int64][][]float32{
				1: {{1, 0, 0}},
				2: {{0.98, 0.199, 0}},
			}),
			wantPerson: 0,
		},
		{
			name:  "clear winner over runner-up",
			query: []float32{1, 0, 0},
			db: db(map[int64][][]float32{
				1: {{1, 0, 0}},
				2: {{0.8, 0.6, 0}},
			}),
			wantPerson: 1,
			wantSim:    1,
		},
		{
			name:  "best reference per person wins",
			query: []float32{1, 0, 0},
			db: db(map[int64][][]float32{
				1: {{0, 1, 0}, {1, 0, 0}},
			}),
			wantPerson: 1,
			wantSim:    1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Best(tc.query, tc.db)
			if got.PersonID != tc.wantPerson {
				t.Fatalf("PersonID = %d, want %d (similarity %.4f)", got.PersonID, tc.wantPerson, got.Similarity)
			}
			if tc.wantPerson != 0 && math.Abs(got.Similarity-tc.wantSim) > 1e-6 {
				t.Fatalf("Similarity = %.6f, want %.6f", got.Similarity, tc.wantSim)
			}
			if tc.wantPerson == 0 && got.Similarity != 0 {
				t.Fatalf("Similarity = %.6f for a non-match, want 0", got.Similarity)
			}
		})
	}
}

func TestMatcherDeterministic(t *testing.T) {
	m := Matcher{Threshold: 0.75, Margin: 0.05}
	query := []float32{0.3, 0.9, 0.1}
	d := db(map[int64][][]float32{
		1: {{0.3, 0.9, 0.1}, {0.1, 0.2, 0.3}},
		2: {{0.9, 0.1, 0.1}},
		3: {{0.2, 0.8, 0.2}},
	})

	first := m.Best(query, d)
	for i := 0; i < 50; i++ {
		if got := m.Best(query, d); got != first {
			t.Fatalf("run %d: got %+v, want %+v", i, got, first)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"scale invariant", []float32{1, 2}, []float32{10, 20}, 1},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 2}, -1},
		{"both empty", nil, nil, -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-6 {
				t.Fatalf("CosineSimilarity = %.6f, want %.6f", got, tc.want)
			}
		})
	}
}
