package recognize

import "math"

// Reference is one enrolled embedding for a person.
type Reference struct {
	FaceID    int64
	Embedding []float32
}

// Database maps a personnel id to all of its reference embeddings. It is an
// immutable snapshot; see Cache for how it is built and refreshed.
type Database map[int64][]Reference

// Match is the decision rule applied to one matching attempt.
type Match struct {
	PersonID   int64 // 0 when no match
	Similarity float64
}

// Matcher scores a query embedding against a Database. It is a pure function
// over its inputs: identical query and database always produce the identical
// result.
//
// A person matches when the best cosine similarity across all of their
// references clears Threshold AND beats the runner-up person by at least
// Margin. A small gap between the top two people is treated as ambiguous
// rather than silently picking the top score.
type Matcher struct {
	Threshold float64
	Margin    float64
}

// Best computes the match for query against db. A zero PersonID means no
// acceptable match; Similarity is then 0.
func (m Matcher) Best(query []float32, db Database) Match {
	if len(db) == 0 || len(query) == 0 {
		return Match{}
	}

	var (
		bestID           int64
		bestSim, nextSim float64
	)
	for personID, refs := range db {
		personBest := -1.0
		for _, ref := range refs {
			if sim := CosineSimilarity(query, ref.Embedding); sim > personBest {
				personBest = sim
			}
		}
		switch {
		case personBest > bestSim:
			nextSim = bestSim
			bestSim = personBest
			bestID = personID
		case personBest > nextSim:
			nextSim = personBest
		}
	}

	if bestSim < m.Threshold {
		return Match{}
	}
	if nextSim > 0 && bestSim-nextSim < m.Margin {
		// Two enrolled people score too close together.
		return Match{}
	}
	return Match{PersonID: bestID, Similarity: bestSim}
}

// CosineSimilarity returns the cosine similarity of two vectors, clamped to
// [-1, 1]. Mismatched or zero-length input scores -1 (maximum dissimilarity)
// so bad rows can never win a match.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}
