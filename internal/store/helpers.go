package store

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/brbranch/promptchain/internal/model"
)

// CosineDistance はcosine distanceを返す（0=同一、2=正反対）
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)

	if normA == 0 || normB == 0 {
		return 2.0
	}

	return 1.0 - dotProduct/(normA*normB)
}

// Score はcosine distanceを0-1のスコアに正規化する
func Score(a, b []float32) float64 {
	return 1.0 - CosineDistance(a, b)/2.0
}

// checkBatch はAddChunksの入力を検証し、createdAtを補完する
func checkBatch(chunks []*model.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", ErrLengthMismatch, len(chunks), len(embeddings))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid chunk at %d: %w", i, err)
		}
		if c.CreatedAt == nil {
			createdAt := now
			c.CreatedAt = &createdAt
		}
	}
	return nil
}

// rankResults はスコア降順に並べ、MinScore未満を除外してTopK件に切り詰める
func rankResults(results []SearchResult, opts SearchOptions) []SearchResult {
	filtered := results[:0]
	for _, r := range results {
		if r.Score >= opts.MinScore {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})

	if opts.TopK > 0 && len(filtered) > opts.TopK {
		filtered = filtered[:opts.TopK]
	}
	return filtered
}

// summarize はチャンクをドキュメント単位に集約する（createdAt降順）
func summarize(chunks []*model.Chunk, limit int) []model.DocumentSummary {
	byDoc := make(map[string]*model.DocumentSummary)
	var order []string

	for _, c := range chunks {
		s, ok := byDoc[c.DocumentID]
		if !ok {
			s = &model.DocumentSummary{
				DocumentID: c.DocumentID,
				Collection: c.Collection,
				Source:     c.Source,
			}
			byDoc[c.DocumentID] = s
			order = append(order, c.DocumentID)
		}
		s.ChunkCount++
		if c.CreatedAt != nil && (s.CreatedAt == nil || *c.CreatedAt > *s.CreatedAt) {
			createdAt := *c.CreatedAt
			s.CreatedAt = &createdAt
		}
	}

	summaries := make([]model.DocumentSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, *byDoc[id])
	}
	sortSummaries(summaries)

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// sortSummaries はcreatedAt降順、同時刻はdocumentID昇順で並べる
func sortSummaries(summaries []model.DocumentSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		ci, cj := summaries[i].CreatedAt, summaries[j].CreatedAt
		switch {
		case ci == nil && cj == nil:
		case ci == nil:
			return false
		case cj == nil:
			return true
		case *ci != *cj:
			ti, _ := time.Parse(time.RFC3339, *ci)
			tj, _ := time.Parse(time.RFC3339, *cj)
			return ti.After(tj)
		}
		return summaries[i].DocumentID < summaries[j].DocumentID
	})
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
