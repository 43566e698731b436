package feed

import (
	"encoding/json"
	"sort"
	"strings"
)

// MaxCategories bounds how many topics a post keeps after classification.
const MaxCategories = 3

type AnalysisResult struct {
	Categories []string  `json:"categories"`
	Weights    []float64 `json:"weights"`
	Confidence float64   `json:"confidence"`
}

// AnalysisRecord is the compact form stored in posts.analysis_data.
type AnalysisRecord struct {
	K []string  `json:"k"`
	W []float64 `json:"w"`
	C float64   `json:"c"`
}

func (r AnalysisResult) Record() AnalysisRecord {
	k := append([]string{}, r.Categories...)
	w := append([]float64{}, r.Weights...)
	return AnalysisRecord{K: k, W: w, C: r.Confidence}
}

type TopicWeight struct {
	Topic  string
	Weight float64
}

// RankTopics orders a topic map by weight descending, breaking ties by
// topic name so the order is reproducible.
func RankTopics(m map[string]float64) []TopicWeight {
	out := make([]TopicWeight, 0, len(m))
	for k, v := range m {
		out = append(out, TopicWeight{Topic: k, Weight: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

// NormalizeTopic lowercases and trims a topic key.
func NormalizeTopic(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DecodeThemes parses a posts.themes value. Empty or invalid input yields an
// empty map.
func DecodeThemes(raw []byte) map[string]float64 {
	out := map[string]float64{}
	if len(raw) == 0 {
		return out
	}
	var m map[string]float64
	if err := json.Unmarshal(raw, &m); err != nil {
		return out
	}
	for k, v := range m {
		if k = NormalizeTopic(k); k != "" {
			out[k] = v
		}
	}
	return out
}
