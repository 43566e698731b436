package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	"github.com/yungbote/socialfeed-backend/internal/pkg/httpx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

type Kind string

const (
	KindUnavailable       Kind = "unavailable"
	KindMalformed         Kind = "malformed"
	KindMissingCategories Kind = "missing_categories"
)

const defaultConfidence = 0.5

// Error is returned for every classification failure.
type Error struct {
	Kind      Kind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classify (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("classify (%s)", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Generator is the language-model completion call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result carries the reduced classification plus the normalised raw
// category map that is persisted as posts.themes.
type Result struct {
	feed.AnalysisResult
	Themes map[string]float64
}

type Classifier interface {
	Classify(ctx context.Context, content string) (Result, error)
}

type classifier struct {
	log *logger.Logger
	gen Generator
}

func New(log *logger.Logger, gen Generator) Classifier {
	return &classifier{log: log.With("component", "Classifier"), gen: gen}
}

func (c *classifier) Classify(ctx context.Context, content string) (Result, error) {
	start := time.Now()
	raw, err := c.gen.Generate(ctx, BuildPrompt(content))
	if err != nil {
		return Result{}, &Error{Kind: KindUnavailable, Retryable: httpx.IsRetryableError(err), Err: err}
	}
	res, err := Parse(raw)
	if err != nil {
		c.log.Warn("Unparseable classification", "error", err, "raw_chars", len(raw))
		return Result{}, err
	}
	c.log.Debug("Post classified",
		"categories", res.Categories,
		"confidence", res.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

type payload struct {
	Categories json.RawMessage `json:"categories"`
	Confidence *float64        `json:"confidence"`
}

// Parse reduces a raw model completion to a Result.
func Parse(raw string) (Result, error) {
	body, ok := extractObject(raw)
	if !ok {
		return Result{}, &Error{Kind: KindMalformed, Err: fmt.Errorf("no JSON object in model response")}
	}
	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Result{}, &Error{Kind: KindMalformed, Err: err}
	}
	var categories map[string]any
	if len(p.Categories) == 0 || json.Unmarshal(p.Categories, &categories) != nil || categories == nil {
		return Result{}, &Error{Kind: KindMissingCategories, Err: fmt.Errorf("response has no categories object")}
	}

	themes := make(map[string]float64, len(categories))
	for k, v := range categories {
		topic := feed.NormalizeTopic(k)
		w, ok := toFloat(v)
		if topic == "" || !ok || w <= 0 {
			continue
		}
		if w > 1 {
			w = 1
		}
		if cur, dup := themes[topic]; !dup || w > cur {
			themes[topic] = w
		}
	}

	ranked := feed.RankTopics(themes)
	if len(ranked) > feed.MaxCategories {
		ranked = ranked[:feed.MaxCategories]
	}
	out := Result{Themes: themes}
	out.Categories = make([]string, 0, len(ranked))
	out.Weights = make([]float64, 0, len(ranked))
	for _, tw := range ranked {
		out.Categories = append(out.Categories, tw.Topic)
		out.Weights = append(out.Weights, tw.Weight)
	}
	out.Confidence = defaultConfidence
	if p.Confidence != nil && !math.IsNaN(*p.Confidence) {
		out.Confidence = clamp01(*p.Confidence)
	}
	return out, nil
}

// extractObject returns the span from the first '{' to the last '}'.
func extractObject(s string) (string, bool) {
	i := strings.Index(s, "{")
	j := strings.LastIndex(s, "}")
	if i < 0 || j <= i {
		return "", false
	}
	return s[i : j+1], true
}

func toFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
