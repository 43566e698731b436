package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	"github.com/yungbote/socialfeed-backend/internal/pkg/httpx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Breaker trips after this many consecutive failures. Zero means 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

type FeedRequest struct {
	UserID    string  `json:"user_id"`
	Limit     int     `json:"limit"`
	Cursor    *string `json:"cursor"`
	SessionID string  `json:"session_id"`
}

type RankedPost struct {
	PostID json.RawMessage `json:"post_id"`
	Score  float64         `json:"score,omitempty"`
}

// ID returns the post id whether the service sent it as a string or a number.
func (p RankedPost) ID() string {
	raw := strings.TrimSpace(string(p.PostID))
	return strings.Trim(raw, `"`)
}

type FeedResponse struct {
	Posts      []RankedPost `json:"posts"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// PostRecord is the shape the ranking index ingests.
type PostRecord struct {
	PostID    string    `json:"post_id"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"author_id"`
	Themes    []string  `json:"themes"`
	MediaType string    `json:"media_type"`
	CreatedAt time.Time `json:"created_at"`
}

type Client interface {
	GenerateFeed(ctx context.Context, req FeedRequest) (*FeedResponse, error)
	UpsertPost(ctx context.Context, rec PostRecord) error
}

// ErrCircuitOpen is returned without calling the service while the breaker is open.
var ErrCircuitOpen = errors.New("ranking: circuit open")

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*FeedResponse]
}

func NewClient(log *logger.Logger, cfg Config, httpClient *http.Client) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:4044"
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	c := &client{
		log:        log.With("service", "RankingClient"),
		baseURL:    baseURL,
		httpClient: httpClient,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*FeedResponse](gobreaker.Settings{
		Name:        "ranking-feed",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("Ranking circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

func (c *client) GenerateFeed(ctx context.Context, req FeedRequest) (*FeedResponse, error) {
	ctx, span := otel.Tracer("socialfeed/ranking").Start(ctx, "ranking.generate_feed")
	defer span.End()
	span.SetAttributes(attribute.Int("feed.limit", req.Limit))

	out, err := c.breaker.Execute(func() (*FeedResponse, error) {
		var resp FeedResponse
		if err := c.post(ctx, "/api/feed/generate-addictive", req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func (c *client) UpsertPost(ctx context.Context, rec PostRecord) error {
	return c.post(ctx, "/api/posts", rec, nil)
}

func (c *client) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ranking %s: %w", path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ranking %s read: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpx.StatusError{Service: "ranking", StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("ranking %s decode: %w", path, err)
	}
	return nil
}

// RecordFromPost projects a post into the index record. A nil themes map is
// read from the post's stored labels.
func RecordFromPost(post *feed.Post, themes map[string]float64) PostRecord {
	if themes == nil {
		themes = feed.DecodeThemes(post.Themes)
	}
	keys := make([]string, 0, len(themes))
	for _, tw := range feed.RankTopics(themes) {
		keys = append(keys, tw.Topic)
	}
	mediaType := "text"
	if post.MediaType != nil && *post.MediaType != "" {
		mediaType = *post.MediaType
	}
	return PostRecord{
		PostID:    strconv.FormatInt(post.ID, 10),
		Content:   post.Content,
		AuthorID:  strconv.FormatInt(post.UserID, 10),
		Themes:    keys,
		MediaType: mediaType,
		CreatedAt: post.CreatedAt,
	}
}
