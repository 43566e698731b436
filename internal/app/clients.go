package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yungbote/socialfeed-backend/internal/classifier"
	"github.com/yungbote/socialfeed-backend/internal/clients/gcp"
	"github.com/yungbote/socialfeed-backend/internal/clients/ollama"
	"github.com/yungbote/socialfeed-backend/internal/clients/ranking"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
	"github.com/yungbote/socialfeed-backend/internal/queue"
)

type Clients struct {
	Storage     *storage.Client
	Ollama      ollama.Client
	Classifier  classifier.Classifier
	Ranking     ranking.Client
	MediaSigner *gcp.MediaSigner
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Gcs
	needQueue := cfg.QueueBackend == queue.BackendGCS
	if needQueue || cfg.SignMedia {
		sc, err := gcp.NewStorageClient(ctx, log)
		switch {
		case err != nil && needQueue:
			return out, fmt.Errorf("init storage client: %w", err)
		case err != nil:
			log.Warn("Storage client unavailable; media URLs will not be signed", "error", err)
		default:
			out.Storage = sc
			if cfg.SignMedia {
				out.MediaSigner = gcp.NewMediaSigner(log, sc, cfg.MediaURLTTL)
			}
		}
	}

	// Ollama
	oc, err := ollama.NewClient(log, ollama.Config{
		BaseURL:    cfg.OllamaURL,
		Model:      cfg.OllamaModel,
		Timeout:    cfg.OllamaTimeout,
		MaxRetries: cfg.OllamaMaxRetries,
	}, tracedHTTPClient(cfg.OllamaTimeout))
	if err != nil {
		return out, fmt.Errorf("init ollama client: %w", err)
	}
	out.Ollama = oc
	out.Classifier = classifier.New(log, oc)

	// Ranking
	if cfg.RankingURL != "" {
		rc, err := ranking.NewClient(log, ranking.Config{
			BaseURL:          cfg.RankingURL,
			Timeout:          cfg.RankingTimeout,
			FailureThreshold: uint32(cfg.RankingFailureThreshold),
			OpenTimeout:      cfg.RankingOpenTimeout,
		}, tracedHTTPClient(cfg.RankingTimeout))
		if err != nil {
			return out, fmt.Errorf("init ranking client: %w", err)
		}
		out.Ranking = rc
	} else {
		log.Warn("FEED_ALGORITHM_API_URL not set; feeds will use the recency fallback")
	}
	return out, nil
}

func (c Clients) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func tracedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
}
