package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/socialfeed-backend/internal/jobs/processor"
	"github.com/yungbote/socialfeed-backend/internal/jobs/profilefold"
	"github.com/yungbote/socialfeed-backend/internal/observability"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
	"github.com/yungbote/socialfeed-backend/internal/queue"
	"github.com/yungbote/socialfeed-backend/internal/services"
)

type Services struct {
	Feed            services.FeedService
	InterestProfile services.InterestProfileService
	QueueAdmin      services.QueueAdminService
	// RankingSync is nil when no ranking service is configured.
	RankingSync services.RankingSyncService

	Processor *processor.Processor
	Folder    *profilefold.Folder
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, store queue.Store, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	var signer services.MediaSigner
	if clients.MediaSigner != nil {
		signer = clients.MediaSigner
	}

	profiles := services.NewInterestProfileService(db, log, services.InterestProfileConfig{
		Mode:          cfg.ProfileUpdateMode,
		DecayHalfLife: cfg.ProfileDecay,
	}, repos.User, repos.Post, repos.Interaction, metrics)

	out := Services{
		Feed: services.NewFeedService(log, services.FeedConfig{
			RankingTimeout: cfg.RankingTimeout,
		}, clients.Ranking, repos.Post, signer, metrics),
		InterestProfile: profiles,
		QueueAdmin: services.NewQueueAdminService(log, services.QueueAdminConfig{
			TriggerUserPostLimit: cfg.TriggerUserPostLimit,
		}, store, repos.User, repos.Post),
	}
	if clients.Ranking != nil {
		out.RankingSync = services.NewRankingSyncService(log, clients.Ranking, repos.Post, metrics)
	}

	var indexer processor.RankingIndexer
	if cfg.IndexOnComplete && clients.Ranking != nil {
		indexer = clients.Ranking
	}
	out.Processor = processor.New(log, processor.Config{
		Interval:     cfg.ProcessInterval,
		Backoff:      cfg.ProcessErrorBackoff,
		StuckTimeout: cfg.JobStuckTimeout,
		LeaseTTL:     cfg.JobLeaseTTL,
		Concurrency:  cfg.ConcurrentJobs,
		ProcessorID:  cfg.ProcessorID,
	}, store, clients.Classifier, repos.Post, indexer, metrics)
	out.Folder = profilefold.New(log, profilefold.Config{
		Interval: cfg.ProfileFoldInterval,
		Batch:    cfg.ProfileFoldBatch,
	}, repos.Interaction, profiles)
	return out
}
