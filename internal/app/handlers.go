package app

import (
	httpH "github.com/yungbote/socialfeed-backend/internal/http/handlers"
)

type Handlers struct {
	Feed        *httpH.FeedHandler
	Interaction *httpH.InteractionHandler
	Admin       *httpH.AdminHandler
	Health      *httpH.HealthHandler
}

func wireHandlers(svcs Services, ping httpH.Pinger) Handlers {
	return Handlers{
		Feed:        httpH.NewFeedHandler(svcs.Feed),
		Interaction: httpH.NewInteractionHandler(svcs.InterestProfile),
		Admin:       httpH.NewAdminHandler(svcs.QueueAdmin, svcs.RankingSync),
		Health:      httpH.NewHealthHandler(ping),
	}
}
