package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/socialfeed-backend/internal/data/repos/interactions"
	"github.com/yungbote/socialfeed-backend/internal/data/repos/social"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

type Repos struct {
	Post        social.PostRepo
	User        social.UserRepo
	Interaction interactions.InteractionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Post:        social.NewPostRepo(db, log),
		User:        social.NewUserRepo(db, log),
		Interaction: interactions.NewInteractionRepo(db, log),
	}
}
