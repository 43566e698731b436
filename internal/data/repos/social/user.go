package social

import (
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

type UserRepo interface {
	GetByID(dbc dbctx.Context, id int64) (*feed.User, error)
	// GetForUpdate row-locks the user for the life of dbc.Tx.
	GetForUpdate(dbc dbctx.Context, id int64) (*feed.User, error)
	SaveProfile(dbc dbctx.Context, id int64, profile datatypes.JSON) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) GetByID(dbc dbctx.Context, id int64) (*feed.User, error) {
	return r.get(dbc.DB(r.db), id)
}

func (r *userRepo) GetForUpdate(dbc dbctx.Context, id int64) (*feed.User, error) {
	return r.get(dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *userRepo) get(q *gorm.DB, id int64) (*feed.User, error) {
	var u feed.User
	err := q.Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) SaveProfile(dbc dbctx.Context, id int64, profile datatypes.JSON) error {
	res := dbc.DB(r.db).
		Model(&feed.User{}).
		Where("id = ?", id).
		Update("interest_profile", profile)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, pkgerrors.ErrNotFound)
	}
	return nil
}
