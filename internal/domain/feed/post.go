package feed

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Post struct {
	ID           int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID       int64          `gorm:"column:user_id;not null;index" json:"user_id"`
	Content      string         `gorm:"column:content;type:text" json:"content"`
	MediaURL     *string        `gorm:"column:media_url" json:"media_url,omitempty"`
	MediaType    *string        `gorm:"column:media_type" json:"media_type,omitempty"`
	Themes       datatypes.JSON `gorm:"column:themes;type:jsonb" json:"themes,omitempty"`
	AnalysisData datatypes.JSON `gorm:"column:analysis_data;type:jsonb" json:"analysis_data,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Post) TableName() string { return "posts" }

type User struct {
	ID              int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username        string         `gorm:"column:username;not null;uniqueIndex" json:"username"`
	DisplayName     string         `gorm:"column:display_name" json:"display_name"`
	AvatarURL       *string        `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	InterestProfile datatypes.JSON `gorm:"column:interest_profile;type:jsonb" json:"interest_profile,omitempty"`
	CreatedAt       time.Time      `gorm:"column:created_at;not null" json:"created_at"`
}

func (User) TableName() string { return "users" }

// Engagement rows are owned by the CRUD surface; this service only reads
// them to hydrate counts and viewer flags.
type Like struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PostID    int64     `gorm:"column:post_id;not null;index"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (Like) TableName() string { return "likes" }

type Repost struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PostID    int64     `gorm:"column:post_id;not null;index"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (Repost) TableName() string { return "reposts" }

type Reply struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PostID    int64     `gorm:"column:post_id;not null;index"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	Content   string    `gorm:"column:content;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (Reply) TableName() string { return "replies" }

type Bookmark struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PostID    int64     `gorm:"column:post_id;not null;index"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (Bookmark) TableName() string { return "bookmarks" }

// FeedPost is a post hydrated with author info, engagement counts and the
// viewer's own engagement flags.
type FeedPost struct {
	ID             int64     `gorm:"column:id" json:"id"`
	Content        string    `gorm:"column:content" json:"content"`
	MediaURL       *string   `gorm:"column:media_url" json:"media_url"`
	MediaType      *string   `gorm:"column:media_type" json:"media_type"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UserID         int64     `gorm:"column:user_id" json:"user_id"`
	Username       string    `gorm:"column:username" json:"username"`
	DisplayName    string    `gorm:"column:display_name" json:"display_name"`
	AvatarURL      *string   `gorm:"column:avatar_url" json:"avatar_url"`
	LikeCount      int64     `gorm:"column:like_count" json:"like_count"`
	RepostCount    int64     `gorm:"column:repost_count" json:"repost_count"`
	ReplyCount     int64     `gorm:"column:reply_count" json:"reply_count"`
	UserLiked      bool      `gorm:"column:user_liked" json:"user_liked"`
	UserReposted   bool      `gorm:"column:user_reposted" json:"user_reposted"`
	UserBookmarked bool      `gorm:"column:user_bookmarked" json:"user_bookmarked"`
}

const (
	SourceRanked   = "ranked"
	SourceFallback = "fallback"
)

type Page struct {
	Posts      []FeedPost `json:"posts"`
	NextCursor string     `json:"next_cursor,omitempty"`
	Source     string     `json:"source"`
}

// ThemeStat aggregates one theme key across labelled posts.
type ThemeStat struct {
	Theme     string  `json:"theme"`
	Posts     int     `json:"posts"`
	AvgWeight float64 `json:"avgWeight"`
}
