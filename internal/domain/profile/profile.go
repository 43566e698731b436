package profile

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
)

const (
	MaxLikedTopics = 50
	MaxLikedUsers  = 30

	// ReplyWeightFactor scales a post's topic weight into a reply reinforcement.
	ReplyWeightFactor = 0.2
)

const (
	InteractionLike     = "like"
	InteractionRepost   = "repost"
	InteractionBookmark = "bookmark"
	InteractionView     = "view"
	InteractionReply    = "reply"
)

// IsLikeClass reports whether t folds as a flat topic/author union.
func IsLikeClass(t string) bool {
	switch t {
	case InteractionLike, InteractionRepost, InteractionBookmark, InteractionView:
		return true
	}
	return false
}

func IsReplyClass(t string) bool { return t == InteractionReply }

func ValidInteraction(t string) bool { return IsLikeClass(t) || IsReplyClass(t) }

// UserInterestProfile is stored as JSON in users.interest_profile.
type UserInterestProfile struct {
	LikedTopics      []string             `json:"likedTopics"`
	LikedUsers       []string             `json:"likedUsers"`
	InteractionCount int64                `json:"interactionCount"`
	TopicWeights     map[string]float64   `json:"topicWeights,omitempty"`
	TopicTouchedAt   map[string]time.Time `json:"topicTouchedAt,omitempty"`
	LastUpdated      *time.Time           `json:"lastUpdated,omitempty"`
}

// InteractionEvent is an append-only record of one user interaction. Events
// carry a snapshot of the post's labels so folding never re-reads the post.
type InteractionEvent struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    int64          `gorm:"column:user_id;not null;index" json:"user_id"`
	PostID    int64          `gorm:"column:post_id;not null" json:"post_id"`
	AuthorID  int64          `gorm:"column:author_id;not null" json:"author_id"`
	Type      string         `gorm:"column:type;not null" json:"type"`
	Themes    datatypes.JSON `gorm:"column:themes;type:jsonb" json:"themes,omitempty"`
	Hashtags  datatypes.JSON `gorm:"column:hashtags;type:jsonb" json:"hashtags,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	FoldedAt  *time.Time     `gorm:"column:folded_at;index" json:"folded_at,omitempty"`
	// DiscardReason is set when the event was retired without being applied.
	DiscardReason string `gorm:"column:discard_reason" json:"discard_reason,omitempty"`
}

func (InteractionEvent) TableName() string { return "interaction_events" }

// Signal is the decoded payload of an InteractionEvent.
type Signal struct {
	Type     string
	AuthorID string
	Themes   map[string]float64
	Hashtags []string
}

// Fold applies one interaction to p and returns the result. p is not mutated.
func Fold(p UserInterestProfile, s Signal, now time.Time) UserInterestProfile {
	out := p.clone()
	now = now.UTC()
	switch {
	case IsLikeClass(s.Type):
		topics := make([]string, 0, len(s.Themes)+len(s.Hashtags))
		for _, tw := range feed.RankTopics(s.Themes) {
			topics = append(topics, tw.Topic)
		}
		topics = append(topics, s.Hashtags...)
		out.LikedTopics = pushRecent(out.LikedTopics, topics, MaxLikedTopics)
		if s.AuthorID != "" {
			out.LikedUsers = pushRecent(out.LikedUsers, []string{s.AuthorID}, MaxLikedUsers)
		}
	case IsReplyClass(s.Type):
		if out.TopicWeights == nil {
			out.TopicWeights = map[string]float64{}
		}
		if out.TopicTouchedAt == nil {
			out.TopicTouchedAt = map[string]time.Time{}
		}
		for topic, w := range s.Themes {
			if topic == "" || w <= 0 || math.IsNaN(w) {
				continue
			}
			out.TopicWeights[topic] = math.Min(1, out.TopicWeights[topic]+ReplyWeightFactor*w)
			out.TopicTouchedAt[topic] = now
		}
	default:
		return out
	}
	out.InteractionCount++
	out.LastUpdated = &now
	return out
}

// EffectiveWeights returns topic weights decayed by age since each topic was
// last reinforced. A zero halfLife returns the stored weights unchanged.
func (p UserInterestProfile) EffectiveWeights(now time.Time, halfLife time.Duration) map[string]float64 {
	out := make(map[string]float64, len(p.TopicWeights))
	for topic, w := range p.TopicWeights {
		if halfLife <= 0 {
			out[topic] = w
			continue
		}
		touched, ok := p.TopicTouchedAt[topic]
		if !ok {
			out[topic] = w
			continue
		}
		age := now.Sub(touched)
		if age <= 0 {
			out[topic] = w
			continue
		}
		out[topic] = w * math.Exp2(-age.Hours()/halfLife.Hours())
	}
	return out
}

func (p UserInterestProfile) clone() UserInterestProfile {
	out := p
	out.LikedTopics = append([]string(nil), p.LikedTopics...)
	out.LikedUsers = append([]string(nil), p.LikedUsers...)
	if p.TopicWeights != nil {
		out.TopicWeights = make(map[string]float64, len(p.TopicWeights))
		for k, v := range p.TopicWeights {
			out.TopicWeights[k] = v
		}
	}
	if p.TopicTouchedAt != nil {
		out.TopicTouchedAt = make(map[string]time.Time, len(p.TopicTouchedAt))
		for k, v := range p.TopicTouchedAt {
			out.TopicTouchedAt[k] = v
		}
	}
	return out
}

// pushRecent moves each value to the most-recent end of list, dropping
// duplicates, then evicts from the oldest end down to max.
func pushRecent(list []string, values []string, max int) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		for i, cur := range list {
			if cur == v {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		list = append(list, v)
	}
	if len(list) > max {
		list = append([]string(nil), list[len(list)-max:]...)
	}
	return list
}

// Decode parses a users.interest_profile value. Empty or unreadable input
// yields a zero profile; legacy flat topic->weight maps are read as
// topicWeights.
func Decode(raw []byte) UserInterestProfile {
	var p UserInterestProfile
	var keys map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &keys) != nil {
		return p
	}
	for _, k := range []string{"likedTopics", "likedUsers", "interactionCount", "topicWeights"} {
		if _, ok := keys[k]; ok {
			_ = json.Unmarshal(raw, &p)
			return p
		}
	}
	var legacy map[string]float64
	if err := json.Unmarshal(raw, &legacy); err == nil && len(legacy) > 0 {
		p.TopicWeights = legacy
	}
	return p
}

func (p UserInterestProfile) Encode() (datatypes.JSON, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// Signal decodes the event's snapshot columns.
func (e InteractionEvent) Signal() Signal {
	s := Signal{
		Type:   e.Type,
		Themes: feed.DecodeThemes(e.Themes),
	}
	if e.AuthorID > 0 {
		s.AuthorID = strconv.FormatInt(e.AuthorID, 10)
	}
	if len(e.Hashtags) > 0 {
		_ = json.Unmarshal(e.Hashtags, &s.Hashtags)
	}
	return s
}
