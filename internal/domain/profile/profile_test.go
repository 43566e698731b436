package profile

import (
	"fmt"
	"testing"
	"time"
)

func TestFoldLikeCapsTopicsAndUsers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var p UserInterestProfile
	for i := 0; i < 200; i++ {
		p = Fold(p, Signal{
			Type:     InteractionLike,
			AuthorID: fmt.Sprintf("%d", i),
			Themes:   map[string]float64{fmt.Sprintf("topic-%d", i): 0.5, "gaming": 0.9},
		}, now)
		if len(p.LikedTopics) > MaxLikedTopics {
			t.Fatalf("likedTopics cap: got=%d want<=%d", len(p.LikedTopics), MaxLikedTopics)
		}
		if len(p.LikedUsers) > MaxLikedUsers {
			t.Fatalf("likedUsers cap: got=%d want<=%d", len(p.LikedUsers), MaxLikedUsers)
		}
	}
	if p.InteractionCount != 200 {
		t.Fatalf("interactionCount: got=%d want=200", p.InteractionCount)
	}
	seen := map[string]bool{}
	for _, topic := range p.LikedTopics {
		if seen[topic] {
			t.Fatalf("duplicate topic %q in %v", topic, p.LikedTopics)
		}
		seen[topic] = true
	}
	if !seen["topic-199"] || seen["topic-0"] {
		t.Fatalf("expected most recent topics kept: %v", p.LikedTopics)
	}
	if last := p.LikedUsers[len(p.LikedUsers)-1]; last != "199" {
		t.Fatalf("most recent author: got=%q want=199", last)
	}
}

func TestFoldLikeIncludesHashtags(t *testing.T) {
	p := Fold(UserInterestProfile{}, Signal{
		Type:     InteractionBookmark,
		AuthorID: "7",
		Themes:   map[string]float64{"fps": 0.8},
		Hashtags: []string{"csgo"},
	}, time.Now())
	if len(p.LikedTopics) != 2 || p.LikedTopics[0] != "fps" || p.LikedTopics[1] != "csgo" {
		t.Fatalf("likedTopics: got=%v", p.LikedTopics)
	}
	if len(p.TopicWeights) != 0 {
		t.Fatalf("like-class must not touch topicWeights: %v", p.TopicWeights)
	}
}

func TestFoldReplyWeightsMonotoneAndClamped(t *testing.T) {
	now := time.Now()
	var p UserInterestProfile
	prev := map[string]float64{}
	for i := 0; i < 20; i++ {
		p = Fold(p, Signal{Type: InteractionReply, Themes: map[string]float64{"gaming": 0.9, "fps": 0.3}}, now)
		for topic, w := range p.TopicWeights {
			if w < prev[topic] {
				t.Fatalf("%s decreased: %v -> %v", topic, prev[topic], w)
			}
			if w > 1.0 {
				t.Fatalf("%s above 1: %v", topic, w)
			}
			prev[topic] = w
		}
	}
	if p.TopicWeights["gaming"] != 1.0 {
		t.Fatalf("gaming: got=%v want=1", p.TopicWeights["gaming"])
	}
	first := Fold(UserInterestProfile{}, Signal{Type: InteractionReply, Themes: map[string]float64{"fps": 0.5}}, now)
	if got := first.TopicWeights["fps"]; got < 0.0999 || got > 0.1001 {
		t.Fatalf("single reply increment: got=%v want=0.1", got)
	}
}

func TestFoldDoesNotMutateInput(t *testing.T) {
	in := UserInterestProfile{LikedTopics: []string{"a"}, TopicWeights: map[string]float64{"a": 0.1}}
	_ = Fold(in, Signal{Type: InteractionReply, Themes: map[string]float64{"a": 1}}, time.Now())
	_ = Fold(in, Signal{Type: InteractionLike, Themes: map[string]float64{"b": 1}}, time.Now())
	if in.TopicWeights["a"] != 0.1 || len(in.LikedTopics) != 1 {
		t.Fatalf("input mutated: %+v", in)
	}
}

func TestEffectiveWeightsDecayAtReadTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := UserInterestProfile{
		TopicWeights:   map[string]float64{"gaming": 0.8, "music": 0.4},
		TopicTouchedAt: map[string]time.Time{"gaming": now.Add(-24 * time.Hour)},
	}
	got := p.EffectiveWeights(now, 24*time.Hour)
	if got["gaming"] < 0.3999 || got["gaming"] > 0.4001 {
		t.Fatalf("gaming after one half-life: got=%v want=0.4", got["gaming"])
	}
	if got["music"] != 0.4 {
		t.Fatalf("untouched topic should not decay: got=%v", got["music"])
	}
	if p.TopicWeights["gaming"] != 0.8 {
		t.Fatalf("stored weight mutated: %v", p.TopicWeights["gaming"])
	}
	if off := p.EffectiveWeights(now, 0); off["gaming"] != 0.8 {
		t.Fatalf("zero half-life should disable decay: got=%v", off["gaming"])
	}
}

func TestDecodeReadsLegacyFlatMap(t *testing.T) {
	p := Decode([]byte(`{"gaming":0.4,"fps":0.2}`))
	if p.TopicWeights["gaming"] != 0.4 || p.TopicWeights["fps"] != 0.2 {
		t.Fatalf("legacy decode: got=%v", p.TopicWeights)
	}
	p = Decode([]byte(`{"likedTopics":["x"],"interactionCount":3}`))
	if p.InteractionCount != 3 || len(p.LikedTopics) != 1 {
		t.Fatalf("decode: got=%+v", p)
	}
	if p := Decode(nil); p.InteractionCount != 0 || p.TopicWeights != nil {
		t.Fatalf("nil decode: got=%+v", p)
	}
}
