// Package prioritizer learns from the user's past responses to tune future
// notifications: priority nudging, suppression, channel selection and
// optimal delivery time.
package prioritizer

import (
	"strings"
	"sync"
	"time"

	"remindd/internal/notification"
	"remindd/pkg/logx"
)

// Interaction is one recorded observation of how the user responded to a
// past notification. The history is append-only and bounded.
type Interaction struct {
	Type     notification.Type     `json:"type"`
	Priority notification.Priority `json:"priority"`
	Hour     int                   `json:"hour"`         // 0-23
	Weekday  int                   `json:"weekday"`      // 0=Monday .. 6=Sunday
	Response float64               `json:"response_sec"` // latency in seconds
	Action   string                `json:"action"`       // acted|read|dismissed|ignored
	Score    float64               `json:"engagement"`   // [0,1]
	Tags     []string              `json:"tags,omitempty"`
	Source   string                `json:"source,omitempty"` // task|calendar|conversation|system
}

// Score is the derived priority assessment; it is never stored.
type Score struct {
	Base       notification.Priority
	Adjusted   notification.Priority
	Confidence float64

	TimeFactor    float64
	PatternFactor float64
	UrgencyFactor float64
	ContextFactor float64
}

// Combined folds the four factors with the fixed weights.
func (s Score) Combined() float64 {
	return s.TimeFactor*weightTime + s.PatternFactor*weightPattern +
		s.UrgencyFactor*weightUrgency + s.ContextFactor*weightContext
}

const (
	weightTime    = 0.2
	weightPattern = 0.3
	weightUrgency = 0.3
	weightContext = 0.2
)

const (
	maxHistory            = 1000
	confidenceSamples     = 100
	similarityThreshold   = 4
	minSimilarForSuppress = 5
	suppressIgnoreRate    = 0.8
)

// Service owns the interaction history and learned preference tables.
// RecordInteraction may be called from the delivery-result path while the
// scheduler is calculating scores; a single mutex serializes both.
type Service struct {
	mu sync.Mutex

	log logx.Logger

	history   []Interaction
	hourPrefs map[int]float64               // hour -> avg engagement
	typePrefs map[notification.Type]float64 // type -> avg engagement
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:       log,
		hourPrefs: map[int]float64{},
		typePrefs: map[notification.Type]float64{},
	}
}

// RecordInteraction appends a new sample and refreshes the learned tables.
func (s *Service) RecordInteraction(n notification.Notification, action string, responseSecs float64, now time.Time) {
	score := engagementScore(action, responseSecs)

	sample := Interaction{
		Type:     n.Type,
		Priority: n.Priority,
		Hour:     now.Hour(),
		Weekday:  mondayWeekday(now),
		Response: responseSecs,
		Action:   action,
		Score:    score,
		Tags:     append([]string(nil), n.Tags...),
		Source:   n.SourceKind(),
	}

	s.mu.Lock()
	s.history = append(s.history, sample)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	s.relearnLocked()
	s.mu.Unlock()

	s.log.Debug("interaction recorded",
		logx.String("action", action),
		logx.String("type", string(n.Type)),
		logx.Float64("engagement", score))
}

// Calculate computes the priority score for a notification at `now`.
// The adjusted priority never moves more than one level from the base.
func (s *Service) Calculate(n notification.Notification, now time.Time) Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calculateLocked(n, now)
}

func (s *Service) calculateLocked(n notification.Notification, now time.Time) Score {
	sc := Score{
		Base:          n.Priority,
		TimeFactor:    s.timeFactorLocked(now.Hour(), mondayWeekday(now)),
		PatternFactor: s.patternFactorLocked(n, now),
		UrgencyFactor: urgencyFactor(n),
		ContextFactor: contextFactor(n),
		Confidence:    confidence(len(s.history)),
	}

	// Map the combined [0,1] score onto a -1/0/+1 level shift.
	shift := int(sc.Combined()*2 - 1)
	level := n.Priority.Level() + shift
	if level < 1 {
		level = 1
	}
	if level > 5 {
		level = 5
	}
	sc.Adjusted = notification.PriorityFromLevel(level)
	return sc
}

// ShouldSuppress decides whether to drop the notification instead of
// delivering it. The reason is returned for logging; suppression is a
// deliberate decision, not a failure.
func (s *Service) ShouldSuppress(n notification.Notification, now time.Time) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc := s.calculateLocked(n, now)
	if sc.Adjusted == notification.PriorityLow && sc.Confidence > 0.7 && sc.PatternFactor < 0.3 {
		return true, "low engagement pattern detected"
	}

	similar := s.similarLocked(n, now.Hour(), mondayWeekday(now))
	if len(similar) >= minSimilarForSuppress {
		ignored := 0
		for _, p := range similar {
			if p.Action == "ignored" {
				ignored++
			}
		}
		rate := float64(ignored) / float64(len(similar))
		if rate > suppressIgnoreRate {
			return true, "high ignore rate for similar notifications"
		}
	}
	return false, ""
}

// PreferredChannels picks delivery channels from the adjusted priority.
func (s *Service) PreferredChannels(n notification.Notification, now time.Time) []notification.Channel {
	sc := s.Calculate(n, now)
	switch sc.Adjusted {
	case notification.PriorityUrgent, notification.PriorityCritical:
		return []notification.Channel{notification.ChannelDesktop, notification.ChannelMobilePush, notification.ChannelInApp}
	case notification.PriorityHigh:
		return []notification.Channel{notification.ChannelDesktop, notification.ChannelInApp}
	default:
		return []notification.Channel{notification.ChannelInApp}
	}
}

// OptimalDeliveryTime scans hourly candidates within the window and returns
// the one with the best learned time factor.
func (s *Service) OptimalDeliveryTime(now time.Time, withinHours int) time.Time {
	if withinHours <= 0 {
		withinHours = 24
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	best := now
	bestScore := -1.0
	for h := 0; h <= withinHours; h++ {
		cand := now.Add(time.Duration(h) * time.Hour)
		score := s.timeFactorLocked(cand.Hour(), mondayWeekday(cand))
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}
	return best
}

// LearningStats describes learning progress for dashboards.
type LearningStats struct {
	TotalInteractions int     `json:"total_interactions"`
	HourPrefsLearned  int     `json:"hour_prefs_learned"`
	TypePrefsLearned  int     `json:"type_prefs_learned"`
	Confidence        float64 `json:"confidence"`
}

func (s *Service) Stats() LearningStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LearningStats{
		TotalInteractions: len(s.history),
		HourPrefsLearned:  len(s.hourPrefs),
		TypePrefsLearned:  len(s.typePrefs),
		Confidence:        confidence(len(s.history)),
	}
}

// ---- factors ----

func (s *Service) timeFactorLocked(hour, weekday int) float64 {
	pref, ok := s.hourPrefs[hour]
	if !ok {
		pref = 0.5
	}
	if weekday >= 5 { // Saturday/Sunday
		return pref * 0.8
	}
	return pref
}

func (s *Service) patternFactorLocked(n notification.Notification, now time.Time) float64 {
	similar := s.similarLocked(n, now.Hour(), mondayWeekday(now))
	if len(similar) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, p := range similar {
		sum += p.Score
	}
	return sum / float64(len(similar))
}

var urgencyKeywords = map[string]float64{
	"urgent":      0.9,
	"asap":        0.9,
	"immediately": 0.9,
	"deadline":    0.8,
	"overdue":     1.0,
	"critical":    0.9,
	"important":   0.7,
	"reminder":    0.6,
}

var typeUrgency = map[notification.Type]float64{
	notification.TypeTaskOverdue:      1.0,
	notification.TypeDeadlineWarning:  0.9,
	notification.TypeMeetingReminder:  0.8,
	notification.TypeCalendarConflict: 0.8,
	notification.TypeTaskReminder:     0.6,
	notification.TypeSystemAlert:      0.4,
	notification.TypeIdeaSuggestion:   0.3,
}

func urgencyFactor(n notification.Notification) float64 {
	content := strings.ToLower(n.Title + " " + n.Message)
	maxUrgency := 0.0
	for kw, u := range urgencyKeywords {
		if strings.Contains(content, kw) && u > maxUrgency {
			maxUrgency = u
		}
	}
	tu, ok := typeUrgency[n.Type]
	if !ok {
		tu = 0.5
	}
	if tu > maxUrgency {
		return tu
	}
	return maxUrgency
}

var highValueTags = map[string]struct{}{
	"deadline": {}, "meeting": {}, "client": {}, "urgent": {}, "critical": {}, "project": {},
}

func contextFactor(n notification.Notification) float64 {
	score := 0.5
	for _, tag := range n.Tags {
		if _, ok := highValueTags[tag]; ok {
			score += 0.1
		}
	}
	if n.SourceTaskID != "" {
		score += 0.1
	}
	if n.SourceEventID != "" {
		score += 0.15
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// similarLocked scores history entries against the notification: type match
// is required and worth 3, hour within ±2 worth 2, same weekday 1, any tag
// overlap 1; entries scoring >=4 count as similar.
func (s *Service) similarLocked(n notification.Notification, hour, weekday int) []Interaction {
	var out []Interaction
	for _, p := range s.history {
		if p.Type != n.Type {
			continue
		}
		score := 3
		if diff := p.Hour - hour; diff >= -2 && diff <= 2 {
			score += 2
		}
		if p.Weekday == weekday {
			score++
		}
		if tagOverlap(p.Tags, n.Tags) {
			score++
		}
		if score >= similarityThreshold {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) relearnLocked() {
	hourSum := map[int]float64{}
	hourN := map[int]int{}
	typeSum := map[notification.Type]float64{}
	typeN := map[notification.Type]int{}

	for _, p := range s.history {
		hourSum[p.Hour] += p.Score
		hourN[p.Hour]++
		typeSum[p.Type] += p.Score
		typeN[p.Type]++
	}

	s.hourPrefs = make(map[int]float64, len(hourSum))
	for h, sum := range hourSum {
		s.hourPrefs[h] = sum / float64(hourN[h])
	}
	s.typePrefs = make(map[notification.Type]float64, len(typeSum))
	for ty, sum := range typeSum {
		s.typePrefs[ty] = sum / float64(typeN[ty])
	}
}

// engagementScore maps the action to a base value and applies the response
// latency bonus/penalty, clamped to [0,1].
func engagementScore(action string, responseSecs float64) float64 {
	var base float64
	switch action {
	case "acted":
		base = 1.0
	case "read":
		base = 0.7
	case "dismissed":
		base = 0.3
	case "ignored":
		base = 0.0
	}

	if responseSecs > 0 {
		switch {
		case responseSecs < 60:
			base += 0.2
		case responseSecs < 300:
			base += 0.1
		case responseSecs < 3600:
			// no adjustment
		default:
			base -= 0.1
		}
		if base < 0 {
			base = 0
		}
		if base > 1 {
			base = 1
		}
	}
	return base
}

func confidence(samples int) float64 {
	c := float64(samples) / confidenceSamples
	if c > 1 {
		return 1
	}
	return c
}

// mondayWeekday maps time.Weekday onto 0=Monday .. 6=Sunday, the encoding
// the learned tables and persisted history use.
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func tagOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
