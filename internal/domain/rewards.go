// Package domain holds the core types shared by every Navigate layer.
// The rewards types describe one learner's points ledger: counters, streak,
// the append-only activity log, unlocked achievements and owned store items.
package domain

import "time"

// DateLayout is the calendar-date format used for streak and history dates.
const DateLayout = "2006-01-02"

// ─── Activities ─────────────────────────────────────────────────────────────

// ActivityType is the kind of learning event that earns points.
type ActivityType string

const (
	ActivityLesson    ActivityType = "lesson"
	ActivityQuiz      ActivityType = "quiz"
	ActivityVideo     ActivityType = "video"
	ActivityLogin     ActivityType = "login"
	ActivityChallenge ActivityType = "challenge"
)

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityLesson, ActivityQuiz, ActivityVideo, ActivityLogin, ActivityChallenge:
		return true
	}
	return false
}

// RewardEventType names the domain events that other modules raise.
type RewardEventType string

const (
	EventLessonCompleted    RewardEventType = "lesson_completed"
	EventQuizCompleted      RewardEventType = "quiz_completed"
	EventVideoWatched       RewardEventType = "video_watched"
	EventDailyLogin         RewardEventType = "daily_login"
	EventChallengeCompleted RewardEventType = "challenge_completed"
)

// ActivityMeta is the open record attached to an award.
// Zero values mean "not supplied".
type ActivityMeta struct {
	Score       *int   `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	NoSkip      bool   `json:"noSkip,omitempty"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	Topic       string `json:"topic,omitempty"` // us | world | eu
	Tag         string `json:"tag,omitempty"`
	Points      int64  `json:"points,omitempty" validate:"min=0"` // challenge override
}

// ScoreValue returns the quiz score, or 0 when none was given.
func (m ActivityMeta) ScoreValue() int {
	if m.Score == nil {
		return 0
	}
	return *m.Score
}

// ActivityRecord is one entry of the append-only activity history.
type ActivityRecord struct {
	Type   ActivityType `json:"type"`
	Date   string       `json:"date"`
	Points int64        `json:"points"`
	Meta   ActivityMeta `json:"meta"`
}

// ─── Reward State ───────────────────────────────────────────────────────────

// RewardCounts are monotonically increasing activity counters.
type RewardCounts struct {
	Lessons         int `json:"lessons"`
	Quizzes         int `json:"quizzes"`
	Quizzes80       int `json:"quizzes80"`
	QuizzesPassed70 int `json:"quizzesPassed70"`
	Videos          int `json:"videos"`
}

// RewardStreak tracks consecutive calendar days with activity.
type RewardStreak struct {
	Current             int     `json:"current"`
	LastActiveDate      *string `json:"lastActiveDate"`
	LastWeeklyBonusDate *string `json:"lastWeeklyBonusDate"`
}

// TopicPoints accumulates points per history subject.
type TopicPoints struct {
	US    int64 `json:"us"`
	World int64 `json:"world"`
	EU    int64 `json:"eu"`
}

// TopicFlags mark milestone content completions.
type TopicFlags struct {
	WorldEarlyAncient bool `json:"worldEarlyAncient"`
	EUMedievalMastery bool `json:"euMedievalMastery"`
}

// RewardState is the complete persisted ledger for one user.
// Every display value (tier, available points) is derived from it.
type RewardState struct {
	TotalPoints     int64            `json:"totalPoints"`
	SpentPoints     int64            `json:"spentPoints"`
	Counts          RewardCounts     `json:"counts"`
	Streak          RewardStreak     `json:"streak"`
	LastLessonDate  *string          `json:"lastLessonDate"`
	ActivityHistory []ActivityRecord `json:"activityHistory"`
	Achievements    []string         `json:"achievements"`
	Inventory       []string         `json:"inventory"`
	TopicPoints     TopicPoints      `json:"topicPoints"`
	TopicFlags      TopicFlags       `json:"topicFlags"`
	TopicSpread     int              `json:"topicSpread"`
}

// NewRewardState returns the zero ledger used for first-time users.
func NewRewardState() *RewardState {
	return &RewardState{
		ActivityHistory: []ActivityRecord{},
		Achievements:    []string{},
		Inventory:       []string{},
	}
}

// Available returns spendable points, floored at zero.
func (s *RewardState) Available() int64 {
	if avail := s.TotalPoints - s.SpentPoints; avail > 0 {
		return avail
	}
	return 0
}

// HasAchievement reports whether id was already unlocked.
func (s *RewardState) HasAchievement(id string) bool {
	return contains(s.Achievements, id)
}

// Owns reports whether the item id is in the inventory.
func (s *RewardState) Owns(itemID string) bool {
	return contains(s.Inventory, itemID)
}

// HistorySum adds up the points of every history entry.
func (s *RewardState) HistorySum() int64 {
	var sum int64
	for _, r := range s.ActivityHistory {
		sum += r.Points
	}
	return sum
}

// Recent returns up to limit history entries, newest first.
func (s *RewardState) Recent(limit int) []ActivityRecord {
	n := len(s.ActivityHistory)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]ActivityRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.ActivityHistory[i])
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// ─── Tiers, Store, Achievements ─────────────────────────────────────────────

// Tier is a named milestone unlocked at a cumulative point threshold.
type Tier struct {
	ID        string `json:"id"`
	Threshold int64  `json:"threshold"`
	Label     string `json:"label"`
}

// TierInfo describes where a point total sits on the tier ladder.
type TierInfo struct {
	Current  Tier    `json:"current"`
	Next     *Tier   `json:"next,omitempty"`
	Progress float64 `json:"progress"` // 0–100
}

// StoreItem is a redeemable catalog entry.
type StoreItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
	Cost int64  `json:"cost"`
	URL  string `json:"url,omitempty"`
}

// AchievementDef is a one-way unlockable rule over the ledger state.
type AchievementDef struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Rule        func(*RewardState) bool `json:"-"`
}

// ─── Redeem Result ──────────────────────────────────────────────────────────

// RedeemReason categorizes a failed redemption.
type RedeemReason string

const (
	RedeemNotFound           RedeemReason = "not_found"
	RedeemInsufficientPoints RedeemReason = "insufficient_points"
	RedeemAlreadyOwned       RedeemReason = "already_owned"
)

// RedeemResult is the typed outcome of a redemption attempt.
type RedeemResult struct {
	OK     bool         `json:"ok"`
	Reason RedeemReason `json:"reason,omitempty"`
	Item   *StoreItem   `json:"item,omitempty"`
}

// ─── Award Outcome & Events ─────────────────────────────────────────────────

// AwardOutcome reports what a single award did to the ledger.
type AwardOutcome struct {
	Points          int64    `json:"points"`
	NewAchievements []string `json:"new_achievements,omitempty"`
	TierChanged     bool     `json:"tier_changed"`
	Tier            TierInfo `json:"tier"`
}

// RewardUpdateKind tells listeners which mutation happened.
type RewardUpdateKind string

const (
	UpdateAward  RewardUpdateKind = "award"
	UpdateRedeem RewardUpdateKind = "redeem"
	UpdateReset  RewardUpdateKind = "reset"
)

// RewardUpdate is published after every ledger mutation.
type RewardUpdate struct {
	UserID          string           `json:"user_id"`
	Kind            RewardUpdateKind `json:"kind"`
	Activity        ActivityType     `json:"activity,omitempty"`
	Points          int64            `json:"points"`
	TotalPoints     int64            `json:"total_points"`
	Available       int64            `json:"available"`
	NewAchievements []string         `json:"new_achievements,omitempty"`
	ItemID          string           `json:"item_id,omitempty"`
	At              time.Time        `json:"at"`
}
