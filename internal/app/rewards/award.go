// Package rewards implements the Navigate points ledger.
// Learning activity earns points, keeps a daily streak alive, climbs the
// tier ladder and unlocks achievements; points are spent in the store.
//
// Award, Redeem and TierFor are pure functions over a domain.RewardState.
// Ledger wraps them with persistence, per-user locking and change events.
package rewards

import (
	"fmt"
	"math"
	"time"

	"github.com/navigate-learning/navigate/internal/domain"
)

// Rules bundles the tables the ledger arithmetic runs against.
type Rules struct {
	Points       PointTable
	Tiers        []domain.Tier
	Store        []domain.StoreItem
	Achievements []domain.AchievementDef
}

// DefaultRules returns the canonical Navigate tables.
func DefaultRules() Rules {
	return Rules{
		Points:       DefaultPoints(),
		Tiers:        Tiers(),
		Store:        Store(),
		Achievements: AllAchievements(),
	}
}

// ─── Award ──────────────────────────────────────────────────────────────────

// Award applies one activity to s and returns the points granted together
// with the ids of achievements it unlocked. today is a DateLayout date.
// Unknown activity types grant nothing and leave s untouched.
func (r Rules) Award(s *domain.RewardState, today string, typ domain.ActivityType, base int64, meta domain.ActivityMeta) (int64, []string) {
	if !typ.Valid() {
		return 0, nil
	}

	updateStreak(&s.Streak, today)

	points := max(base, 0)

	switch typ {
	case domain.ActivityLesson:
		if s.LastLessonDate != nil && *s.LastLessonDate == today {
			points = addPoints(points, r.Points.LessonSameDay)
		}
		s.LastLessonDate = datePtr(today)
		s.Counts.Lessons++

	case domain.ActivityQuiz:
		s.Counts.Quizzes++
		score := min(max(meta.ScoreValue(), MinScore), MaxScore)
		if score >= QuizPassScore {
			s.Counts.QuizzesPassed70++
		}
		if score >= QuizHighScore {
			s.Counts.Quizzes80++
			points = addPoints(points, r.Points.QuizHighScore)
		}

	case domain.ActivityVideo:
		s.Counts.Videos++
		if meta.NoSkip {
			points = addPoints(points, r.Points.VideoNoSkip)
		}

	case domain.ActivityChallenge:
		if meta.Points > 0 {
			points = min(meta.Points, r.Points.ChallengeCap())
		} else {
			points = r.Points.ChallengeDefault
		}

	case domain.ActivityLogin:
		if loggedInOn(s, today) {
			points = 0
		}
	}

	points = max(points, 0)

	if addTopicPoints(&s.TopicPoints, meta.Topic, points) {
		s.TopicSpread = topicSpread(s.TopicPoints)
	}

	if s.Streak.Current >= WeeklyStreakDays && weeklyBonusDue(s.Streak.LastWeeklyBonusDate, today) {
		points = addPoints(points, r.Points.WeeklyStreak)
		s.Streak.LastWeeklyBonusDate = datePtr(today)
	}

	if headroom := math.MaxInt64 - s.TotalPoints; points > headroom {
		points = headroom
	}
	s.TotalPoints += points
	s.ActivityHistory = append(s.ActivityHistory, domain.ActivityRecord{
		Type:   typ,
		Date:   today,
		Points: points,
		Meta:   meta,
	})

	switch {
	case meta.Topic == "world" && meta.Tag == TagEarlyAncientComplete:
		s.TopicFlags.WorldEarlyAncient = true
	case meta.Topic == "eu" && meta.Tag == TagMedievalMastery:
		s.TopicFlags.EUMedievalMastery = true
	}

	return points, r.unlockAchievements(s)
}

// CheckMeta rejects metadata outside the accepted ranges: quiz scores are
// 0-100 and a challenge override is between 0 and the table's cap.
func (r Rules) CheckMeta(meta domain.ActivityMeta) error {
	if meta.Score != nil && (*meta.Score < MinScore || *meta.Score > MaxScore) {
		return fmt.Errorf("%w: score %d outside %d-%d", domain.ErrInvalidInput, *meta.Score, MinScore, MaxScore)
	}
	if limit := r.Points.ChallengeCap(); meta.Points < 0 || meta.Points > limit {
		return fmt.Errorf("%w: challenge points %d outside 0-%d", domain.ErrInvalidInput, meta.Points, limit)
	}
	return nil
}

// unlockAchievements appends every newly satisfied rule. Nothing is removed.
func (r Rules) unlockAchievements(s *domain.RewardState) []string {
	var unlocked []string
	for _, def := range r.Achievements {
		if def.Rule == nil || s.HasAchievement(def.ID) {
			continue
		}
		if def.Rule(s) {
			s.Achievements = append(s.Achievements, def.ID)
			unlocked = append(unlocked, def.ID)
		}
	}
	return unlocked
}

// ─── Streak ─────────────────────────────────────────────────────────────────

// updateStreak extends, keeps or restarts the streak for an activity today.
// Same day: unchanged. Next day: +1. Any other gap: back to 1.
func updateStreak(st *domain.RewardStreak, today string) {
	if st.LastActiveDate == nil || *st.LastActiveDate == "" {
		st.Current = 1
	} else {
		gap, err := DaysBetween(*st.LastActiveDate, today)
		switch {
		case err != nil:
			st.Current = 1
		case gap == 0:
			if st.Current < 1 {
				st.Current = 1
			}
		case gap == 1:
			st.Current++
		default:
			st.Current = 1
		}
	}
	st.LastActiveDate = datePtr(today)
}

// weeklyBonusDue reports whether at least a week passed since the last bonus.
func weeklyBonusDue(last *string, today string) bool {
	if last == nil || *last == "" {
		return true
	}
	gap, err := DaysBetween(*last, today)
	if err != nil {
		return true
	}
	return gap >= WeeklyStreakDays
}

// DaysBetween returns the number of calendar days from a to b.
// Both are DateLayout dates; the result is negative when b precedes a.
func DaysBetween(a, b string) (int, error) {
	da, err := time.Parse(domain.DateLayout, a)
	if err != nil {
		return 0, err
	}
	db, err := time.Parse(domain.DateLayout, b)
	if err != nil {
		return 0, err
	}
	return int(math.Round(db.Sub(da).Hours() / 24)), nil
}

// StreakAlive reports whether a streak last extended on lastActive can still
// continue on today (activity today or yesterday).
func StreakAlive(st domain.RewardStreak, today string) bool {
	if st.LastActiveDate == nil || st.Current == 0 {
		return false
	}
	gap, err := DaysBetween(*st.LastActiveDate, today)
	if err != nil {
		return false
	}
	return gap == 0 || gap == 1
}

func loggedInOn(s *domain.RewardState, date string) bool {
	for _, h := range s.ActivityHistory {
		if h.Type == domain.ActivityLogin && h.Date == date {
			return true
		}
	}
	return false
}

func datePtr(d string) *string { return &d }

// ─── Topics ─────────────────────────────────────────────────────────────────

func addTopicPoints(tp *domain.TopicPoints, topic string, points int64) bool {
	switch topic {
	case "us":
		tp.US = addPoints(tp.US, points)
	case "world":
		tp.World = addPoints(tp.World, points)
	case "eu":
		tp.EU = addPoints(tp.EU, points)
	default:
		return false
	}
	return true
}

// addPoints adds two non-negative values, saturating at MaxInt64.
func addPoints(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

func topicSpread(tp domain.TopicPoints) int {
	n := 0
	for _, v := range []int64{tp.US, tp.World, tp.EU} {
		if v >= TopicSpreadPoints {
			n++
		}
	}
	return n
}

// ─── Redeem ─────────────────────────────────────────────────────────────────

// Redeem spends points on a store item. A failed redemption leaves s as is.
// Ownership is checked before the balance so a repeat reports already_owned.
func (r Rules) Redeem(s *domain.RewardState, itemID string) domain.RedeemResult {
	item, ok := FindItem(r.Store, itemID)
	if !ok {
		return domain.RedeemResult{Reason: domain.RedeemNotFound}
	}
	if s.Owns(itemID) {
		return domain.RedeemResult{Reason: domain.RedeemAlreadyOwned, Item: &item}
	}
	if s.Available() < item.Cost {
		return domain.RedeemResult{Reason: domain.RedeemInsufficientPoints, Item: &item}
	}

	s.SpentPoints += item.Cost
	s.Inventory = append(s.Inventory, item.ID)
	return domain.RedeemResult{OK: true, Item: &item}
}

// ─── Tiers ──────────────────────────────────────────────────────────────────

// TierFor places a point total on the tier ladder.
// Below the first threshold the current tier is NoTier; at the top there is
// no next tier and progress is 100.
func (r Rules) TierFor(total int64) domain.TierInfo {
	info := domain.TierInfo{Current: NoTier}
	for _, t := range r.Tiers {
		if t.Threshold <= total {
			info.Current = t
			continue
		}
		next := t
		info.Next = &next
		break
	}

	if info.Next == nil {
		info.Progress = 100
		return info
	}

	span := info.Next.Threshold - info.Current.Threshold
	if span <= 0 {
		info.Progress = 100
		return info
	}
	progress := float64(total-info.Current.Threshold) / float64(span) * 100.0
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	info.Progress = progress
	return info
}
