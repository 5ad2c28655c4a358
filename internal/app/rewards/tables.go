package rewards

import "github.com/navigate-learning/navigate/internal/domain"

// ─── Point Values ───────────────────────────────────────────────────────────

// PointTable holds the base values and bonuses used by Award.
// Loaded from the [rewards.points] section of config.toml.
type PointTable struct {
	Lesson           int64 `toml:"lesson"`
	LessonSameDay    int64 `toml:"lesson_same_day_bonus"`
	Quiz             int64 `toml:"quiz"`
	QuizHighScore    int64 `toml:"quiz_high_score_bonus"`
	Video            int64 `toml:"video"`
	VideoNoSkip      int64 `toml:"video_no_skip_bonus"`
	DailyLogin       int64 `toml:"daily_login"`
	WeeklyStreak     int64 `toml:"weekly_streak_bonus"`
	ChallengeDefault int64 `toml:"challenge_default"`
	ChallengeMax     int64 `toml:"challenge_max"`
}

// DefaultPoints returns the canonical point table.
func DefaultPoints() PointTable {
	return PointTable{
		Lesson:           50,
		LessonSameDay:    10,
		Quiz:             30,
		QuizHighScore:    10,
		Video:            20,
		VideoNoSkip:      5,
		DailyLogin:       5,
		WeeklyStreak:     50,
		ChallengeDefault: 100,
		ChallengeMax:     1000,
	}
}

// Base returns the nominal value for an activity type.
func (p PointTable) Base(t domain.ActivityType) int64 {
	switch t {
	case domain.ActivityLesson:
		return p.Lesson
	case domain.ActivityQuiz:
		return p.Quiz
	case domain.ActivityVideo:
		return p.Video
	case domain.ActivityLogin:
		return p.DailyLogin
	case domain.ActivityChallenge:
		return p.ChallengeDefault
	}
	return 0
}

// ChallengeCap is the largest accepted challenge override. A table without
// a positive maximum caps overrides at the default value.
func (p PointTable) ChallengeCap() int64 {
	if p.ChallengeMax > 0 {
		return p.ChallengeMax
	}
	return p.ChallengeDefault
}

// Quiz scores are percentages.
const (
	MinScore = 0
	MaxScore = 100
)

// Score thresholds for quiz counters.
const (
	QuizPassScore = 70
	QuizHighScore = 80
)

// Streak and topic thresholds.
const (
	WeeklyStreakDays  = 7
	TopicSpreadPoints = 200
)

// Topic tags that flip milestone flags.
const (
	TagEarlyAncientComplete = "early_ancient_complete"
	TagMedievalMastery      = "medieval_mastery"
)

// ─── Tiers ──────────────────────────────────────────────────────────────────

// NoTier is reported below the first threshold.
var NoTier = domain.Tier{ID: "none", Threshold: 0, Label: "No Tier"}

// Tiers returns the ordered tier ladder.
func Tiers() []domain.Tier {
	return []domain.Tier{
		{ID: "tier1", Threshold: 100, Label: "Explorer"},
		{ID: "tier2", Threshold: 250, Label: "Apprentice Historian"},
		{ID: "tier3", Threshold: 500, Label: "Scholar"},
		{ID: "tier4", Threshold: 750, Label: "Strategist"},
		{ID: "tier5", Threshold: 1000, Label: "Master Historian"},
		{ID: "tier6", Threshold: 1500, Label: "Historian of Distinction"},
		{ID: "tier7", Threshold: 2000, Label: "Grand Historian"},
	}
}

// ─── Store ──────────────────────────────────────────────────────────────────

// Store returns the redeemable catalog.
func Store() []domain.StoreItem {
	return []domain.StoreItem{
		{ID: "badge_custom_100", Type: "badge", Name: "Custom Avatar Badge", Cost: 100},
		{ID: "bonus_video_250", Type: "video", Name: "Bonus Video (Unit 1)", Cost: 250,
			URL: "https://www.youtube.com/watch?v=Yocja_N5s1I"},
		{ID: "profile_theme_500", Type: "theme", Name: "Special Profile Theme", Cost: 500},
		{ID: "minigame_1000", Type: "game", Name: "Mini-Game Unlock", Cost: 1000,
			URL: "https://www.mission-us.org/games/spirit-of-a-nation/"},
		{ID: "exclusive_pack_2000", Type: "pack", Name: "Exclusive Content Pack", Cost: 2000},
	}
}

// FindItem looks up a store item by id.
func FindItem(catalog []domain.StoreItem, id string) (domain.StoreItem, bool) {
	for _, it := range catalog {
		if it.ID == id {
			return it, true
		}
	}
	return domain.StoreItem{}, false
}

// ─── Achievements ───────────────────────────────────────────────────────────

// AllAchievements returns the achievement catalog in unlock-check order.
func AllAchievements() []domain.AchievementDef {
	return []domain.AchievementDef{
		{
			ID: "starter_100", Name: "History Starter Certificate", Description: "Earn first 100 points",
			Rule: func(s *domain.RewardState) bool { return s.TotalPoints >= 100 },
		},
		{
			ID: "lesson_explorer", Name: "Lesson Explorer", Description: "Complete 5 lessons or videos",
			Rule: func(s *domain.RewardState) bool { return s.Counts.Lessons+s.Counts.Videos >= 5 },
		},
		{
			ID: "quiz_conqueror", Name: "Quiz Conqueror", Description: "Pass 3 quizzes (70%+)",
			Rule: func(s *domain.RewardState) bool { return s.Counts.QuizzesPassed70 >= 3 },
		},
		{
			ID: "rising_historian_250", Name: "Rising Historian", Description: "Reach 250 points",
			Rule: func(s *domain.RewardState) bool { return s.TotalPoints >= 250 },
		},
		{
			ID: "us_foundations_500", Name: "US History Foundations", Description: "Earn 500 points in US content",
			Rule: func(s *domain.RewardState) bool { return s.TopicPoints.US >= 500 },
		},
		{
			ID: "world_foundations", Name: "World History Foundations Certificate",
			Description: "Complete early civilizations & ancient history content",
			Rule:        func(s *domain.RewardState) bool { return s.TopicFlags.WorldEarlyAncient },
		},
		{
			ID: "eu_foundations", Name: "European History Foundations",
			Description: "Master Medieval & early European topics",
			Rule:        func(s *domain.RewardState) bool { return s.TopicFlags.EUMedievalMastery },
		},
		{
			ID: "critical_thinker", Name: "Critical Thinker", Description: "Score 80%+ on 5 quizzes",
			Rule: func(s *domain.RewardState) bool { return s.Counts.Quizzes80 >= 5 },
		},
		{
			ID: "consistency_champion", Name: "Consistency Champion", Description: "Maintain a 7-day learning streak",
			Rule: func(s *domain.RewardState) bool { return s.Streak.Current >= WeeklyStreakDays },
		},
		{
			ID: "certified_historian", Name: "Certified Historian", Description: "1,500 total points",
			Rule: func(s *domain.RewardState) bool { return s.TotalPoints >= 1500 },
		},
		{
			ID: "history_honors", Name: "History Honors", Description: "High quiz scores + lessons across topics",
			Rule: func(s *domain.RewardState) bool {
				return s.Counts.Quizzes80 >= 10 && s.Counts.Lessons >= 10 && s.TopicSpread >= 2
			},
		},
		{
			ID: "academic_excellence", Name: "Academic Excellence in History",
			Description: "Consistent high performance across units",
			Rule: func(s *domain.RewardState) bool {
				return s.Counts.Quizzes80 >= 15 && s.Counts.Lessons >= 20
			},
		},
	}
}

// FindAchievement looks up an achievement definition by id.
func FindAchievement(defs []domain.AchievementDef, id string) (domain.AchievementDef, bool) {
	for _, d := range defs {
		if d.ID == id {
			return d, true
		}
	}
	return domain.AchievementDef{}, false
}
