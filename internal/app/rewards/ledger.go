package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/navigate-learning/navigate/internal/domain"
	"github.com/navigate-learning/navigate/internal/infra/metrics"
)

// Ledger is the rewards service. It loads a user's state from the store,
// applies Award or Redeem, saves it back and publishes the change.
// Load-mutate-save is serialized per user.
type Ledger struct {
	store domain.RewardStore
	rules Rules
	loc   *time.Location
	now   func() time.Time
	bus   *Bus
	locks keyedMutex
}

// NewLedger creates a ledger over store. A nil loc means UTC.
func NewLedger(store domain.RewardStore, rules Rules, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{
		store: store,
		rules: rules,
		loc:   loc,
		now:   time.Now,
		bus:   NewBus(DefaultBusBuffer),
		locks: keyedMutex{locks: make(map[string]*refLock)},
	}
}

// SetClock overrides the time source used to compute "today".
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// Bus returns the update bus for subscribers.
func (l *Ledger) Bus() *Bus { return l.bus }

// Rules returns the tables this ledger runs against.
func (l *Ledger) Rules() Rules { return l.rules }

// Location returns the timezone calendar dates are computed in.
func (l *Ledger) Location() *time.Location { return l.loc }

// Today returns the current calendar date in the ledger timezone.
func (l *Ledger) Today() string {
	return l.now().In(l.loc).Format(domain.DateLayout)
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// State returns the user's ledger, or the zero state for a new user.
func (l *Ledger) State(ctx context.Context, userID string) (*domain.RewardState, error) {
	return l.load(ctx, userID)
}

// Summary is the read model behind GET /api/rewards and `navigate status`.
type Summary struct {
	UserID       string                  `json:"user_id"`
	State        *domain.RewardState     `json:"state"`
	Available    int64                   `json:"available"`
	Tier         domain.TierInfo         `json:"tier"`
	Achievements []domain.AchievementDef `json:"achievements"`
}

// Summary derives the display values for a user from the stored state.
func (l *Ledger) Summary(ctx context.Context, userID string) (*Summary, error) {
	st, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		UserID:       userID,
		State:        st,
		Available:    st.Available(),
		Tier:         l.rules.TierFor(st.TotalPoints),
		Achievements: make([]domain.AchievementDef, 0, len(st.Achievements)),
	}
	for _, id := range st.Achievements {
		if def, ok := FindAchievement(l.rules.Achievements, id); ok {
			sum.Achievements = append(sum.Achievements, def)
		}
	}
	return sum, nil
}

// History returns the newest limit activity records, newest first.
// limit <= 0 returns the full history.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]domain.ActivityRecord, error) {
	st, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return st.Recent(limit), nil
}

// Users lists every user that has a stored ledger.
func (l *Ledger) Users(ctx context.Context) ([]string, error) {
	return l.store.ListRewardUsers(ctx)
}

// ─── Mutations ──────────────────────────────────────────────────────────────

// Award grants points for one activity. Metadata outside the accepted
// ranges returns ErrInvalidInput and leaves the ledger untouched.
func (l *Ledger) Award(ctx context.Context, userID string, typ domain.ActivityType, base int64, meta domain.ActivityMeta) (*domain.AwardOutcome, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownActivity, typ)
	}
	if err := l.rules.CheckMeta(meta); err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(userID)
	defer unlock()

	st, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	before := l.rules.TierFor(st.TotalPoints)
	points, unlocked := l.rules.Award(st, l.Today(), typ, base, meta)
	after := l.rules.TierFor(st.TotalPoints)

	if err := l.save(ctx, userID, st); err != nil {
		return nil, err
	}

	metrics.PointsAwarded.WithLabelValues(string(typ)).Add(float64(points))
	for _, id := range unlocked {
		metrics.AchievementsUnlocked.WithLabelValues(id).Inc()
		log.WithFields(log.Fields{"user": userID, "achievement": id}).Info("rewards: achievement unlocked")
	}

	l.bus.Publish(domain.RewardUpdate{
		UserID:          userID,
		Kind:            domain.UpdateAward,
		Activity:        typ,
		Points:          points,
		TotalPoints:     st.TotalPoints,
		Available:       st.Available(),
		NewAchievements: unlocked,
		At:              l.now(),
	})

	return &domain.AwardOutcome{
		Points:          points,
		NewAchievements: unlocked,
		TierChanged:     before.Current.ID != after.Current.ID,
		Tier:            after,
	}, nil
}

// Record maps a domain event onto an award with the table's base value.
// Unknown events return ErrUnknownEvent and leave the ledger untouched.
func (l *Ledger) Record(ctx context.Context, userID string, event domain.RewardEventType, meta domain.ActivityMeta) (*domain.AwardOutcome, error) {
	typ, ok := EventActivity(event)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, event)
	}
	return l.Award(ctx, userID, typ, l.rules.Points.Base(typ), meta)
}

// EventActivity returns the activity type an event awards.
func EventActivity(event domain.RewardEventType) (domain.ActivityType, bool) {
	switch event {
	case domain.EventLessonCompleted:
		return domain.ActivityLesson, true
	case domain.EventQuizCompleted:
		return domain.ActivityQuiz, true
	case domain.EventVideoWatched:
		return domain.ActivityVideo, true
	case domain.EventDailyLogin:
		return domain.ActivityLogin, true
	case domain.EventChallengeCompleted:
		return domain.ActivityChallenge, true
	}
	return "", false
}

// Redeem spends points on a store item. Failures are reported in the result;
// the error is reserved for storage problems.
func (l *Ledger) Redeem(ctx context.Context, userID, itemID string) (domain.RedeemResult, error) {
	unlock := l.locks.Lock(userID)
	defer unlock()

	st, err := l.load(ctx, userID)
	if err != nil {
		return domain.RedeemResult{}, err
	}

	res := l.rules.Redeem(st, itemID)
	if !res.OK {
		metrics.Redemptions.WithLabelValues(string(res.Reason)).Inc()
		return res, nil
	}

	if err := l.save(ctx, userID, st); err != nil {
		return domain.RedeemResult{}, err
	}
	metrics.Redemptions.WithLabelValues("ok").Inc()

	log.WithFields(log.Fields{
		"user": userID,
		"item": itemID,
		"cost": res.Item.Cost,
	}).Info("rewards: item redeemed")

	l.bus.Publish(domain.RewardUpdate{
		UserID:      userID,
		Kind:        domain.UpdateRedeem,
		Points:      -res.Item.Cost,
		TotalPoints: st.TotalPoints,
		Available:   st.Available(),
		ItemID:      itemID,
		At:          l.now(),
	})
	return res, nil
}

// Reset overwrites a user's ledger with the zero state.
func (l *Ledger) Reset(ctx context.Context, userID string) error {
	unlock := l.locks.Lock(userID)
	defer unlock()

	if err := l.save(ctx, userID, domain.NewRewardState()); err != nil {
		return err
	}
	log.WithField("user", userID).Warn("rewards: ledger reset")

	l.bus.Publish(domain.RewardUpdate{
		UserID: userID,
		Kind:   domain.UpdateReset,
		At:     l.now(),
	})
	return nil
}

// ─── Persistence ────────────────────────────────────────────────────────────

// load decodes the stored blob. A corrupt blob is replaced by the zero state.
func (l *Ledger) load(ctx context.Context, userID string) (*domain.RewardState, error) {
	blob, err := l.store.LoadRewards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load rewards: %w", err)
	}
	st := domain.NewRewardState()
	if len(blob) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(blob, st); err != nil {
		log.WithFields(log.Fields{"user": userID, "error": err}).Warn("rewards: corrupt ledger, starting fresh")
		return domain.NewRewardState(), nil
	}
	normalize(st)
	return st, nil
}

func (l *Ledger) save(ctx context.Context, userID string, st *domain.RewardState) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode rewards: %w", err)
	}
	if err := l.store.SaveRewards(ctx, userID, blob); err != nil {
		return fmt.Errorf("save rewards: %w", err)
	}
	return nil
}

// normalize replaces null collections from older blobs with empty ones.
func normalize(st *domain.RewardState) {
	if st.ActivityHistory == nil {
		st.ActivityHistory = []domain.ActivityRecord{}
	}
	if st.Achievements == nil {
		st.Achievements = []string{}
	}
	if st.Inventory == nil {
		st.Inventory = []string{}
	}
}

// ─── Per-user locks ─────────────────────────────────────────────────────────

type refLock struct {
	sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	rl, ok := k.locks[key]
	if !ok {
		rl = &refLock{}
		k.locks[key] = rl
	}
	rl.refs++
	k.mu.Unlock()

	rl.Lock()
	return func() {
		rl.Unlock()
		k.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
