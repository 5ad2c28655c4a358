package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/navigate-learning/navigate/internal/app/rewards"
	"github.com/navigate-learning/navigate/internal/domain"
)

func init() {
	awardCmd.Flags().IntVar(&awardScore, "score", -1, "Quiz score (0-100)")
	awardCmd.Flags().BoolVar(&awardNoSkip, "no-skip", false, "Video watched without skipping")
	awardCmd.Flags().StringVar(&awardTopic, "topic", "", "History topic: us, world or eu")
	awardCmd.Flags().StringVar(&awardTag, "tag", "", "Content tag")
	awardCmd.Flags().Int64Var(&awardPoints, "points", 0, "Challenge point override (up to rewards.points.challenge_max)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of records to show (0 = all)")

	rootCmd.AddCommand(awardCmd, redeemCmd, statusCmd, historyCmd, storeCmd, tiersCmd, resetCmd)
}

var (
	awardScore   int
	awardNoSkip  bool
	awardTopic   string
	awardTag     string
	awardPoints  int64
	historyLimit int
)

// ─── award ──────────────────────────────────────────────────────────────────

var awardCmd = &cobra.Command{
	Use:   "award USER TYPE",
	Short: "Award points for an activity (lesson, quiz, video, login, challenge)",
	Args:  cobra.ExactArgs(2),
	RunE:  runAward,
}

func runAward(cmd *cobra.Command, args []string) error {
	typ := domain.ActivityType(strings.ToLower(args[1]))
	if !typ.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownActivity, args[1])
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	userID, err := resolveUser(ctx, d, args[0])
	if err != nil {
		return err
	}

	meta := domain.ActivityMeta{
		NoSkip: awardNoSkip,
		Topic:  awardTopic,
		Tag:    awardTag,
		Points: awardPoints,
	}
	if awardScore >= 0 {
		score := awardScore
		meta.Score = &score
	}

	out, err := d.Ledger.Award(ctx, userID, typ, d.Ledger.Rules().Points.Base(typ), meta)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "+%d points (%s)\n", out.Points, typ)
	for _, id := range out.NewAchievements {
		if def, ok := rewards.FindAchievement(d.Ledger.Rules().Achievements, id); ok {
			fmt.Fprintf(w, "Achievement unlocked: %s\n", def.Name)
		}
	}
	if out.TierChanged {
		fmt.Fprintf(w, "New tier: %s\n", out.Tier.Current.Label)
	}
	return nil
}

// ─── redeem ─────────────────────────────────────────────────────────────────

var redeemCmd = &cobra.Command{
	Use:   "redeem USER ITEM",
	Short: "Spend points on a store item",
	Args:  cobra.ExactArgs(2),
	RunE:  runRedeem,
}

func runRedeem(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	userID, err := resolveUser(ctx, d, args[0])
	if err != nil {
		return err
	}

	res, err := d.Ledger.Redeem(ctx, userID, args[1])
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("redeem %s: %s", args[1], res.Reason)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Redeemed %s for %d points\n", res.Item.Name, res.Item.Cost)
	return nil
}

// ─── status ─────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status USER",
	Short: "Show points, tier, streak and achievements",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	userID, err := resolveUser(ctx, d, args[0])
	if err != nil {
		return err
	}
	sum, err := d.Ledger.Summary(ctx, userID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "User:\t%s\n", userID)
	fmt.Fprintf(w, "Total points:\t%d\n", sum.State.TotalPoints)
	fmt.Fprintf(w, "Available:\t%d\n", sum.Available)
	tier := sum.Tier.Current.Label
	if sum.Tier.Next != nil {
		tier = fmt.Sprintf("%s (%.0f%% to %s)", tier, sum.Tier.Progress, sum.Tier.Next.Label)
	}
	fmt.Fprintf(w, "Tier:\t%s\n", tier)
	fmt.Fprintf(w, "Streak:\t%d day(s)\n", sum.State.Streak.Current)
	if len(sum.State.Inventory) > 0 {
		fmt.Fprintf(w, "Inventory:\t%s\n", strings.Join(sum.State.Inventory, ", "))
	}
	names := make([]string, 0, len(sum.Achievements))
	for _, a := range sum.Achievements {
		names = append(names, a.Name)
	}
	if len(names) > 0 {
		fmt.Fprintf(w, "Achievements:\t%s\n", strings.Join(names, ", "))
	}
	return w.Flush()
}

// ─── history ────────────────────────────────────────────────────────────────

var historyCmd = &cobra.Command{
	Use:   "history USER",
	Short: "Show recent activity, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	userID, err := resolveUser(ctx, d, args[0])
	if err != nil {
		return err
	}
	records, err := d.Ledger.History(ctx, userID, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No activity yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTYPE\tPOINTS\tDETAIL")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%+d\t%s\n", r.Date, r.Type, r.Points, describeMeta(r.Meta))
	}
	return w.Flush()
}

func describeMeta(m domain.ActivityMeta) string {
	var parts []string
	if m.Score != nil {
		parts = append(parts, fmt.Sprintf("score=%d", *m.Score))
	}
	if m.NoSkip {
		parts = append(parts, "no-skip")
	}
	if m.Topic != "" {
		parts = append(parts, "topic="+m.Topic)
	}
	if m.Tag != "" {
		parts = append(parts, "tag="+m.Tag)
	}
	return strings.Join(parts, " ")
}

// ─── catalogs ───────────────────────────────────────────────────────────────

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "List redeemable store items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tNAME\tCOST")
		for _, it := range rewards.Store() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", it.ID, it.Type, it.Name, it.Cost)
		}
		return w.Flush()
	},
}

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "List tier thresholds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tTHRESHOLD")
		for _, t := range rewards.Tiers() {
			fmt.Fprintf(w, "%s\t%s\t%d\n", t.ID, t.Label, t.Threshold)
		}
		return w.Flush()
	},
}

// ─── reset ──────────────────────────────────────────────────────────────────

var resetCmd = &cobra.Command{
	Use:   "reset USER",
	Short: "Reset a user's ledger to zero",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	userID, err := resolveUser(ctx, d, args[0])
	if err != nil {
		return err
	}
	if err := d.Ledger.Reset(ctx, userID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ledger for %s reset.\n", userID)
	return nil
}
