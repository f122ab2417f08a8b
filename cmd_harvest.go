package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	harvestSince   string
	harvestFrom    string
	harvestUntil   string
	harvestKeyword string
)

var harvestCmd = &cobra.Command{
	Use:   "harvest <contact>",
	Short: "Scroll a chat and save its history",
	Long: `Opens the chat, scrolls up to load older messages and saves every message
since --since (default: harvest.default_months back) to the history store.
When the store already holds messages for the chat only newer ones are
collected. --from, --until and --keyword filter the messages printed, not the
ones saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().StringVar(&harvestSince, "since", "", "oldest date to save (YYYY-MM-DD or DD/MM/YYYY)")
	harvestCmd.Flags().StringVar(&harvestFrom, "from", "", "only report messages on or after this date")
	harvestCmd.Flags().StringVar(&harvestUntil, "until", "", "only report messages on or before this date")
	harvestCmd.Flags().StringVar(&harvestKeyword, "keyword", "", "only report messages containing this text")
}

var flagDateLayouts = []string{"2006-01-02", dateLayout}

// parseFlagDate accepts ISO and day-first dates; "" yields the zero time.
func parseFlagDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range flagDateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or DD/MM/YYYY)", value)
}

// chatSession is the browser side of a harvest.
type chatSession interface {
	ChatPage
	OpenChat(ctx context.Context, name string) error
}

// harvestChat opens contact on page, collects history newer than what store
// holds and appends it. The run is recorded when the store keeps runs.
func harvestChat(ctx context.Context, cfg *Config, page chatSession, store HistoryStore, opts HarvestOptions) (*HarvestResult, *HarvestRun, error) {
	run := &HarvestRun{ID: uuid.NewString(), Chat: opts.Chat, StartedAt: time.Now()}
	log := logger.With(zap.String("run", run.ID), zap.String("chat", opts.Chat))

	res, err := func() (*HarvestResult, error) {
		last, err := store.Last(ctx, opts.Chat)
		if err != nil {
			return nil, err
		}
		opts.Last = last
		if last != nil {
			log.Info("resuming after last saved message", zap.String("datetime", last.DateTime))
		}

		if err := page.OpenChat(ctx, opts.Chat); err != nil {
			return nil, err
		}
		h, err := NewHarvester(page, cfg)
		if err != nil {
			return nil, err
		}
		res, err := h.Run(ctx, opts)
		if err != nil {
			return nil, err
		}

		run.Added, err = store.Append(ctx, res.Extracted)
		if err != nil {
			return nil, err
		}
		run.Matched = len(res.Matched)
		return res, nil
	}()
	run.Err = err
	run.FinishedAt = time.Now()

	if rec, ok := store.(runRecorder); ok {
		// recorded on a fresh context so interrupted runs still leave a trace
		if rerr := rec.RecordRun(context.WithoutCancel(ctx), *run); rerr != nil {
			log.Warn("failed to record harvest run", zap.Error(rerr))
		}
	}
	if err != nil {
		return nil, run, err
	}

	log.Info("harvest finished",
		zap.Int("extracted", len(res.Extracted)),
		zap.Int("added", run.Added),
		zap.Int("matched", run.Matched),
		zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)))
	return res, run, nil
}

func runHarvest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts := HarvestOptions{Chat: args[0], Keyword: harvestKeyword}
	var err error
	if opts.StartDate, err = parseFlagDate(harvestSince); err != nil {
		return err
	}
	if opts.From, err = parseFlagDate(harvestFrom); err != nil {
		return err
	}
	if opts.To, err = parseFlagDate(harvestUntil); err != nil {
		return err
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
		return fmt.Errorf("--until %s is before --from %s", harvestUntil, harvestFrom)
	}

	store, err := OpenStore(config)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := openSession(ctx, config)
	if err != nil {
		return err
	}
	defer client.Close()

	res, run, err := harvestChat(ctx, config, client, store, opts)
	if err != nil {
		return err
	}

	if s, ok := store.(*SQLiteStore); ok {
		if n, err := s.RunCount(ctx); err == nil {
			logger.Debug("harvest runs recorded", zap.Int("runs", n), zap.String("db", s.Path()))
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Harvested %d messages from %s, %d new, %d matching filters.\n",
		len(res.Extracted), opts.Chat, run.Added, len(res.Matched))
	for _, m := range res.Matched {
		fmt.Fprintf(out, "  %s [%s] %s: %s\n", m.DateTime, m.Direction, m.Type, m.Text)
	}
	return nil
}
