package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrSyncPaused is returned when WhatsApp keeps showing the "sync paused"
// banner after every retry; older history cannot be loaded until the phone
// comes back online.
var ErrSyncPaused = errors.New("chat sync is paused")

// ChatPage is the view of an open chat the harvester needs. WhatsAppClient
// implements it against the browser; tests use a scripted fake.
type ChatPage interface {
	// MessageRows returns the outer HTML of every message row and date
	// divider currently rendered, oldest first.
	MessageRows(ctx context.Context) ([]string, error)
	// ScrollToOldest scrolls the first rendered row into view, which makes
	// WhatsApp lazy-load older history above it.
	ScrollToOldest(ctx context.Context) error
	// Exists reports whether selector matches anything right now.
	Exists(ctx context.Context, selector string) (bool, error)
}

// HarvestOptions narrows one harvest. Last switches to resume mode: only
// messages after it are collected. Zero times mean "no bound".
type HarvestOptions struct {
	Chat      string
	Last      *Message
	StartDate time.Time
	From      time.Time
	To        time.Time
	Keyword   string
}

type HarvestResult struct {
	// Extracted holds every message inside the start-date window; these are
	// the ones to persist.
	Extracted []Message
	// Matched is the subset passing the keyword and date-range filters.
	Matched []Message
}

type Harvester struct {
	page      ChatPage
	config    HarvestConfig
	selectors Selectors
	lang      Language

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewHarvester(page ChatPage, config *Config) (*Harvester, error) {
	lang, err := LookupLanguage(config.WhatsApp.Language)
	if err != nil {
		return nil, err
	}
	return &Harvester{
		page:      page,
		config:    config.Harvest,
		selectors: config.Selectors,
		lang:      lang,
		now:       time.Now,
		sleep:     sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run loads history for the open chat and returns the extracted messages.
func (h *Harvester) Run(ctx context.Context, opts HarvestOptions) (*HarvestResult, error) {
	var (
		resume bool
		lastAt time.Time
		lastTx string
	)
	if opts.Last != nil {
		if at, ok := opts.Last.Timestamp(); ok {
			resume, lastAt, lastTx = true, at, opts.Last.Text
		} else {
			logger.Warn("last saved message has no usable datetime, harvesting from scratch",
				zap.String("id", opts.Last.ID))
		}
	}

	startDate := opts.StartDate
	if !resume && startDate.IsZero() {
		startDate = h.now().AddDate(0, 0, -30*h.config.DefaultMonths)
	}

	logger.Info("loading chat history",
		zap.String("chat", opts.Chat),
		zap.Bool("resume", resume),
		zap.Time("start_date", startDate))

	rows, err := h.scrollToTop(ctx, lastTx, lastAt, resume, startDate)
	if err != nil {
		return nil, err
	}

	msgs := h.parseRows(opts.Chat, rows)
	logger.Info("parsed message rows", zap.Int("rows", len(rows)), zap.Int("messages", len(msgs)))

	if resume {
		msgs = sliceAfter(msgs, lastTx, lastAt)
		if len(msgs) == 0 {
			logger.Info("no messages newer than the last saved one")
		}
	}

	res := &HarvestResult{}
	for _, m := range msgs {
		ts, _ := m.Timestamp()
		if !startDate.IsZero() && ts.Before(startDate) {
			continue
		}
		res.Extracted = append(res.Extracted, m)

		if opts.Keyword != "" && !strings.Contains(strings.ToLower(m.Text), strings.ToLower(opts.Keyword)) {
			continue
		}
		if !inDateRange(m, opts.From, opts.To) {
			continue
		}
		res.Matched = append(res.Matched, m)
	}
	return res, nil
}

func (h *Harvester) pause() time.Duration {
	return time.Duration(h.config.ScrollPauseMillis) * time.Millisecond
}

// scrollToTop scrolls the chat upwards until the resume point, the start
// date, or the beginning of the chat is visible, and returns the rows
// rendered at that point.
func (h *Harvester) scrollToTop(ctx context.Context, lastText string, lastAt time.Time, resume bool, startDate time.Time) ([]string, error) {
	var (
		rows     []string
		attempts int
		noNew    int
		retries  int
	)

	for attempts < h.config.MaxScrollAttempts {
		current, err := h.page.MessageRows(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read message rows: %w", err)
		}
		if len(current) == 0 {
			logger.Info("no messages rendered yet, waiting")
			attempts++
			if err := h.sleep(ctx, h.pause()); err != nil {
				return nil, err
			}
			continue
		}
		rows = current

		if err := h.page.ScrollToOldest(ctx); err != nil {
			return nil, fmt.Errorf("failed to scroll chat: %w", err)
		}
		if err := h.sleep(ctx, h.pause()); err != nil {
			return nil, err
		}
		loaded, err := h.page.MessageRows(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read message rows: %w", err)
		}

		if resume {
			if h.rowsContain(loaded, lastText, lastAt) || h.oldestAtOrBefore(loaded, lastAt) {
				logger.Debug("resume point is loaded")
				return loaded, nil
			}
		} else {
			if len(loaded) == len(current) {
				noNew++
				if noNew < h.config.MaxNoNewMessages {
					logger.Debug("no new messages loaded, waiting", zap.Int("round", noNew))
					if err := h.sleep(ctx, h.pause()); err != nil {
						return nil, err
					}
					continue
				}

				paused, err := h.page.Exists(ctx, h.selectors.SyncPaused)
				if err != nil {
					return nil, err
				}
				if paused {
					logger.Warn("chat sync is paused, waiting before retrying",
						zap.Int("wait_seconds", h.config.SyncPausedWaitSeconds))
					if err := h.sleep(ctx, time.Duration(h.config.SyncPausedWaitSeconds)*time.Second); err != nil {
						return nil, err
					}
					retries++
					if retries >= h.config.SyncPausedMaxRetries {
						return nil, fmt.Errorf("%w after %d retries", ErrSyncPaused, retries)
					}
					noNew = 0
					continue
				}

				syncing, err := h.page.Exists(ctx, h.selectors.SyncInProgress)
				if err != nil {
					return nil, err
				}
				if syncing {
					logger.Info("chat is synchronizing, waiting for it to finish")
					if err := h.sleep(ctx, time.Duration(h.config.SyncProgressWaitSeconds)*time.Second); err != nil {
						return nil, err
					}
					noNew = 0
					attempts++
					continue
				}

				logger.Info("reached the beginning of the chat")
				return loaded, nil
			}

			if !startDate.IsZero() && h.oldestBefore(loaded, startDate) {
				logger.Debug("start date is loaded")
				return loaded, nil
			}
		}

		rows = loaded
		attempts++
	}

	logger.Info("stopped scrolling after max attempts", zap.Int("attempts", attempts))
	return rows, nil
}

func (h *Harvester) newTracker() *DateTracker {
	t := NewDateTracker(h.lang, h.selectors.MessageTimeXPs)
	t.now = h.now
	return t
}

func (h *Harvester) parseRows(chat string, rows []string) []Message {
	tracker := h.newTracker()
	msgs := make([]Message, 0, len(rows))
	for i, raw := range rows {
		m, err := ParseMessage(chat, raw, tracker)
		if err != nil {
			logger.Warn("skipping unparsable row", zap.Int("row", i), zap.Error(err))
			continue
		}
		if m == nil {
			continue
		}
		msgs = append(msgs, *m)
	}
	return msgs
}

// oldestTimestamp returns the datetime of the first dated message in rows.
func (h *Harvester) oldestTimestamp(rows []string) (time.Time, bool) {
	for _, m := range h.parseRows("", rows) {
		if ts, ok := m.Timestamp(); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

func (h *Harvester) oldestBefore(rows []string, cutoff time.Time) bool {
	ts, ok := h.oldestTimestamp(rows)
	return ok && ts.Before(cutoff)
}

func (h *Harvester) oldestAtOrBefore(rows []string, cutoff time.Time) bool {
	ts, ok := h.oldestTimestamp(rows)
	return ok && !ts.After(cutoff)
}

// rowsContain reports whether the message with text sent at at is loaded.
// Text alone is not enough: a short reply like "ok" recurs in most chats.
func (h *Harvester) rowsContain(rows []string, text string, at time.Time) bool {
	for _, m := range h.parseRows("", rows) {
		if ts, ok := m.Timestamp(); ok && m.Text == text && ts.Equal(at) {
			return true
		}
	}
	return false
}

// sliceAfter drops everything up to and including the message matching text
// and at. When that message is gone (edited or deleted) it starts at the
// first message newer than at instead.
func sliceAfter(msgs []Message, text string, at time.Time) []Message {
	for i, m := range msgs {
		ts, ok := m.Timestamp()
		if !ok {
			continue
		}
		if m.Text == text && ts.Equal(at) {
			return msgs[i+1:]
		}
		if ts.After(at) {
			return msgs[i:]
		}
	}
	return nil
}

func inDateRange(m Message, from, to time.Time) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	d, err := time.ParseInLocation(dateLayout, m.Date, time.Local)
	if err != nil {
		return false
	}
	if !from.IsZero() && d.Before(truncateDay(from)) {
		return false
	}
	if !to.IsZero() && d.After(truncateDay(to)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
