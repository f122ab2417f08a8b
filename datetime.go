package main

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
)

const (
	dateLayout     = "02/01/2006"
	clockLayout    = "15:04"
	dateTimeLayout = "02/01/2006 15:04"

	// Layouts accept one-digit days and months, as rendered by some locales.
	prePlainLayout = "15:04, 2/1/2006"
	dividerLayout  = "2/1/2006"
)

// DateTracker carries the "current date" while message rows are walked in
// DOM order. Only the first bubble of a day carries its full date; every
// later bubble shows a clock time and inherits the date of the divider or
// bubble before it.
type DateTracker struct {
	lang       Language
	timeXPaths []string
	now        func() time.Time

	current time.Time
}

func NewDateTracker(lang Language, timeXPaths []string) *DateTracker {
	return &DateTracker{
		lang:       lang,
		timeXPaths: timeXPaths,
		now:        time.Now,
	}
}

// Current returns the tracked date, or false before any date was seen.
func (t *DateTracker) Current() (time.Time, bool) {
	return t.current, !t.current.IsZero()
}

func (t *DateTracker) today() time.Time {
	n := t.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
}

// Observe updates the tracked date from row and returns the row's datetime
// and clock. A zero time or empty clock means the row carries no usable
// timestamp (date dividers, or bubbles seen before any date).
func (t *DateTracker) Observe(row *messageRow) (time.Time, string) {
	var (
		dt    time.Time
		clock string
	)

	if pre, ok := row.sel.Find("div.copyable-text").First().Attr("data-pre-plain-text"); ok {
		if parsed, ok := parsePrePlainText(pre, t.now().Location()); ok {
			dt = parsed
			t.current = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, parsed.Location())
			clock = parsed.Format(clockLayout)
		} else {
			logger.Debug("unparsable data-pre-plain-text", zap.String("value", pre))
		}
	}

	if row.isDivider() {
		t.observeDivider(strings.TrimSpace(row.sel.Find("span._ao3e").First().Text()))
	}

	if clock == "" {
		clock = t.fallbackClock(row)
	}

	if !t.current.IsZero() && clock != "" {
		if c, err := time.Parse(clockLayout, clock); err == nil {
			dt = time.Date(t.current.Year(), t.current.Month(), t.current.Day(),
				c.Hour(), c.Minute(), 0, 0, t.current.Location())
		} else {
			logger.Debug("unparsable message clock", zap.String("clock", clock))
		}
	}

	return dt, clock
}

func (t *DateTracker) observeDivider(label string) {
	if label == "" {
		return
	}
	today := t.today()

	switch {
	case strings.Contains(label, "/"):
		d, err := time.ParseInLocation(dividerLayout, label, today.Location())
		if err != nil {
			logger.Debug("unparsable date divider", zap.String("label", label))
			return
		}
		t.current = d
	case strings.EqualFold(label, t.lang.Today):
		t.current = today
	case strings.EqualFold(label, t.lang.Yesterday):
		t.current = today.AddDate(0, 0, -1)
	default:
		wd, ok := t.lang.Weekday(label)
		if !ok {
			logger.Debug("unknown date divider", zap.String("label", label))
			return
		}
		diff := (int(today.Weekday()) - int(wd) + 7) % 7
		t.current = today.AddDate(0, 0, -diff)
	}
}

func (t *DateTracker) fallbackClock(row *messageRow) string {
	for _, expr := range t.timeXPaths {
		nodes, err := htmlquery.QueryAll(row.node, expr)
		if err != nil {
			logger.Debug("invalid time xpath", zap.String("xpath", expr), zap.Error(err))
			continue
		}
		for _, n := range nodes {
			if text := strings.TrimSpace(htmlquery.InnerText(n)); text != "" {
				return text
			}
		}
	}
	return ""
}

// parsePrePlainText reads the "[HH:MM, dd/mm/yyyy] Author: " prefix WhatsApp
// stores on every bubble that starts a run.
func parsePrePlainText(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "[") {
		return time.Time{}, false
	}
	end := strings.Index(value, "]")
	if end < 0 {
		return time.Time{}, false
	}
	dt, err := time.ParseInLocation(prePlainLayout, value[1:end], loc)
	if err != nil {
		return time.Time{}, false
	}
	return dt, true
}

// hasClasses reports whether sel carries every class in classes.
func hasClasses(sel *goquery.Selection, classes ...string) bool {
	for _, c := range classes {
		if !sel.HasClass(c) {
			return false
		}
	}
	return true
}
