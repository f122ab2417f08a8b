package main

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const previewRunes = 50

// ChatEntry is one row of the chat list.
type ChatEntry struct {
	Name     string `json:"name"`
	Preview  string `json:"preview"`
	LastTime string `json:"last_time"`
	Index    int    `json:"index"`
}

// ParseChatList reads name, preview and last activity from the outer HTML of
// chat-list items. limit <= 0 keeps every item. Items without a titled span
// are skipped, but still count towards Index.
func ParseChatList(items []string, limit int) []ChatEntry {
	var entries []ChatEntry
	for i, raw := range items {
		if limit > 0 && len(entries) >= limit {
			break
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
		if err != nil {
			logger.Warn("skipping unparsable chat item", zap.Int("index", i+1), zap.Error(err))
			continue
		}

		name, ok := doc.Find("span[title]").First().Attr("title")
		if !ok || strings.TrimSpace(name) == "" {
			logger.Debug("chat item has no title", zap.Int("index", i+1))
			continue
		}

		entry := ChatEntry{
			Name:     name,
			Preview:  "(no messages)",
			LastTime: "N/A",
			Index:    i + 1,
		}
		if p := doc.Find("span.ggj6brxn").First(); p.Length() > 0 {
			entry.Preview = truncateRunes(strings.TrimSpace(p.Text()), previewRunes)
		}
		if t := doc.Find("span.x1rg5ohu").First(); t.Length() > 0 {
			entry.LastTime = strings.TrimSpace(t.Text())
		}
		entries = append(entries, entry)
	}
	return entries
}

// FilterPhoneTitles keeps the distinct titles that look like phone numbers,
// i.e. unsaved contacts WhatsApp shows as "+54 9 ...".
func FilterPhoneTitles(titles []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if !strings.HasPrefix(t, "+") || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
