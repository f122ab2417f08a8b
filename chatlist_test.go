package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func chatItem(title, preview, when string) string {
	var b strings.Builder
	b.WriteString(`<div role="listitem"><div>`)
	if title != "" {
		b.WriteString(`<span dir="auto" title="` + title + `">` + title + `</span>`)
	}
	if when != "" {
		b.WriteString(`<span class="x1rg5ohu x1xaadd7">` + when + `</span>`)
	}
	if preview != "" {
		b.WriteString(`<span class="ggj6brxn"> ` + preview + ` </span>`)
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

func TestParseChatList(t *testing.T) {
	items := []string{
		chatItem("Mario Rossi", "ci vediamo domani", "10:42"),
		chatItem("", "orphan", "09:00"),
		chatItem("+39 333 1234567", "", ""),
		chatItem("Famiglia", strings.Repeat("è", 80), "ieri"),
	}

	got := ParseChatList(items, 0)
	assert.Equal(t, []ChatEntry{
		{Name: "Mario Rossi", Preview: "ci vediamo domani", LastTime: "10:42", Index: 1},
		{Name: "+39 333 1234567", Preview: "(no messages)", LastTime: "N/A", Index: 3},
		{Name: "Famiglia", Preview: strings.Repeat("è", 50), LastTime: "ieri", Index: 4},
	}, got)

	limited := ParseChatList(items, 2)
	assert.Len(t, limited, 2)
	assert.Equal(t, "+39 333 1234567", limited[1].Name)
}

func TestFilterPhoneTitles(t *testing.T) {
	got := FilterPhoneTitles([]string{"Mario", "+54 9 223 555", " +39 333 ", "+54 9 223 555", "", "Gruppo +1"})
	assert.Equal(t, []string{"+54 9 223 555", "+39 333"}, got)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "ciao", truncateRunes("ciao", 10))
	assert.Equal(t, "ci", truncateRunes("ciao", 2))
	assert.Equal(t, "😀😀", truncateRunes("😀😀😀", 2))
}
