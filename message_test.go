package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	imageCaptionRow = `<div class="message-in"><div role="button" aria-label="Apri immagine">` +
		`<img src="blob:thumb"><img src="blob:https://web.whatsapp.com/full"></div>` +
		`<div class="copyable-text" data-pre-plain-text="[11:00, 18/3/2024] Mario: ">` +
		`<span class="selectable-text copyable-text"><span>guarda qui</span></span></div></div>`
	imageRow = `<div class="message-in"><div aria-label="Apri immagine"><img src="blob:only"></div>` +
		`<span class="x1rg5ohu x16dsc37">11:05</span></div>`
	deletedRow = `<div class="message-in"><div class="_akbu _akbw">messaggio eliminato</div>` +
		`<span class="x1rg5ohu x16dsc37">11:06</span></div>`
	voiceRow = `<div class="message-out"><div role="slider" aria-valuenow="0"></div>` +
		`<span class="x1rg5ohu x16dsc37">11:07</span></div>`
	videoRow = `<div class="message-out"><div data-testid="video-content"><video src="blob:v"></video></div>` +
		`<span class="x1rg5ohu x16dsc37">11:08</span></div>`
	videoCaptionRow = `<div class="message-out"><span data-icon="msg-video"></span><video src="blob:vid"></video>` +
		`<div class="copyable-text" data-pre-plain-text="[11:09, 18/3/2024] Io: ">` +
		`<span class="selectable-text copyable-text"><span>il video</span></span></div></div>`
	fileRow = `<div class="message-in"><div class="_1-lf9 _4OiJG _18q-J" data-url="https://files/doc.pdf">doc.pdf</div>` +
		`<span class="x1rg5ohu x16dsc37">11:10</span></div>`
	referredRow = `<div class="message-in"><div class="copyable-text" data-pre-plain-text="[11:11, 18/3/2024] Mario: ">` +
		`<div class="_1hl2r"><span>Tu</span><span>domani alle</span><span> 10?</span></div>` +
		`<span class="selectable-text copyable-text"><span>va bene</span></span>` +
		`<div class="_21Ahp">va bene</div></div></div>`
	emojiRow = `<div class="message-out"><div class="copyable-text" data-pre-plain-text="[11:12, 18/3/2024] Io: ">` +
		`<span class="selectable-text copyable-text"><span>ok <img alt="👍" src="emoji.png"> a dopo<br>ciao</span></span>` +
		`</div></div>`
)

func italian(t *testing.T) Language {
	t.Helper()
	lang, err := LookupLanguage("italian")
	require.NoError(t, err)
	return lang
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want MessageType
	}{
		{"text", textRow("message-in", "", "ciao", "10:00"), TypeText},
		{"image with caption", imageCaptionRow, TypeImageWithText},
		{"image", imageRow, TypeImage},
		{"deleted", deletedRow, TypeDeleted},
		{"voice", voiceRow, TypeVoice},
		{"video", videoRow, TypeVideo},
		{"video with caption", videoCaptionRow, TypeVideoWithText},
		{"file", fileRow, TypeFile},
		{"referred", referredRow, TypeReferredText},
		{"unknown", `<div class="message-in"><div>sticker</div></div>`, TypeUnknown},
	}
	lang := italian(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := newMessageRow(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ClassifyMessage(row, lang))
		})
	}
}

func TestParseMessage(t *testing.T) {
	tr := newTestTracker(t)

	m, err := ParseMessage("Mario", divider("LUNEDÌ"), tr)
	require.NoError(t, err)
	assert.Nil(t, m, "dividers are not messages")

	m, err = ParseMessage("Mario", imageCaptionRow, tr)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, TypeImageWithText, m.Type)
	assert.Equal(t, DirectionIn, m.Direction)
	assert.Equal(t, "18/03/2024", m.Date)
	assert.Equal(t, "11:00", m.Time)
	assert.Equal(t, "18/03/2024 11:00", m.DateTime)
	assert.Equal(t, "guarda qui", m.Text)
	assert.Equal(t, "blob:https://web.whatsapp.com/full", m.ImageSrc)
	assert.Equal(t, "Mario", m.Chat)
	assert.Len(t, m.ID, 64)

	m, err = ParseMessage("Mario", imageRow, tr)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, TypeImage, m.Type)
	assert.Equal(t, "blob:only", m.ImageSrc)
	assert.Equal(t, "18/03/2024 11:05", m.DateTime)
	assert.Empty(t, m.Text)

	m, err = ParseMessage("Mario", fileRow, tr)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "https://files/doc.pdf", m.FileSrc)

	m, err = ParseMessage("Mario", videoCaptionRow, tr)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, DirectionOut, m.Direction)
	assert.Equal(t, "blob:vid", m.VideoSrc)
	assert.Equal(t, "il video", m.Text)

	m, err = ParseMessage("Mario", referredRow, tr)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, TypeReferredText, m.Type)
	assert.Equal(t, "domani alle10?", m.ReferredMsg)
	assert.Equal(t, "va bene", m.Reply)
}

func TestParseMessage_NoDate(t *testing.T) {
	tr := newTestTracker(t)
	m, err := ParseMessage("Mario", textRow("message-in", "", "ciao", "10:00"), tr)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestParseMessage_EmojiAndLineBreaks(t *testing.T) {
	tr := newTestTracker(t)
	m, err := ParseMessage("Mario", emojiRow, tr)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "ok 👍 a dopo\nciao", m.Text)
}

func TestComputeID(t *testing.T) {
	a := Message{Chat: "Mario", Type: TypeText, Direction: DirectionIn, Date: "18/03/2024", Time: "10:00",
		DateTime: "18/03/2024 10:00", Text: "ciao"}
	b := a
	b.ID = "ignored"

	assert.Equal(t, computeID(a), computeID(b))

	b.Text = "ciao!"
	assert.NotEqual(t, computeID(a), computeID(b))
}

func TestMessageTimestamp(t *testing.T) {
	ts, ok := Message{DateTime: "18/03/2024 10:00"}.Timestamp()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 18, 10, 0, 0, 0, time.Local), ts)

	_, ok = Message{DateTime: ""}.Timestamp()
	assert.False(t, ok)
}

func TestParseBubbles(t *testing.T) {
	rows := []string{
		divider("OGGI"),
		textRow("message-in", "", "ciao", "10:00"),
		textRow("message-out", "", "  ", "10:01"),
		textRow("message-out", "", "ehi", "10:02"),
	}
	got := ParseBubbles("+39 333", rows)
	assert.Equal(t, []Bubble{
		{Text: "ciao", Direction: DirectionIn, Contact: "+39 333"},
		{Text: "ehi", Direction: DirectionOut, Contact: "+39 333"},
	}, got)

	orphan := `<div><span class="copyable-text">loose</span></div>`
	assert.Equal(t, DirectionUnknown, ParseBubbles("", []string{orphan})[0].Direction)
}
