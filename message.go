package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type MessageType string

const (
	TypeUnknown       MessageType = ""
	TypeDeleted       MessageType = "Deleted"
	TypeVideoWithText MessageType = "Video and text together"
	TypeVideo         MessageType = "Video"
	TypeImageWithText MessageType = "Image and text together"
	TypeReferredText  MessageType = "Referred Text"
	TypeText          MessageType = "Text"
	TypeImage         MessageType = "Image"
	TypeVoice         MessageType = "Voice"
	TypeFile          MessageType = "File"
)

const (
	DirectionIn      = "In"
	DirectionOut     = "Out"
	DirectionUnknown = "Unknown"
)

// Message is one harvested chat bubble as persisted to the history store.
type Message struct {
	ID          string      `json:"id,omitempty"`
	Chat        string      `json:"chat,omitempty"`
	Type        MessageType `json:"type"`
	Direction   string      `json:"message_dir"`
	Date        string      `json:"date"`
	Time        string      `json:"time"`
	DateTime    string      `json:"datetime"`
	Text        string      `json:"text,omitempty"`
	ImageSrc    string      `json:"image_src,omitempty"`
	VideoSrc    string      `json:"video_src,omitempty"`
	FileSrc     string      `json:"file_src,omitempty"`
	ReferredMsg string      `json:"referred_msg,omitempty"`
	Reply       string      `json:"reply,omitempty"`
}

// Timestamp parses DateTime in the local zone.
func (m Message) Timestamp() (time.Time, bool) {
	t, err := time.ParseInLocation(dateTimeLayout, m.DateTime, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// computeID hashes the canonical JSON form of m with its ID cleared, so the
// same bubble harvested twice gets the same ID.
func computeID(m Message) string {
	m.ID = ""
	data, err := json.Marshal(m)
	if err != nil {
		// Message holds only strings; Marshal cannot fail on it
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// messageRow is one element matched by the message-row selector, parsed
// once and shared by the goquery and XPath lookups.
type messageRow struct {
	raw  string
	sel  *goquery.Selection
	node *html.Node
}

func newMessageRow(outerHTML string) (*messageRow, error) {
	root, err := html.Parse(strings.NewReader(outerHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message row: %w", err)
	}
	sel := goquery.NewDocumentFromNode(root).Find("body").Children().First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("message row has no element")
	}
	return &messageRow{raw: outerHTML, sel: sel, node: sel.Get(0)}, nil
}

func (r *messageRow) isDivider() bool {
	return hasClasses(r.sel, "_amjw", "_amk1", "_aotl")
}

func (r *messageRow) direction() string {
	if strings.Contains(r.raw, "message-in") {
		return DirectionIn
	}
	return DirectionOut
}

// ClassifyMessage infers the bubble type from markers in its inner HTML.
// Order matters: captioned media also contain the plain-text markers.
func ClassifyMessage(row *messageRow, lang Language) MessageType {
	inner, err := row.sel.Html()
	if err != nil {
		return TypeUnknown
	}
	has := func(s string) bool { return strings.Contains(inner, s) }
	openImage := lang.OpenImage != "" && has(lang.OpenImage)

	switch {
	case has("_akbu _akbw"):
		return TypeDeleted
	case has("msg-video") && has("copyable-text"):
		return TypeVideoWithText
	case has("msg-video"):
		return TypeVideo
	case openImage && has("copyable-text"):
		return TypeImageWithText
	case has("selectable-text copyable-text"):
		if row.sel.Find("._1hl2r").Length() > 0 {
			return TypeReferredText
		}
		return TypeText
	case openImage:
		return TypeImage
	case has(`role="slider"`):
		return TypeVoice
	case has(`data-testid="video-content"`):
		return TypeVideo
	case has("_1-lf9 _4OiJG _18q-J"):
		return TypeFile
	}
	return TypeUnknown
}

// ParseMessage turns one message row into a Message. It returns nil for rows
// without a usable date and time, which includes date dividers; those rows
// still advance tracker.
func ParseMessage(chat, outerHTML string, tracker *DateTracker) (*Message, error) {
	row, err := newMessageRow(outerHTML)
	if err != nil {
		return nil, err
	}

	dt, clock := tracker.Observe(row)
	day, ok := tracker.Current()
	if row.isDivider() || dt.IsZero() || clock == "" || !ok {
		return nil, nil
	}

	msg := &Message{
		Chat:      chat,
		Type:      ClassifyMessage(row, tracker.lang),
		Direction: row.direction(),
		Date:      day.Format(dateLayout),
		Time:      clock,
		DateTime:  dt.Format(dateTimeLayout),
	}

	switch msg.Type {
	case TypeVideoWithText:
		msg.VideoSrc = row.sel.Find("video").First().AttrOr("src", "")
		msg.Text = messageText(row.sel)
	case TypeImageWithText:
		msg.ImageSrc = row.sel.Find("img").Last().AttrOr("src", "")
		msg.Text = messageText(row.sel)
	case TypeImage:
		msg.ImageSrc = row.sel.Find("img").Last().AttrOr("src", "")
	case TypeFile:
		msg.FileSrc = row.sel.Find("div._1-lf9._4OiJG._18q-J").First().AttrOr("data-url", "")
	case TypeReferredText:
		lines := textLines(row.sel.Find("._1hl2r").First())
		if len(lines) > 1 {
			msg.ReferredMsg = strings.Join(lines[1:], "")
		}
		msg.Reply = strings.TrimSpace(row.sel.Find("._21Ahp").First().Text())
	case TypeText:
		msg.Text = messageText(row.sel)
	}

	msg.ID = computeID(*msg)
	return msg, nil
}

// messageText returns the visible text of the bubble's copyable span with
// emoji images replaced by their alt text.
func messageText(sel *goquery.Selection) string {
	span := sel.Find("span.copyable-text").First()
	if span.Length() == 0 {
		return ""
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Img:
			for _, a := range n.Attr {
				if a.Key == "alt" {
					b.WriteString(a.Val)
				}
			}
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := span.Get(0).FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return b.String()
}

// textLines splits the rendered text of sel into its non-empty text nodes,
// approximating the line breaks a browser puts between blocks.
func textLines(sel *goquery.Selection) []string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return lines
}

// Bubble is the lightweight record produced by quick extraction.
type Bubble struct {
	Text      string `json:"text"`
	Direction string `json:"direction"`
	Contact   string `json:"contact,omitempty"`
}

// ParseBubbles extracts every non-empty copyable text in rows together with
// the direction of its enclosing bubble.
func ParseBubbles(contact string, rows []string) []Bubble {
	var out []Bubble
	for _, raw := range rows {
		row, err := newMessageRow(raw)
		if err != nil {
			continue
		}
		row.sel.Find("span.copyable-text").Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return
			}
			dir := DirectionUnknown
			if owner := s.Closest(".message-in, .message-out"); owner.Length() > 0 {
				if owner.HasClass("message-in") {
					dir = DirectionIn
				} else {
					dir = DirectionOut
				}
			}
			out = append(out, Bubble{Text: text, Direction: dir, Contact: contact})
		})
	}
	return out
}
