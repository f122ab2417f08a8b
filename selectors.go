package main

import (
	"strings"
)

// Selectors collects every WhatsApp Web selector the tool relies on. The
// markup is private and changes between releases, so each entry can be
// overridden from the selectors section of the config file. Entries starting
// with "/" or "(" are XPath, everything else is CSS.
type Selectors struct {
	LoggedIn    string `yaml:"logged_in"`
	AppReady    string `yaml:"app_ready"`
	SearchBox   string `yaml:"search_box"`
	ContactSpan string `yaml:"contact_span"`

	Composer  []string `yaml:"composer"`
	ChatItems []string `yaml:"chat_items"`

	MessageRows    string   `yaml:"message_rows"`
	SyncPaused     string   `yaml:"sync_paused"`
	SyncInProgress string   `yaml:"sync_in_progress"`
	SendChecks     []string `yaml:"send_checks"`
	InvalidPhone   string   `yaml:"invalid_phone"`

	AttachButtons  []string `yaml:"attach_buttons"`
	FileInputs     []string `yaml:"file_inputs"`
	CaptionInputs  []string `yaml:"caption_inputs"`
	SendButtons    []string `yaml:"send_buttons"`
	MessageTimeXPs []string `yaml:"message_time_xpaths"`

	// Probed by the snapshot command.
	Probes []string `yaml:"probes"`
}

var defaultSelectors = Selectors{
	LoggedIn:    `//div[@id='side']`,
	AppReady:    `[role="application"]`,
	SearchBox:   `//div[@contenteditable="true"][@data-tab="3"]`,
	ContactSpan: `span[title]`,
	Composer: []string{
		`//div[@contenteditable='true'][@data-tab='10']`,
		`//div[@contenteditable='true'][@role='textbox'][@title='Type a message']`,
		`//div[@contenteditable='true'][@data-lexical-editor='true']`,
		`//footer//div[@contenteditable='true']`,
	},
	ChatItems: []string{
		`[data-testid="chat-list-item"]`,
		`div[role="button"][data-testid*="chat"]`,
		`div[role="listitem"]`,
		`div[aria-label*="chat"]`,
	},
	MessageRows:    `.message-in, .message-out, ._amjw._amk1._aotl`,
	SyncPaused:     `//span[@data-icon="alert-sync-paused"]`,
	SyncInProgress: `//span[@data-icon="sync-in-progress"]`,
	SendChecks: []string{
		`(//span[@data-icon='msg-check'])[last()]`,
		`(//span[@data-icon='msg-dblcheck'])[last()]`,
		`(//span[@data-icon='msg-dblcheck-ack'])[last()]`,
	},
	InvalidPhone: `//div[contains(text(), 'Phone number')]`,
	AttachButtons: []string{
		`//div[@title='Attach']`,
		`//button[@aria-label='Attach']`,
		`//span[@data-icon='plus']`,
		`//span[@data-icon='attach-menu-plus']`,
	},
	FileInputs: []string{
		`input[type="file"][accept*="image"]`,
		`input[type="file"]`,
	},
	CaptionInputs: []string{
		`div[contenteditable='true'][data-tab='10']`,
		`div[contenteditable='true'][role='textbox']`,
	},
	SendButtons: []string{
		`//span[@data-icon='send']`,
		`//button[@aria-label='Send']`,
		`//div[@aria-label='Send']`,
	},
	MessageTimeXPs: []string{
		`.//span[contains(@class, 'x1c4vz4f') and contains(@class, 'x2lah0s')]`,
		`.//span[contains(@class, 'x1rg5ohu') and contains(@class, 'x16dsc37')]`,
	},
	Probes: []string{
		`main`,
		`div[role="application"]`,
		`span[title]`,
		`[data-testid="chat-list-item"]`,
		`[data-testid="msg-container"]`,
		`.message-in, .message-out`,
	},
}

// withDefaults fills every empty entry from the built-in table.
func (s Selectors) withDefaults() Selectors {
	d := defaultSelectors
	str := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	list := func(v *[]string, def []string) {
		if len(*v) == 0 {
			*v = append([]string(nil), def...)
		}
	}

	str(&s.LoggedIn, d.LoggedIn)
	str(&s.AppReady, d.AppReady)
	str(&s.SearchBox, d.SearchBox)
	str(&s.ContactSpan, d.ContactSpan)
	list(&s.Composer, d.Composer)
	list(&s.ChatItems, d.ChatItems)
	str(&s.MessageRows, d.MessageRows)
	str(&s.SyncPaused, d.SyncPaused)
	str(&s.SyncInProgress, d.SyncInProgress)
	list(&s.SendChecks, d.SendChecks)
	str(&s.InvalidPhone, d.InvalidPhone)
	list(&s.AttachButtons, d.AttachButtons)
	list(&s.FileInputs, d.FileInputs)
	list(&s.CaptionInputs, d.CaptionInputs)
	list(&s.SendButtons, d.SendButtons)
	list(&s.MessageTimeXPs, d.MessageTimeXPs)
	list(&s.Probes, d.Probes)
	return s
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") ||
		strings.HasPrefix(selector, "./")
}

// xpathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a value holding both quote kinds is built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}

	parts := strings.Split(s, `"`)
	args := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		if p != "" {
			args = append(args, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

// contactTitleXPath matches the chat-list span whose title is exactly name.
func contactTitleXPath(name string) string {
	return "//span[@title=" + xpathLiteral(name) + "]"
}
