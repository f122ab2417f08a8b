package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var relayOpts struct {
	profileA, profileB string
	nameA, nameB       string
	messageA, messageB string
	delay              time.Duration
	last               int
	out                string
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Exchange one message between two logged-in accounts",
	Long: `Opens two browsers on separate profiles, sends --message-a from account A to
B, waits, reads it on B, replies with --message-b and saves the last messages
seen by each side to --out. --name-a and --name-b are the chat titles each
account uses for the other.`,
	RunE: runRelay,
}

func init() {
	f := relayCmd.Flags()
	f.StringVar(&relayOpts.profileA, "profile-a", "./chrome/userdata_a", "profile directory of account A")
	f.StringVar(&relayOpts.profileB, "profile-b", "./chrome/userdata_b", "profile directory of account B")
	f.StringVar(&relayOpts.nameA, "name-a", "", "chat title of account A as seen by B")
	f.StringVar(&relayOpts.nameB, "name-b", "", "chat title of account B as seen by A")
	f.StringVar(&relayOpts.messageA, "message-a", "Hello from A", "message A sends")
	f.StringVar(&relayOpts.messageB, "message-b", "Hello back from B", "reply B sends")
	f.DurationVar(&relayOpts.delay, "delay", 5*time.Second, "time for a message to arrive on the other side")
	f.IntVar(&relayOpts.last, "last", 10, "messages per side to include in the output")
	f.StringVar(&relayOpts.out, "out", "dual_conversation.json", "file to save the conversation to")
	_ = relayCmd.MarkFlagRequired("name-a")
	_ = relayCmd.MarkFlagRequired("name-b")
}

// RelaySide is what one account saw at the end of a relay.
type RelaySide struct {
	Name     string   `json:"name"`
	Partner  string   `json:"partner"`
	Messages []Bubble `json:"messages"`
}

type RelayConversation struct {
	A      RelaySide `json:"client_a"`
	B      RelaySide `json:"client_b"`
	Status string    `json:"status"`
}

// relayParty is the part of a browser session a relay drives.
type relayParty interface {
	OpenChat(ctx context.Context, name string) error
	SendText(ctx context.Context, message string) error
	MessageRows(ctx context.Context) ([]string, error)
}

func lastBubbles(ctx context.Context, p relayParty, contact string, n int) ([]Bubble, error) {
	rows, err := p.MessageRows(ctx)
	if err != nil {
		return nil, err
	}
	b := ParseBubbles(contact, rows)
	if n > 0 && len(b) > n {
		b = b[len(b)-n:]
	}
	return b, nil
}

// relay sends msgA from a to b's chat, lets it arrive, replies with msgB and
// collects the tail of both conversations.
func relay(ctx context.Context, a, b relayParty, nameA, nameB, msgA, msgB string, delay time.Duration, last int) (*RelayConversation, error) {
	conv := &RelayConversation{
		A: RelaySide{Name: nameA, Partner: nameB},
		B: RelaySide{Name: nameB, Partner: nameA},
	}

	if err := a.OpenChat(ctx, nameB); err != nil {
		return nil, fmt.Errorf("account A: %w", err)
	}
	if err := a.SendText(ctx, msgA); err != nil {
		return nil, fmt.Errorf("account A: %w", err)
	}
	logger.Info("waiting for message to arrive", zap.String("to", nameB), zap.Duration("delay", delay))
	if err := sleepContext(ctx, delay); err != nil {
		return nil, err
	}

	if err := b.OpenChat(ctx, nameA); err != nil {
		return nil, fmt.Errorf("account B: %w", err)
	}
	if recent, err := lastBubbles(ctx, b, nameA, 2); err == nil {
		for _, m := range recent {
			logger.Info("received on B", zap.String("direction", m.Direction), zap.String("text", m.Text))
		}
	}
	if err := b.SendText(ctx, msgB); err != nil {
		return nil, fmt.Errorf("account B: %w", err)
	}
	if err := sleepContext(ctx, delay); err != nil {
		return nil, err
	}

	var err error
	if conv.A.Messages, err = lastBubbles(ctx, a, nameB, last); err != nil {
		return nil, fmt.Errorf("account A: %w", err)
	}
	if conv.B.Messages, err = lastBubbles(ctx, b, nameA, last); err != nil {
		return nil, fmt.Errorf("account B: %w", err)
	}
	conv.Status = "success"
	return conv, nil
}

func runRelay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfgA, err := withProfile(config, relayOpts.profileA)
	if err != nil {
		return err
	}
	cfgB, err := withProfile(config, relayOpts.profileB)
	if err != nil {
		return err
	}
	if cfgA.Browser.UserDataDir == cfgB.Browser.UserDataDir {
		return fmt.Errorf("--profile-a and --profile-b must differ; Chrome locks a profile to one process")
	}

	clients := [2]*WhatsAppClient{NewWhatsAppClient(cfgA), NewWhatsAppClient(cfgB)}
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	// both QR codes can be scanned in any order; browsers live on ctx so they
	// outlast the group
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range clients {
		label := []string{"A", "B"}[i]
		g.Go(func() error {
			if err := c.Launch(ctx); err != nil {
				return fmt.Errorf("account %s: %w", label, err)
			}
			if err := c.WaitForLogin(gctx); err != nil {
				return fmt.Errorf("account %s: %w", label, err)
			}
			logger.Info("account ready", zap.String("account", label))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	conv, err := relay(ctx, clients[0], clients[1],
		relayOpts.nameA, relayOpts.nameB, relayOpts.messageA, relayOpts.messageB,
		relayOpts.delay, relayOpts.last)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, side := range []RelaySide{conv.A, conv.B} {
		fmt.Fprintf(out, "%s (chat with %s):\n", side.Name, side.Partner)
		for i, m := range side.Messages {
			fmt.Fprintf(out, "  %d. [%s] %s\n", i+1, m.Direction, m.Text)
		}
	}

	if err := writeJSONFile(relayOpts.out, conv, "  "); err != nil {
		return err
	}
	fmt.Fprintf(out, "Conversation saved to %s\n", relayOpts.out)
	return nil
}
