package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	contactsLimit int
	contactsOut   string

	peekLast int
	peekOut  string
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List the chats visible in the chat list",
	RunE:  runContacts,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <name>",
	Short: "Check that a contact can be found through search",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var peekCmd = &cobra.Command{
	Use:   "peek [contact]",
	Short: "Print the messages visible in a chat without scrolling",
	Long: `Opens a chat and extracts the text bubbles currently rendered. Without a
contact argument the first chat whose title is a phone number is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPeek,
}

func init() {
	contactsCmd.Flags().IntVar(&contactsLimit, "limit", 10, "maximum number of chats to list (0 for all)")
	contactsCmd.Flags().StringVar(&contactsOut, "out", "contacts.json", "file to save the list to (empty to skip)")

	peekCmd.Flags().IntVar(&peekLast, "last", 5, "number of most recent messages to print (0 for all)")
	peekCmd.Flags().StringVar(&peekOut, "out", "", "also write the extracted messages as JSON to this file")
}

func runContacts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := openSession(ctx, config)
	if err != nil {
		return err
	}
	defer client.Close()

	items, err := client.ListChatItems(ctx)
	if err != nil {
		return err
	}
	entries := ParseChatList(items, contactsLimit)

	if len(entries) == 0 {
		logger.Warn("no chat list items matched, falling back to visible titles")
		titles, err := client.VisibleTitles(ctx)
		if err != nil {
			return err
		}
		for i, t := range titles {
			if contactsLimit > 0 && i >= contactsLimit {
				break
			}
			entries = append(entries, ChatEntry{Name: t, Preview: "(no messages)", LastTime: "N/A", Index: i + 1})
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Found %d chats:\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(out, "%3d. %s\n     %s  [%s]\n", e.Index, e.Name, e.Preview, e.LastTime)
	}

	if contactsOut != "" {
		if err := writeJSONFile(contactsOut, entries, "  "); err != nil {
			return err
		}
		logger.Info("chat list saved", zap.String("path", contactsOut), zap.Int("chats", len(entries)))
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := args[0]

	client, err := openSession(ctx, config)
	if err != nil {
		return err
	}
	defer client.Close()

	found, err := client.SearchContact(ctx, name)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if found {
		fmt.Fprintf(out, "Contact %q found.\n", name)
		return nil
	}

	fmt.Fprintf(out, "Contact %q not found. Visible chats:\n", name)
	titles, err := client.VisibleTitles(ctx)
	if err != nil {
		logger.Warn("could not list visible chats", zap.Error(err))
	}
	for _, t := range titles {
		fmt.Fprintf(out, "  - %s\n", t)
	}
	return fmt.Errorf("%w: %s", ErrContactNotFound, name)
}

func runPeek(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := openSession(ctx, config)
	if err != nil {
		return err
	}
	defer client.Close()

	var contact string
	if len(args) == 1 {
		contact = args[0]
	} else {
		titles, err := client.VisibleTitles(ctx)
		if err != nil {
			return err
		}
		phones := FilterPhoneTitles(titles)
		if len(phones) == 0 {
			return fmt.Errorf("%w: no chat titled with a phone number is visible", ErrContactNotFound)
		}
		contact = phones[0]
		logger.Info("no contact given, using first phone-number chat", zap.String("contact", contact))
	}

	if err := client.OpenChat(ctx, contact); err != nil {
		return err
	}
	rows, err := client.MessageRows(ctx)
	if err != nil {
		return err
	}
	bubbles := ParseBubbles(contact, rows)

	shown := bubbles
	if peekLast > 0 && len(shown) > peekLast {
		shown = shown[len(shown)-peekLast:]
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d messages in %s, last %d:\n", len(bubbles), contact, len(shown))
	for _, b := range shown {
		fmt.Fprintf(out, "  [%s] %s\n", b.Direction, b.Text)
	}

	if peekOut != "" {
		if err := writeJSONFile(peekOut, bubbles, "  "); err != nil {
			return err
		}
		logger.Info("messages saved", zap.String("path", peekOut), zap.Int("messages", len(bubbles)))
	}
	return nil
}
