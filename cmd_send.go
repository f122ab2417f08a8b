package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sendPhone   bool
	sendProfile string

	broadcastDryRun bool
)

var sendCmd = &cobra.Command{
	Use:   "send <contact> <message...>",
	Short: "Send a text message to one chat",
	Long: `Opens the chat titled <contact> and sends the message. With --phone the
contact is a phone number and the chat is opened through a send link, which
also works for numbers that are not saved.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Send the message template to every contact in the CSV file",
	Long: `Reads files.csv_path, renders files.template_path for each row and sends it
by phone number. Contacts already recorded in files.completed_csv_path for the
same template are skipped, so an interrupted run can simply be restarted.`,
	RunE: runBroadcast,
}

func init() {
	sendCmd.Flags().BoolVar(&sendPhone, "phone", false, "treat <contact> as a phone number")
	sendCmd.Flags().StringVar(&sendProfile, "profile", "", "profile directory to send from (default: browser.user_data_dir)")
	broadcastCmd.Flags().BoolVar(&broadcastDryRun, "dry-run", false, "render messages without opening the browser")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	contact := args[0]
	message := strings.Join(args[1:], " ")

	cfg, err := withProfile(config, sendProfile)
	if err != nil {
		return err
	}
	client, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if sendPhone {
		if err := client.SendToPhone(ctx, contact, message); err != nil {
			return err
		}
	} else {
		err := client.retry.Do(ctx, contact, func(ctx context.Context) error {
			if err := client.OpenChat(ctx, contact); err != nil {
				return err
			}
			return client.SendText(ctx, message)
		})
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Message sent to %s.\n", contact)
	return nil
}

type MessageResult struct {
	Contact Contact
	Success bool
	Error   error
}

// BroadcastSummary counts the outcome of one broadcast run.
type BroadcastSummary struct {
	Total    int
	Sent     int
	Failed   int
	Skipped  int
	Duration time.Duration
	Results  []MessageResult
}

// phoneSender is the part of WhatsAppClient a broadcast needs.
type phoneSender interface {
	SendToPhone(ctx context.Context, phoneNumber, message string) error
}

// broadcast renders tmpl for every contact and sends it through sender,
// skipping contacts tracker already has. A nil sender renders only.
func broadcast(ctx context.Context, contacts []Contact, tmpl *MessageTemplate, tracker *CompletedTracker, sender phoneSender) (*BroadcastSummary, error) {
	summary := &BroadcastSummary{Total: len(contacts)}
	start := time.Now()

	for i, contact := range contacts {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		logger.Info("processing contact",
			zap.Int("index", i+1),
			zap.Int("total", len(contacts)),
			zap.String("name", contact.Name),
			zap.String("phone", contact.PhoneNumber))

		if tracker.IsCompleted(contact) {
			logger.Info("skipping contact, message already sent", zap.String("phone", contact.PhoneNumber))
			summary.Skipped++
			continue
		}

		message, err := tmpl.Render(contact)
		if err != nil {
			logger.Error("failed to render template", zap.String("name", contact.Name), zap.Error(err))
			summary.Results = append(summary.Results, MessageResult{Contact: contact, Error: err})
			summary.Failed++
			continue
		}

		if sender == nil {
			logger.Info("[DRY RUN] would send message",
				zap.String("phone", contact.PhoneNumber),
				zap.String("message", message))
			summary.Results = append(summary.Results, MessageResult{Contact: contact, Success: true})
			summary.Sent++
			continue
		}

		if err := sender.SendToPhone(ctx, contact.PhoneNumber, message); err != nil {
			logger.Error("failed to send message", zap.String("name", contact.Name), zap.Error(err))
			summary.Results = append(summary.Results, MessageResult{Contact: contact, Error: err})
			summary.Failed++
			continue
		}

		logger.Info("message sent", zap.String("name", contact.Name))
		if err := tracker.MarkCompleted(contact); err != nil {
			logger.Warn("failed to mark contact as completed", zap.String("phone", contact.PhoneNumber), zap.Error(err))
		}
		summary.Results = append(summary.Results, MessageResult{Contact: contact, Success: true})
		summary.Sent++
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

func runBroadcast(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger.Info("loading contacts", zap.String("path", config.Files.CSVPath))
	contacts, err := ParseCSV(config.Files.CSVPath)
	if err != nil {
		return err
	}
	logger.Info("loaded contacts", zap.Int("count", len(contacts)))

	tmpl, err := LoadTemplate(config.Files.TemplatePath)
	if err != nil {
		return err
	}

	tracker, err := NewCompletedTracker(config.Files.CompletedCSVPath, tmpl.Content)
	if err != nil {
		return err
	}

	var sender phoneSender
	if !broadcastDryRun {
		client, err := openSession(ctx, config)
		if err != nil {
			return err
		}
		defer client.Close()
		sender = client
	}

	summary, err := broadcast(ctx, contacts, tmpl, tracker, sender)
	if err != nil {
		return err
	}

	logger.Info("broadcast summary",
		zap.Int("total", summary.Total),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration))

	if summary.Failed > 0 {
		for _, r := range summary.Results {
			if !r.Success {
				logger.Warn("failed contact",
					zap.String("name", r.Contact.Name),
					zap.String("phone", r.Contact.PhoneNumber),
					zap.Error(r.Error))
			}
		}
		return fmt.Errorf("%d of %d messages failed", summary.Failed, summary.Total)
	}
	return nil
}
