package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool

	config *Config
)

var rootCmd = &cobra.Command{
	Use:   "wa",
	Short: "WhatsApp Web automation through a real Chrome profile",
	Long: `wa drives WhatsApp Web in Chrome with a persistent profile.

Run "wa login" once and scan the QR code; later commands reuse the session to
list chats, send messages, and harvest conversation history to JSON or SQLite.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = LoadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}

		logger, err = NewLogger(config.Logging, verbose)
		if err != nil {
			return err
		}
		logger.Debug("configuration loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		loginCmd,
		doctorCmd,
		snapshotCmd,
		contactsCmd,
		verifyCmd,
		peekCmd,
		sendCmd,
		broadcastCmd,
		harvestCmd,
		relayCmd,
	)
}

// openSession starts the browser on cfg's profile and waits for login. The
// caller must Close the returned client.
func openSession(ctx context.Context, cfg *Config) (*WhatsAppClient, error) {
	client := NewWhatsAppClient(cfg)
	if err := client.Initialize(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
