package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	loginProfile string
	loginHold    time.Duration

	doctorURL string

	snapshotChars int
	snapshotWait  time.Duration
	snapshotOut   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Open WhatsApp Web and wait for the QR code to be scanned",
	Long: `Opens a visible Chrome window on the profile directory and waits until the
chat list appears. The session is stored in the profile, so later commands
start already logged in.`,
	RunE: runLogin,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that Chrome can be found and driven",
	RunE:  runDoctor,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print page structure counts to debug broken selectors",
	RunE:  runSnapshot,
}

func init() {
	loginCmd.Flags().StringVar(&loginProfile, "profile", "", "profile directory (default: browser.user_data_dir)")
	loginCmd.Flags().DurationVar(&loginHold, "hold", 30*time.Second, "keep the browser open this long after login")

	doctorCmd.Flags().StringVar(&doctorURL, "url", "https://www.google.com", "page to load in the headless check")

	snapshotCmd.Flags().IntVar(&snapshotChars, "chars", 2000, "characters of page HTML to print")
	snapshotCmd.Flags().DurationVar(&snapshotWait, "wait", 10*time.Second, "time to let the page render before probing")
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "also write the snapshot as JSON to this file")
}

// withProfile returns a copy of cfg using dir as the Chrome profile.
func withProfile(cfg *Config, dir string) (*Config, error) {
	out := *cfg
	if dir == "" {
		return &out, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profile path: %w", err)
	}
	out.Browser.UserDataDir = abs
	return &out, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := withProfile(config, loginProfile)
	if err != nil {
		return err
	}
	// the QR code has to be scanned from a visible window
	cfg.Browser.Headless = false

	client, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Session ready. Profile saved in %s\n", cfg.Browser.UserDataDir)
	logger.Info("keeping browser open", zap.Duration("hold", loginHold))
	if err := sleepContext(cmd.Context(), loginHold); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

// locateChrome returns the configured Chrome path or the first candidate
// found on PATH.
func locateChrome(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured Chrome not usable: %w", err)
		}
		return configured, nil
	}
	if runtime.GOOS == "darwin" {
		const mac = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(mac); err == nil {
			return mac, nil
		}
	}
	for _, name := range chromeCandidates {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no Chrome or Chromium executable found on PATH")
}

// probeBrowser launches a throwaway headless Chrome, loads url and returns the
// page title.
func probeBrowser(ctx context.Context, execPath, url string) (string, error) {
	profile, err := os.MkdirTemp("", "wa-doctor-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp profile: %w", err)
	}
	defer os.RemoveAll(profile)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserDataDir(profile),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	bctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	bctx, timeoutCancel := context.WithTimeout(bctx, 60*time.Second)
	defer timeoutCancel()

	var title string
	if err := chromedp.Run(bctx, chromedp.Navigate(url), chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("headless navigation failed: %w", err)
	}
	return title, nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "[1/3] Locating Chrome...")
	execPath, err := locateChrome(config.Browser.ChromePath)
	if err != nil {
		fmt.Fprintf(out, "  x %v\n", err)
		return err
	}
	fmt.Fprintf(out, "  ok %s\n", execPath)

	fmt.Fprintln(out, "[2/3] Checking profile directory...")
	if err := ensureUserDataDir(config.Browser.UserDataDir); err != nil {
		fmt.Fprintf(out, "  x %v\n", err)
		return err
	}
	fmt.Fprintf(out, "  ok %s\n", config.Browser.UserDataDir)

	fmt.Fprintf(out, "[3/3] Loading %s headless...\n", doctorURL)
	title, err := probeBrowser(cmd.Context(), execPath, doctorURL)
	if err != nil {
		fmt.Fprintf(out, "  x %v\n", err)
		return err
	}
	fmt.Fprintf(out, "  ok page title %q\n", title)

	fmt.Fprintln(out, "All checks passed. Run \"wa login\" to link the profile.")
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client := NewWhatsAppClient(config)
	defer client.Close()

	if err := client.Launch(ctx); err != nil {
		return err
	}
	if err := client.WaitAppReady(ctx, time.Duration(config.Browser.PageLoadTimeout)*time.Second); err != nil {
		logger.Warn("application shell not found, probing anyway", zap.Error(err))
	}
	logger.Info("letting the page render", zap.Duration("wait", snapshotWait))
	if err := sleepContext(ctx, snapshotWait); err != nil {
		return err
	}

	snap, err := client.Snapshot(ctx, snapshotChars)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Title: %s\nURL:   %s\n\nElements found:\n", snap.Title, snap.URL)
	for _, probe := range config.Selectors.Probes {
		fmt.Fprintf(out, "  %-40s %d\n", probe, snap.Counts[probe])
	}
	fmt.Fprintf(out, "\nFirst %d characters of HTML:\n%s\n", snapshotChars, snap.HTML)

	if snapshotOut != "" {
		if err := writeJSONFile(snapshotOut, snap, "  "); err != nil {
			return err
		}
		logger.Info("snapshot saved", zap.String("path", snapshotOut))
	}
	return nil
}
