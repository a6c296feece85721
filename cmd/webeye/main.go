package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/polzovatel/webeye/internal/browser"
	"github.com/polzovatel/webeye/internal/config"
	"github.com/polzovatel/webeye/internal/dom"
	"github.com/polzovatel/webeye/internal/snapshot"
	"github.com/polzovatel/webeye/internal/tools"
)

type rootOptions struct {
	configPath string
	storage    string
	saveState  string
	verbose    bool
}

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("webeye failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "webeye",
		Short:         "Locate and drive page elements from a scraped snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := zerolog.InfoLevel
			if opts.verbose {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.storage, "storage", "", "Path to Playwright storage state")
	cmd.PersistentFlags().StringVar(&opts.saveState, "save-state", "", "Path to save updated storage state")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(newScrapeCmd(opts), newRunCmd(opts))
	return cmd
}

// session is one launched browser page with everything wired on top of it.
type session struct {
	launcher *browser.Launcher
	ctrl     browser.Controller
	scraper  *snapshot.Scraper
	settings config.Settings
}

func openSession(ctx context.Context, opts *rootOptions) (*session, error) {
	settings, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	launcher, err := browser.NewLauncher(ctx, settings, log.With().Str("comp", "browser").Logger())
	if err != nil {
		return nil, fmt.Errorf("browser init: %w", err)
	}
	ctrl, err := launcher.NewController(ctx, opts.storage)
	if err != nil {
		_ = launcher.Close()
		return nil, fmt.Errorf("browser controller: %w", err)
	}
	scraper := snapshot.NewScraper(settings.IDAttr, log.With().Str("comp", "scraper").Logger())
	scraper.Select2Settle = settings.Select2Settle
	scraper.ActionTimeout = settings.BrowserActionTimeout
	return &session{
		launcher: launcher,
		ctrl:     ctrl,
		scraper:  scraper,
		settings: settings,
	}, nil
}

func (s *session) close(ctx context.Context, saveState string) {
	if saveState != "" {
		if err := s.ctrl.SaveState(ctx, saveState); err != nil {
			log.Error().Err(err).Msg("save state")
		} else {
			log.Info().Str("path", saveState).Msg("storage saved")
		}
	}
	_ = s.ctrl.Close(ctx)
	_ = s.launcher.Close()
}

func (s *session) scrape(ctx context.Context) (*snapshot.Snapshot, error) {
	return s.scraper.Scrape(ctx, s.ctrl.Page())
}

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	var url, out string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Open a page and write its snapshot as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx, opts.saveState)

			if err := s.ctrl.Navigate(ctx, url); err != nil {
				return err
			}
			if err := s.ctrl.WaitForStableDOM(ctx, s.settings.NavigationTimeout); err != nil {
				log.Debug().Err(err).Msg("wait for stable DOM")
			}
			snap, err := s.scrape(ctx)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Print(snap.String())
				return nil
			}
			return snap.Save(out)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Page to open")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the snapshot JSON here instead of printing a listing")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var url, stepsPath, snapPath string
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute tool steps against element ids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			steps, err := loadSteps(stepsPath)
			if err != nil {
				return err
			}
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx, opts.saveState)

			logger := log.With().Str("comp", "tools").Logger()
			sess := tools.NewSession(dom.FromPage(s.ctrl.Page()), s.scrape, s.settings.DOM(), logger)
			toolbox := tools.New(s.ctrl, sess, terminalPrompt(), logger)

			if url != "" {
				res, err := toolbox.Invoke(ctx, "navigate", map[string]any{"url": url})
				if err != nil {
					return err
				}
				log.Debug().Msg(res.Observation)
			}
			if snapPath != "" {
				snap, err := snapshot.Load(snapPath)
				if err != nil {
					return err
				}
				sess.Use(snap)
			}
			return runSteps(ctx, toolbox, steps, keepGoing)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Page to open and scrape before the first step")
	cmd.Flags().StringVar(&stepsPath, "steps", "", "JSON file with the steps to run")
	cmd.Flags().StringVar(&snapPath, "snapshot", "", "Use this snapshot instead of the one taken on navigation")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue after a failed step")
	_ = cmd.MarkFlagRequired("steps")
	return cmd
}

func terminalPrompt() tools.PromptFunc {
	reader := bufio.NewReader(os.Stdin)
	return func(ctx context.Context, message string) (string, error) {
		fmt.Printf("\n=== Input required ===\n%s\n> ", message)
		text, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		return strings.TrimSpace(text), nil
	}
}
