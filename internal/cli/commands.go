package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dyike/FundManagerGo/config"
	"github.com/dyike/FundManagerGo/internal/agent"
	"github.com/dyike/FundManagerGo/internal/display"
	"github.com/dyike/FundManagerGo/internal/memory"
	"github.com/dyike/FundManagerGo/internal/pipeline"
	"github.com/dyike/FundManagerGo/internal/storage"
	"github.com/dyike/FundManagerGo/internal/storage/sqlite"
	"github.com/dyike/FundManagerGo/internal/stream"
	"github.com/dyike/FundManagerGo/models"
)

const Version = "0.2.0"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cfg := activeConfig()

	rootCmd := &cobra.Command{
		Use:   "fundmanager",
		Short: "FundManagerGo - Agentic AI Fund Manager",
		Long: `FundManagerGo orchestrates a three-stage investment consultation:
a financial-profile assessment, a portfolio design, and a risk scenario
analysis, each run by a remote reasoning agent and streamed live to your
terminal.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug || cfg.Debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			// Follow external edits to the config file for the lifetime of
			// the command; long interactive consults pick them up before the
			// pipeline starts.
			if mgr := config.DefaultManager(); mgr != nil {
				if err := mgr.Watch(cmd.Context(), nil); err != nil {
					logrus.WithError(err).Debug("config watch unavailable")
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsult(cmd.Context(), cfg, consultOptions{interactive: true})
		},
	}

	rootCmd.AddCommand(newConsultCmd(cfg))
	rootCmd.AddCommand(newHistoryCmd(cfg))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	return rootCmd
}

// activeConfig returns the managed configuration, which falls back to
// environment-derived defaults when no config file can be managed.
func activeConfig() *config.Config {
	cfg := config.Get()
	return &cfg
}

type consultOptions struct {
	interactive bool
	sessionId   string
	amountEok   float64
	targetEok   float64
	age         int
	experience  int
	purpose     string
	sectors     []string
}

func newConsultCmd(cfg *config.Config) *cobra.Command {
	var opts consultOptions

	cmd := &cobra.Command{
		Use:   "consult",
		Short: "Run a new fund management consultation",
		Long: `Run the full consultation pipeline. Without flags the investor profile
is collected interactively.
Example: fundmanager consult --amount=0.5 --target=0.7 --age=32 --experience=7 --purpose="노후 준비" --sectors="성장주 (기술/바이오)"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.interactive = !cmd.Flags().Changed("amount")
			return runConsult(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sessionId, "session", "", "Session id (default: derived from start time)")
	cmd.Flags().Float64Var(&opts.amountEok, "amount", 0.5, "Investable amount in 억원 units")
	cmd.Flags().Float64Var(&opts.targetEok, "target", 0.7, "Target amount in 억원 units")
	cmd.Flags().IntVar(&opts.age, "age", 32, "Investor age")
	cmd.Flags().IntVar(&opts.experience, "experience", 7, "Stock investment experience in years")
	cmd.Flags().StringVar(&opts.purpose, "purpose", "단기 수익 추구", "Investment purpose")
	cmd.Flags().StringSliceVar(&opts.sectors, "sectors", []string{"성장주 (기술/바이오)"}, "Preferred sectors")

	return cmd
}

func runConsult(ctx context.Context, cfg *config.Config, opts consultOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	req, err := buildRequest(opts)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid investor profile: %w", err)
	}

	// The interactive prompts can stay open for a while; re-read the managed
	// config so endpoint edits made meanwhile apply to this run.
	if config.DefaultManager() != nil {
		cfg = activeConfig()
	}

	sessionId := opts.sessionId
	if sessionId == "" {
		sessionId = pipeline.NewSessionId(time.Now())
	}
	fmt.Printf("Session: %s\n", sessionId)

	store, err := sqlite.Open(filepath.Join(cfg.DataDir, "fundmanager.db"))
	if err != nil {
		return fmt.Errorf("open transcript store: %w", err)
	}
	defer store.Close()

	requestJSON, _ := json.Marshal(req)
	recorder, err := storage.NewRecorder(ctx, store, sessionId, string(requestJSON))
	if err != nil {
		return fmt.Errorf("start transcript recorder: %w", err)
	}

	view := NewStreamView(os.Stdout)
	emit := func(ev *stream.Event) {
		view.Handle(ev)
		recorder.OnEvent(ev)
	}

	orchestrator := pipeline.NewOrchestrator(cfg, agent.NewInvoker(), memory.NewClient(cfg))
	state, runErr := orchestrator.Run(ctx, req, sessionId, emit)
	recorder.Close()

	if runErr != nil {
		return fmt.Errorf("consultation failed: %w", runErr)
	}

	display.NewConsultationView(os.Stdout).Render(state)
	fmt.Println()
	fmt.Println("🎉 All agents completed. The consultation is summarized asynchronously;")
	fmt.Printf("   check it later with: fundmanager history --session=%s\n", sessionId)
	return nil
}

func buildRequest(opts consultOptions) (*models.ConsultationRequest, error) {
	if opts.interactive {
		return PromptForRequest()
	}
	return &models.ConsultationRequest{
		TotalInvestableAmount:          display.ParseEok(opts.amountEok),
		Age:                            opts.age,
		StockInvestmentExperienceYears: opts.experience,
		TargetAmount:                   display.ParseEok(opts.targetEok),
		InvestmentPurpose:              opts.purpose,
		PreferredSectors:               opts.sectors,
	}, nil
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Show and update the persisted FundManagerGo configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := json.MarshalIndent(config.Get(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show where the configuration is persisted",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := config.DefaultManager()
			if mgr == nil {
				return fmt.Errorf("no writable config location available")
			}
			fmt.Fprintln(cmd.OutOrStdout(), mgr.Path())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <json>",
		Short: "Update the persisted configuration",
		Long: `Merge a JSON document into the persisted configuration.
Example: fundmanager config set '{"memory_id": "fund-mem-01"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := config.DefaultManager()
			if mgr == nil {
				return fmt.Errorf("no writable config location available")
			}

			merged := mgr.Get()
			if err := json.Unmarshal([]byte(args[0]), &merged); err != nil {
				return fmt.Errorf("parse config json: %w", err)
			}
			if err := mgr.Update(merged); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration updated: %s\n", mgr.Path())
			return nil
		},
	})

	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("FundManagerGo v%s\n", Version)
		},
	}
}
