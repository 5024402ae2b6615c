// Package main is the entry point for the concord binary.
// It provides a CLI for running cards, grounding queries, and probing
// payloads against named policies.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/concordia-ai/concord-oss/pkg/config"
	"github.com/concordia-ai/concord-oss/pkg/domain"
	"github.com/concordia-ai/concord-oss/pkg/knowledge"
	"github.com/concordia-ai/concord-oss/pkg/logging"
	"github.com/concordia-ai/concord-oss/pkg/policy"
	"github.com/concordia-ai/concord-oss/pkg/registry"
	"github.com/concordia-ai/concord-oss/pkg/sandbox"
	"github.com/concordia-ai/concord-oss/pkg/tools"
	"github.com/concordia-ai/concord-oss/pkg/triangulate"
	"github.com/concordia-ai/concord-oss/pkg/workflow"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "concord",
		Short:         "Multi-model orchestration core",
		Long:          "Concord runs declarative cards that ground queries, triangulate model outputs, and gate results through policy.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newGroundCmd())
	rootCmd.AddCommand(newEnforceCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// runtimeDeps holds the components a command needs, built from config.
type runtimeDeps struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   domain.KnowledgeStore
	policy  *policy.Engine
	engine  *workflow.Engine
	catalog *workflow.CardCatalog
	watcher *workflow.CardWatcher
}

func buildDeps(cmd *cobra.Command) (*runtimeDeps, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	logger := logging.SetupLogger(logging.Config{Level: cfg.Logging.Level})

	ranker := knowledge.TermOverlapRanker{}
	var store domain.KnowledgeStore
	switch cfg.Knowledge.Backend {
	case "sqlite":
		sqlStore, err := knowledge.OpenSQLite(cfg.Knowledge.Path, ranker)
		if err != nil {
			return nil, fmt.Errorf("open knowledge store: %w", err)
		}
		store = sqlStore
	default:
		store = knowledge.NewMemoryStore(ranker)
	}

	policyEngine := policy.NewEngine(policy.Options{
		DenyClasses: cfg.Policy.DenyClasses,
		Logger:      logger,
		Metrics:     policy.NewMetrics(prometheus.DefaultRegisterer),
	})
	if cfg.Policy.RegoDir != "" {
		count, err := policy.LoadRegoDir(cmd.Context(), policyEngine, cfg.Policy.RegoDir)
		if err != nil {
			return nil, fmt.Errorf("load rego policies: %w", err)
		}
		logger.Info("rego policies loaded", "dir", cfg.Policy.RegoDir, "policies", count)
	}

	executor := sandbox.NewExecutor(sandbox.Options{
		WorkRoot:       cfg.Sandbox.WorkDir,
		MaxOutputBytes: cfg.Sandbox.MaxOutputKB * 1024,
		Logger:         logger,
		Metrics:        sandbox.NewMetrics(prometheus.DefaultRegisterer),
	})

	models := registry.NewModelRegistry()
	router := triangulate.NewRouter(models, logger)
	checker := triangulate.NewChecker(policyEngine)

	toolReg := registry.NewToolRegistry()
	tools.RegisterBuiltins(toolReg, tools.Deps{
		Store:    store,
		Router:   router,
		Checker:  checker,
		Executor: executor,
	})

	catalog := workflow.NewCardCatalog()
	var watcher *workflow.CardWatcher
	if cfg.Cards.Dir != "" {
		count, err := workflow.LoadDir(catalog, cfg.Cards.Dir)
		if err != nil {
			return nil, fmt.Errorf("load cards: %w", err)
		}
		logger.Info("card catalog loaded", "dir", cfg.Cards.Dir, "cards", count)

		if cfg.Cards.Watch {
			watcher, err = workflow.NewCardWatcher(cfg.Cards.Dir, catalog, logger)
			if err != nil {
				return nil, fmt.Errorf("watch cards: %w", err)
			}
		}
	}

	return &runtimeDeps{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		policy:  policyEngine,
		engine:  workflow.NewEngine(toolReg, policyEngine, logger),
		catalog: catalog,
		watcher: watcher,
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <card[@version]>",
		Short: "Run a card from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			if deps.watcher != nil {
				if err := deps.watcher.Start(ctx); err != nil {
					return fmt.Errorf("watch cards: %w", err)
				}
				defer deps.watcher.Stop() //nolint:errcheck // shutdown path
			}

			inputs, err := collectInputs(cmd)
			if err != nil {
				return err
			}

			card, err := deps.catalog.Resolve(args[0])
			if err != nil {
				return err
			}

			result, err := deps.engine.RunCard(ctx, card, inputs)
			if err != nil {
				return err
			}
			if result.Halted {
				deps.logger.Warn("run halted by policy",
					"card", result.CardName,
					"policy", result.HaltDecision.Policy,
				)
			}
			if err := printYAML(cmd, map[string]any{
				"card":            result.CardName,
				"version":         result.CardVersion,
				"halted":          result.Halted,
				"dossier":         result.Dossier,
				"below_threshold": result.BelowThreshold,
			}); err != nil {
				return err
			}
			// Denied runs exit non-zero; the partial result above still prints.
			return result.HaltError()
		},
	}
	cmd.Flags().StringArrayP("input", "i", nil, "Card input as key=value (repeatable)")
	cmd.Flags().String("inputs-file", "", "YAML file of card inputs")
	return cmd
}

func collectInputs(cmd *cobra.Command) (map[string]any, error) {
	inputs := make(map[string]any)

	if path, _ := cmd.Flags().GetString("inputs-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read inputs file: %w", err)
		}
		if err := yaml.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("parse inputs file: %w", err)
		}
	}

	pairs, _ := cmd.Flags().GetStringArray("input")
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", pair)
		}
		inputs[key] = value
	}
	return inputs, nil
}

func newGroundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ground <query>",
		Short: "Retrieve evidence for a query from a knowledge space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			space, _ := cmd.Flags().GetString("space")
			k, _ := cmd.Flags().GetInt("k")
			minScore, _ := cmd.Flags().GetFloat64("min-score")

			result, err := deps.store.Ground(ctx, args[0], space, k, minScore)
			if err != nil {
				return err
			}
			return printYAML(cmd, result)
		},
	}
	cmd.Flags().String("space", "default", "Knowledge space")
	cmd.Flags().Int("k", 5, "Maximum evidence items")
	cmd.Flags().Float64("min-score", 0, "Minimum evidence score")
	return cmd
}

func newEnforceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enforce <policy>",
		Short: "Evaluate a payload against a named policy",
		Long:  "Reads a YAML or JSON payload from --payload-file or stdin and prints the policy decision.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			path, _ := cmd.Flags().GetString("payload-file")
			var data []byte
			if path != "" {
				data, err = os.ReadFile(path)
			} else {
				data, err = readAll(cmd)
			}
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			var payload any
			if err := yaml.Unmarshal(data, &payload); err != nil {
				return fmt.Errorf("parse payload: %w", err)
			}

			decision, err := deps.policy.Enforce(ctx, args[0], payload)
			if err != nil {
				return err
			}
			return printYAML(cmd, decision)
		},
	}
	cmd.Flags().String("payload-file", "", "Payload file (YAML or JSON)")
	return cmd
}

func readAll(cmd *cobra.Command) ([]byte, error) {
	return io.ReadAll(cmd.InOrStdin())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the concord version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "concord %s\n", version)
		},
	}
}

func printYAML(cmd *cobra.Command, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
