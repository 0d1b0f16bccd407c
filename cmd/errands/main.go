package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"errands/internal/config"
	"errands/internal/croneval"
	"errands/internal/daemon"
	"errands/internal/domain"
	"errands/internal/handlers/httpcheck"
	"errands/internal/handlers/shell"
	"errands/internal/registry"
)

// builders maps an errand type from the config file to its callable builder.
var builders = map[string]func(map[string]any) (domain.Callable, error){
	"shell": shell.New,
	"http":  httpcheck.New,
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "errands",
		Short:         "cron-driven errand scheduling and execution",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.TimeFieldFormat = time.RFC3339
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "errands.yaml", "config file path")

	// One long-running daemon command per tier.
	for _, tier := range domain.Tiers {
		root.AddCommand(tierCommand(tier, &cfgFile))
	}
	root.AddCommand(checkCommand(&cfgFile))
	return root
}

func tierCommand(tier domain.Tier, cfgFile *string) *cobra.Command {
	name := strings.ToLower(string(tier))
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("run the %s tier daemon until signalled", name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(cfg)
			if err != nil {
				return err
			}
			d, err := daemon.New(daemon.Options{
				Tier:       tier,
				BaseDir:    cfg.BaseDir,
				StatusAddr: cfg.StatusAddrFor(tier),
				Workers:    cfg.WorkersFor(tier),
			}, reg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return d.Run(ctx)
		},
	}
}

func checkCommand(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "validate the config and print the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			now := time.Now()
			for _, tier := range domain.Tiers {
				fmt.Fprintf(out, "%s errands:\n", tier)
				defs := reg.ForTier(tier)
				if len(defs) == 0 {
					fmt.Fprintln(out, "  (none)")
					continue
				}
				for _, def := range defs {
					next, err := croneval.Next(def.CronExpr, now)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "  %-32s %-20s next %s\n", def.ID, def.CronExpr, next.Format(time.RFC3339))
				}
			}
			return nil
		},
	}
}

// buildRegistry turns config declarations into registered errands. Any bad
// declaration (unknown type, bad params, bad cron, duplicate name) fails
// startup here, before a scheduler ever runs.
func buildRegistry(cfg config.Config) (*registry.Registry, error) {
	reg := registry.New()
	for _, spec := range cfg.Errands {
		build, ok := builders[spec.Type]
		if !ok {
			return nil, fmt.Errorf("%w: errand %s: unknown type %q", domain.ErrConfiguration, spec.Name, spec.Type)
		}
		run, err := build(spec.Params)
		if err != nil {
			return nil, fmt.Errorf("%w: errand %s: %v", domain.ErrConfiguration, spec.Name, err)
		}
		tier, err := domain.ParseTier(spec.Tier)
		if err != nil {
			return nil, fmt.Errorf("errand %s: %w", spec.Name, err)
		}
		if err := reg.Register(domain.ErrandDefinition{
			ID:       spec.Name,
			Name:     spec.Name,
			CronExpr: spec.Cron,
			Tier:     tier,
			Run:      run,
			Timeout:  spec.Timeout,
		}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
