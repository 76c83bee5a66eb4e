// Package main provides roomctl, a command-line companion to the room API
// that loads the configured data sources and runs SQL against them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/covidroom/internal/config"
	"github.com/stwalsh4118/covidroom/internal/database"
	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/services"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// session is an engine with every configured source loaded into it.
type session struct {
	engine  database.Engine
	sources services.DataSourceService
	log     *logger.Logger
	cfg     *config.Config
}

func (s *session) Close() {
	if err := s.engine.Close(); err != nil {
		s.log.Error("Failed to close query engine", err, nil)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "roomctl",
		Short:         "Load COVID room data sources and query them from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log source loading progress")

	open := func(cmd *cobra.Command) (*session, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		log := logger.Nop()
		if verbose {
			log = logger.NewWithLevel(cfg.Server.Env, "debug")
		}

		engine, err := database.Open(cmd.Context(), cfg)
		if err != nil {
			return nil, fmt.Errorf("open %s engine: %w", cfg.Engine.Driver, err)
		}
		room := services.BuildRoomConfig(cfg)
		sources := services.NewDataSourceService(engine, room.DataSources, services.DataSourceOptions{
			Concurrency:  cfg.Data.LoadConcurrency,
			FetchTimeout: cfg.Data.FetchTimeout,
		}, log, nil)
		return &session{engine: engine, sources: sources, log: log, cfg: cfg}, nil
	}

	rootCmd.AddCommand(newLoadCmd(open), newQueryCmd(open))
	return rootCmd
}

func newLoadCmd(open func(*cobra.Command) (*session, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load every data source and print its status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			loadErr := s.sources.LoadAll(cmd.Context())
			renderStatus(cmd.OutOrStdout(), s.sources.Status())
			return loadErr
		},
	}
}

func newQueryCmd(open func(*cobra.Command) (*session, error)) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a SQL statement against the loaded tables",
		Example: `  roomctl query "SELECT state, SUM(new_deaths) FROM covid_2021 GROUP BY state"
  roomctl query --format csv "SELECT * FROM covid_2020 LIMIT 10"`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			// A failed source leaves its table absent; the statement reports it.
			if err := s.sources.LoadAll(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", err)
			}

			queries := services.NewQueryService(s.engine, services.QueryOptions{
				Timeout: s.cfg.Engine.QueryTimeout,
				MaxRows: s.cfg.Engine.MaxRows,
			}, s.log, nil)
			result, err := queries.Execute(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return renderResult(cmd.OutOrStdout(), result, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, csv, md or json")
	return cmd
}
