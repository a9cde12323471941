package pbctl

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/pace"
	"github.com/okian/pbspread/pkg/logger"
)

// NewRootCmd builds the pbctl command tree.
func NewRootCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:           "pbctl",
		Short:         "tools for squad personal-best sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if verbose {
				return logger.SetLevelString("debug")
			}
			return nil
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newComputeCmd())
	cmd.AddCommand(newFormatCmd())
	cmd.AddCommand(newPaceCmd())
	cmd.AddCommand(newLoadCmd())
	return cmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func newGenerateCmd() *cobra.Command {
	var (
		athletes int
		output   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "write a random squad sheet as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat := catalog.Default()
			rows, err := GenerateSquad(cmd.Context(), cat, athletes)
			if err != nil {
				return err
			}
			if output == "" {
				return WriteCSV(cmd.OutOrStdout(), cat, rows)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			if err := WriteCSV(f, cat, rows); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().IntVarP(&athletes, "athletes", "n", DefaultAthletes, "number of athletes")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newComputeCmd() *cobra.Command {
	var (
		file string
		top  int
	)
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "compute averages and rankings for a CSV sheet offline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ComputeFile(cmd.Context(), file, top, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV sheet to compute")
	cmd.Flags().IntVar(&top, "top", DefaultTopN, "leaders to list per event")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format SECONDS",
		Short: "format seconds per 500m as m:ss.s",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid seconds %q: %w", args[0], err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pace.FormatSeconds(s))
			return err
		},
	}
}

func newPaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pace CELL",
		Short: "parse a sheet cell and print its split and watts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pb := pace.ParsePace(args[0])
			if pb == nil {
				return fmt.Errorf("no pace in %q", args[0])
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.1fs\t%.1fW\n", pb.PaceText, pb.PaceSeconds, pb.Power)
			return err
		},
	}
}

func newLoadCmd() *cobra.Command {
	config := &Config{}
	var event string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "upload random sheets to a running server and verify its leaderboard",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			key, err := catalog.ParseKey(event)
			if err != nil {
				return err
			}
			config.Event = key
			if config.Workers < 1 {
				config.Workers = 1
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := Run(cmd.Context(), config)
			return err
		},
	}
	cmd.Flags().StringVar(&config.BaseURL, "url", DefaultBaseURL, "base URL of the service")
	cmd.Flags().IntVar(&config.Sheets, "sheets", DefaultSheets, "number of sheets to upload")
	cmd.Flags().IntVar(&config.Athletes, "athletes", DefaultAthletes, "athletes per sheet")
	cmd.Flags().StringVar(&event, "event", catalog.K2.String(), "event leaderboard to verify")
	cmd.Flags().IntVar(&config.TopN, "top", DefaultTopN, "leaderboard entries to verify")
	cmd.Flags().IntVar(&config.Workers, "workers", runtime.NumCPU(), "concurrent uploaders")
	cmd.Flags().DurationVar(&config.Timeout, "timeout", DefaultTimeout, "HTTP request timeout")
	cmd.Flags().DurationVar(&config.Settle, "settle", DefaultSettle, "wait for the newest sheet to publish")
	return cmd
}
