package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ehrlich-b/logkeep/internal/cli"
	"github.com/ehrlich-b/logkeep/internal/config"
	"github.com/ehrlich-b/logkeep/internal/logstore"
	"github.com/ehrlich-b/logkeep/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "logkeep",
		Short:         "A log sink in a single SQLite file",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (default: .logkeep.yaml/.toml/.json in the current directory)")
	rootCmd.PersistentFlags().String("db", "", "Store file, overriding the config")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log diagnostics to stderr")

	rootCmd.AddCommand(
		writeCmd(),
		queryCmd(),
		recentCmd(),
		pruneCmd(),
		statsCmd(),
		exportCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config, else a config file in the working directory,
// else defaults. --db wins over any configured path.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	dbPath, _ := cmd.Flags().GetString("db")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		var workDir string
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		cfg, _, err = config.Load(workDir)
		if errors.Is(err, config.ErrNoConfig) {
			cfg, err = config.Default()
		}
	}
	if err != nil {
		return nil, err
	}

	if dbPath != "" {
		cfg.SetPath(dbPath)
	}
	return cfg, nil
}

// withSession opens the store for the duration of fn.
func withSession(cmd *cobra.Command, fn func(s *cli.Session) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := cli.OpenSession(cfg, os.Stdout, newLogger(cmd))
	if err != nil {
		return err
	}

	err = fn(s)
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func severityFlag(cmd *cobra.Command) (logstore.Severity, error) {
	v, _ := cmd.Flags().GetString("severity")
	return logstore.ParseSeverity(v)
}

func writeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write MESSAGE...",
		Short: "Write one entry",
		Long: `Write one entry to the store.

Entries less severe than the configured filter are dropped.

Examples:
  logkeep write -s error "disk full"
  logkeep write -s warning --meta disk=sda1 --meta pct=91 "disk almost full"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := severityFlag(cmd)
			if err != nil {
				return err
			}
			meta, _ := cmd.Flags().GetStringArray("meta")
			return withSession(cmd, func(s *cli.Session) error {
				_, err := cli.Write(s, cli.WriteOptions{
					Severity: sev,
					Message:  strings.Join(args, " "),
					Meta:     meta,
				})
				return err
			})
		},
	}
	cmd.Flags().StringP("severity", "s", "notice", "Severity (emergency..debug or 0..7)")
	cmd.Flags().StringArray("meta", nil, "Metadata as key=value (repeatable)")
	return cmd
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print entries in a time range, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := severityFlag(cmd)
			if err != nil {
				return err
			}
			since, _ := cmd.Flags().GetDuration("since")
			opts := cli.QueryOptions{Since: since, Severity: sev}
			if opts.Start, err = timeFlag(cmd, "start"); err != nil {
				return err
			}
			if opts.End, err = timeFlag(cmd, "end"); err != nil {
				return err
			}
			return withSession(cmd, func(s *cli.Session) error {
				_, err := cli.Query(s, opts)
				return err
			})
		},
	}
	cmd.Flags().Duration("since", 0, "Only entries newer than this (e.g. 24h)")
	cmd.Flags().String("start", "", "Range start (RFC 3339)")
	cmd.Flags().String("end", "", "Range end (RFC 3339, default now)")
	cmd.Flags().StringP("severity", "s", "debug", "Least severe level to include")
	return cmd
}

func timeFlag(cmd *cobra.Command, name string) (time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return t, nil
}

func recentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print the newest entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := severityFlag(cmd)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("count")
			return withSession(cmd, func(s *cli.Session) error {
				_, err := cli.Recent(s, n, sev)
				return err
			})
		},
	}
	cmd.Flags().IntP("count", "n", 20, "Number of entries")
	cmd.Flags().StringP("severity", "s", "debug", "Least severe level to include")
	return cmd
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete entries older than the retention window now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *cli.Session) error {
				_, err := cli.Prune(s)
				return err
			})
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store size, entry count and settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *cli.Session) error {
				_, err := cli.Stats(s)
				return err
			})
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entries as gzip-compressed NDJSON",
		Long: `Export entries, oldest first, as gzip-compressed NDJSON with a SHA3-256
digest.

By default the export is written to archive.dir. With --r2 it is uploaded to
the configured Cloudflare R2 bucket under exports/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := severityFlag(cmd)
			if err != nil {
				return err
			}
			since, _ := cmd.Flags().GetDuration("since")
			dir, _ := cmd.Flags().GetString("dir")
			r2, _ := cmd.Flags().GetBool("r2")
			name, _ := cmd.Flags().GetString("name")
			if r2 && dir != "" {
				return errors.New("--dir and --r2 are mutually exclusive")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withSession(cmd, func(s *cli.Session) error {
				_, err := cli.Export(ctx, s, cli.ExportOptions{
					Since:    since,
					Severity: sev,
					Dir:      dir,
					R2:       r2,
					Name:     name,
				})
				return err
			})
		},
	}
	cmd.Flags().Duration("since", 0, "Only entries newer than this (e.g. 168h)")
	cmd.Flags().StringP("severity", "s", "debug", "Least severe level to include")
	cmd.Flags().String("dir", "", "Export directory (default: archive.dir)")
	cmd.Flags().Bool("r2", false, "Upload to Cloudflare R2")
	cmd.Flags().String("name", "", "Export name (default: timestamped)")

	cmd.AddCommand(exportListCmd(), exportShowCmd(), exportDeleteCmd())
	return cmd
}

func exportListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List exports in the export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withSession(cmd, func(s *cli.Session) error {
				_, err := cli.ListExports(s, dir)
				return err
			})
		},
	}
	cmd.Flags().String("dir", "", "Export directory (default: archive.dir)")
	return cmd
}

func exportShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Verify an export's digest and print its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			r2, _ := cmd.Flags().GetBool("r2")
			if r2 && dir != "" {
				return errors.New("--dir and --r2 are mutually exclusive")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withSession(cmd, func(s *cli.Session) error {
				_, err := cli.ShowExport(ctx, s, args[0], cli.ExportOptions{Dir: dir, R2: r2})
				return err
			})
		},
	}
	cmd.Flags().String("dir", "", "Export directory (default: archive.dir)")
	cmd.Flags().Bool("r2", false, "Read from Cloudflare R2")
	return cmd
}

func exportDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an export from the export directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withSession(cmd, func(s *cli.Session) error {
				return cli.DeleteExport(s, dir, args[0])
			})
		},
	}
	cmd.Flags().String("dir", "", "Export directory (default: archive.dir)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(configValidateCmd())
	return cmd
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			workDir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			return cli.ValidateConfig(path, workDir, os.Stdout)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("logkeep", version.Version)
		},
	}
}
