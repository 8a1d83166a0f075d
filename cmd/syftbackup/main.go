package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/syftbackup/internal/config"
	"github.com/openmined/syftbackup/internal/utils"
	"github.com/openmined/syftbackup/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
	envPrefix      = "SYFTBACKUP"
	stdoutLevel    = new(slog.LevelVar)
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "syftbackup",
		Short:   "Generational folder backups with rdiff deltas",
		Version: version.Detailed(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				stdoutLevel.Set(slog.LevelDebug)
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "config file")
	flags.StringP("source", "s", "", "folder to back up")
	flags.StringP("target", "t", "", "folder holding the generations")
	flags.StringP("prefix", "p", config.DefaultPrefix, "generation name prefix")
	flags.String("time-separator", ":", "character replacing ':' in generation names")
	flags.Bool("short-names", false, "use compact generation names")
	flags.String("differ", config.DefaultDiffer, "differ to use (rdiff, literal)")
	flags.String("rdiff", config.DefaultRdiffPath, "path to the rdiff binary")
	flags.StringSlice("exclude", nil, "gitignore style pattern to skip (repeatable)")
	flags.Duration("full-every", 0, "start a new full generation when the latest is older than this")
	flags.BoolP("verbose", "v", false, "log every file")

	cmd.AddCommand(
		newInitCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newListCmd(),
		newCompactCmd(),
		newPruneCmd(),
		newVersionCmd(),
	)
	return cmd
}

func main() {
	logFile := config.DefaultLogFilePath
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stdoutLevel.Set(slog.LevelInfo)
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      stdoutLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logInterceptor := utils.NewLogInterceptor(file)
	defer logInterceptor.Close()
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// time is added by the interceptor
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the config file, SYFTBACKUP_* environment variables and
// flags, in increasing order of precedence. The result is not validated.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	viper.Reset()
	flags := cmd.Root().PersistentFlags()

	if f := flags.Lookup("config"); f != nil && f.Changed {
		viper.SetConfigFile(f.Value.String())
	} else if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		viper.SetConfigFile(envPath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".syftbackup"))
		viper.AddConfigPath(filepath.Join(home, ".config", "syftbackup"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("source", flags.Lookup("source"))
	viper.BindPFlag("target", flags.Lookup("target"))
	viper.BindPFlag("prefix", flags.Lookup("prefix"))
	viper.BindPFlag("time_separator", flags.Lookup("time-separator"))
	viper.BindPFlag("short_names", flags.Lookup("short-names"))
	viper.BindPFlag("differ", flags.Lookup("differ"))
	viper.BindPFlag("rdiff_path", flags.Lookup("rdiff"))
	viper.BindPFlag("excludes", flags.Lookup("exclude"))
	viper.BindPFlag("full_if_older_than", flags.Lookup("full-every"))

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	path := viper.ConfigFileUsed()
	if path == "" {
		path = flags.Lookup("config").Value.String()
	}

	return &config.Config{
		Source:          viper.GetString("source"),
		Target:          viper.GetString("target"),
		Prefix:          viper.GetString("prefix"),
		TimeSeparator:   viper.GetString("time_separator"),
		ShortNames:      viper.GetBool("short_names"),
		Differ:          viper.GetString("differ"),
		RdiffPath:       viper.GetString("rdiff_path"),
		Excludes:        viper.GetStringSlice("excludes"),
		FullIfOlderThan: config.Duration(viper.GetDuration("full_if_older_than")),
		Path:            path,
	}, nil
}

func loadValidConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func showHeader(cmd *cobra.Command, title string) {
	color.New(color.FgHiCyan, color.Bold).Fprintf(cmd.OutOrStdout(), "%s %s\n", version.ShortWithApp(), title)
}
