package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-jobportal-client/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "jobportal"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	logLevel string
	envFiles []string
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Job portal client",
		Long:          "Command line client for the job portal: sign in, browse jobs, and follow notifications and chats live.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts.logLevel)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(opts)
			if err == nil {
				displayAppname(cfg.GetAppName())
			}
			_ = cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "Env files to load instead of ./.env")

	cmd.AddCommand(
		loginCmd(opts),
		registerCmd(opts),
		logoutCmd(opts),
		whoamiCmd(opts),
		forgotPasswordCmd(opts),
		resetPasswordCmd(opts),
		jobsCmd(opts),
		applyCmd(opts),
		notificationsCmd(opts),
		chatCmd(opts),
		watchCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func setupLogging(level string) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func loadConfig(opts *options) (config.Config, error) {
	if len(opts.envFiles) > 0 {
		return config.Load(opts.envFiles...)
	}
	return config.New(), nil
}

// withApp builds the client, runs fn and tears everything down.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
