package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Hara602/triangleSentry/internal/config"
	"github.com/Hara602/triangleSentry/internal/report"
	"github.com/Hara602/triangleSentry/internal/scanner"
	"github.com/Hara602/triangleSentry/internal/sysutil"
)

var (
	errorColor   = color.New(color.FgHiRed)
	warningColor = color.New(color.FgHiYellow)
)

func newRootCmd(out io.Writer, code *int) *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "triangle-check <path/to/mounted_ios_image>",
		Short: "Scan full iOS filesystem images for traces of compromise by Operation Triangulation",
		Long: `Scan full iOS filesystem images for traces of compromise by Operation Triangulation.

Known-bad process names are reported as exact matches. Independently innocuous events
(SMS attachment directory churn, network usage records, location service changes) are
correlated on a single timeline and reported when several kinds occur within a short span.

Exit codes: 0 no traces found, 2 traces found, 1 setup error.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			if cfg.Output.NoColor {
				color.NoColor = true
			}
			if err := sysutil.InitLogger(cfg.Log.Level, cfg.Log.JSON); err != nil {
				return err
			}
			defer sysutil.Log.Sync()

			found, err := run(cmd.Context(), cmd.ErrOrStderr(), out, cfg, args[0])
			if err != nil {
				return err
			}
			if found {
				*code = exitDetected
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "Config file path (YAML)")
	flags.String("ioc-file", "", "YAML file with process/location IOC lists")
	flags.Int("window-size", 0, "Events per heuristic window")
	flags.Duration("max-span", 0, "Maximum time span of a heuristic window")
	flags.Int("workers", 0, "Parallel workers for window evaluation")
	flags.Bool("json", false, "Output detections as JSON")
	flags.Bool("no-color", false, "Disable colored output")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	bindFlags(v, cmd)

	return cmd
}

// executeCmd 执行命令；cobra 已静默错误输出，所有错误 (包括用法错误) 统一在这里打印
func executeCmd(cmd *cobra.Command) error {
	err := cmd.Execute()
	if err != nil {
		errorColor.Fprintln(cmd.ErrOrStderr(), err)
	}
	return err
}

// bindFlags 只有显式传入的 flag 才覆盖配置文件/环境变量
func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	keys := map[string]string{
		"ioc-file":    "ioc.file",
		"window-size": "heuristics.window_size",
		"max-span":    "heuristics.max_span",
		"workers":     "heuristics.workers",
		"no-color":    "output.no_color",
		"log-level":   "log.level",
	}
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		for flag, key := range keys {
			if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}
		if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				v.Set("output.format", "json")
			}
		}
		return nil
	}
}

// run 执行一次扫描并输出报告，返回是否存在检测结果
func run(ctx context.Context, stderr, out io.Writer, cfg *config.Config, root string) (bool, error) {
	log := sysutil.Log

	if !sysutil.IsDir(root) {
		return false, fmt.Errorf("%s is not a directory or doesn't exist", root)
	}
	if missing := sysutil.MissingLayoutDirs(root); len(missing) > 0 {
		warningColor.Fprintf(stderr, "Warning: This doesn't appear to be a typical iOS filesystem. Missing directories: %s\n", strings.Join(missing, ", "))
		warningColor.Fprintln(stderr, "Continuing anyway, but results may not be reliable.")
	}

	lists, err := cfg.IOCLists()
	if err != nil {
		return false, err
	}

	s := scanner.New(scanner.Options{
		Heuristics: cfg.HeuristicOptions(),
		Lists:      lists,
		Logger:     log,
	})

	var spin *spinner.Spinner
	if f, ok := stderr.(*os.File); ok && cfg.Output.Format == "text" {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
		spin.Suffix = fmt.Sprintf(" Scanning %s for signs of Operation Triangulation compromise...", root)
		spin.Start()
	}
	res, err := s.Scan(ctx, root)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return false, err
	}
	log.Info("Scan finished",
		zap.String("root", root),
		zap.Int("events", res.Events),
		zap.Int("detections", len(res.Detections)),
	)

	if cfg.Output.Format == "json" {
		if err := report.WriteJSON(out, res.Detections); err != nil {
			return false, err
		}
	} else {
		w := report.NewWriter(out, !color.NoColor)
		if err := w.Detections(res.Detections); err != nil {
			return false, err
		}
		if len(res.Detections) == 0 {
			w.Inconclusive(res.Skipped, res.Warnings)
		}
	}
	return len(res.Detections) > 0, nil
}
