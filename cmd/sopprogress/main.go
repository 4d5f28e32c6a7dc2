package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wisarudtecha/CMS-sub002/internal/logging"
)

// app carries the loaded configuration and logger shared by every command.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        Config
	level      *slog.LevelVar
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: newViper(), level: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:           "sopprogress",
		Short:         "Resolve and track the progress of SOP workflow cases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "settings file (default ~/.sopprogress/settings.json)")
	pf.String("db-path", "", "database path (default ~/.sopprogress/sopprogress.db)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("language", "", "default title language")
	pf.Int("bypass-depth", 0, "how many non-step nodes a step may bridge over")
	pf.String("delay-rule", "", "expr predicate marking extra nodes as delays")
	pf.String("sla-risk-rule", "", "CEL rule for the at_risk SLA status")
	pf.String("listen-addr", "", "HTTP listen address")
	pf.Bool("panel", false, "serve the HTTP panel API")
	pf.String("monitor-schedule", "", "cron schedule of the SLA sweep")
	pf.Int("monitor-workers", 0, "cases checked concurrently by a sweep")
	pf.Duration("cache-ttl", 0, "lifetime of cached resolutions")
	a.bindFlags(root, map[string]string{
		"db_path":          "db-path",
		"log_level":        "log-level",
		"log_format":       "log-format",
		"language":         "language",
		"bypass_depth":     "bypass-depth",
		"delay_rule":       "delay-rule",
		"sla_risk_rule":    "sla-risk-rule",
		"listen_addr":      "listen-addr",
		"panel":            "panel",
		"monitor_schedule": "monitor-schedule",
		"monitor_workers":  "monitor-workers",
		"cache_ttl":        "cache-ttl",
	})

	root.AddCommand(
		newServeCmd(a),
		newResolveCmd(a),
		newValidateCmd(a),
		newInitCmd(a),
		newVersionCmd(),
	)
	return root
}

// bindFlags ties config keys to persistent flags so a set flag wins over every
// other layer.
func (a *app) bindFlags(cmd *cobra.Command, keys map[string]string) {
	flags := cmd.PersistentFlags()
	for key, name := range keys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.level.Set(logging.ParseLevel(cfg.LogLevel))
	a.logger = logging.NewLeveled(cmd.ErrOrStderr(), a.level, cfg.LogFormat)
	slog.SetDefault(a.logger)
	return nil
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
