// internal/cli/root.go
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"loangenius/internal/common/config"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/observability"
)

type rootState struct {
	version    string
	configPath string
	logLevel   string
	app        *App
}

// NewRootCommand builds the loangenius command tree. When app is nil it is
// built from configuration before the first subcommand runs.
func NewRootCommand(version string, app *App) *cobra.Command {
	st := &rootState{version: version, app: app}
	prebuilt := app != nil

	cmd := &cobra.Command{
		Use:           "loangenius",
		Short:         "Find personal loan offers from partner lenders",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if st.app != nil {
				return nil
			}
			built, err := buildApp(st, cmd)
			if err != nil {
				return err
			}
			st.app = built
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if !prebuilt && st.app != nil {
				st.app.Close()
				st.app.Obs.Shutdown()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&st.configPath, "config", "", "config file (default: configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(
		newApplyCommand(st),
		newOffersCommand(st),
		newHealthCommand(st),
		newContactCommand(st),
		newLogoutCommand(st),
	)
	return cmd
}

func buildApp(st *rootState, cmd *cobra.Command) (*App, error) {
	var (
		cfg *config.Config
		err error
	)
	if st.configPath != "" {
		cfg, err = config.LoadFromFile(st.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if st.logLevel != "" {
		level = st.logLevel
	}
	zapLog, err := logger.Build(level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return nil, err
	}

	app, err := Build(cfg, logger.NewZapAdapter(zapLog), NewTerminalPrompter(os.Stdout), cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}
	app.Obs = observability.New("loangenius-cli")
	return app, nil
}
