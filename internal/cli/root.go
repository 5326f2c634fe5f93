// Package cli — команды бинарника дашборда.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/infra"
)

var (
	configPath string

	cfg    *infra.Config
	logger *zap.Logger
)

// Execute запускает корневую команду. Без подкоманды поднимается сервер.
func Execute() error {
	root := &cobra.Command{
		Use:          "secure-access-dashboard",
		Short:        "Cisco Secure Access enrollment, machine tunnel and ZTNA activity dashboard",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = infra.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err = infra.NewLogger(cfg.Logger)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml or ./configs/config.yaml)")

	serve := serveCmd()
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, reportCmd())
	return root.Execute()
}
