package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/config"
	"github.com/gustavlindstroms/parkmalmokontor/internal/deploy"
	"github.com/gustavlindstroms/parkmalmokontor/internal/logging"
)

func newDeployCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:       "deploy [development|production] [hosting|all]",
		Short:     "Build the web client and deploy it to Firebase",
		Args:      cobra.MaximumNArgs(2),
		ValidArgs: []string{config.EnvDevelopment, config.EnvProduction, deploy.TargetHosting, deploy.TargetAll},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, target := config.EnvProduction, deploy.TargetHosting
			if len(args) > 0 {
				mode = args[0]
			}
			if len(args) > 1 {
				target = args[1]
			}

			logger, err := logging.NewLogger("info", config.EnvDevelopment)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			plan, err := deploy.NewPlan(mode, target, dir)
			if err != nil {
				return err
			}
			logger.Info("Deploy plan", zap.String("envFile", plan.EnvFile), zap.String("project", plan.ProjectID))
			return deploy.Execute(cmd.Context(), plan, deploy.ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}, logger)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Web client directory: holds the .env files and is where the build and deploy run")
	return cmd
}
