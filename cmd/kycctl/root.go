package main

import (
	"io"

	"github.com/spf13/cobra"

	"tasdeeq.app/internal/config"
)

var version = "0.1.0"

type app struct {
	configPath string
	cfg        *config.Config
	stdout     io.Writer
	stderr     io.Writer
}

// loadConfig resolves the shared service configuration once per invocation.
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{stdout: out, stderr: errOut}

	cmd := &cobra.Command{
		Use:           "kycctl",
		Short:         "Operator tooling for the tasdeeq verification service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to the YAML config file")

	cmd.AddCommand(
		newMigrateCmd(a),
		newTokenCmd(a),
	)
	return cmd
}
