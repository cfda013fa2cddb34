package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mholen/hvacctl/internal/config"
	"github.com/mholen/hvacctl/internal/domain/plan"
)

// initConfigCmd writes a starter configuration file.
var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a starter configuration file.",
	Long: `Write a configuration file populated with defaults and example sensor
mappings and action lists, to be edited for the target installation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) > 0 {
			path = args[0]
		}

		if err := config.Save(path, starterConfig()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote starter configuration to %s\n", path)

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(initConfigCmd)
}

// starterConfig builds the example document written by init-config.
func starterConfig() *config.Config {
	cfg := config.Default()

	cfg.Endpoint.BaseURL = "https://building.example.com"
	cfg.Endpoint.SessionFile = "state/session.json"

	cfg.Sensors = config.Sensors{
		IndoorTemp:  "360.005-RT40",
		IndoorRH:    "360.005-RH40",
		OutdoorTemp: "360.005-RT90",
	}

	damperOpen := "100"
	cfg.Actions = plan.ActionTable{
		HighRH: []plan.ActionSpec{
			{Operation: plan.OpForce, Point: "360.005-JV40_Cmd", Value: &damperOpen},
		},
		CondensationRisk: []plan.ActionSpec{
			{Operation: plan.OpForce, Point: "360.005-JV40_Cmd", Value: &damperOpen},
		},
		AirQuality: []plan.ActionSpec{
			{Operation: plan.OpForce, Point: "360.005-JV40_Cmd", Value: &damperOpen},
		},
		Normal: []plan.ActionSpec{
			{Operation: plan.OpUnforce, Point: "360.005-JV40_Cmd"},
		},
	}

	return cfg
}
