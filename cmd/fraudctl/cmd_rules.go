package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hive-corporation/fraudshield/internal/adapter/rulesfile"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the built-in rule set as a YAML rules file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := rulesfile.Marshal(domain.DefaultRuleSet())
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
		return err
	},
}
