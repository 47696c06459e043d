package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"genoetl/internal/config"
)

// errInvalidConfig is returned when validate-config finds an error.
var errInvalidConfig = errors.New("configuration is invalid")

func newValidateConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Check the resolved configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues := config.ValidatePipeline(a.cfg)
			for _, iss := range issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if config.HasErrors(issues) {
				return errInvalidConfig
			}
			src := a.cfgFile
			if src == "" {
				src = "defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %s\n", src)
			return nil
		},
	}
}
