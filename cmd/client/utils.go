package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/openmined/skywriter/internal/client/config"
	"github.com/openmined/skywriter/internal/utils"
	"github.com/openmined/skywriter/internal/version"
	"github.com/spf13/cobra"
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
)

func showHeader(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", cyan(version.AppName), gray(version.Short()))
	fmt.Fprintf(out, "Config:   %s\n", green(cfg.Path))
	fmt.Fprintf(out, "Server:   %s\n", cyan(cfg.ServerURL))
	fmt.Fprintf(out, "Secret:   %s\n", gray(utils.MaskSecret(cfg.Secret)))
	if table, err := cfg.Table(); err == nil {
		for _, m := range table.All() {
			fmt.Fprintf(out, "Mapping:  %s\n", m)
		}
	}
	fmt.Fprintln(out)
}
