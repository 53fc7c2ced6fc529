package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leofalp/chatrelay/core/config"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the offered model ids and the provider behind each",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			models, err := cfg.Catalog()
			if err != nil {
				return err
			}
			configured := cfg.Configured()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROVIDER\tNATIVE\tSTREAMING\tAVAILABLE\tPRICING")
			for _, entry := range models.Models() {
				pricing := "-"
				if !entry.Pricing.IsZero() {
					pricing = entry.Pricing.String()
				}
				marker := ""
				if entry.ID == cfg.FallbackModel {
					marker = " (fallback)"
				}
				fmt.Fprintf(w, "%s%s\t%s\t%s\t%t\t%t\t%s\n",
					entry.ID, marker, entry.Provider, entry.NativeName, entry.Streaming,
					slices.Contains(configured, entry.Provider), pricing)
			}
			return w.Flush()
		},
	}
}
