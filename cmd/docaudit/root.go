package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docaudit",
	Short: "LLM-backed document review",
	Long: `docaudit analyzes long-form documents with independent detector plugins,
each scanning for one class of issue: math errors, spelling, unsupported
factual claims, forecastable predictions.

Every reported issue carries a verified highlight: an exact byte range of
the original document that round-trips to the quoted text.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to docaudit.yaml (default ./docaudit.yaml)")
}
