package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/docaudit/internal/chunker"
	"github.com/steveyegge/docaudit/internal/config"
)

var chunksStrategy string

var chunksCmd = &cobra.Command{
	Use:   "chunks <file>",
	Short: "Show how a document would be split into chunks",
	Long: `Split a document with the configured chunker and dump every chunk's
offsets, lines, and heading context. Each chunk's offset invariant is
verified against the document. Useful for tuning chunker settings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if chunksStrategy != "" {
			cfg.Chunker.Strategy = chunker.Strategy(chunksStrategy)
		}

		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}

		ck, err := chunker.New(cfg.Chunker)
		if err != nil {
			return err
		}
		chunks, err := ck.Chunk(doc)
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("%s: %d chunks (%s strategy)\n", doc.ID, len(chunks), cfg.Chunker.Strategy)
		for i, c := range chunks {
			if err := c.Verify(doc.Text); err != nil {
				return fmt.Errorf("chunk %d fails verification: %w", i, err)
			}
			fmt.Printf("\n%s %s [%d:%d] lines %d-%d, %d bytes\n",
				cyan(fmt.Sprintf("chunk %d", i+1)), gray(c.ID),
				c.StartOffset, c.EndOffset, c.StartLine, c.EndLine, len(c.Text))
			if len(c.HeadingContext) > 0 {
				fmt.Printf("  under: %s\n", strings.Join(c.HeadingContext, " > "))
			}
			fmt.Printf("  %s\n", gray(preview(c.Text, 80)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chunksCmd)
	chunksCmd.Flags().StringVar(&chunksStrategy, "strategy", "", "Override strategy: structural, semantic, or hybrid")
}

func preview(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxLen {
		s = s[:maxLen] + "…"
	}
	return s
}
