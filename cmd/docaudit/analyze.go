package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/docaudit/internal/config"
	"github.com/steveyegge/docaudit/internal/llm"
	"github.com/steveyegge/docaudit/internal/manager"
	"github.com/steveyegge/docaudit/internal/session"
	"github.com/steveyegge/docaudit/internal/types"
)

var (
	analyzePreset  string
	analyzePlugins string
	analyzeTarget  int
	analyzeDryRun  bool
	analyzeJSON    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a document and report findings with verified highlights",
	Long: `Analyze a document with the configured detector plugins.

Presets:
- quick:    spelling + math, tight budget
- standard: spelling + math + factcheck
- thorough: all detectors, generous budget

Examples:
  docaudit analyze report.md
  docaudit analyze --preset=thorough report.md
  docaudit analyze --plugins=math,spelling report.md
  docaudit analyze --target=10 report.md
  docaudit analyze --dry-run report.md      # no model calls
  docaudit analyze --json report.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if analyzePlugins != "" {
			cfg.Plugins = splitList(analyzePlugins)
		}
		if analyzeTarget > 0 {
			cfg.TargetHighlights = analyzeTarget
		}

		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}

		var invoker llm.Invoker
		if analyzeDryRun {
			// Dry run exercises chunking and the pipeline without any
			// model traffic; every extraction comes back empty.
			invoker = llm.NewMockInvoker()
		} else {
			invoker, err = llm.New(cfg.Provider, llm.Config{
				APIKey:            cfg.APIKey,
				Model:             cfg.Model,
				BaseURL:           cfg.BaseURL,
				RequestsPerSecond: cfg.RequestsPerSecond,
			})
			if err != nil {
				return err
			}
		}

		m := manager.New(manager.DefaultRegistry(), invoker, cfg.ManagerConfig())
		sess := session.New("/jobs/analysis")

		result, err := m.Run(context.Background(), doc, cfg.Plugins, sess)
		if err != nil {
			return err
		}

		if analyzeJSON {
			return json.NewEncoder(os.Stdout).Encode(result)
		}
		printResult(doc, result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzePreset, "preset", "", "Preset: quick, standard, or thorough")
	analyzeCmd.Flags().StringVar(&analyzePlugins, "plugins", "", "Comma-separated plugin names (overrides preset)")
	analyzeCmd.Flags().IntVar(&analyzeTarget, "target", 0, "Maximum number of highlights to report")
	analyzeCmd.Flags().BoolVar(&analyzeDryRun, "dry-run", false, "Run the pipeline without model calls")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Emit the full result as JSON")
}

func loadConfig() (*config.Config, error) {
	if analyzePreset != "" {
		switch p := config.Preset(analyzePreset); p {
		case config.PresetQuick, config.PresetStandard, config.PresetThorough:
			return config.PresetDefaults(p), nil
		default:
			return nil, fmt.Errorf("unknown preset %q (want quick, standard, or thorough)", analyzePreset)
		}
	}
	return config.Load(configPath)
}

func readDocument(path string) (types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("reading document: %w", err)
	}
	return types.Document{ID: filepath.Base(path), Text: string(data)}, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func printResult(doc types.Document, result *types.AnalysisResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s %s\n", cyan("Document:"), doc.ID)

	for _, p := range result.Plugins {
		if p.Succeeded {
			fmt.Printf("  %s %-10s %s %s\n", green("✓"), p.Name, p.Summary,
				gray(fmt.Sprintf("(%d calls, %d in / %d out tokens)",
					p.Stats.ModelCalls, p.Stats.InputTokens, p.Stats.OutputTokens)))
		} else {
			fmt.Printf("  %s %-10s %s\n", red("✗"), p.Name, p.Error)
		}
	}

	if len(result.Comments) == 0 {
		fmt.Printf("\n%s\n", green("No issues found."))
		return
	}

	fmt.Printf("\n%d issues:\n", len(result.Comments))
	for i, c := range result.Comments {
		fmt.Printf("\n%d. [%s/%s] %s\n", i+1, c.Plugin, c.Kind, c.Description)
		fmt.Printf("   %s %q\n", gray(fmt.Sprintf("[%d:%d]", c.Highlight.StartOffset, c.Highlight.EndOffset)),
			c.Highlight.QuotedText)
	}

	fmt.Printf("\n%s %d chunks, %d findings, %d comments, %v\n",
		gray("Stats:"), result.Stats.Chunks, result.Stats.TotalFindings,
		result.Stats.TotalComments, result.Stats.Duration.Round(time.Millisecond))
}
