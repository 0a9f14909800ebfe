// Package main provides templatectl, an offline tool for turning local
// documents into exported templates and drafting from them.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/legal-drafting/internal/document"
	"github.com/capitalize-ai/legal-drafting/internal/extraction"
	"github.com/capitalize-ai/legal-drafting/internal/llm"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/internal/render"
	"github.com/capitalize-ai/legal-drafting/internal/store"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

const (
	Version = "0.1.0"
	appName = "templatectl"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Work with legal templates offline",
		Long: `templatectl extracts templates from local documents, exports stored
template JSON as markdown and renders drafts from exported templates.

Nothing is sent to the API server.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(extractCmd(), exportCmd(), renderCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})
	return cmd
}

func extractCmd() *cobra.Command {
	var (
		analyzer  string
		chunkSize int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract a template from a document",
		Long: `Extract parses a PDF, DOCX, HTML, markdown or text document and prints
the candidate template as exported markdown. With --analyzer=llm the
ANTHROPIC_API_KEY or OPENAI_API_KEY environment variable selects the model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			text, _, err := document.NewRegistry().Parse(args[0], "", content)
			if err != nil {
				return err
			}

			a, err := cliAnalyzer(analyzer)
			if err != nil {
				return err
			}
			engine := extraction.NewEngine(a, extraction.Options{ChunkSize: chunkSize}, logger.Nop())
			result, err := engine.Extract(cmd.Context(), text, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			md, err := store.Export(&result.Template)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), md)
			return err
		},
	}

	cmd.Flags().StringVar(&analyzer, "analyzer", "heuristic", "Analyzer to use (heuristic, llm)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", extraction.DefaultChunkSize, "Characters per analyzer chunk")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full extraction result as JSON")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <template.json>",
		Short: "Export a template JSON file as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}
			var t model.Template
			if err := json.Unmarshal(data, &t); err != nil {
				return fmt.Errorf("decode template: %w", err)
			}
			t.Normalize()
			if err := t.Validate(); err != nil {
				return err
			}
			md, err := store.Export(&t)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), md)
			return err
		},
	}
}

func renderCmd() *cobra.Command {
	var (
		sets         []string
		asHTML       bool
		allowMissing bool
	)

	cmd := &cobra.Command{
		Use:   "render <template.md>",
		Short: "Render a draft from an exported template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}
			t, err := store.Import(string(data))
			if err != nil {
				return err
			}

			bindings, err := parseSets(t, sets)
			if err != nil {
				return err
			}
			if missing := t.MissingRequired(bindings); len(missing) > 0 && !allowMissing {
				return model.MissingVariables(missing)
			}

			out := render.Render(t.Body, bindings).Text
			if asHTML {
				if out, err = render.HTML(out); err != nil {
					return err
				}
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Bind a variable (key=value); repeatable")
	cmd.Flags().BoolVar(&asHTML, "html", false, "Render HTML instead of markdown")
	cmd.Flags().BoolVar(&allowMissing, "allow-missing", false, "Render even when required variables are unbound")
	return cmd
}

// parseSets turns key=value flags into validated bindings for t.
func parseSets(t *model.Template, sets []string) (map[string]string, error) {
	bindings := make(map[string]string, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", s)
		}
		v, found := t.Variable(key)
		if !found {
			return nil, model.NewError(model.KindUnknownVariable, "unknown variable %q", key)
		}
		value = strings.TrimSpace(value)
		if err := v.ValidateValue(value); err != nil {
			return nil, err
		}
		bindings[key] = value
	}
	return bindings, nil
}

func cliAnalyzer(name string) (extraction.Analyzer, error) {
	switch name {
	case "heuristic":
		return extraction.NewHeuristicAnalyzer(), nil
	case "llm":
		client, err := llm.FromKeys(llm.Provider(os.Getenv("DEFAULT_LLM")), os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("OPENAI_API_KEY"))
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("--analyzer=llm needs ANTHROPIC_API_KEY or OPENAI_API_KEY")
		}
		return extraction.NewLLMAnalyzer(llm.WithRetry(client, llm.DefaultRetryConfig(), logger.Nop()), os.Getenv("LLM_MODEL")), nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q", name)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
