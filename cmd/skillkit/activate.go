package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jingkaihe/skillkit/pkg/activation"
	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/workspace"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ActivateConfig holds the request-shaping flags shared by activate and diagnose
type ActivateConfig struct {
	Root        string
	Files       []string
	Prompt      string
	Refs        []string
	Exclusions  []string
	Budget      int
	SortByMTime bool
	JSON        bool
}

// NewActivateConfig creates a new ActivateConfig with default values
func NewActivateConfig() *ActivateConfig {
	return &ActivateConfig{
		Root:        ".",
		SortByMTime: true,
	}
}

var activateCmd = &cobra.Command{
	Use:   "activate [files...]",
	Short: "Compose the guidance of the skills that apply to the given files and prompt",
	Long: `Collect the workspace signal (active files, manifest dependencies, prompt) and
print the composed guidance of every skill that applies.

Files are ordered by modification time, most recent first, unless --sort-by-mtime=false.
The prompt may reference skills with @id and exclude them with !@id. A reference
containing a slash (such as @sap/cds) only counts when it names a registered skill,
so scoped npm packages mentioned in the prompt are ignored.

Examples:
  skillkit activate srv/catalog-service.cds
  skillkit activate app/webapp/manifest.json -p "add a list report"
  skillkit activate -p "@cap-cds how do I model associations?" --budget 8000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getActivateConfigFromFlags(cmd, args)
		return runActivateCommand(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), config)
	},
}

func addActivateFlags(cmd *cobra.Command) {
	defaults := NewActivateConfig()
	cmd.Flags().String("root", defaults.Root, "Workspace root used to resolve files and read manifests")
	cmd.Flags().StringSliceP("file", "f", nil, "Active file (repeatable, in addition to positional arguments)")
	cmd.Flags().StringP("prompt", "p", "", "Prompt text")
	cmd.Flags().StringSlice("ref", nil, "Skill id or name to activate explicitly (repeatable)")
	cmd.Flags().StringSlice("exclude", nil, "Skill id or name to exclude (repeatable)")
	cmd.Flags().Int("budget", 0, "Document budget in characters (0 uses activation.budget)")
	cmd.Flags().Bool("sort-by-mtime", defaults.SortByMTime, "Order active files by modification time")
	cmd.Flags().Bool("json", defaults.JSON, "Print the full result as JSON")
}

func init() {
	addActivateFlags(activateCmd)
}

func getActivateConfigFromFlags(cmd *cobra.Command, args []string) *ActivateConfig {
	config := NewActivateConfig()

	if root, err := cmd.Flags().GetString("root"); err == nil {
		config.Root = root
	}
	if files, err := cmd.Flags().GetStringSlice("file"); err == nil {
		config.Files = append(config.Files, files...)
	}
	config.Files = append(config.Files, args...)
	if prompt, err := cmd.Flags().GetString("prompt"); err == nil {
		config.Prompt = prompt
	}
	if refs, err := cmd.Flags().GetStringSlice("ref"); err == nil {
		config.Refs = refs
	}
	if exclusions, err := cmd.Flags().GetStringSlice("exclude"); err == nil {
		config.Exclusions = exclusions
	}
	if budget, err := cmd.Flags().GetInt("budget"); err == nil {
		config.Budget = budget
	}
	if sortByMTime, err := cmd.Flags().GetBool("sort-by-mtime"); err == nil {
		config.SortByMTime = sortByMTime
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}

	return config
}

// buildRequest collects the workspace signal and turns it into a request
func buildRequest(ctx context.Context, collector workspace.Collector, config *ActivateConfig) (activation.Request, error) {
	if config.Budget < 0 {
		return activation.Request{}, errors.Errorf("budget must not be negative, got %d", config.Budget)
	}

	sig, err := collector.Collect(ctx, workspace.Input{
		Files:        config.Files,
		Prompt:       config.Prompt,
		ExplicitRefs: config.Refs,
	})
	if err != nil {
		return activation.Request{}, errors.Wrap(err, "failed to collect workspace signal")
	}

	return activation.Request{
		ActiveFiles:        sig.ActiveFiles,
		ManifestTokens:     sig.ManifestTokens,
		PromptText:         sig.PromptText,
		ExplicitSkillRefs:  sig.ExplicitSkillRefs,
		ExplicitExclusions: config.Exclusions,
		Budget:             config.Budget,
	}, nil
}

func runActivateCommand(ctx context.Context, out, errOut io.Writer, config *ActivateConfig) error {
	rt, err := newRuntime(ctx, viper.GetViper())
	if err != nil {
		return err
	}

	req, err := buildRequest(ctx, workspace.NewFSCollector(config.Root, config.SortByMTime), config)
	if err != nil {
		return err
	}

	resp, err := rt.engine.Activate(ctx, req)
	if err != nil {
		return errors.Wrap(err, "activation failed")
	}

	return renderResponse(out, errOut, resp, config.JSON)
}

// renderResponse prints the document to out and the notices about it to
// errOut, so that the document can be piped on its own.
func renderResponse(out, errOut io.Writer, resp *activation.Response, asJSON bool) error {
	if asJSON {
		return writeJSON(out, resp)
	}

	notices := presenter.NewWithOptions(errOut, errOut, presenter.ColorAuto)
	if len(resp.UnknownReferences) > 0 {
		notices.Warning("unknown skill references ignored: " + strings.Join(resp.UnknownReferences, ", "))
	}
	if resp.Truncated {
		notices.Warning("guidance truncated to fit the budget")
	}
	if len(resp.Omitted) > 0 {
		notices.Warning("skills omitted to fit the budget: " + strings.Join(resp.Omitted, ", "))
	}
	if len(resp.SkillIDs) == 0 {
		notices.Info("No skills apply.")
		return nil
	}

	_, err := fmt.Fprintln(out, resp.Document)
	return err
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode JSON output")
	}
	return nil
}
