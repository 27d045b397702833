package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jingkaihe/skillkit/pkg/activation"
	"github.com/jingkaihe/skillkit/pkg/workspace"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [files...]",
	Short: "Explain how every skill scored for the given files and prompt",
	Long: `Run the activation pipeline and print the score and reasons of every registered
skill, including the ones that did not activate, followed by exclusions and
category conflicts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getActivateConfigFromFlags(cmd, args)
		return runDiagnoseCommand(cmd.Context(), cmd.OutOrStdout(), config)
	},
}

func init() {
	addActivateFlags(diagnoseCmd)
}

func runDiagnoseCommand(ctx context.Context, out io.Writer, config *ActivateConfig) error {
	rt, err := newRuntime(ctx, viper.GetViper())
	if err != nil {
		return err
	}

	req, err := buildRequest(ctx, workspace.NewFSCollector(config.Root, config.SortByMTime), config)
	if err != nil {
		return err
	}

	diag, err := rt.engine.Diagnose(ctx, req)
	if err != nil {
		return errors.Wrap(err, "diagnosis failed")
	}

	if config.JSON {
		return writeJSON(out, diag)
	}
	return renderDiagnosis(out, diag)
}

func renderDiagnosis(out io.Writer, diag *activation.Diagnosis) error {
	selected := make(map[string]bool, len(diag.SkillIDs))
	for _, id := range diag.SkillIDs {
		selected[id] = true
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SKILL\tCATEGORY\tSCORE\tACTIVE\tREASONS")
	fmt.Fprintln(w, "-----\t--------\t-----\t------\t-------")
	for _, m := range diag.Matches {
		score := fmt.Sprintf("%.2f", m.Score)
		if m.Explicit {
			score = "explicit"
		}
		active := ""
		if selected[m.SkillID] {
			active = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.SkillID, m.Category, score, active, strings.Join(m.Reasons, "; "))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(diag.Excluded) > 0 {
		fmt.Fprintf(out, "\nExcluded: %s\n", strings.Join(diag.Excluded, ", "))
	}
	if len(diag.Dropped) > 0 {
		fmt.Fprintln(out)
	}
	for _, d := range diag.Dropped {
		fmt.Fprintf(out, "Dropped %s in favor of %s (%s, shared %s)\n", d.SkillID, d.KeptID, d.Category, strings.Join(d.Extensions, ", "))
	}
	if len(diag.UnknownReferences) > 0 {
		fmt.Fprintf(out, "\nUnknown references: %s\n", strings.Join(diag.UnknownReferences, ", "))
	}
	return nil
}
