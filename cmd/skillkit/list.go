package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jingkaihe/skillkit/pkg/server"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered skills",
	Long:  `List the skills loaded from the configured sources with their category, file patterns and keywords.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		category, _ := cmd.Flags().GetString("category")
		return runListCommand(cmd.Context(), cmd.OutOrStdout(), category, asJSON)
	},
}

func init() {
	names := make([]string, 0, len(skills.Categories()))
	for _, c := range skills.Categories() {
		names = append(names, string(c))
	}

	listCmd.Flags().Bool("json", false, "Print the registry as JSON")
	listCmd.Flags().String("category", "", "Only list skills of this category in the table ("+strings.Join(names, ", ")+")")
}

func runListCommand(ctx context.Context, out io.Writer, category string, asJSON bool) error {
	rt, err := newRuntime(ctx, viper.GetViper())
	if err != nil {
		return err
	}

	reg := rt.store.Current()
	list, err := filterCategory(reg.ByCategory(), category)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, server.DescribeRegistry(reg))
	}
	return renderSkills(out, list)
}

// filterCategory keeps the skills of one category; an empty name keeps all
func filterCategory(list []*skills.Skill, category string) ([]*skills.Skill, error) {
	if category == "" {
		return list, nil
	}

	c, err := skills.ParseCategory(category)
	if err != nil {
		return nil, err
	}

	out := make([]*skills.Skill, 0, len(list))
	for _, s := range list {
		if s.Category == c {
			out = append(out, s)
		}
	}
	return out, nil
}

func renderSkills(out io.Writer, list []*skills.Skill) error {
	if len(list) == 0 {
		fmt.Fprintln(out, "No skills found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPATTERNS\tKEYWORDS\tSIZE")
	fmt.Fprintln(w, "--\t----\t--------\t--------\t--------\t----")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			s.ID,
			s.DisplayName,
			s.Category,
			strings.Join(s.FilePatterns, ","),
			strings.Join(s.Keywords, ","),
			s.EstimatedSize,
		)
	}
	return w.Flush()
}
