package main

import (
	"context"
	"io"

	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every skill descriptor and report the ones that would be rejected",
	Long: `Read the configured sources and validate every descriptor. Each rejected
descriptor is reported with its origin; the command fails when any is rejected.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runValidateCommand(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func runValidateCommand(ctx context.Context, out, errOut io.Writer) error {
	config, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	source, err := buildSource(config.Skills)
	if err != nil {
		return err
	}

	records, err := source.Records(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read skill sources")
	}

	reg, loadErr := skills.Load(ctx, records, skills.WithStrict())
	return reportValidation(presenter.NewWithOptions(out, errOut, presenter.ColorAuto), len(records), reg, loadErr)
}

func reportValidation(p presenter.Presenter, read int, reg *skills.Registry, loadErr error) error {
	p.Section("Skill descriptors")
	p.Field("read", read)
	p.Field("valid", reg.Len())

	issues := reg.Issues()
	for _, issue := range issues {
		p.Error(issue, "")
	}
	if loadErr != nil {
		return errors.Errorf("%d descriptors rejected", len(issues))
	}

	p.Success("all skill descriptors are valid")
	return nil
}
