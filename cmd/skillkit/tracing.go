package main

import (
	"context"

	"github.com/jingkaihe/skillkit/pkg/telemetry"
	"github.com/jingkaihe/skillkit/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// initTracing initializes the OpenTelemetry tracing system
func initTracing(ctx context.Context) (func(context.Context) error, error) {
	config := telemetry.Config{
		Enabled:        viper.GetBool("tracing.enabled"),
		ServiceName:    "skillkit",
		ServiceVersion: version.Get().Version,
		SamplerType:    viper.GetString("tracing.sampler"),
		SamplerRatio:   viper.GetFloat64("tracing.ratio"),
	}

	return telemetry.InitTracer(ctx, config)
}

var tracer = telemetry.Tracer("skillkit.cli")

// withTracing wraps a Cobra command with a span covering its execution
func withTracing(cmd *cobra.Command) *cobra.Command {
	originalRunE := cmd.RunE

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		attrs := []attribute.KeyValue{
			attribute.String("command.name", cmd.Name()),
			attribute.String("command.path", cmd.CommandPath()),
			attribute.Int("args.count", len(args)),
		}

		// Prompts can be long and personal, record only that they were set
		cmd.Flags().Visit(func(flag *pflag.Flag) {
			if flag.Name == "prompt" {
				attrs = append(attrs, attribute.Bool("flag.prompt", true))
				return
			}
			attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
		})

		ctx, span := tracer.Start(cmd.Context(), "cli.command", trace.WithAttributes(attrs...))
		defer span.End()

		cmd.SetContext(ctx)

		if err := originalRunE(cmd, args); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		span.SetStatus(codes.Ok, "")
		return nil
	}

	return cmd
}

func init() {
	rootCmd.PersistentFlags().Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	rootCmd.PersistentFlags().String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	rootCmd.PersistentFlags().Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.sampler", rootCmd.PersistentFlags().Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.ratio", rootCmd.PersistentFlags().Lookup("tracing-ratio"))
}
