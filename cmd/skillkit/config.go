package main

import (
	"context"
	"time"

	"github.com/jingkaihe/skillkit/pkg/activation"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the resolved configuration of a skillkit invocation
type Config struct {
	Skills     SkillsConfig     `mapstructure:"skills"`
	Activation ActivationConfig `mapstructure:"activation"`
	Reload     ReloadConfig     `mapstructure:"reload"`
	Serve      ServeConfig      `mapstructure:"serve"`
}

// SkillsConfig selects where descriptors are read from. With neither dirs
// nor a manifest, the default skill directories are scanned.
type SkillsConfig struct {
	Dirs       []string `mapstructure:"dirs"`
	PluginDirs []string `mapstructure:"plugin_dirs"`
	Manifest   string   `mapstructure:"manifest"`
}

// ActivationConfig tunes the engine
type ActivationConfig struct {
	Budget                   int                `mapstructure:"budget"`
	Weights                  activation.Weights `mapstructure:"weights"`
	ConflictExemptExtensions []string           `mapstructure:"conflict_exempt_extensions"`
}

// ReloadConfig controls registry reloads
type ReloadConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Attempts uint          `mapstructure:"attempts"`
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	weights := activation.DefaultWeights()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
	v.SetDefault("activation.budget", activation.DefaultBudget)
	v.SetDefault("activation.weights.pattern", weights.Pattern)
	v.SetDefault("activation.weights.keyword", weights.Keyword)
	v.SetDefault("activation.weights.dependency", weights.Dependency)
	v.SetDefault("activation.weights.decay_step", weights.DecayStep)
	v.SetDefault("activation.weights.decay_floor", weights.DecayFloor)
	v.SetDefault("activation.weights.explicit", weights.Explicit)
	v.SetDefault("reload.timeout", skills.DefaultReloadTimeout)
	v.SetDefault("reload.attempts", skills.DefaultReloadAttempts)
	v.SetDefault("reload.watch", false)
	v.SetDefault("reload.debounce", skills.DefaultDebounce)
	v.SetDefault("serve.host", "localhost")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)
}

// loadConfig decodes and validates the configuration held by v
func loadConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	if config.Activation.Budget <= 0 {
		return nil, errors.Errorf("activation.budget must be positive, got %d", config.Activation.Budget)
	}
	if err := config.Activation.Weights.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid activation.weights")
	}
	if config.Reload.Timeout <= 0 {
		return nil, errors.Errorf("reload.timeout must be positive, got %s", config.Reload.Timeout)
	}
	if config.Reload.Attempts == 0 {
		return nil, errors.New("reload.attempts must be at least 1")
	}

	return &config, nil
}

// buildSource assembles the descriptor source from the skills configuration
func buildSource(config SkillsConfig) (skills.Source, error) {
	var sources skills.MultiSource

	if config.Manifest != "" {
		sources = append(sources, skills.ManifestSource{Path: config.Manifest})
	}

	if len(config.Dirs) > 0 || len(config.PluginDirs) > 0 || config.Manifest == "" {
		var opts []skills.DirOption
		if len(config.Dirs) > 0 {
			opts = append(opts, skills.WithSkillDirs(config.Dirs...))
		}
		if len(config.PluginDirs) > 0 {
			opts = append(opts, skills.WithPluginDirs(config.PluginDirs...))
		}

		dirs, err := skills.NewDirectorySource(opts...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to set up skill directories")
		}
		sources = append(sources, dirs)
	}

	if len(sources) == 1 {
		return sources[0], nil
	}
	return sources, nil
}

// runtime is the loaded store and engine shared by the commands
type runtime struct {
	config *Config
	source skills.Source
	store  *skills.Store
	engine *activation.Engine
}

// newRuntime loads the configuration, performs the initial registry load and
// builds the engine on top of the store.
func newRuntime(ctx context.Context, v *viper.Viper) (*runtime, error) {
	config, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	source, err := buildSource(config.Skills)
	if err != nil {
		return nil, err
	}

	store := skills.NewStore(source,
		skills.WithReloadTimeout(config.Reload.Timeout),
		skills.WithReloadAttempts(config.Reload.Attempts),
	)
	if _, err := store.Reload(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to load skills")
	}

	engine, err := activation.NewEngine(store,
		activation.WithWeights(config.Activation.Weights),
		activation.WithDefaultBudget(config.Activation.Budget),
		activation.WithExemptExtensions(config.Activation.ConflictExemptExtensions...),
	)
	if err != nil {
		return nil, err
	}

	return &runtime{
		config: config,
		source: source,
		store:  store,
		engine: engine,
	}, nil
}
