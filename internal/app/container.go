package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	appconfig "github.com/doeshing/aish/internal/application/config"
	"github.com/doeshing/aish/internal/application/doctor"
	"github.com/doeshing/aish/internal/application/generator"
	"github.com/doeshing/aish/internal/application/orchestrator"
	"github.com/doeshing/aish/internal/application/planner"
	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/infrastructure/ai"
	"github.com/doeshing/aish/internal/infrastructure/cache"
	"github.com/doeshing/aish/internal/infrastructure/config"
	contextcollector "github.com/doeshing/aish/internal/infrastructure/context"
	"github.com/doeshing/aish/internal/infrastructure/executor"
	"github.com/doeshing/aish/internal/infrastructure/history"
	"github.com/doeshing/aish/internal/infrastructure/security"
	"github.com/doeshing/aish/internal/pkg/logger"
	"github.com/doeshing/aish/internal/ports"
)

// Overrides are command-line values applied on top of the file and environment.
// Zero values leave the loaded setting alone.
type Overrides struct {
	ConfigPath  string
	Model       string
	Backend     string
	MaxRetries  *int
	Timeout     time.Duration
	OnFailure   string
	ConfirmPlan bool
	Debug       bool
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config       domain.Config
	ConfigLoader *config.FileLoader
	Model        domain.ModelDefinition
	Logger       *logger.ZapLogger

	Collector     ports.ContextCollector
	Validator     *security.Validator
	Executor      *executor.LocalExecutor
	History       ports.HistoryRecorder
	HistoryReader ports.HistoryReader
	// HistorySearch is nil unless the SQLite index is enabled.
	HistorySearch ports.HistorySearcher
	Cache         *cache.FileCache

	Planner       *planner.Service
	Generator     *generator.Service
	Orchestrator  *orchestrator.Orchestrator
	DoctorService *doctor.Service

	snapshotOnce sync.Once
	closers      []io.Closer
}

// BuildContainer constructs the dependency graph. Any error here is a setup
// failure: bad config, unknown model or backend.
func BuildContainer(ctx context.Context, ov Overrides) (*Container, error) {
	loader := config.NewFileLoader(ov.ConfigPath)
	cfg, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg = applyOverrides(cfg, ov)
	if err := appconfig.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", loader.Path(), err)
	}

	model, err := cfg.ResolveModel("")
	if err != nil {
		return nil, err
	}
	if cfg.Preferences.Backend != domain.BackendAuto {
		model.Backend = cfg.Preferences.Backend
	}

	log := logger.New(logger.FromSettings(cfg.Logging, cfg.Preferences.Debug))
	c := &Container{Config: cfg, ConfigLoader: loader, Model: model, Logger: log}

	provider, err := ai.NewFactory(cfg.Reasoning, log.Named("ai")).ForModel(model)
	if err != nil {
		return nil, err
	}

	validator, err := security.NewValidator(cfg.Security.RulesFile)
	if err != nil {
		log.Warn("guardrail rules unusable, using embedded defaults", map[string]interface{}{
			"path":  cfg.Security.RulesFile,
			"error": err.Error(),
		})
		if validator, err = security.NewValidator(""); err != nil {
			return nil, err
		}
	}
	c.Validator = validator
	c.Executor = executor.NewLocalExecutor(cfg.GetExecutionShell(), log.Named("executor"))
	c.Collector = contextcollector.NewBasicCollector()
	c.wireHistory(cfg.History)

	c.Planner = &planner.Service{Provider: provider, Logger: log.Named("planner")}
	if cfg.Cache.Enabled {
		c.Cache = cache.NewFileCache(cfg.Cache.Dir, cfg.CacheTTL(), cfg.GetCacheMaxEntries())
		c.Planner.Cache = c.Cache
	}
	c.Generator = &generator.Service{Provider: provider, Logger: log.Named("generator")}

	c.Orchestrator = &orchestrator.Orchestrator{
		Planner:   c.Planner,
		Generator: c.Generator,
		Validator: c.Validator,
		Executor:  c.Executor,
		History:   c.History,
		Logger:    log.Named("orchestrator"),
		Settings: orchestrator.Settings{
			MaxRetries:     cfg.MaxRetries(),
			Policy:         cfg.FailurePolicy(),
			CommandTimeout: cfg.CommandTimeout(),
			ConfirmPlan:    cfg.Execution.ConfirmPlan,
			Model:          model.Name,
		},
	}
	c.DoctorService = newDoctor(loader, validator, c.Collector, c.Executor.Shell())

	log.Debug("container ready", map[string]interface{}{
		"model":   model.Name,
		"backend": string(model.Backend),
		"policy":  string(cfg.FailurePolicy()),
	})
	return c, nil
}

// BuildDoctor wires only what diagnostics need, so it works even when the
// config does not validate.
func BuildDoctor(ov Overrides) *doctor.Service {
	loader := config.NewFileLoader(ov.ConfigPath)
	shell, rules := "", ""
	if cfg, err := loader.Load(context.Background()); err == nil {
		shell, rules = cfg.GetExecutionShell(), cfg.Security.RulesFile
	}
	validator, err := security.NewValidator(rules)
	if err != nil {
		validator = security.NewBuiltinValidator()
	}
	return newDoctor(loader, validator, contextcollector.NewBasicCollector(), executor.NewLocalExecutor(shell, nil).Shell())
}

func newDoctor(loader *config.FileLoader, validator *security.Validator, collector ports.ContextCollector, shell string) *doctor.Service {
	return &doctor.Service{
		ConfigProvider:   loader,
		ConfigPath:       loader.Path(),
		Validate:         appconfig.Validate,
		RuleCount:        validator.RuleCount,
		ContextCollector: collector,
		Keys: func(m domain.ModelDefinition) (bool, bool) {
			return ai.RequiresKey(m), ai.HasKey(m)
		},
		Shell: shell,
	}
}

// Prepare collects the environment snapshot once per process and hands it to
// the planner and generator.
func (c *Container) Prepare(ctx context.Context) {
	c.snapshotOnce.Do(func() {
		snapshot, err := c.Collector.Collect(ctx, c.Config)
		if err != nil {
			c.Logger.Warn("context collection failed", map[string]interface{}{"error": err.Error()})
		}
		c.Planner.Snapshot = snapshot
		c.Generator.Snapshot = snapshot
	})
}

// Close releases the history index and flushes the logger.
func (c *Container) Close() error {
	var err error
	for _, closer := range c.closers {
		err = multierr.Append(err, closer.Close())
	}
	// stderr sync fails on some terminals; it is not worth reporting
	_ = c.Logger.Sync()
	return err
}

func (c *Container) wireHistory(settings domain.HistorySettings) {
	file := history.NewFileRecorder(settings.Path)
	c.HistoryReader = file
	recorders := []ports.HistoryRecorder{file}

	if settings.SQLiteIndex {
		index, err := history.OpenSQLiteIndex(settings.IndexPath)
		if err != nil {
			c.Logger.Warn("history index disabled", map[string]interface{}{
				"path":  settings.IndexPath,
				"error": err.Error(),
			})
		} else {
			recorders = append(recorders, index)
			c.HistorySearch = index
			c.closers = append(c.closers, index)
		}
	}
	c.History = history.NewMultiRecorder(recorders...)
}

func applyOverrides(cfg domain.Config, ov Overrides) domain.Config {
	if ov.Model != "" {
		cfg.Preferences.DefaultModel = ov.Model
	}
	if ov.Backend != "" {
		cfg.Preferences.Backend = domain.Backend(strings.ToLower(ov.Backend))
	}
	if ov.MaxRetries != nil {
		cfg.Execution.MaxRetries = *ov.MaxRetries
	}
	if ov.Timeout > 0 {
		cfg.Execution.CommandTimeout = ov.Timeout.String()
	}
	if ov.OnFailure != "" {
		cfg.Execution.OnFailure = domain.FailurePolicy(strings.ToLower(ov.OnFailure))
	}
	if ov.ConfirmPlan {
		cfg.Execution.ConfirmPlan = true
	}
	if ov.Debug {
		cfg.Preferences.Debug = true
	}
	return cfg
}
