package domain

// Config mirrors ~/.aish/config.yaml.
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version"`
	Preferences         Preferences       `yaml:"preferences"`
	Models              []ModelDefinition `yaml:"models"`
	Context             ContextSettings   `yaml:"context"`
	Security            SecuritySettings  `yaml:"security"`
	Execution           ExecutionSettings `yaml:"execution"`
	Reasoning           ReasoningSettings `yaml:"reasoning"`
	History             HistorySettings   `yaml:"history"`
	Cache               CacheSettings     `yaml:"cache"`
	Logging             LoggingSettings   `yaml:"logging"`
}

// Preferences captures user level toggles.
type Preferences struct {
	DefaultModel   string   `yaml:"default_model"`
	FallbackModels []string `yaml:"fallback_models,omitempty"`
	// Backend, when set, replaces the backend of whichever model is selected.
	Backend        Backend  `yaml:"backend,omitempty"`
	Debug          bool     `yaml:"debug"`
}

// ContextSettings configures environment collection for prompts.
type ContextSettings struct {
	IncludeFiles bool   `yaml:"include_files"`
	MaxFiles     int    `yaml:"max_files"`
	IncludeGit   string `yaml:"include_git"`
	IncludeEnv   bool   `yaml:"include_env"`
}

// SecuritySettings points at the guardrail rules.
type SecuritySettings struct {
	RulesFile string `yaml:"rules_file"`
}

// ExecutionSettings controls how commands run.
type ExecutionSettings struct {
	Shell          string        `yaml:"shell"`
	CommandTimeout string        `yaml:"command_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	OnFailure      FailurePolicy `yaml:"on_failure"`
	ConfirmPlan    bool          `yaml:"confirm_plan"`
}

// ReasoningSettings tunes requests to the reasoning backend.
type ReasoningSettings struct {
	RequestTimeout    string  `yaml:"request_timeout"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Temperature       float64 `yaml:"temperature"`
}

// HistorySettings locates the audit log.
type HistorySettings struct {
	Path        string `yaml:"path"`
	SQLiteIndex bool   `yaml:"sqlite_index"`
	IndexPath   string `yaml:"index_path"`
}

// CacheSettings configures the plan cache.
type CacheSettings struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	TTL        string `yaml:"ttl"`
	MaxEntries int    `yaml:"max_entries"`
}

// LoggingSettings configures the diagnostic log.
type LoggingSettings struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// FailurePolicy decides what happens to the rest of a plan after a step fails.
type FailurePolicy string

const (
	PolicyAbort FailurePolicy = "abort"
	PolicySkip  FailurePolicy = "skip"
)

// Valid reports whether p is a known policy.
func (p FailurePolicy) Valid() bool {
	return p == PolicyAbort || p == PolicySkip
}
