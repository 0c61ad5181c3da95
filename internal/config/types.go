package config

// Limits defines operational boundaries for one loop run.
type Limits struct {
	MaxIterations       int     `yaml:"max_iterations"`
	MaxDurationHours    float64 `yaml:"max_duration_hours"`
	NoProgressThreshold int     `yaml:"no_progress_threshold"` // 0 disables stuck detection
}

// Assistant configures how the assistant CLI is invoked.
type Assistant struct {
	Command         string   `yaml:"command"`
	Model           string   `yaml:"model,omitempty"`
	MaxTurns        int      `yaml:"max_turns"`
	OutputFormat    string   `yaml:"output_format"`
	Verbose         bool     `yaml:"verbose"`
	SkipPermissions bool     `yaml:"skip_permissions"`
	ExtraArgs       []string `yaml:"extra_args,omitempty"`
}

// Paths locates the artifacts the loop reads and the assistant maintains.
// Relative paths are resolved against the project root.
type Paths struct {
	Spec     string `yaml:"spec"`
	Plan     string `yaml:"plan"`
	Progress string `yaml:"progress"`
}

// Config represents the .loopsh/config.yaml file.
type Config struct {
	Limits    Limits    `yaml:"limits"`
	Assistant Assistant `yaml:"assistant"`
	Paths     Paths     `yaml:"paths"`
	DryRun    bool      `yaml:"dry_run"`
	LogLevel  string    `yaml:"log_level"`
}
