package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/loykin/devrun/internal/logger"
	"github.com/loykin/devrun/internal/relay"
	"github.com/loykin/devrun/internal/service"
)

// FileConfig represents the top-level TOML structure of devrun.toml.
//
//	env = ["NODE_ENV=development"]
//	pid_dir = "pids"
//
//	[log]
//	dir = "logs"
//
//	[history]
//	dsn = "sqlite://devrun-history.db"
//
//	[server]
//	listen = "127.0.0.1:9180"
//
//	[[services]]
//	name = "backend"
//	command = "go run ."
//	workdir = "backend/go"
//	color = "blue"
//
//	[[services]]
//	name = "frontend"
//	command = "npm run dev"
//	workdir = "frontend"
//	color = "green"
//	interactive = true
type FileConfig struct {
	Env      []string        `toml:"env" mapstructure:"env"`
	PidDir   string          `toml:"pid_dir" mapstructure:"pid_dir"`
	Log      *logger.Config  `toml:"log" mapstructure:"log"`
	History  HistoryConfig   `toml:"history" mapstructure:"history"`
	Server   ServerConfig    `toml:"server" mapstructure:"server"`
	Services []ServiceConfig `toml:"services" mapstructure:"services"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type ServerConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"` // empty disables the status server
}

type ServiceConfig struct {
	Name        string         `toml:"name" mapstructure:"name"`
	Command     string         `toml:"command" mapstructure:"command"`
	WorkDir     string         `toml:"workdir" mapstructure:"workdir"`
	Env         []string       `toml:"env" mapstructure:"env"`
	Interactive bool           `toml:"interactive" mapstructure:"interactive"`
	Color       string         `toml:"color" mapstructure:"color"`
	Log         *logger.Config `toml:"log" mapstructure:"log"`
}

// DefaultPidDir is used when no pid_dir is configured.
const DefaultPidDir = "pids"

// Load reads and validates a TOML config file.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	if err := fc.normalize(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Default returns the classic two-service session the tool grew up with: a Go
// backend and an npm dev server. The frontend is interactive because its dev
// server prompts for confirmation before exiting.
func Default() *FileConfig {
	fc := &FileConfig{
		PidDir: DefaultPidDir,
		Services: []ServiceConfig{
			{Name: "backend", Command: "go run .", WorkDir: filepath.Join("backend", "go"), Color: "blue"},
			{Name: "frontend", Command: "npm run dev", WorkDir: "frontend", Color: "green", Interactive: true},
		},
	}
	// Default cannot fail validation.
	_ = fc.normalize()
	return fc
}

func (fc *FileConfig) normalize() error {
	if fc.PidDir == "" {
		fc.PidDir = DefaultPidDir
	}
	if len(fc.Services) == 0 {
		return fmt.Errorf("no services configured")
	}
	seen := make(map[string]bool, len(fc.Services))
	for i := range fc.Services {
		sc := &fc.Services[i]
		if seen[sc.Name] {
			return fmt.Errorf("duplicate service name %q", sc.Name)
		}
		seen[sc.Name] = true
		if _, ok := relay.Palette[sc.Color]; !ok {
			return fmt.Errorf("service %s: unknown color %q", sc.Name, sc.Color)
		}
	}
	return nil
}

// Specs converts the configured services into launchable specs, folding the
// global [log] section into services that do not override it.
func (fc *FileConfig) Specs() ([]service.Spec, error) {
	specs := make([]service.Spec, 0, len(fc.Services))
	for _, sc := range fc.Services {
		lg := logger.Config{}
		if fc.Log != nil {
			lg = *fc.Log
		}
		if sc.Log != nil {
			lg = *sc.Log
		}
		sp := service.Spec{
			Name:        sc.Name,
			Command:     sc.Command,
			WorkDir:     sc.WorkDir,
			Env:         sc.Env,
			Interactive: sc.Interactive,
			Color:       sc.Color,
			Log:         lg,
		}
		if err := sp.Validate(); err != nil {
			return nil, err
		}
		specs = append(specs, sp)
	}
	return specs, nil
}
