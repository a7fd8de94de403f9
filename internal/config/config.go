// Package config resolves kollzsh settings from flags, the environment and an
// optional dotenv file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oraraka-deko/kollzsh/kollzsh"
)

// EnvPrefix namespaces every environment variable (KOLLZSH_MODEL, ...).
const EnvPrefix = "KOLLZSH"

// Setting keys. Each maps to KOLLZSH_<KEY> and, where bound, a --flag.
const (
	KeyProvider  = "provider"
	KeyContract  = "contract"
	KeyModel     = "model"
	KeyURL       = "url"
	KeyKeepAlive = "keep_alive"
	KeyAPIKey    = "api_key"
	KeyTimeout   = "timeout"
	KeyLogFile   = "log_file"
	KeyLogLevel  = "log_level"
	KeyEnvFile   = "env_file"
)

const defaultTimeout = 120 * time.Second

// Settings is everything the CLI needs to run one query.
type Settings struct {
	Client   kollzsh.Config
	LogFile  string
	LogLevel string
}

// New returns a viper instance reading KOLLZSH_* variables with defaults set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyProvider, string(kollzsh.ProviderOllama))
	v.SetDefault(KeyContract, kollzsh.ContractToolCall.String())
	v.SetDefault(KeyTimeout, defaultTimeout.String())
	v.SetDefault(KeyLogFile, kollzsh.DefaultLogFile)
	v.SetDefault(KeyLogLevel, "debug")
	return v
}

// RegisterFlags declares the flags that override environment settings.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("provider", "", "Backend provider (ollama|openai|google|anthropic) [env KOLLZSH_PROVIDER]")
	flags.String("contract", "", "Output contract (tool|schema) [env KOLLZSH_CONTRACT]")
	flags.String("model", "", "Model identifier [env KOLLZSH_MODEL]")
	flags.String("url", "", "Backend URL [env KOLLZSH_URL]")
	flags.String("keep-alive", "", "How long the backend keeps the model loaded [env KOLLZSH_KEEP_ALIVE]")
	flags.String("timeout", "", "HTTP timeout for the backend call [env KOLLZSH_TIMEOUT]")
	flags.String("log-file", "", "Append diagnostics to this file [env KOLLZSH_LOG_FILE]")
	flags.String("log-level", "", "Diagnostic level (debug|info|warn|error) [env KOLLZSH_LOG_LEVEL]")
	flags.String("env-file", "", "Dotenv file loaded before reading the environment [env KOLLZSH_ENV_FILE]")
}

// BindFlags binds flags registered by RegisterFlags to their setting keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		KeyProvider:  "provider",
		KeyContract:  "contract",
		KeyModel:     "model",
		KeyURL:       "url",
		KeyKeepAlive: "keep-alive",
		KeyTimeout:   "timeout",
		KeyLogFile:   "log-file",
		KeyLogLevel:  "log-level",
		KeyEnvFile:   "env-file",
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("config: flag --%s is not registered", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("config: bind --%s: %w", name, err)
		}
	}
	return nil
}

// DefaultEnvFile is $XDG_CONFIG_HOME/kollzsh/.env (or the OS equivalent).
func DefaultEnvFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kollzsh", ".env")
}

// LoadEnvFile loads the dotenv file named by env_file, or the default one.
// Variables already present in the environment are never overridden. A
// missing default file is ignored; a missing explicit file is an error.
func LoadEnvFile(v *viper.Viper) error {
	path := strings.TrimSpace(v.GetString(KeyEnvFile))
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile()
	}
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &kollzsh.ConfigError{Invalid: []string{fmt.Sprintf("env file %s: %v", path, err)}}
	}
	return nil
}

// Load resolves Settings. Problems are reported as one *kollzsh.ConfigError.
func Load(v *viper.Viper) (Settings, error) {
	ce := &kollzsh.ConfigError{}

	provider, err := kollzsh.ParseProvider(v.GetString(KeyProvider))
	if err != nil {
		ce.Invalid = append(ce.Invalid, invalidOf(err)...)
	}
	contract, err := kollzsh.ParseContract(v.GetString(KeyContract))
	if err != nil {
		ce.Invalid = append(ce.Invalid, invalidOf(err)...)
	}
	timeout, err := time.ParseDuration(strings.TrimSpace(v.GetString(KeyTimeout)))
	if err != nil {
		ce.Invalid = append(ce.Invalid, fmt.Sprintf("timeout %q", v.GetString(KeyTimeout)))
	}
	if len(ce.Invalid) > 0 {
		return Settings{}, ce
	}

	s := Settings{
		Client: kollzsh.Config{
			Provider:  provider,
			Contract:  contract,
			Model:     strings.TrimSpace(v.GetString(KeyModel)),
			BaseURL:   strings.TrimSpace(v.GetString(KeyURL)),
			KeepAlive: strings.TrimSpace(v.GetString(KeyKeepAlive)),
			APIKey:    strings.TrimSpace(v.GetString(KeyAPIKey)),
			Timeout:   timeout,
			DetectEnv: true,
		},
		LogFile:  strings.TrimSpace(v.GetString(KeyLogFile)),
		LogLevel: strings.TrimSpace(v.GetString(KeyLogLevel)),
	}
	return s, nil
}

func invalidOf(err error) []string {
	var ce *kollzsh.ConfigError
	if errors.As(err, &ce) {
		return ce.Invalid
	}
	return []string{err.Error()}
}
