package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config описывает основные параметры агента.
type Config struct {
	Agent struct {
		LogLevel string `yaml:"log_level"`
	} `yaml:"agent"`
	Tool struct {
		Binary    string `yaml:"binary"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
		AuthMode  string `yaml:"auth_mode"`
		Format    string `yaml:"format"`
		Dotenv    string `yaml:"dotenv"`
	} `yaml:"tool"`
	Security struct {
		ExecAllowlist []string `yaml:"exec_allowlist"`
	} `yaml:"security"`
	History struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"history"`
	Examples struct {
		ExportDir   string `yaml:"export_dir"`
		EnrichLimit int    `yaml:"enrich_limit"`
	} `yaml:"examples"`
}

// DefaultExecAllowlist перечисляет подкоманды CLI, которые агент вызывает сам.
var DefaultExecAllowlist = []string{
	"auth whoami",
	"auth rate-limit",
	"person search",
	"person get",
	"person create",
	"person assert",
	"organization search",
	"organization get",
	"list list-all",
	"list entries",
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	var cfg Config
	cfg.Agent.LogLevel = "info"
	cfg.Tool.Binary = "affinity"
	cfg.Tool.APIKeyEnv = "AFFINITY_API_KEY"
	cfg.Tool.Format = "json"
	cfg.Tool.Dotenv = ".env"
	cfg.Security.ExecAllowlist = append([]string(nil), DefaultExecAllowlist...)
	cfg.History.Path = defaultHistoryPath()
	cfg.History.RetentionDays = 30
	cfg.Examples.ExportDir = "."
	cfg.Examples.EnrichLimit = 5
	return cfg
}

func defaultHistoryPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "crmagent", "history.db")
}

// Load читает конфиг из файла YAML, поверх значений по умолчанию.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- путь к конфигу задается оператором.
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("config file is empty")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя исправить молча.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Tool.Binary) == "" {
		return errors.New("tool.binary is empty")
	}
	switch c.Tool.Format {
	case "json", "table", "csv":
	default:
		return fmt.Errorf("tool.format %q: expected json, table or csv", c.Tool.Format)
	}
	switch c.Tool.AuthMode {
	case "", "basic", "bearer":
	default:
		return fmt.Errorf("tool.auth_mode %q: expected basic or bearer", c.Tool.AuthMode)
	}
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days is negative")
	}
	if c.History.Enabled && c.History.Path == "" {
		return errors.New("history.path is empty")
	}
	if c.Examples.EnrichLimit < 0 {
		return errors.New("examples.enrich_limit is negative")
	}
	return nil
}

// APIKey возвращает ключ из конфига, иначе из переменной tool.api_key_env.
// Второе значение указывает источник: "flag/config", "env" или "none".
func (c Config) APIKey() (string, string) {
	if c.Tool.APIKey != "" {
		return c.Tool.APIKey, "flag/config"
	}
	if c.Tool.APIKeyEnv != "" {
		if v := os.Getenv(c.Tool.APIKeyEnv); v != "" {
			return v, "env"
		}
	}
	return "", "none"
}

// LoadDotenv загружает переменные из dotenv-файла, не перезаписывая уже заданные.
// Отсутствующий файл ошибкой не считается.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load dotenv %s: %w", path, err)
}
