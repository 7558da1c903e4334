package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const configDir = ".docchat"
const configFile = "config.json"

// EnvPrefix prefixes environment overrides, e.g. DOCCHAT_TOKEN.
const EnvPrefix = "DOCCHAT"

// Keys accepted by Set and read from files and the environment.
const (
	KeyServer         = "server"
	KeyToken          = "token"
	KeyAskPath        = "ask_path"
	KeyThrottleMS     = "throttle_ms"
	KeyTheme          = "theme"
	KeyWidth          = "width"
	KeyTimeoutSeconds = "timeout_seconds"
	KeyLogLevel       = "log_level"
)

var defaults = map[string]any{
	KeyAskPath:        "/ask_with_ai",
	KeyThrottleMS:     100,
	KeyTheme:          "auto",
	KeyWidth:          100,
	KeyTimeoutSeconds: 300,
	KeyLogLevel:       "info",
}

type Config struct {
	Server         string `json:"server"`
	Token          string `json:"token,omitempty"`
	AskPath        string `json:"ask_path,omitempty"`
	ThrottleMS     int    `json:"throttle_ms,omitempty"`
	Theme          string `json:"theme,omitempty"`
	Width          int    `json:"width,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	LogLevel       string `json:"log_level,omitempty"`
	Profile        string `json:"-"`

	// stored holds the file (or default) value of every key an
	// environment variable overrode, so Save writes that value back.
	stored map[string]string
}

// Keys lists the settable keys in a stable order.
func Keys() []string {
	return []string{KeyServer, KeyToken, KeyAskPath, KeyThrottleMS, KeyTheme, KeyWidth, KeyTimeoutSeconds, KeyLogLevel}
}

// Dir is the directory holding profiles and the log file.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, configDir), nil
}

func configPath(profile string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	filename := configFile
	if profile != "" {
		filename = fmt.Sprintf("config-%s.json", profile)
	}
	return filepath.Join(dir, filename), nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

func newViper(path string, env bool) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if env {
		v.SetEnvPrefix(EnvPrefix)
		for _, key := range Keys() {
			if err := v.BindEnv(key); err != nil {
				return nil, fmt.Errorf("binding %s: %w", key, err)
			}
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return v, nil
}

// Load reads a profile. Defaults apply first, then the profile file when it
// exists, then DOCCHAT_* environment variables. Environment values are
// never written back by Save.
func Load(profile string) (*Config, error) {
	path, err := configPath(profile)
	if err != nil {
		return nil, err
	}

	v, err := newViper(path, true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:         v.GetString(KeyServer),
		Token:          v.GetString(KeyToken),
		AskPath:        v.GetString(KeyAskPath),
		ThrottleMS:     v.GetInt(KeyThrottleMS),
		Theme:          v.GetString(KeyTheme),
		Width:          v.GetInt(KeyWidth),
		TimeoutSeconds: v.GetInt(KeyTimeoutSeconds),
		LogLevel:       v.GetString(KeyLogLevel),
		Profile:        profile,
	}

	var file *viper.Viper
	for _, key := range Keys() {
		if os.Getenv(envName(key)) == "" {
			continue
		}
		if file == nil {
			if file, err = newViper(path, false); err != nil {
				return nil, err
			}
			cfg.stored = make(map[string]string)
		}
		cfg.stored[key] = file.GetString(key)
	}
	return cfg, nil
}

func (c *Config) Save() error {
	path, err := configPath(c.Profile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	out := *c
	for key, value := range c.stored {
		out.assign(key, value)
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Set assigns one key from its string form. A value set this way is saved
// even when the environment overrode the key at load time.
func (c *Config) Set(key, value string) error {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
	if err := c.set(key, value); err != nil {
		return err
	}
	delete(c.stored, key)
	return nil
}

// assign restores a stored value; an empty value clears the key.
func (c *Config) assign(key, value string) {
	if value == "" {
		switch key {
		case KeyThrottleMS, KeyWidth, KeyTimeoutSeconds:
			value = "0"
		}
	}
	_ = c.set(key, value)
}

func (c *Config) set(key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
		}
		return n, nil
	}

	var (
		n   int
		err error
	)
	switch key {
	case KeyServer:
		c.Server = strings.TrimRight(strings.TrimSpace(value), "/")
	case KeyToken:
		c.Token = strings.TrimSpace(value)
	case KeyAskPath:
		c.AskPath = strings.TrimSpace(value)
	case KeyTheme:
		c.Theme = strings.ToLower(strings.TrimSpace(value))
	case KeyLogLevel:
		c.LogLevel = strings.ToLower(strings.TrimSpace(value))
	case KeyThrottleMS:
		if n, err = atoi(); err == nil {
			c.ThrottleMS = n
		}
	case KeyWidth:
		if n, err = atoi(); err == nil {
			c.Width = n
		}
	case KeyTimeoutSeconds:
		if n, err = atoi(); err == nil {
			c.TimeoutSeconds = n
		}
	default:
		return fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return err
}

// Get returns the string form of one key.
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case KeyServer:
		return c.Server, true
	case KeyToken:
		return c.Token, true
	case KeyAskPath:
		return c.AskPath, true
	case KeyThrottleMS:
		return strconv.Itoa(c.ThrottleMS), true
	case KeyTheme:
		return c.Theme, true
	case KeyWidth:
		return strconv.Itoa(c.Width), true
	case KeyTimeoutSeconds:
		return strconv.Itoa(c.TimeoutSeconds), true
	case KeyLogLevel:
		return c.LogLevel, true
	}
	return "", false
}

func (c *Config) profileFlag() string {
	if c.Profile == "" {
		return ""
	}
	return " --profile " + c.Profile
}

func (c *Config) Validate() error {
	pf := c.profileFlag()
	if c.Server == "" {
		return fmt.Errorf("server not set. Run: docchat%s set server <url>", pf)
	}
	if c.Token == "" {
		return fmt.Errorf("token not set. Run: docchat%s set token <token>", pf)
	}
	return nil
}

func ListProfiles() ([]string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config directory: %w", err)
	}
	var profiles []string
	for _, e := range entries {
		name := e.Name()
		if name == configFile {
			profiles = append(profiles, "default")
			continue
		}
		if strings.HasPrefix(name, "config-") && strings.HasSuffix(name, ".json") {
			profiles = append(profiles, strings.TrimSuffix(strings.TrimPrefix(name, "config-"), ".json"))
		}
	}
	sort.Strings(profiles)
	return profiles, nil
}

func ProfileName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}
