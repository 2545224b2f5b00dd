package anonapi

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	AppName = "carshare-anon"

	keyringService   = "carshare-anon"
	keyringSecretKey = "client_secret"
)

// Credentials are supplied once when a Client is created.
type Credentials struct {
	IdentityURL  string
	ClientID     string
	ClientSecret string
	APIKey       string
	BaseURL      string
	UserAgent    string
}

func (c Credentials) validate() error {
	for _, u := range []struct{ name, raw string }{
		{"identity url", c.IdentityURL},
		{"base url", c.BaseURL},
	} {
		name, raw := u.name, u.raw
		if raw == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// RefreshPlan sets how many forced token refreshes FetchAll performs and where.
// Observed app versions disagree (2 before the first call, optionally 1 more
// before the vehicle request), so both are configurable.
type RefreshPlan struct {
	BeforeFirstCall int
	BeforeVehicles  int
}

var DefaultRefreshPlan = RefreshPlan{BeforeFirstCall: 2, BeforeVehicles: 0}

type QuirksConfig struct {
	RefreshesBeforeFirstCall *int  `yaml:"refreshes_before_first_call,omitempty"`
	RefreshesBeforeVehicles  *int  `yaml:"refreshes_before_vehicles,omitempty"`
	StripEmptyArrayPrefix    *bool `yaml:"strip_empty_array_prefix,omitempty"`
}

func (q QuirksConfig) RefreshPlan() RefreshPlan {
	plan := DefaultRefreshPlan
	if q.RefreshesBeforeFirstCall != nil {
		plan.BeforeFirstCall = *q.RefreshesBeforeFirstCall
	}
	if q.RefreshesBeforeVehicles != nil {
		plan.BeforeVehicles = *q.RefreshesBeforeVehicles
	}
	return plan
}

func (q QuirksConfig) Normalizer() BodyNormalizer {
	if q.StripEmptyArrayPrefix != nil && !*q.StripEmptyArrayPrefix {
		return NopNormalizer{}
	}
	return EmptyArrayPrefix{}
}

type Config struct {
	IdentityURL  string `yaml:"identity_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret,omitempty"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	UserAgent    string `yaml:"user_agent"`
	UseKeyring   bool   `yaml:"use_keyring,omitempty"`

	Position *Position    `yaml:"position,omitempty"`
	Quirks   QuirksConfig `yaml:"quirks,omitempty"`
}

var defaultConfigFilePath = filepath.Join(xdg.ConfigHome, AppName, "config.yaml")

func DefaultConfigPath() string {
	return defaultConfigFilePath
}

func GetConfigFromFile(inputConfigFile string) (*Config, error) {
	if inputConfigFile == "" {
		inputConfigFile = defaultConfigFilePath
	}
	f, err := os.Open(inputConfigFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	err = yaml.NewDecoder(f).Decode(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SaveConfig(cfg *Config, configFile string) error {
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(configFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return yaml.NewEncoder(f).Encode(cfg)
}

func (c *Config) Credentials() Credentials {
	return Credentials{
		IdentityURL:  c.IdentityURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		APIKey:       c.APIKey,
		BaseURL:      c.BaseURL,
		UserAgent:    c.UserAgent,
	}
}

func (c *Config) ReferencePosition() Position {
	if c.Position == nil {
		return DefaultPosition
	}
	return *c.Position
}

func (c *Config) Validate() error {
	var errs []error
	if c.IdentityURL == "" {
		errs = append(errs, errors.New("identity_url is not set"))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is not set"))
	}
	if c.ClientID == "" {
		errs = append(errs, errors.New("client_id is not set"))
	}
	if c.ClientSecret == "" {
		errs = append(errs, errors.New("client_secret is not set"))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("api_key is not set"))
	}
	return errors.Join(errs...)
}

// OpenKeyring opens the OS credential store used for the client secret.
func OpenKeyring() (keyring.Keyring, error) {
	return keyring.Open(keyring.Config{
		ServiceName:              keyringService,
		KeychainTrustApplication: true,
	})
}

// ResolveSecret fills ClientSecret from kr when it is not set in the config.
func (c *Config) ResolveSecret(kr keyring.Keyring) error {
	if c.ClientSecret != "" {
		return nil
	}
	item, err := kr.Get(keyringSecretKey)
	if err != nil {
		return fmt.Errorf("reading client secret from keyring: %w", err)
	}
	c.ClientSecret = string(item.Data)
	return nil
}

// StoreSecret writes the client secret to kr.
func StoreSecret(kr keyring.Keyring, secret string) error {
	return kr.Set(keyring.Item{
		Key:   keyringSecretKey,
		Label: AppName + " client secret",
		Data:  []byte(secret),
	})
}
