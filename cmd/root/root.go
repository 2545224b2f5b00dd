package root

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/denysvitali/carshare-anon/anonapi"
	"github.com/denysvitali/carshare-anon/store"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
	cfg      *anonapi.Config
	client   *anonapi.Client
	log      = logrus.StandardLogger()
)

// Commands that talk to the backend
var needsClient = []string{"fetch", "nearest", "watch", "serve"}

var RootCmd = &cobra.Command{
	Use:   anonapi.AppName,
	Short: "Browse shared vehicles without an account",
	Long: `carshare-anon talks to the anonymous API of the car sharing service.
You can list the vehicles closest to you, keep a local snapshot up to date and serve it to a map.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setLogLevel(); err != nil {
			return err
		}

		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		if err := loadEnvFile(); err != nil {
			return err
		}

		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		if slices.Contains(needsClient, cmd.Name()) {
			if err := initClient(); err != nil {
				return fmt.Errorf("unable to initialize client: %w", err)
			}
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/carshare-anon/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with CARSHARE_* variables (default is ./.env if present)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("config", RootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", RootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetEnvPrefix("CARSHARE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadEnvFile exports the variables of a dotenv file without overriding
// the ones already set.
func loadEnvFile() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		log.Debugf("Loaded environment from %s", envFile)
		return nil
	}
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	log.Debug("Loaded environment from .env")
	return nil
}

func initConfig() error {
	configPath := ""

	if cfgFile != "" {
		configPath = cfgFile
		viper.SetConfigFile(cfgFile)
	} else {
		configPath = anonapi.DefaultConfigPath()

		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, anonapi.AppName))
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		log.Debug("No config file found, using defaults and environment variables")
	} else {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
		configPath = viper.ConfigFileUsed()
	}

	var err error
	cfg, err = anonapi.GetConfigFromFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Config file not found, creating empty config")
			cfg = &anonapi.Config{}
		} else {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Environment overrides
	overrides := map[string]*string{
		"identity_url":  &cfg.IdentityURL,
		"client_id":     &cfg.ClientID,
		"client_secret": &cfg.ClientSecret,
		"api_key":       &cfg.APIKey,
		"base_url":      &cfg.BaseURL,
		"user_agent":    &cfg.UserAgent,
	}
	for key, field := range overrides {
		if viper.IsSet(key) {
			*field = viper.GetString(key)
		}
	}
	if viper.IsSet("use_keyring") {
		cfg.UseKeyring = viper.GetBool("use_keyring")
	}
	if viper.IsSet("position.lat") && viper.IsSet("position.lon") {
		cfg.Position = &anonapi.Position{
			Lat: viper.GetFloat64("position.lat"),
			Lon: viper.GetFloat64("position.lon"),
		}
	}

	return nil
}

func initClient() error {
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	if cfg.UseKeyring {
		kr, err := anonapi.OpenKeyring()
		if err != nil {
			return fmt.Errorf("failed to open keyring: %w", err)
		}
		if err := cfg.ResolveSecret(kr); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var err error
	client, err = anonapi.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func setLogLevel() error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %s", logLevel)
	}
	log.SetLevel(lvl)
	return nil
}

func Execute() error {
	return RootCmd.Execute()
}

func GetClient() *anonapi.Client {
	return client
}

func GetConfig() *anonapi.Config {
	return cfg
}

func GetLogger() *logrus.Logger {
	return log
}

// NewStore opens a store fed by the configured client, positioned at the
// configured reference position.
func NewStore() (*store.Store, error) {
	if client == nil {
		return nil, fmt.Errorf("client not initialized")
	}
	return store.New(client, cfg.ReferencePosition())
}

// GetConfigPath returns the config file in use, or the default location.
func GetConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}
	return anonapi.DefaultConfigPath()
}

// AddPositionFlags registers --lat and --lon on cmd.
func AddPositionFlags(cmd *cobra.Command, lat, lon *float64) {
	cmd.Flags().Float64Var(lat, "lat", 0, "reference latitude (default from config)")
	cmd.Flags().Float64Var(lon, "lon", 0, "reference longitude (default from config)")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
}

// ReferencePosition returns the position given with --lat/--lon, falling
// back to the configured one.
func ReferencePosition(cmd *cobra.Command, lat, lon float64) anonapi.Position {
	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
		return anonapi.Position{Lat: lat, Lon: lon}
	}
	return cfg.ReferencePosition()
}
