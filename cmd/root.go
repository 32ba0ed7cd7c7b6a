package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "mentor-ranker"
)

type Config struct {
	ProfilesFile string          `mapstructure:"profiles-file"`
	ExcludeFile  string          `mapstructure:"exclude-file"`
	Database     *DatabaseConfig `mapstructure:"database"`
	Ranking      *RankingConfig  `mapstructure:"ranking"`
	AI           *AIConfig       `mapstructure:"ai"`
	Server       *ServerConfig   `mapstructure:"server"`
}

type DatabaseConfig struct {
	DSN            string        `mapstructure:"dsn"`
	DSNFile        string        `mapstructure:"dsn-file"`
	MaxConns       int32         `mapstructure:"max-conns"`
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`
}

type RankingConfig struct {
	// HeuristicOnly never calls the reasoning service.
	HeuristicOnly bool `mapstructure:"heuristic-only"`
	// AllowHeuristicOnly downgrades a missing api key from a fatal error to a warning.
	AllowHeuristicOnly bool `mapstructure:"allow-heuristic-only"`
	IncludeConnected   bool `mapstructure:"include-connected"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey            string        `mapstructure:"api-key"`
	APIKeyFile        string        `mapstructure:"api-key-file"`
	Endpoint          string        `mapstructure:"endpoint"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests-per-minute"`
	MaxLogLength      int           `mapstructure:"max-log-length"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "mentor-ranker ranks alumni mentors for students and records connection requests",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"database.dsn-file":      "DATABASE_URL_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.timeout", "12s")
	viper.SetDefault("ai.gemini.max-log-length", 200)
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.shutdown-timeout", "10s")
	viper.SetDefault("database.connect-timeout", "5s")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is mentor-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("profiles-file", "p", "", "JSON file with profiles, used when no database is configured")
	rootCmd.PersistentFlags().StringP("exclude-file", "e", "", "JSON file with mentor ids to exclude. Default is unset.")
	rootCmd.PersistentFlags().Bool("heuristic-only", false, "rank with the built-in heuristic and never call the reasoning service")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("profiles-file", rootCmd.PersistentFlags().Lookup("profiles-file"))
	viper.BindPFlag("exclude-file", rootCmd.PersistentFlags().Lookup("exclude-file"))
	viper.BindPFlag("ranking.heuristic-only", rootCmd.PersistentFlags().Lookup("heuristic-only"))
}

func initConfig() {
	// The version command does not need any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// An explicit config must exist; the default one is optional since
	// everything can come from flags and environment.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	if config.Database == nil {
		config.Database = &DatabaseConfig{}
	}
	if config.Ranking == nil {
		config.Ranking = &RankingConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}

	return config, nil
}
