package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taishikato/supavec-api/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	cfg       config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "supavec",
	Short: "supavec: scrape web pages into searchable embeddings",
	Long: `supavec fetches a web page, stores its text, splits it into overlapping
chunks and indexes each chunk with its embedding for retrieval.

Commands:
  serve    Start the HTTP API
  scrape   Run the scrape pipeline once for a URL
  reindex  Rebuild the documents of a stored page
  apikey   Manage API keys
  search   Search indexed chunks
  mcp      Start the MCP stdio server`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

func initLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/supavec")
		viper.AddConfigPath(".")
	}

	// SUPAVEC_REDIS_ADDR -> redis.addr
	viper.SetEnvPrefix("SUPAVEC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Unmarshal only sees env vars for keys viper knows about.
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	if addrs := os.Getenv("SUPAVEC_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}

var envKeys = []string{
	"server.addr",
	"server.scrape_path",
	"server.read_timeout",
	"server.shutdown_timeout",
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.key_prefix",
	"database.path",
	"storage.endpoint",
	"storage.bucket",
	"storage.access_key_id",
	"storage.secret_access_key",
	"storage.use_ssl",
	"elasticsearch.index",
	"elasticsearch.username",
	"elasticsearch.password",
	"elasticsearch.dims",
	"embeddings.provider",
	"embeddings.base_url",
	"embeddings.api_key",
	"embeddings.socket_path",
	"embeddings.model",
	"fetcher.engine",
	"fetcher.timeout",
	"fetcher.user_agent",
	"fetcher.chrome_path",
	"chunking.size",
	"chunking.overlap",
	"pipeline.on_failure",
	"usage.queue_size",
	"mcp.name",
	"mcp.version",
}
