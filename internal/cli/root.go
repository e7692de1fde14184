package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/model"
)

// version is overridden at build time with -ldflags "-X"
var version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// envAliases are the unprefixed variables honoured alongside CHAINBREAKER_*
var envAliases = map[string][]string{
	"sources.fact_check_api_key": {"GOOGLE_FACTCHECK_API_KEY", "GOOGLE_API_KEY"},
	"sources.news_api_key":       {"NEWS_API_KEY", "NEWSAPI_KEY"},
	"telegram.token":             {"TELEGRAM_BOT_TOKEN"},
	"telegram.bot_username":      {"TELEGRAM_BOT_USERNAME", "BOT_USERNAME"},
	"database.dsn":               {"DATABASE_URL"},
	"cache.redis_addr":           {"REDIS_ADDR"},

	// Optional keys absent from the marshalled defaults
	"cache.redis_password": nil,
	"llm.http_proxy":       nil,
	"llm.https_proxy":      nil,
	"llm.no_proxy":         nil,
	"sources.http_proxy":   nil,
	"sources.https_proxy":  nil,
}

// providerKeys lists the API key variables per model provider, most specific first
var providerKeys = map[string][]string{
	"openai":     {"OPENROUTER_API_KEY", "OPENAI_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"claude":     {"ANTHROPIC_API_KEY"},
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chainbreaker",
	Short: "ChainBreaker - fact-checks forwarded claims and flags repeated rumours",
	Long: `ChainBreaker answers "is this claim true?" for messages forwarded into chats.

Each claim is checked against a fact-check database, Wikipedia, DuckDuckGo
and recent news, with a language model choosing what to look up and
weighing the evidence. When the model is unavailable a deterministic
scorer takes over.

Claims are deduplicated by their normalized text. A rumour reported three
times triggers a one-time warning broadcast to every known chat.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chainbreaker v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.chainbreaker/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env, the config file and environment variables
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
		} else {
			viper.AddConfigPath(filepath.Join(home, ".chainbreaker"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every config key known to viper so that env
// variables and Unmarshal see it
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]interface{}); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// bindEnv maps CHAINBREAKER_SERVER_ADDR style variables and the aliases onto keys
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CHAINBREAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvAliases(v)
}

func bindEnvAliases(v *viper.Viper) {
	for key, aliases := range envAliases {
		prefixed := "CHAINBREAKER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, prefixed}, aliases...)...)
	}
	_ = v.BindEnv("llm.api_key", "CHAINBREAKER_LLM_API_KEY")
}

// loadConfig resolves the effective configuration
func loadConfig() (*model.Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		for _, name := range providerKeys[strings.ToLower(cfg.LLM.Provider)] {
			if key := os.Getenv(name); key != "" {
				cfg.LLM.APIKey = key
				break
			}
		}
	}
	if strings.EqualFold(cfg.LLM.Provider, "ollama") && os.Getenv("OLLAMA_BASE_URL") != "" && !v.IsSet("llm.base_url") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	// A postgres URL implies the postgres driver
	dsn := strings.ToLower(cfg.Database.DSN)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		cfg.Database.Driver = "postgres"
	}

	return cfg, nil
}

// newLogger builds the CLI logger: console at debug level with --verbose,
// otherwise the configured mode
func newLogger(cfg *model.Config) (*logger.Logger, error) {
	mode := cfg.Log.Mode
	if verbose {
		mode = "development"
	}
	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}
