// Package main provides the foodchat CLI application entry point.
// foodchat is a terminal client for a food-recommendation assistant behind an auth service
// and a chat service.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"foodchat/internal/config"
	"foodchat/internal/logger"
	"foodchat/internal/mockserver"
	"foodchat/internal/shell"
	"foodchat/internal/storage"
	"foodchat/internal/version"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	logLevel    string
	logFile     string
	testMode    bool
	configFile  string
	checkHealth bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "foodchat",
	Short: "foodchat - chat with a food assistant from the terminal",
	Long: `foodchat logs in to the auth service, keeps the credential and a session identity
on disk, and relays your messages to the chat service.`,
	SilenceUsage: true,
	RunE:         runChat, // Default behavior is to run the interactive chat
}

// chatCmd is the explicit version of the default behavior
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	RunE:  runChat,
}

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run local stand-ins for the auth and chat services",
	Long: `Run in-memory auth and chat services on mock.auth_addr and mock.chat_addr.
Accounts and tokens are lost on exit.`,
	RunE: runMockServer,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			fmt.Println(version.GetDetailedVersion())
			return
		}
		fmt.Println(version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	flags.BoolVar(&testMode, "test-mode", false, "Run in deterministic test mode (no .env, in-memory storage, plain output)")
	flags.StringVar(&configFile, "config", "", "Config file [default: <user config dir>/foodchat/config.yaml]")
	flags.String("auth-url", "", "Auth service base URL")
	flags.String("chat-url", "", "Chat service base URL")
	flags.String("storage", "", "Storage backend (file|sqlite|memory)")

	// Bind flags to viper so they win over env, .env and config file values
	bindings := map[string]string{
		config.KeyLogLevel:       "log-level",
		config.KeyLogFile:        "log-file",
		config.KeyAuthBaseURL:    "auth-url",
		config.KeyChatBaseURL:    "chat-url",
		config.KeyStorageBackend: "storage",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	rootCmd.Flags().BoolVar(&checkHealth, "check", false, "Check the chat service and exit")
	chatCmd.Flags().BoolVar(&checkHealth, "check", false, "Check the chat service and exit")
	versionCmd.Flags().BoolP("verbose", "v", false, "Show build details")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(mockServerCmd)
	rootCmd.AddCommand(versionCmd)

	// Configure logger before any command execution
	cobra.OnInitialize(initLogger)
}

func initLogger() {
	if err := logger.Configure(logLevel, logFile, testMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration and re-applies logger settings that came from
// the environment or a config file rather than flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), config.Options{
		ConfigFile: configFile,
		SkipDotEnv: testMode,
	})
	if err != nil {
		return nil, err
	}
	if testMode {
		cfg.Storage = config.StorageConfig{Backend: storage.BackendMemory}
		cfg.UI.RenderMarkdown = false
		cfg.UI.Theme = "plain"
	}
	if cfg.Log.Level != logLevel || cfg.Log.File != logFile {
		if err := logger.Configure(cfg.Log.Level, cfg.Log.File, testMode); err != nil {
			return nil, fmt.Errorf("failed to configure logger: %w", err)
		}
	}
	return cfg, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	if checkHealth {
		return app.session.CheckHealth(ctx)
	}

	logger.Info("Starting foodchat", "version", version.Version, "auth", cfg.AuthBaseURL, "chat", cfg.ChatBaseURL)

	sh := shell.New(ctx, app.session, version.GetFormattedVersion())
	app.session.Attach()
	defer app.session.Detach()

	sh.Run()
	return nil
}

func runMockServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mockserver.New(mockserver.Config{
		AuthAddr: cfg.Mock.AuthAddr,
		ChatAddr: cfg.Mock.ChatAddr,
		TokenTTL: cfg.Mock.TokenTTL,
	})
	logger.Info("Starting mock services", "auth", cfg.Mock.AuthAddr, "chat", cfg.Mock.ChatAddr)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
