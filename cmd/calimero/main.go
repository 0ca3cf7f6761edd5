package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/calimero-network/calimero-go/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	apiURL    string
	nodeName  string
	authToken string
	timeout   time.Duration
	verbose   bool

	logger = zap.NewNop()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		os.Exit(130)
	}
	os.Exit(1)
}

var rootCmd = &cobra.Command{
	Use:           "calimero",
	Short:         "Calimero node CLI",
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `calimero is the command-line interface for Calimero nodes.

It talks to a node's admin API: checking health, inspecting alias kinds,
and issuing raw API requests for debugging.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.calimero")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("calimero")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if apiURL == "" {
			apiURL = viper.GetString("api_url")
		}
		if nodeName == "" {
			nodeName = viper.GetString("node_name")
		}
		if authToken == "" {
			authToken = viper.GetString("auth_token")
		}

		if verbose {
			l, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logger = l
		}

		if apiURL == "" {
			return fmt.Errorf("--api-url is required (or set api_url in %s)", configHint())
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func configHint() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "~/.calimero/config.yaml"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.calimero/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Node API base URL (e.g. http://localhost:2428)")
	rootCmd.PersistentFlags().StringVar(&nodeName, "node-name", "", "Logical node name, used in logs and output")
	rootCmd.PersistentFlags().StringVar(&authToken, "auth-token", "", "Bearer token for authenticated nodes")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Per-request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose request logging")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(aliasesCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds a Client from the persistent flags.
func newClient() (*client.Client, error) {
	opts := []client.ConnectionOption{
		client.WithTimeout(timeout),
	}
	if nodeName != "" {
		opts = append(opts, client.WithNodeName(nodeName))
	}
	if authToken != "" {
		opts = append(opts, client.WithAuthToken(authToken))
	}
	conn, err := client.NewConnection(apiURL, opts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("connection ready",
		zap.String("api_url", apiURL),
		zap.String("node_name", nodeName),
		zap.Bool("authenticated", authToken != ""),
	)
	return client.NewClient(conn), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── health ───────────────────────────────────────────────────────────────────

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the node is up and responding",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		logger.Debug("checking node health", zap.String("api_url", apiURL))
		status, err := c.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("node health check failed: %w", err)
		}
		fmt.Println("✓ Node is healthy")
		if len(status) == 0 {
			return nil
		}
		return printJSON(json.RawMessage(status))
	},
}

// ── aliases ──────────────────────────────────────────────────────────────────

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "List the alias kinds the node supports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := client.AliasKinds()
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		fmt.Println(strings.Join(names, "\n"))
		return nil
	},
}

// ── request ──────────────────────────────────────────────────────────────────

var (
	reqMethod   string
	reqEndpoint string
	reqData     string
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Send a raw API request to the node",
	Long: `request performs an arbitrary call against the node API and prints the
response as indented JSON. Useful for debugging and endpoints the CLI does
not cover:

  calimero request --endpoint admin-api/contexts
  calimero request --method POST --endpoint admin-api/contexts \
    --data '{"applicationId":"...","protocol":"near"}'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var body []byte
		if reqData != "" {
			body = []byte(reqData)
		}
		logger.Debug("dispatching raw request",
			zap.String("method", reqMethod),
			zap.String("endpoint", reqEndpoint),
			zap.Int("body_bytes", len(body)),
		)

		data, err := c.Request(cmd.Context(), strings.ToUpper(reqMethod), reqEndpoint, body)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			fmt.Println("(empty response)")
			return nil
		}
		return printJSON(json.RawMessage(data))
	},
}

func init() {
	requestCmd.Flags().StringVar(&reqMethod, "method", "GET", "HTTP method (GET, POST, PUT, PATCH, DELETE, HEAD)")
	requestCmd.Flags().StringVar(&reqEndpoint, "endpoint", "", "Endpoint path relative to the API base URL")
	requestCmd.Flags().StringVar(&reqData, "data", "", "JSON request body")

	_ = requestCmd.MarkFlagRequired("endpoint")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the calimero CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("calimero %s\n", version)
	},
}
