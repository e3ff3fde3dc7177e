package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"well-go/internal/api"
	"well-go/internal/app"
	"well-go/internal/config"
	"well-go/internal/encryption"
)

func main() {
	// A missing .env is normal; anything else is worth reporting.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// withApp reads the config, creates a WellApp for operation, runs fn and
// closes the app. fn's error becomes the operation outcome.
func withApp(cmd *cobra.Command, operation string, fn func(ctx context.Context, a *app.WellApp) error) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.NewWellApp(ctx, cfg, operation)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer a.Close()

	return a.Finish(fn(ctx, a))
}

// userID returns the --user flag, falling back to WELL_USER.
func userID(cmd *cobra.Command) (string, error) {
	u, _ := cmd.Flags().GetString("user")
	if u == "" {
		u = os.Getenv("WELL_USER")
	}
	if strings.TrimSpace(u) == "" {
		return "", errors.New("no user: pass --user or set WELL_USER")
	}
	return u, nil
}

// readPassphrase prompts on the terminal without echo. When stdin is not a
// terminal, one line is read from it instead.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var rootCmd = &cobra.Command{
	Use:          "well",
	Short:        "Wellness aggregation and gamification engine",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Next: well db migrate && well encryption setup")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Timezone:  %s\n", cfg.Timezone)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		fmt.Printf("Cache:     %s (ttl %s)\n", cfg.Cache.Type, cfg.Cache.TTL)
		fmt.Printf("AI:        %s %s\n", cfg.AI.Type, cfg.AI.Model)
		fmt.Printf("Listen:    %s (%d token(s))\n", cfg.Server.ListenAddr, len(cfg.Server.Tokens))
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:     %s (%s)\n", v.Name, v.Type)
		}
		fmt.Printf("Digest:    %q via %s to %d user(s)\n", cfg.Digest.Schedule, cfg.Digest.Notifier, len(cfg.Digest.Users))
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.MigrateDatabase(cfg); err != nil {
			return err
		}
		fmt.Println("Database schema is up to date.")
		return nil
	},
}

// encryption command
var encryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Manage snapshot encryption keys",
}

var encryptionSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate the snapshot key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc.IsConfigured() {
			return fmt.Errorf("encryption keys already exist at %s", cfg.Encryption.PublicKeyPath)
		}

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}
		if pass == "" {
			return errors.New("passphrase must not be empty")
		}

		if err := enc.Setup(pass); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the snapshot vault",
}

var vaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "ValidateVault", func(ctx context.Context, a *app.WellApp) error {
			v, err := a.Vault()
			if err != nil {
				return err
			}
			if err := v.ValidateSetup(ctx); err != nil {
				return fmt.Errorf("vault check failed: %w", err)
			}
			fmt.Println("Vault OK.")
			return nil
		})
	},
}

// token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API bearer tokens",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate a bearer token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generating token: %w", err)
		}
		token := base64.RawURLEncoding.EncodeToString(buf)
		hash, err := api.HashToken(token)
		if err != nil {
			return err
		}

		fmt.Printf("Token (shown once): %s\n\n", token)
		fmt.Println("Add to the config file:")
		fmt.Printf("[[server.tokens]]\nuser_id = %q\ntoken_hash = %q\n", user, hash)
		return nil
	},
}

var tokenHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Hash an existing bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := readPassphrase("Token: ")
		if err != nil {
			return err
		}
		if token == "" {
			return errors.New("token must not be empty")
		}
		hash, err := api.HashToken(token)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Serve", func(ctx context.Context, a *app.WellApp) error {
			if len(a.Config().Server.Tokens) == 0 {
				a.Logger().Warn("no api tokens configured, every /v1 request will be rejected")
			}
			return a.Serve(ctx)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("user", "u", "", "User ID (default $WELL_USER)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	encryptionCmd.AddCommand(encryptionSetupCmd)
	vaultCmd.AddCommand(vaultCheckCmd)
	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenHashCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(encryptionCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(serveCmd)
}
