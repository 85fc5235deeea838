package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adammhaile/elpis/internal/config"
	"github.com/adammhaile/elpis/internal/scrobbler"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with Last.fm",
	Long: `Authenticate with Last.fm to enable scrobbling.

This command will guide you through the Last.fm authentication process:
1. You'll be prompted to enter your Last.fm API key and secret
2. A browser URL will be provided for you to authorize the application
3. After authorization, a session key will be saved to your config file

You can get API credentials from: https://www.last.fm/api/account/create`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("Last.fm Authentication")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("You can get API credentials from: https://www.last.fm/api/account/create")
	fmt.Println()

	if cfg.LastFM.APIKey != "" && cfg.LastFM.APISecret != "" {
		fmt.Printf("Found existing API credentials.\n")
		fmt.Printf("API Key: %s\n", cfg.LastFM.APIKey)
		fmt.Print("\nUse existing credentials? [Y/n]: ")
		if !confirm(reader) {
			cfg.LastFM.APIKey = ""
			cfg.LastFM.APISecret = ""
		}
	}

	if cfg.LastFM.APIKey == "" {
		if cfg.LastFM.APIKey, err = prompt(reader, "Enter your Last.fm API Key: "); err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
	}
	if cfg.LastFM.APISecret == "" {
		if cfg.LastFM.APISecret, err = prompt(reader, "Enter your Last.fm API Secret: "); err != nil {
			return fmt.Errorf("failed to read API secret: %w", err)
		}
	}

	if cfg.LastFM.APIKey == "" || cfg.LastFM.APISecret == "" {
		return fmt.Errorf("API key and secret are required")
	}

	// Start from a clean session; an old key would make the handshake a no-op.
	cfg.LastFM.SessionKey = ""
	client, err := scrobbler.New(cfg.LastFMClientConfig())
	if err != nil {
		return err
	}

	fmt.Println("\nGenerating authentication token...")
	authURL, err := client.AuthenticateWithToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate auth token: %w", err)
	}

	fmt.Println("\nPlease visit this URL to authorize elpis:")
	fmt.Printf("\n  %s\n\n", authURL)
	fmt.Println("After authorizing, press Enter to continue...")
	_, _ = reader.ReadString('\n')

	// The token stays valid until exchanged, so a user who pressed Enter
	// too early can retry against the same token.
	fmt.Println("Retrieving session key...")
	maxRetries := 3
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		session, sessionErr := client.GetSession(ctx)
		if sessionErr == nil {
			cfg.LastFM.SessionKey = session.Key
			if session.Username != "" {
				fmt.Printf("Authorized as %s\n", session.Username)
			}
			break
		}
		err = sessionErr

		if i < maxRetries-1 {
			fmt.Printf("Failed to retrieve session (attempt %d/%d). Press Enter to retry in %v...\n",
				i+1, maxRetries, retryDelay)
			_, _ = reader.ReadString('\n')
			time.Sleep(retryDelay)
		}
	}

	if cfg.LastFM.SessionKey == "" {
		return fmt.Errorf("failed to get session key after %d attempts: %w", maxRetries, err)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("\n✓ Authentication successful!\n")
	fmt.Printf("✓ Session key saved to %s/config.yaml\n", config.GetConfigDir())
	fmt.Println("\nYou can now use 'elpis daemon' to start scrobbling.")

	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirm reads a yes/no answer that defaults to yes.
func confirm(reader *bufio.Reader) bool {
	response, err := reader.ReadString('\n')
	if err != nil {
		return true
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "" || response == "y" || response == "yes"
}
