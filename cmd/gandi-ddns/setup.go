package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	ddns "github.com/Travis-Britz/gandi-ddns"
	"github.com/Travis-Britz/gandi-ddns/internal/config"
)

// runSetup asks for the API key on the terminal, verifies it, and stores it in the configured key file.
func runSetup(ctx context.Context, cfg *config.Config, httpClient *http.Client) (string, error) {
	logger.Debug("running setup")
	logger.Sync()
	fmt.Fprintf(os.Stderr, "Enter LiveDNS API Key: \n")
	bytekey, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("error reading from stdin: %w", err)
	}
	key := strings.TrimSpace(string(bytekey))
	if key == "" {
		return "", errors.New("no key entered")
	}

	api, err := ddns.NewLiveDNS(cfg.APIEndpoint, key)
	if err != nil {
		return "", fmt.Errorf("error creating api client: %w", err)
	}
	api.SetHTTPClient(httpClient)
	api.SetLogger(logger)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	logger.Info("verifying api key...")
	if err := api.VerifyKey(ctx); err != nil {
		return "", fmt.Errorf("unable to verify api key: %w", err)
	}
	logger.Info("api key verified successfully")

	if err := config.WriteKeyFile(cfg.APIKeyFile, key); err != nil {
		return "", err
	}
	logger.Info("api key written", zap.String("path", cfg.APIKeyFile))
	return key, nil
}
