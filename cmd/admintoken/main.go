// Command admintoken issues a console token for a primary admin and prints
// the console link.
package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/spf13/pflag"

	"github.com/reviewcash/backend/internal/auth"
	"github.com/reviewcash/backend/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	identity := pflag.StringP("identity", "i", "", "primary admin identity (@username or Telegram id)")
	envFile := pflag.String("env-file", "", "load environment from this file instead of .env")
	tokenOnly := pflag.Bool("token-only", false, "print only the token")
	pflag.Parse()

	if *identity == "" {
		fmt.Fprintln(os.Stderr, "usage: admintoken --identity @username [--env-file path]")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewService(auth.Config{
		Secret:        cfg.Admin.TokenSecret,
		TTL:           cfg.Admin.TokenTTL,
		PrimaryAdmins: cfg.Admin.PrimaryAdmins,
	})
	if err != nil {
		slog.Error("Admin token service init failed", "error", err)
		os.Exit(1)
	}
	token, err := tokens.Issue(*identity)
	if err != nil {
		slog.Error("Cannot issue token", "identity", *identity, "error", err)
		os.Exit(1)
	}

	if *tokenOnly {
		fmt.Println(token)
		return
	}
	fmt.Printf("%s/mainadmin?token=%s\n", cfg.App.PublicURL, url.QueryEscape(token))
	fmt.Fprintf(os.Stderr, "valid for %s\n", cfg.Admin.TokenTTL)
}
