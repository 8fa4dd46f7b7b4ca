// cmd/createadmin/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/licensehub/license-server/internal/config"
	"github.com/licensehub/license-server/internal/database"
	"github.com/licensehub/license-server/internal/services"
	"github.com/licensehub/license-server/internal/utils"
)

const passwordCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		username string
		password string
		force    bool
	)

	// .env may carry ADMIN_USERNAME / ADMIN_PASSWORD used as flag defaults.
	_ = godotenv.Load()

	flagSet := pflag.NewFlagSet("createadmin", pflag.ContinueOnError)
	flagSet.StringVarP(&username, "username", "u", envOr("ADMIN_USERNAME", "admin"), "admin username")
	flagSet.StringVarP(&password, "password", "p", os.Getenv("ADMIN_PASSWORD"), "admin password (generated when empty)")
	flagSet.BoolVar(&force, "force", false, "reset the password even if an admin already exists")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logrus.SetLevel(logrus.WarnLevel)

	generated := false
	if password == "" {
		password, err = utils.GenerateRandomString(passwordCharset, 16)
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
		generated = true
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		return err
	}

	authService := services.NewAuthService(db, cfg, nil)
	admin, err := authService.CreateAdmin(context.Background(), username, password, force)
	if err != nil {
		if errors.Is(err, services.ErrAdminExists) {
			return fmt.Errorf("%w; rerun with --force to reset its password", err)
		}
		return err
	}

	fmt.Println("Admin user saved")
	fmt.Printf("  ID:       %s\n", admin.ID)
	fmt.Printf("  Username: %s\n", admin.Username)
	if generated {
		fmt.Printf("  Password: %s\n", password)
	}
	fmt.Printf("Log in with POST http://localhost:%s/admin/login\n", cfg.Server.Port)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `createadmin seeds the first admin account of the license server.

It reads the same environment (.env, DB_*) as the server. Without --force it
refuses when an admin already exists.

Usage:
  createadmin [flags]

Flags:
%s`, flagSet.FlagUsages())
}
