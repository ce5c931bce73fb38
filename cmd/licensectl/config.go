package main

import (
	"fmt"

	"github.com/MacJediWizard/licenseclient/internal/config"
	"github.com/MacJediWizard/licenseclient/internal/httpclient"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage client configuration",
	}

	cmd.AddCommand(
		newConfigInitCmd(opts),
		newConfigShowCmd(opts),
	)

	return cmd
}

func newConfigInitCmd(opts *globalOptions) *cobra.Command {
	var (
		server     string
		site       string
		authClient string
		key        string
		secret     string
		token      string
		license    string
		redisURL   string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolveConfigPath()
			if err != nil {
				return err
			}

			cfg := config.Default()
			cfg.Server = server
			cfg.Site = site
			cfg.DefaultLicense = license
			cfg.Auth.Client = authClient
			cfg.Auth.Key = key
			cfg.Auth.Secret = secret
			cfg.Auth.Token = token
			cfg.Cache.RedisURL = redisURL

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "license service URL (required)")
	cmd.Flags().StringVar(&site, "site", "", "site identifier (required)")
	cmd.Flags().StringVar(&authClient, "auth-client", string(config.AuthNone), "auth strategy (none, static, oauth2)")
	cmd.Flags().StringVar(&key, "key", "", "oauth2 client key")
	cmd.Flags().StringVar(&secret, "secret", "", "oauth2 client secret")
	cmd.Flags().StringVar(&token, "token", "", "static bearer token")
	cmd.Flags().StringVar(&license, "default-license", "", "license used when a command omits one")
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "shared redis response cache")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("site")

	return cmd
}

func newConfigShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolveConfigPath()
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file:  %s\n", path)
			fmt.Fprintf(out, "Server:       %s\n", cfg.Server)
			fmt.Fprintf(out, "Site:         %s\n", cfg.Site)
			fmt.Fprintf(out, "Auth client:  %s\n", cfg.Auth.Client)
			if cfg.Auth.Key != "" {
				fmt.Fprintf(out, "Auth key:     %s\n", cfg.Auth.Key)
			}
			if cfg.Auth.Secret != "" {
				fmt.Fprintf(out, "Auth secret:  %s\n", maskSecret(cfg.Auth.Secret))
			}
			if cfg.Auth.Token != "" {
				fmt.Fprintf(out, "Auth token:   %s\n", maskSecret(cfg.Auth.Token))
			}
			fmt.Fprintf(out, "Cache key:    %s\n", cfg.CacheKey)
			fmt.Fprintf(out, "Licenses TTL: %s\n", cfg.Cache.LicensesTTL)
			fmt.Fprintf(out, "Content TTL:  %s\n", cfg.Cache.ContentTTL)
			if cfg.Cache.RedisURL != "" {
				fmt.Fprintf(out, "Redis:        %s\n", httpclient.MaskURL(cfg.Cache.RedisURL))
			}
			fmt.Fprintf(out, "Proxy:        %s\n", httpclient.ProxyInfo(&cfg.HTTP.Proxy))
			if cfg.DefaultLicense != "" {
				fmt.Fprintf(out, "Default:      %s\n", cfg.DefaultLicense)
			}
			return nil
		},
	}
}

// maskSecret shows only the last four characters.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
