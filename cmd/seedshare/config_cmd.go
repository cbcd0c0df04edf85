package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"seedshare/internal/config"
)

// secretKeys are masked by `config list`; `config get` still prints them.
var secretKeys = map[string]struct{}{
	"admin_token": {},
}

func newConfigCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change ~/.seedshare.toml (or $SEEDSHARE_CONFIG_DIR)",
	}
	cmd.AddCommand(
		newConfigGetCmd(cfg),
		newConfigListCmd(cfg, jsonOutput),
		newConfigSetCmd(),
	)
	return cmd
}

func newConfigGetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of one key",
		Args:  requireExactlyArgs(1, "config get requires exactly one key"),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := configValue(cfg, args[0])
			if err != nil {
				return err
			}
			return writePlain("%s\n", value)
		},
	}
}

func newConfigListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every key with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := effectiveConfig(cfg)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(values)
			}
			for _, key := range config.AllowedKeys() {
				if err := writePlain("%s = %s\n", key, values[key]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist one key to the config file",
		Args:  requireExactlyArgs(2, "config set requires a key and a value"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			if err := config.SetKey(path, args[0], args[1]); err != nil {
				return err
			}
			return writePlain("%s updated in %s\n", args[0], path)
		},
	}
}

func configValue(cfg *config.Config, key string) (string, error) {
	if !config.IsAllowedKey(key) {
		return "", fmt.Errorf("unknown key: %s (allowed: %v)", key, config.AllowedKeys())
	}
	return cfg.Get(key)
}

// effectiveConfig returns every key with secrets masked.
func effectiveConfig(cfg *config.Config) (map[string]string, error) {
	values := make(map[string]string, len(config.AllowedKeys()))
	for _, key := range config.AllowedKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			return nil, err
		}
		if _, secret := secretKeys[key]; secret && value != "" {
			value = "********"
		}
		values[key] = value
	}
	return values, nil
}
