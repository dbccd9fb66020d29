package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openmined/skywriter/internal/client/config"
	"github.com/openmined/skywriter/internal/mapping"
	"github.com/openmined/skywriter/internal/utils"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var serverURL string
	var secret string
	var files []string
	var dirs []string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Example: `  skywriter init --server http://127.0.0.1:8000 --secret $SECRET \
    --file ~/notes.txt=notes.txt --dir ~/docs=docs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, _ := cmd.Flags().GetString("config")

			if existing, err := config.LoadFromFile(path); err == nil && !force {
				fmt.Fprintln(out, "Skywriter already initialized")
				fmt.Fprintf(out, "Config Path: %s\n", green(existing.Path))
				fmt.Fprintf(out, "Server:      %s\n", cyan(existing.ServerURL))
				return nil
			}

			cfg := config.Default()
			cfg.Path = path
			cfg.ServerURL = serverURL
			cfg.Secret = secret

			var err error
			if cfg.Mappings.Files, err = parseEntries(files); err != nil {
				return err
			}
			if cfg.Mappings.Directories, err = parseEntries(dirs); err != nil {
				return err
			}

			// a scaffold without mappings is fine, it only has to be edited
			if err := cfg.Validate(); err != nil && !errors.Is(err, config.ErrNoMappings) {
				return err
			}

			cmd.SilenceUsage = true
			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Fprintln(out, "Skywriter initialized")
			fmt.Fprintf(out, "Config Path: %s\n", green(cfg.Path))
			fmt.Fprintf(out, "Server:      %s\n", cyan(cfg.ServerURL))
			fmt.Fprintf(out, "Secret:      %s\n", gray(utils.MaskSecret(cfg.Secret)))
			fmt.Fprintf(out, "Mappings:    %s\n", cyan(len(cfg.Mappings.Files)+len(cfg.Mappings.Directories)))
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&serverURL, "server", "s", config.DefaultServerURL, "server url")
	cmd.Flags().StringVar(&secret, "secret", "", "shared secret")
	cmd.Flags().StringArrayVar(&files, "file", nil, "file mapping as LOCAL=REMOTE, repeatable")
	cmd.Flags().StringArrayVar(&dirs, "dir", nil, "directory mapping as LOCAL=REMOTE, repeatable")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config")

	return cmd
}

// parseEntries reads LOCAL=REMOTE pairs. The remote part may be empty for
// directories, which then map onto the store root.
func parseEntries(pairs []string) ([]mapping.Entry, error) {
	entries := make([]mapping.Entry, 0, len(pairs))
	for _, pair := range pairs {
		local, remote, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(local) == "" {
			return nil, fmt.Errorf("invalid mapping %q, want LOCAL=REMOTE", pair)
		}
		entries = append(entries, mapping.Entry{Local: local, Remote: remote})
	}
	return entries, nil
}
