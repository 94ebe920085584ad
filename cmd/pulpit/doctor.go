package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// doctorCommand checks config, provider construction and the data directory.
func doctorCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check Pulpit configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rt, err := loadRuntime(opts, false)
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			defer func() { _ = rt.logger.Sync() }()
			fmt.Fprintf(out, "OK: config (provider %s, model %s)\n", rt.cfg.Provider, rt.model)

			if opts.ConfigPath != "" {
				if err := checkConfigPermissions(opts.ConfigPath, rt.cfg.APIKey != ""); err != nil {
					return err
				}
			}
			if rt.cfg.ServerURL != "" {
				fmt.Fprintf(out, "OK: using generation server %s\n", rt.cfg.ServerURL)
			} else {
				provider, err := newProvider(rt.cfg)
				if err != nil {
					return fmt.Errorf("provider invalid: %w", err)
				}
				fmt.Fprintf(out, "OK: provider %s\n", provider.Name())
			}
			if err := checkDataDir(rt.store.BaseDir); err != nil {
				return err
			}
			fmt.Fprintf(out, "OK: data dir %s\n", rt.store.BaseDir)
			return nil
		},
	}
}

// checkConfigPermissions rejects group or world readable config holding a key.
func checkConfigPermissions(path string, holdsKey bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config missing at %s", path)
	}
	mode := info.Mode().Perm()
	if holdsKey && mode&0o077 != 0 {
		return fmt.Errorf("config permissions too open: %s", mode)
	}
	return nil
}

// checkDataDir verifies the data directory is writable.
func checkDataDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	scratch, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	name := scratch.Name()
	_, writeErr := io.WriteString(scratch, "ok")
	closeErr := scratch.Close()
	_ = os.Remove(filepath.Clean(name))
	if writeErr != nil || closeErr != nil {
		return fmt.Errorf("data dir not writable: %v %v", writeErr, closeErr)
	}
	return nil
}
