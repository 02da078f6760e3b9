package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zacy-Sokach/ThinkChat/internal/config"
	"github.com/Zacy-Sokach/ThinkChat/internal/ollama"
)

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		save, _ := cmd.Flags().GetBool("save")
		if save {
			if err := config.SaveConfig(cfg); err != nil {
				return err
			}
		}

		path, err := config.Path()
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", path)
		fmt.Fprint(out, string(data))
		if save {
			fmt.Fprintln(out, "# saved")
		}
		return nil
	},
}

// --- doctor ---

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that Ollama is reachable and the model is present",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		client := ollama.New(cfg.OllamaHost)
		out := cmd.OutOrStdout()

		version, err := client.Version(ctx)
		if err != nil {
			return fmt.Errorf("Ollama unreachable at %s: %w", cfg.OllamaHost, err)
		}
		fmt.Fprintf(out, "Ollama %s at %s\n", version, cfg.OllamaHost)

		present, err := client.HasModel(ctx, cfg.Model)
		if err != nil {
			return fmt.Errorf("listing models: %w", err)
		}
		if present {
			fmt.Fprintf(out, "model %s: present\n", cfg.Model)
		} else {
			fmt.Fprintf(out, "model %s: not pulled yet (/load will download it)\n", cfg.Model)
		}
		return nil
	},
}

func init() {
	configCmd.Flags().Bool("save", false, "write the effective configuration back to the config file")
}
