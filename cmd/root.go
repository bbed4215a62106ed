package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "gosign",
		Short:        "gosign stores documents and stamps signature images onto their pages",
		Long:         "",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, err := cmd.Flags().GetString("env-file")
			if err != nil {
				return err
			}
			if err = godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load env file: %w", err)
			}
			return nil
		},
	}
	cmd.AddGroup(&cobra.Group{
		ID:    "server",
		Title: "Server",
	}, &cobra.Group{
		ID:    "tools",
		Title: "Tools",
	})

	cmd.PersistentFlags().StringP("config", "c", os.Getenv("GOSIGN_CONFIG"), "config file (default is ./gosign.toml or /etc/gosign/gosign.toml)")
	cmd.PersistentFlags().String("env-file", ".env", "env file loaded before the config")
	cmd.PersistentFlags().BoolP("help", "h", false, "help for gosign")
	cmd.CompletionOptions.DisableDescriptions = true

	return cmd
}

func Execute(command *cobra.Command) {
	err := command.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func configPath(cmd *cobra.Command) string {
	return cmd.Flag("config").Value.String()
}
