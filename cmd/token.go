package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/topi314/gosign/server"
)

func NewTokenCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "token",
		GroupID: "tools",
		Short:   "Creates an api token signed with the configured jwt secret",
		Example: `gosign token --user 42 --name "Jane Doe" --permissions sign --expiry 24h

Will print a token for user 42 which may sign documents for the next 24 hours`,
		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			userID, _ := flags.GetString("user")
			name, _ := flags.GetString("name")
			permissionNames, _ := flags.GetStringSlice("permissions")
			expiry, _ := flags.GetDuration("expiry")

			permissions, err := server.ParsePermissions(permissionNames)
			if err != nil {
				return err
			}

			cfg, err := server.LoadConfig(configPath(cmd))
			if err != nil {
				return err
			}

			signer, err := server.NewSigner(cfg.JWTSecret)
			if err != nil {
				return fmt.Errorf("failed to create token signer: %w", err)
			}

			token, err := server.NewToken(signer, userID, name, permissions, expiry)
			if err != nil {
				return fmt.Errorf("failed to create token: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	parent.AddCommand(cmd)

	cmd.Flags().StringP("user", "u", "", "The user id of the token")
	cmd.Flags().StringP("name", "n", "", "The name printed below signatures of the user")
	cmd.Flags().StringSliceP("permissions", "p", nil, "The permissions of the token: sign, admin")
	cmd.Flags().DurationP("expiry", "e", 0, "How long the token is valid, 0 never expires")
	_ = cmd.MarkFlagRequired("user")
}
