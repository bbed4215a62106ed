package cmd

import (
	"github.com/spf13/cobra"

	"github.com/topi314/gosign/internal/ver"
)

func NewVersionCmd(parent *cobra.Command, version ver.Version) {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Prints the version of gosign",
		Long: `Prints the version of gosign. For example:

gosign version

Go Version: go1.22.0
Version: v1.0.0
Commit: b1fd421
Build Time: Mon Jan  1 00:00:00 2024
OS/Arch: linux/amd64`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(version.Format())
		},
	}

	parent.AddCommand(cmd)
}
