package main

import (
	_ "time/tzdata"

	"github.com/topi314/gosign/cmd"
	"github.com/topi314/gosign/internal/ver"
)

func main() {
	version := ver.Load()

	rootCmd := cmd.NewRootCmd()
	cmd.NewServerCmd(rootCmd, version)
	cmd.NewStampCmd(rootCmd)
	cmd.NewTokenCmd(rootCmd)
	cmd.NewVersionCmd(rootCmd, version)
	cmd.Execute(rootCmd)
}
