package main

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mfateev/temporal-mirror-agent/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	fmt.Println(render(titleStyle, "mirrorctl"))
	fmt.Println()
	fmt.Printf("%s %s\n", render(labelStyle, "Version:"), render(valueStyle, version.Version))
	fmt.Printf("%s %s\n", render(labelStyle, "Git Commit:"), render(valueStyle, version.GitCommit))
	fmt.Printf("%s %s\n", render(labelStyle, "Go Version:"), render(valueStyle, runtime.Version()))
	fmt.Printf("%s %s/%s\n", render(labelStyle, "Platform:"), render(valueStyle, runtime.GOOS), render(valueStyle, runtime.GOARCH))
}
