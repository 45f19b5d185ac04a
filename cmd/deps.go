package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-overlay-renderer/internal/deps"
	"github.com/kartoza/kartoza-overlay-renderer/internal/tui"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Check for required dependencies",
	Long:  `Check if all required external programs are installed and available.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		required, optional := deps.CheckAll(deps.WithFFmpeg(cfg.FFmpegBinary))

		green := lipgloss.NewStyle().Foreground(tui.ColorGreen)
		red := lipgloss.NewStyle().Foreground(tui.ColorRed)
		gray := lipgloss.NewStyle().Foreground(tui.ColorGray)
		bold := lipgloss.NewStyle().Bold(true)

		fmt.Println()
		fmt.Println(bold.Render("Required Dependencies:"))
		fmt.Println()

		allRequiredOk := true
		for _, r := range required {
			status := green.Render("✓")
			if !r.Available {
				status = red.Render("✗")
				allRequiredOk = false
			}
			printDep(status, r, bold, gray)
		}

		fmt.Println(bold.Render("Optional Dependencies:"))
		fmt.Println()

		for _, r := range optional {
			status := green.Render("✓")
			if !r.Available {
				status = gray.Render("○")
			}
			printDep(status, r, bold, gray)
		}

		if !allRequiredOk {
			fmt.Println(red.Render("Some required dependencies are missing."))
			fmt.Println("Please install them before rendering.")
			fmt.Println()
			return fmt.Errorf("missing required dependencies")
		}
		fmt.Println(green.Render("All required dependencies are installed!"))
		fmt.Println()
		return nil
	},
}

func printDep(status string, r deps.CheckResult, bold, gray lipgloss.Style) {
	fmt.Printf("  %s %s\n", status, bold.Render(r.Dependency.Name))
	fmt.Printf("    %s\n", gray.Render(r.Dependency.Description))
	if r.Available {
		fmt.Printf("    Path: %s\n", r.Path)
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(depsCmd)
}
