package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// ========================================
// Brand Colors - Kartoza standard palette
// ========================================

var (
	ColorOrange   = lipgloss.Color("#DDA036") // Primary/Active
	ColorBlue     = lipgloss.Color("#569FC6") // Secondary/Links
	ColorGray     = lipgloss.Color("#9A9EA0") // Inactive/Subtle
	ColorWhite    = lipgloss.Color("#FFFFFF") // Text
	ColorDarkGray = lipgloss.Color("#3A3A3A") // Background
	ColorRed      = lipgloss.Color("#E95420") // Error
	ColorGreen    = lipgloss.Color("#4CAF50") // Success
)

// HeaderWidth is the standard width for the header
const HeaderWidth = 60

const divider = "────────────────────────────────────────────────────────────"

// HeaderState contains the dynamic state for the header
type HeaderState struct {
	Source  string
	Encoder string
	Elapsed string
}

// RenderHeader renders the standard application header
// screenTitle should be the name of the current screen (e.g., "Render", "Batch")
func RenderHeader(screenTitle string, state *HeaderState) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorOrange).
		Align(lipgloss.Center).
		Width(HeaderWidth)

	mottoStyle := lipgloss.NewStyle().
		Italic(true).
		Foreground(ColorGray).
		Align(lipgloss.Center).
		Width(HeaderWidth)

	dividerStyle := lipgloss.NewStyle().
		Foreground(ColorGray).
		Width(HeaderWidth)

	title := titleStyle.Render("Kartoza Overlay Renderer - " + screenTitle)
	motto := mottoStyle.Render("put a call to action on it")
	line := dividerStyle.Render(divider)

	if state == nil {
		return lipgloss.JoinVertical(lipgloss.Center, title, motto, line)
	}

	statusStyle := lipgloss.NewStyle().
		Foreground(ColorWhite).
		Align(lipgloss.Center).
		Width(HeaderWidth)

	encoder := state.Encoder
	if encoder == "" {
		encoder = "pending"
	}
	elapsed := state.Elapsed
	if elapsed == "" {
		elapsed = "0s"
	}
	status := statusStyle.Render(fmt.Sprintf("Source: %s  |  Encoder: %s  |  %s",
		lipgloss.NewStyle().Foreground(ColorBlue).Render(state.Source),
		encoder,
		elapsed,
	))

	return lipgloss.JoinVertical(lipgloss.Center, title, motto, line, status, line)
}

// RenderHelpFooter renders the standard help footer at the bottom of the screen
func RenderHelpFooter(helpText string, width int) string {
	helpStyle := lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true)

	footerStyle := lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center)

	return footerStyle.Render(helpStyle.Render(helpText))
}

// LayoutWithHeaderFooter creates a standard layout with header at top and footer at bottom
func LayoutWithHeaderFooter(header, content, footer string, width, height int) string {
	mainSection := lipgloss.JoinVertical(
		lipgloss.Center,
		header,
		"",
		content,
	)

	centeredMain := lipgloss.Place(
		width,
		max(height-2, 0),
		lipgloss.Center,
		lipgloss.Top,
		mainSection,
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		centeredMain,
		footer,
	)
}

// Label style for form labels
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// Value style for displaying values
var ValueStyle = lipgloss.NewStyle().
	Foreground(ColorWhite)

// Warning style for skipped overlays and fallbacks
var WarningStyle = lipgloss.NewStyle().
	Foreground(ColorOrange)

// Error style for error messages
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// Success style for success messages
var SuccessStyle = lipgloss.NewStyle().
	Foreground(ColorGreen).
	Bold(true)
