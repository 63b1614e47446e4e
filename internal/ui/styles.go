package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Design System Colors - Adaptive based on terminal background
var (
	ColorPrimary   lipgloss.Color
	ColorSecondary lipgloss.Color
	ColorAccent    lipgloss.Color

	ColorSuccess lipgloss.Color
	ColorWarning lipgloss.Color
	ColorError   lipgloss.Color
	ColorInfo    lipgloss.Color

	ColorText      lipgloss.Color
	ColorTextMuted lipgloss.Color
	ColorTextDim   lipgloss.Color
	ColorBorder    lipgloss.Color
	ColorSurface   lipgloss.Color
)

// initializeColors sets up adaptive colors and rebuilds the styles from them
func initializeColors() {
	switch os.Getenv("GLAMOUR_STYLE") {
	case "light":
		setLightThemeColors()
	case "dark":
		setDarkThemeColors()
	default:
		if lipgloss.HasDarkBackground() {
			setDarkThemeColors()
		} else {
			setLightThemeColors()
		}
	}
	buildStyles()
}

func setDarkThemeColors() {
	ColorPrimary = lipgloss.Color("205")
	ColorSecondary = lipgloss.Color("33")
	ColorAccent = lipgloss.Color("214")

	ColorSuccess = lipgloss.Color("10")
	ColorWarning = lipgloss.Color("11")
	ColorError = lipgloss.Color("9")
	ColorInfo = lipgloss.Color("12")

	ColorText = lipgloss.Color("252")
	ColorTextMuted = lipgloss.Color("244")
	ColorTextDim = lipgloss.Color("240")
	ColorBorder = lipgloss.Color("238")
	ColorSurface = lipgloss.Color("236")
}

func setLightThemeColors() {
	ColorPrimary = lipgloss.Color("125")
	ColorSecondary = lipgloss.Color("24")
	ColorAccent = lipgloss.Color("130")

	ColorSuccess = lipgloss.Color("22")
	ColorWarning = lipgloss.Color("136")
	ColorError = lipgloss.Color("160")
	ColorInfo = lipgloss.Color("24")

	ColorText = lipgloss.Color("232")
	ColorTextMuted = lipgloss.Color("240")
	ColorTextDim = lipgloss.Color("244")
	ColorBorder = lipgloss.Color("248")
	ColorSurface = lipgloss.Color("254")
}

// Component Styles
var (
	StyleTitle     lipgloss.Style
	StyleText      lipgloss.Style
	StyleTextMuted lipgloss.Style
	StyleTextDim   lipgloss.Style

	StyleFocused   lipgloss.Style
	StyleUnfocused lipgloss.Style

	StyleSuccess lipgloss.Style
	StyleWarning lipgloss.Style
	StyleError   lipgloss.Style
	StyleInfo    lipgloss.Style

	StyleContentContainer lipgloss.Style
	StyleFormLabel        lipgloss.Style
	StyleFormHelp         lipgloss.Style
	StyleMetadata         lipgloss.Style
	StyleCode             lipgloss.Style
)

func init() {
	setDarkThemeColors()
	buildStyles()
}

func buildStyles() {
	StyleTitle = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 1)

	StyleText = lipgloss.NewStyle().Foreground(ColorText)
	StyleTextMuted = lipgloss.NewStyle().Foreground(ColorTextMuted)
	StyleTextDim = lipgloss.NewStyle().Foreground(ColorTextDim)

	StyleFocused = lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(ColorSecondary).
		Bold(true).
		Padding(0, 1)

	StyleUnfocused = lipgloss.NewStyle().
		Foreground(ColorTextMuted).
		Padding(0, 1)

	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true).Padding(0, 1)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true).Padding(0, 1)
	StyleError = lipgloss.NewStyle().Foreground(ColorError).Bold(true).Padding(0, 1)
	StyleInfo = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true).Padding(0, 1)

	StyleContentContainer = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)

	StyleFormLabel = lipgloss.NewStyle().
		Foreground(ColorText).
		Bold(true)

	StyleFormHelp = lipgloss.NewStyle().
		Foreground(ColorTextDim).
		Italic(true).
		Padding(0, 3)

	StyleMetadata = lipgloss.NewStyle().
		Foreground(ColorTextDim).
		Padding(0, 1)

	StyleCode = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Padding(0, 1)
}

// CreateMainHeader renders a page title
func CreateMainHeader(titleText string) string {
	return StyleTitle.Render(titleText)
}

func CreateMetadata(text string) string {
	return StyleMetadata.Render(text)
}

// CreateGuaranteedHelp renders one help line truncated to the terminal width
func CreateGuaranteedHelp(helpText string, width int) string {
	helpStyle := lipgloss.NewStyle().
		Foreground(ColorTextDim).
		Width(width).
		Align(lipgloss.Left).
		Padding(0, 1)

	if width > 5 && len(helpText) > width-2 {
		helpText = helpText[:width-5] + "..."
	}

	return helpStyle.Render(helpText)
}

func CreateStatus(text string, statusType string) string {
	switch statusType {
	case "success":
		return StyleSuccess.Render(text)
	case "warning":
		return StyleWarning.Render(text)
	case "error":
		return StyleError.Render(text)
	case "info":
		return StyleInfo.Render(text)
	default:
		return StyleText.Render(text)
	}
}

// AddMainPadding adds the left padding used by every view
func AddMainPadding(content string) string {
	return lipgloss.NewStyle().PaddingLeft(2).Render(content)
}

// joinHelp joins key hints the way every footer shows them
func joinHelp(parts ...string) string {
	return strings.Join(parts, " • ")
}
