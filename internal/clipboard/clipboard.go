package clipboard

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
)

// ClipboardError represents an error when no clipboard utility is available
type ClipboardError struct {
	OS      string
	Message string
}

func (e *ClipboardError) Error() string {
	return e.Message
}

// NewClipboardError creates a new ClipboardError with helpful installation instructions
func NewClipboardError() *ClipboardError {
	return &ClipboardError{
		OS:      runtime.GOOS,
		Message: "no clipboard utility found. " + GetInstallInstructions(),
	}
}

// Copier copies text to the system clipboard, falling back to an OSC 52
// escape sequence written to the terminal. Most terminal emulators forward
// OSC 52 to the clipboard, including over SSH.
type Copier struct {
	terminal io.Writer
	write    func(string) error
}

// New returns a Copier that tries the system clipboard first and writes the
// OSC 52 fallback to terminal. A nil terminal disables the fallback.
func New(terminal io.Writer) *Copier {
	c := &Copier{terminal: terminal}
	if !clipboard.Unsupported {
		c.write = clipboard.WriteAll
	}
	return c
}

// NewOSC52 returns a Copier that only writes OSC 52 sequences to terminal
func NewOSC52(terminal io.Writer) *Copier {
	return &Copier{terminal: terminal}
}

// Copy copies text and returns a status message for the user
func (c *Copier) Copy(text string) (string, error) {
	var systemErr error
	if c.write != nil {
		if systemErr = c.write(text); systemErr == nil {
			return "Copied to clipboard", nil
		}
	}

	if c.terminal == nil {
		if systemErr != nil {
			return "", fmt.Errorf("failed to copy to clipboard: %w", systemErr)
		}
		return "", NewClipboardError()
	}

	if _, err := osc52.New(text).WriteTo(c.terminal); err != nil {
		return "", fmt.Errorf("failed to copy to clipboard: %w", errors.Join(systemErr, err))
	}
	return "Sent to terminal clipboard", nil
}

// IsClipboardAvailable reports whether a system clipboard utility is present
func IsClipboardAvailable() bool {
	return !clipboard.Unsupported
}

// GetInstallInstructions returns installation instructions for clipboard utilities
func GetInstallInstructions() string {
	switch runtime.GOOS {
	case "linux":
		return "Install a clipboard utility:\n" +
			"  • Ubuntu/Debian: sudo apt install xclip\n" +
			"  • Fedora/RHEL: sudo dnf install xclip\n" +
			"  • Arch: sudo pacman -S xclip\n" +
			"  • For Wayland: install wl-clipboard"
	case "darwin":
		return "pbcopy should be available by default on macOS"
	case "windows":
		return "clip should be available by default on Windows"
	default:
		return fmt.Sprintf("Clipboard not supported on %s", runtime.GOOS)
	}
}
