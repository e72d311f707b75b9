package main

import (
	"fmt"
	"io"
	"os"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func colorize(w io.Writer, text, color string) string {
	if !isTerminal(w) {
		return text
	}
	return color + text + colorReset
}

func warn(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", colorize(w, "!", colorYellow), fmt.Sprintf(format, args...))
}

func success(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", colorize(w, "ok", colorGreen), fmt.Sprintf(format, args...))
}

// statusLabel colors a mesa status for the listing.
func statusLabel(w io.Writer, s mesa.Status) string {
	switch s {
	case mesa.StatusLivre:
		return colorize(w, string(s), colorGreen)
	case mesa.StatusOcupada:
		return colorize(w, string(s), colorYellow)
	case mesa.StatusPronto:
		return colorize(w, string(s), colorBlue)
	case mesa.StatusFinalizado:
		return colorize(w, string(s), colorRed)
	}
	return string(s)
}
