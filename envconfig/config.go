// config.go - Umgebungsvariablen-Konfiguration
//
// Dieses Modul enthaelt:
// - Var: getrimmter Zugriff auf Umgebungsvariablen
// - Debug/LogLevel: Log-Steuerung via LUMINA_DEBUG

package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var liest eine Umgebungsvariable und entfernt Whitespace und Quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// Debug meldet, ob Debug-Logging aktiv ist.
// Konfigurierbar via LUMINA_DEBUG
func Debug() bool {
	return LogLevel() <= slog.LevelDebug
}

// LogLevel gibt das Log-Level zurueck.
// Konfigurierbar via LUMINA_DEBUG (z.B. LUMINA_DEBUG=1)
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("LUMINA_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}
