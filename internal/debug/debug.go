// Package debug implements the ambient leveled, package-scoped logger
// spec.md's SPEC_FULL expansion describes: cheap when disabled, gated
// before formatting, used by the scheduler, loader and rules for
// trace-level diagnostics — never for the user-facing diagnostics of
// internal/diag or the buildfile `print` directive.
//
// Adapted from the teacher's internal/debug (standardbeagle/lci): same
// gate-then-format shape and optional file-backed sink, with the MCP-
// protocol-quiet concept generalized to the driver's own --verbose 0
// ("Quiet") mode and the component tags renamed to this system's own
// (scheduler/loader/rule/depdb instead of index/search/mcp).
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug is a build flag overridable via
// -ldflags "-X github.com/b2go/b2go/internal/debug.EnableDebug=true".
var EnableDebug = "false"

// Quiet tracks the driver's --verbose 0 mode, which suppresses all debug
// output regardless of EnableDebug or $DEBUG (set by cmd/b2go).
var Quiet = false

var (
	debugOutput io.Writer
	debugFile   *os.File
	debugMutex  sync.Mutex
)

// SetQuiet enables/disables Quiet mode.
func SetQuiet(enabled bool) { Quiet = enabled }

// SetDebugOutput sets a custom writer for debug output. Pass nil to
// disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a timestamped file under
// a per-OS temp directory, returning its path. Call CloseDebugLog when
// done.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "b2go-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled reports whether trace logging is active: never in Quiet
// mode, otherwise gated by the build flag or the $DEBUG environment
// variable.
func IsDebugEnabled() bool {
	if Quiet {
		return false
	}
	if EnableDebug == "true" {
		return true
	}
	if v := os.Getenv("DEBUG"); v == "1" || v == "true" {
		return true
	}
	return false
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Printf is gated, unstructured debug output.
func Printf(format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	if w := getDebugWriter(); w != nil {
		fmt.Fprintf(w, "[DEBUG] "+format, args...)
	}
}

// Println is gated, unstructured debug output.
func Println(args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	if w := getDebugWriter(); w != nil {
		fmt.Fprint(w, "[DEBUG] ")
		fmt.Fprintln(w, args...)
	}
}

// Log provides structured debug logging tagged with a component name.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	if w := getDebugWriter(); w != nil {
		fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
	}
}

// LogScheduler logs a scheduler/phase-arbiter trace line (match/execute
// wave scheduling, §4.6).
func LogScheduler(format string, args ...interface{}) { Log("SCHED", format, args...) }

// LogLoader logs a loader/import trace line (§4.9).
func LogLoader(format string, args ...interface{}) { Log("LOAD", format, args...) }

// LogRule logs a rule match/apply/recipe trace line (§4.5, §4.10).
func LogRule(format string, args ...interface{}) { Log("RULE", format, args...) }

// LogDepdb logs a depdb read/write trace line (§4.8).
func LogDepdb(format string, args ...interface{}) { Log("DEPDB", format, args...) }

// Fatal formats a catastrophic error message to the debug log (suppressed
// in Quiet mode) and returns it as an error for the caller to propagate,
// rather than exiting directly.
func Fatal(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if !Quiet {
		if w := getDebugWriter(); w != nil {
			fmt.Fprintf(w, "[FATAL] %s", msg)
		}
	}
	return fmt.Errorf("fatal error: %s", msg)
}

// FatalAndExit is Fatal for CLI entry points that must terminate the
// process (exit code 1 per spec.md §6).
func FatalAndExit(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !Quiet {
		if w := getDebugWriter(); w != nil {
			fmt.Fprintf(w, "[FATAL] %s", msg)
		}
	}
	os.Exit(1)
}
