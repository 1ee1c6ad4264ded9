package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/lessongen/internal/platform/logger"
)

// String returns the trimmed value of name, or def when unset or blank.
func String(name, def string, log *logger.Logger) string {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		if log != nil {
			log.Debug("Environment variable not found, using default", "env_var", name, "default", def)
		}
		return def
	}
	return v
}

func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func Bool(name string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// Seconds reads a positive integer number of seconds.
func Seconds(name string, def time.Duration) time.Duration {
	if n := Int(name, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// Millis reads a positive integer number of milliseconds.
func Millis(name string, def time.Duration) time.Duration {
	if n := Int(name, 0); n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return def
}
