package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

// Reader resolves settings from the environment, falling back to a set of
// file-provided defaults and then to the caller's default.
type Reader struct {
	log      *logger.Logger
	defaults map[string]string
}

func New(log *logger.Logger, defaults map[string]string) *Reader {
	if defaults == nil {
		defaults = map[string]string{}
	}
	return &Reader{log: log, defaults: defaults}
}

func (r *Reader) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	if v, ok := r.defaults[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	return "", false
}

func (r *Reader) String(key, def string) string {
	v, ok := r.lookup(key)
	if !ok {
		r.debug("Environment variable not set, using default", key, def)
		return def
	}
	r.debug("Environment variable loaded", key, v)
	return v
}

func (r *Reader) Int(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if r.log != nil {
			r.log.Warn("Invalid integer environment variable, using default", "key", key, "value", v, "default", def)
		}
		return def
	}
	return i
}

func (r *Reader) Float(key string, def float64) float64 {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (r *Reader) Bool(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// Duration parses either a Go duration string ("1500ms") or a bare integer
// interpreted in unit.
func (r *Reader) Duration(key string, def, unit time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return time.Duration(i) * unit
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func (r *Reader) debug(msg, key, value string) {
	if r.log == nil {
		return
	}
	upper := strings.ToUpper(key)
	for _, frag := range []string{"PASSWORD", "SECRET", "TOKEN", "API_KEY"} {
		if strings.Contains(upper, frag) {
			value = "[REDACTED]"
		}
	}
	r.log.Debug(msg, "key", key, "value", value)
}

// Int reads an integer straight from the process environment.
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
