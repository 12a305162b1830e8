package loader

import (
	"os"
	"strings"
)

// DefaultEnvPrefix is the prefix of the environment variables lsesample reads.
const DefaultEnvPrefix = "LSESAMPLE_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "LSESAMPLE_")
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "LSESAMPLE_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

// defaultEnvMapping returns the shorthand variables that don't follow the
// SECTION_KEY naming rule.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "LOG_LEVEL": "logging.level",
		prefix + "LOG_FILE":  "logging.file",
		prefix + "SOURCE":    "server.source",
	}
}

// Load reads environment variables and returns a configuration map.
// Values are kept as the raw strings; the config decoder converts them to
// the type of the setting they land on. Empty values are kept: setting a
// variable to "" overrides the file.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		SetByPath(config, path, value)
	}

	return config, nil
}

// envToPath converts LSESAMPLE_SERVER_WATCH_CONFIG to server.watchConfig.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.TrimPrefix(env, l.prefix)
	if name == "" {
		return ""
	}

	parts := strings.Split(name, "_")
	section := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return section
	}

	setting := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if part != "" {
			setting += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}

	return section + "." + setting
}

// SetByPath sets a value in a nested map using a dot-separated path,
// creating intermediate maps as needed.
func SetByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	current[parts[len(parts)-1]] = value
}
