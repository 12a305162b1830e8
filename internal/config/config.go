package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/dshills/lsesample/internal/config/loader"
)

// Setting paths.
const (
	PathServerName        = "server.name"
	PathServerSource      = "server.source"
	PathServerWatchConfig = "server.watchConfig"
	PathLoggingLevel      = "logging.level"
	PathLoggingFile       = "logging.file"
	PathTriggerCharacters = "completion.triggerCharacters"
)

// LogLevels lists the accepted values of logging.level.
var LogLevels = []string{"debug", "info", "warn", "error", "off"}

// Config is the resolved lsesample configuration.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Completion CompletionConfig
}

// ServerConfig holds the [server] section.
type ServerConfig struct {
	// Name is reported to the client in initialize.
	Name string
	// Source is stamped on every published diagnostic.
	Source string
	// WatchConfig enables live reload of the config file.
	WatchConfig bool
}

// LoggingConfig holds the [logging] section.
type LoggingConfig struct {
	// Level is one of LogLevels.
	Level string
	// File is the log file path; empty means stderr.
	File string
}

// CompletionConfig holds the [completion] section.
type CompletionConfig struct {
	TriggerCharacters []string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "lsesample",
			Source:      "lsesample",
			WatchConfig: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Completion: CompletionConfig{
			TriggerCharacters: []string{".", "#"},
		},
	}
}

// Map returns the configuration as a nested settings map, the form the
// loaders produce.
func (c *Config) Map() map[string]any {
	chars := make([]any, len(c.Completion.TriggerCharacters))
	for i, ch := range c.Completion.TriggerCharacters {
		chars[i] = ch
	}

	m := make(map[string]any)
	loader.SetByPath(m, PathServerName, c.Server.Name)
	loader.SetByPath(m, PathServerSource, c.Server.Source)
	loader.SetByPath(m, PathServerWatchConfig, c.Server.WatchConfig)
	loader.SetByPath(m, PathLoggingLevel, c.Logging.Level)
	loader.SetByPath(m, PathLoggingFile, c.Logging.File)
	loader.SetByPath(m, PathTriggerCharacters, chars)
	return m
}

// FromMap decodes a settings map over the defaults. Unknown keys are ignored.
func FromMap(m map[string]any) (*Config, error) {
	c := Default()
	var errs []error

	decodeString(m, PathServerName, &c.Server.Name, &errs)
	decodeString(m, PathServerSource, &c.Server.Source, &errs)
	decodeBool(m, PathServerWatchConfig, &c.Server.WatchConfig, &errs)
	decodeString(m, PathLoggingLevel, &c.Logging.Level, &errs)
	decodeString(m, PathLoggingFile, &c.Logging.File, &errs)
	decodeStrings(m, PathTriggerCharacters, &c.Completion.TriggerCharacters, &errs)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	return c, nil
}

// Validate reports every setting holding an unacceptable value.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(LogLevels, c.Logging.Level) {
		errs = append(errs, &ValidationError{
			Path:    PathLoggingLevel,
			Message: "must be one of " + strings.Join(LogLevels, ", "),
			Value:   c.Logging.Level,
		})
	}
	if strings.TrimSpace(c.Server.Source) == "" {
		errs = append(errs, &ValidationError{
			Path:    PathServerSource,
			Message: "must not be empty",
			Value:   c.Server.Source,
		})
	}
	for _, ch := range c.Completion.TriggerCharacters {
		if ch == "" {
			errs = append(errs, &ValidationError{
				Path:    PathTriggerCharacters,
				Message: "must not contain empty strings",
				Value:   c.Completion.TriggerCharacters,
			})
			break
		}
	}

	return errors.Join(errs...)
}

func lookup(m map[string]any, path string) (any, bool) {
	var current any = m
	for _, part := range strings.Split(path, ".") {
		section, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = section[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// decodeString also takes scalars written unquoted in a config file.
func decodeString(m map[string]any, path string, dst *string, errs *[]error) {
	v, ok := lookup(m, path)
	if !ok {
		return
	}
	switch s := v.(type) {
	case string:
		*dst = s
	case bool, int, int64, float64:
		*dst = fmt.Sprint(s)
	default:
		*errs = append(*errs, &TypeError{Path: path, Expected: "string", Actual: fmt.Sprintf("%T", v)})
	}
}

// decodeBool takes a bool, or a string such as an environment value.
func decodeBool(m map[string]any, path string, dst *bool, errs *[]error) {
	v, ok := lookup(m, path)
	if !ok {
		return
	}
	switch b := v.(type) {
	case bool:
		*dst = b
	case string:
		parsed, ok := parseBool(b)
		if !ok {
			*errs = append(*errs, &TypeError{Path: path, Expected: "bool", Actual: strconv.Quote(b)})
			return
		}
		*dst = parsed
	default:
		*errs = append(*errs, &TypeError{Path: path, Expected: "bool", Actual: fmt.Sprintf("%T", v)})
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}

// decodeStrings takes a list, or a string holding a JSON array or a
// comma-separated list.
func decodeStrings(m map[string]any, path string, dst *[]string, errs *[]error) {
	v, ok := lookup(m, path)
	if !ok {
		return
	}

	var out []string
	switch list := v.(type) {
	case []string:
		out = slices.Clone(list)
	case []any:
		out = make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				*errs = append(*errs, &TypeError{Path: path, Expected: "[]string", Actual: fmt.Sprintf("[]%T", item)})
				return
			}
			out = append(out, s)
		}
	case string:
		var err error
		if out, err = splitList(list); err != nil {
			*errs = append(*errs, &TypeError{Path: path, Expected: "[]string", Actual: strconv.Quote(list)})
			return
		}
	default:
		*errs = append(*errs, &TypeError{Path: path, Expected: "[]string", Actual: fmt.Sprintf("%T", v)})
		return
	}
	*dst = out
}

func splitList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}, nil
	}
	if strings.HasPrefix(s, "[") {
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts, nil
}
