package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// readDotEnv parses KEY=VALUE lines. A missing file is not an error.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	parsed := map[string]string{}
	scanner := bufio.NewScanner(file)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" || entry[0] == '#' {
			continue
		}
		entry = strings.TrimSpace(strings.TrimPrefix(entry, "export "))
		name, raw, found := strings.Cut(entry, "=")
		if name = strings.TrimSpace(name); !found || name == "" {
			continue
		}
		parsed[name] = unquote(strings.TrimSpace(raw))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: scan %s: %w", path, err)
	}
	return parsed, nil
}

func unquote(raw string) string {
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return raw[1 : len(raw)-1]
	}
	return raw
}

// envValues is the merged environment with typed accessors. Unparseable values fall back.
type envValues map[string]string

func (e envValues) raw(key string) (string, bool) {
	v, ok := e[key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e envValues) text(key, fallback string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return fallback
}

func (e envValues) duration(key string, fallback time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func (e envValues) integer(key string, fallback int) int {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (e envValues) flag(key string, fallback bool) bool {
	v, _ := e.raw(key)
	switch strings.ToLower(v) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	case "0", "f", "false", "n", "no", "off":
		return false
	default:
		return fallback
	}
}

// upperList splits a comma separated value into upper-cased, non-empty entries.
func (e envValues) upperList(key string, fallback []string) []string {
	v, ok := e.raw(key)
	if !ok {
		return append([]string(nil), fallback...)
	}
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
