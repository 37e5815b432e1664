package env

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
)

var keyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseSpecs parses `--env` flag values. `KEY=VALUE` sets a value and a bare
// `KEY` inherits it from the botctl process environment. Later specs win.
func ParseSpecs(specs []string) (map[string]string, error) {
	env := make(map[string]string, len(specs))
	for _, spec := range specs {
		k, v, err := parseSpec(spec)
		if err != nil {
			return nil, err
		}
		env[k] = v
	}

	return env, nil
}

func parseSpec(spec string) (key, value string, err error) {
	key, value, explicit := strings.Cut(spec, "=")
	switch {
	case spec == "":
		return "", "", fmt.Errorf("empty env spec")
	case !keyRegexp.MatchString(key):
		return "", "", fmt.Errorf("invalid env key %q", key)
	case explicit:
		return key, value, nil
	}

	value, ok := os.LookupEnv(key)
	if !ok {
		return "", "", fmt.Errorf("env %q is not set on the host", key)
	}

	return key, value, nil
}

// Merge merges envs into a new map, the later ones override the earlier ones.
func Merge(envs ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, e := range envs {
		maps.Copy(merged, e)
	}

	return merged
}

// ToList returns the env as a sorted KEY=VALUE list, the format os/exec expects.
func ToList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	slices.Sort(list)

	return list
}
