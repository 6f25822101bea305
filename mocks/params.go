package mocks

import "github.com/pkg/errors"

var ErrFlagNotDefined = errors.New("flag accessed but not defined")

// FlagSet serves flag values from a map. It satisfies both the pflag style
// getters and the OrDefault helpers used by the commands.
type FlagSet struct {
	Values map[string]interface{}
}

func (fs *FlagSet) GetString(flag string) (string, error) {
	if val, ok := fs.Values[flag]; ok {
		return val.(string), nil
	}

	return "", ErrFlagNotDefined
}

func (fs *FlagSet) GetBool(flag string) (bool, error) {
	if val, ok := fs.Values[flag]; ok {
		return val.(bool), nil
	}

	return false, ErrFlagNotDefined
}

func (fs *FlagSet) GetStringOrDefault(flag, d string) string {
	if val, ok := fs.Values[flag]; ok && val.(string) != "" {
		return val.(string)
	}

	return d
}

func (fs *FlagSet) GetBoolOrDefault(flag string, d bool) bool {
	if val, ok := fs.Values[flag]; ok {
		return val.(bool)
	}

	return d
}

func (fs *FlagSet) GetStringSliceOrDefault(flag string, d []string) []string {
	if val, ok := fs.Values[flag]; ok {
		return val.([]string)
	}

	return d
}
