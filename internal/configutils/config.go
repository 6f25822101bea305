package configutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"prdash/internal/pkg/fs"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	LocalConfigName  = ".prdashcfg"
	GlobalConfigDir  = "~/.config/prdash"
	EnvPrefix        = "PRDASH"
	DefaultFiletype  = "yaml"
	globalConfigBase = "config"
)

var filetypes = []string{"yaml", "json", "toml"}

type FlagSet interface {
	GetString(string) (string, error)
	GetBool(string) (bool, error)
}

type configMerger interface {
	MergeConfig(io.Reader) error
}

var (
	ErrHomeDirNotFound = errors.New("unable to determine the home directory")
	ErrConfigFileIsDir = errors.New("configuration file is a directory")
	ErrConfigNotFound  = errors.New("no configuration file found")
)

var mergeConfig = func(in io.Reader, cm configMerger) error {
	return cm.MergeConfig(in)
}

var fileExists = func(filename string, fs fs.Filesystem) error {
	info, err := fs.Stat(filename)
	if err != nil {
		return err
	}

	if info.IsDir() {
		return ErrConfigFileIsDir
	}

	return nil
}

var loadFile = func(filename string, fs fs.Filesystem) (io.ReadCloser, error) {
	err := fileExists(filename, fs)
	if err != nil {
		return nil, err
	}

	f, err := fs.Open(filename)
	if err != nil {
		return nil, err
	}

	return f, nil
}

var loadConfig = func(filename string, v *viper.Viper) error {
	f, err := loadFile(filename, fs.OS{})
	if err != nil {
		return err
	}
	defer f.Close()

	return mergeConfig(f, v)
}

var getGlobalConfigDir = func() (string, error) {
	return homedir.Expand(GlobalConfigDir)
}

// GlobalConfigPath is where `prdash init` writes the configuration.
func GlobalConfigPath() (string, error) {
	dir, err := getGlobalConfigDir()
	if err != nil {
		return "", ErrHomeDirNotFound
	}

	return filepath.Join(dir, fmt.Sprintf("%s.%s", globalConfigBase, DefaultFiletype)), nil
}

// MergeFile merges filename into v, trying every supported file type.
func MergeFile(v *viper.Viper, filename string) error {
	if ext := strings.TrimPrefix(filepath.Ext(filename), "."); ext != "" {
		for _, ft := range filetypes {
			if ft == ext {
				v.SetConfigType(ft)
				return loadConfig(filename, v)
			}
		}
	}

	var err error
	for _, ft := range filetypes {
		v.SetConfigType(ft)
		err = loadConfig(filename, v)
		if err == nil {
			return nil
		}
	}

	return errors.Wrapf(err, "could not load %s", filename)
}

func MergeLocalConfig(v *viper.Viper, path string) error {
	f := filepath.Join(path, LocalConfigName)
	if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return MergeFile(v, f)
}

func DefaultConfig() (*viper.Viper, error) {
	cfgDir, err := getGlobalConfigDir()
	if err != nil {
		return nil, ErrHomeDirNotFound
	}

	v := viper.New()
	for _, ft := range filetypes {
		f := filepath.Join(cfgDir, fmt.Sprintf("%s.%s", globalConfigBase, ft))
		v.SetConfigType(ft)
		err = loadConfig(f, v)
		if err == nil {
			return v, nil
		}
		log.Debug().
			Msgf("config loading failed for type %s, skipping to next filetype", ft)
	}

	return v, ErrConfigNotFound
}

// LoadConfigForPath builds the configuration used by every command: defaults,
// the global file (or override when non-empty), the local file found in path
// and PRDASH_ environment variables, in increasing precedence.
func LoadConfigForPath(path, override string) (*viper.Viper, error) {
	var (
		v   *viper.Viper
		err error
	)

	if override != "" {
		v = viper.New()
		err = MergeFile(v, override)
	} else {
		v, err = DefaultConfig()
		if errors.Is(err, ErrConfigNotFound) {
			err = nil
		}
	}
	if err != nil {
		return nil, err
	}

	err = MergeLocalConfig(v, path)
	if err != nil {
		return nil, err
	}

	SetDefaults(v)
	BindEnv(v)

	return v, nil
}

func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func GetBoolFlagOrDefault(fs FlagSet, flag string, d bool) bool {
	v, err := fs.GetBool(flag)
	if err != nil {
		return d
	}

	return v
}

func GetStringFlagOrDefault(fs FlagSet, flag, d string) string {
	s, err := fs.GetString(flag)
	if err != nil || s == "" {
		return d
	}

	return s
}
