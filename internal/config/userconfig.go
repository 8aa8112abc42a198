package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	userConfigDir  = ".config/timebook"
	userConfigFile = "timebook.ini"
	userSheetsFile = "sheets.db"

	// TempSection holds values computed at request time, never read from disk
	TempSection = "temp"
)

// UserPaths locates the files of one timebook user
type UserPaths struct {
	Dir        string
	ConfigFile string
	SheetsDB   string
}

// PathsForHome returns the per-user paths below a home directory
func PathsForHome(home string) UserPaths {
	dir := filepath.Join(home, userConfigDir)
	return UserPaths{
		Dir:        dir,
		ConfigFile: filepath.Join(dir, userConfigFile),
		SheetsDB:   filepath.Join(dir, userSheetsFile),
	}
}

// UserConfig is the per-user timebook.ini
type UserConfig struct {
	file *ini.File
	Path string
}

// LoadUserConfig parses the INI file at path. A missing file yields an
// empty config.
func LoadUserConfig(path string) (*UserConfig, error) {
	f, err := ini.LoadSources(ini.LoadOptions{Loose: true, Insensitive: true}, path)
	if err != nil {
		return nil, fmt.Errorf("parse user config %s: %w", path, err)
	}
	return &UserConfig{file: f, Path: path}, nil
}

// Get returns section.key, ok is false when either is absent
func (u *UserConfig) Get(section, key string) (string, bool) {
	if !u.file.HasSection(section) {
		return "", false
	}
	sec := u.file.Section(section)
	if !sec.HasKey(key) {
		return "", false
	}
	return sec.Key(key).String(), true
}

// GetDefault returns section.key or def
func (u *UserConfig) GetDefault(section, key, def string) string {
	if v, ok := u.Get(section, key); ok && v != "" {
		return v
	}
	return def
}

// Set stores a value, creating the section if needed
func (u *UserConfig) Set(section, key, value string) {
	u.file.Section(section).Key(key).SetValue(value)
}

// HumanName returns the display name resolved for this request
func (u *UserConfig) HumanName() string {
	v, _ := u.Get(TempSection, "human_name")
	return v
}

// SetHumanName records the resolved display name
func (u *UserConfig) SetHumanName(name string) {
	u.Set(TempSection, "human_name", name)
}

// SnapshotTemplate returns the home page template name
func (u *UserConfig) SnapshotTemplate() string {
	return u.GetDefault("template", "snapshot", "snapshot.html")
}

// Chiliproject holds the issue tracker settings of a user
type Chiliproject struct {
	URL      string
	Username string
	Password string
}

// Chiliproject returns the [chiliproject] section
func (u *UserConfig) Chiliproject() Chiliproject {
	return Chiliproject{
		URL:      strings.TrimRight(u.GetDefault("chiliproject", "url", ""), "/"),
		Username: u.GetDefault("chiliproject", "username", ""),
		Password: u.GetDefault("chiliproject", "password", ""),
	}
}

// String renders the config for debug logging, passwords masked
func (u *UserConfig) String() string {
	var b strings.Builder
	for _, sec := range u.file.Sections() {
		if len(sec.Keys()) == 0 {
			continue
		}
		fmt.Fprintf(&b, "[%s]", sec.Name())
		for _, k := range sec.Keys() {
			v := k.String()
			if strings.Contains(k.Name(), "password") {
				v = "***"
			}
			fmt.Fprintf(&b, " %s=%s", k.Name(), v)
		}
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}
