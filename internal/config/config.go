package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = "nas-tidy.yaml"

// StateDir holds the log file and, by default, the index.
const StateDir = ".nas-tidy"

// PasswordPrompt as session.password asks for the password at connect time.
const PasswordPrompt = "prompt"

type Config struct {
	ProjectName string  `yaml:"project_name"`
	Session     Session `yaml:"session"`
	Index       Index   `yaml:"index"`
	Cleanup     Cleanup `yaml:"cleanup"`
	Sync        Sync    `yaml:"sync"`
	Upscale     Upscale `yaml:"upscale"`

	// path the config was read from; empty for defaults
	path string
}

type Session struct {
	// Driver is "ssh" (default) or "mount".
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password,omitempty"`
	PrivateKey string `yaml:"privateKey,omitempty"`
	KnownHosts string `yaml:"known_hosts,omitempty"`
	// MountRoot prefixes relative share roots for the mount driver.
	MountRoot string `yaml:"mount_root,omitempty"`
	// Shares maps a share name to its root directory on the host.
	Shares map[string]string `yaml:"shares"`
}

type Index struct {
	Path    string   `yaml:"path"`
	Backend string   `yaml:"backend"`
	Exclude []string `yaml:"exclude,omitempty"`
}

type Cleanup struct {
	Share string `yaml:"share"`
	Root  string `yaml:"root"`
	// MinSize in bytes; files of at most this size are offered for
	// deletion. 0 disables the small-file step.
	MinSize int64 `yaml:"min_size"`
	// Duplicates is "no", "older" or "newer".
	Duplicates string `yaml:"duplicates"`
	Rebuild    bool   `yaml:"rebuild"`
}

type Sync struct {
	SmallFileThreshold int64 `yaml:"small_file_threshold"`
}

type Upscale struct {
	Suffix string `yaml:"suffix"`
}

// Default returns the configuration `nas-tidy init` writes.
func Default() *Config {
	return &Config{
		ProjectName: "nas",
		Session: Session{
			Driver:   "ssh",
			Host:     "${NAS_HOST}",
			Port:     "22",
			Username: "${NAS_USER}",
			Password: PasswordPrompt,
			Shares:   map[string]string{"home": "/volume1/homes/${NAS_USER}"},
		},
		Index: Index{
			Path:    filepath.Join(StateDir, "index.json"),
			Backend: "json",
			Exclude: []string{"**/@eaDir", "**/#recycle", "**/.DS_Store"},
		},
		Cleanup: Cleanup{
			Share:      "home",
			Root:       "/Photos",
			MinSize:    10000,
			Duplicates: "older",
		},
		Sync:    Sync{SmallFileThreshold: 10000},
		Upscale: Upscale{Suffix: "_upscaled"},
	}
}

// Dir is the directory relative state paths resolve against.
func (c *Config) Dir() string {
	if c.path == "" {
		return "."
	}
	return filepath.Dir(c.path)
}

// IndexPath resolves index.path against the config directory.
func (c *Config) IndexPath() string {
	p := c.Index.Path
	if p == "" {
		p = filepath.Join(StateDir, "index.json")
		if strings.EqualFold(c.Index.Backend, "sqlite") {
			p = filepath.Join(StateDir, "index.db")
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// LogPath is where diagnostics are appended.
func (c *Config) LogPath() string {
	return filepath.Join(c.Dir(), StateDir, "logs", "nas-tidy.log")
}

// ShareRoot returns the host directory of share, joined onto mount_root
// when it is relative.
func (c *Config) ShareRoot(share string) (string, bool) {
	root, ok := c.Session.Shares[share]
	if !ok {
		return "", false
	}
	if c.Session.MountRoot != "" && !filepath.IsAbs(root) {
		root = filepath.Join(c.Session.MountRoot, root)
	}
	return root, true
}

// ValidateConfig validates the configuration for required fields and file paths
func ValidateConfig(cfg *Config) error {
	var validationErrors []string

	if strings.TrimSpace(cfg.ProjectName) == "" {
		validationErrors = append(validationErrors, "project_name cannot be empty")
	}

	s := cfg.Session
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "", "ssh":
		if strings.TrimSpace(s.Host) == "" {
			validationErrors = append(validationErrors, "session.host cannot be empty")
		}
		if strings.TrimSpace(s.Username) == "" {
			validationErrors = append(validationErrors, "session.username cannot be empty")
		}
		if strings.TrimSpace(s.Port) != "" {
			if port, err := strconv.Atoi(s.Port); err != nil || port <= 0 || port > 65535 {
				validationErrors = append(validationErrors, "session.port must be a valid number between 1-65535")
			}
		}
		if strings.TrimSpace(s.Password) == "" && strings.TrimSpace(s.PrivateKey) == "" {
			validationErrors = append(validationErrors, "session needs a password (or \"prompt\") or a privateKey")
		}
		if strings.TrimSpace(s.PrivateKey) != "" {
			if _, err := os.Stat(expandHome(s.PrivateKey)); os.IsNotExist(err) {
				validationErrors = append(validationErrors, fmt.Sprintf("private key file does not exist: %s", s.PrivateKey))
			}
		}
	case "mount":
		for name := range s.Shares {
			root, _ := cfg.ShareRoot(name)
			if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
				validationErrors = append(validationErrors, fmt.Sprintf("share %s: mount point is not a directory: %s", name, root))
			}
		}
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("session.driver must be ssh or mount, got %q", s.Driver))
	}

	if len(s.Shares) == 0 {
		validationErrors = append(validationErrors, "session.shares needs at least one share")
	}
	for name, root := range s.Shares {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(root) == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("share %q: name and root cannot be empty", name))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Index.Backend)) {
	case "", "json", "sqlite":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("index.backend must be json or sqlite, got %q", cfg.Index.Backend))
	}
	for _, pattern := range cfg.Index.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			validationErrors = append(validationErrors, fmt.Sprintf("index.exclude: invalid pattern %q", pattern))
		}
	}

	if cfg.Cleanup.Share != "" {
		if _, ok := s.Shares[cfg.Cleanup.Share]; !ok {
			validationErrors = append(validationErrors, fmt.Sprintf("cleanup.share %q is not listed in session.shares", cfg.Cleanup.Share))
		}
	}
	if cfg.Cleanup.MinSize < 0 {
		validationErrors = append(validationErrors, "cleanup.min_size cannot be negative")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Cleanup.Duplicates)) {
	case "", "no", "older", "newer":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("cleanup.duplicates must be no, older or newer, got %q", cfg.Cleanup.Duplicates))
	}
	if cfg.Sync.SmallFileThreshold < 0 {
		validationErrors = append(validationErrors, "sync.small_file_threshold cannot be negative")
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}

// ResolvePath returns flag, or ConfigFileName in the working directory when
// flag is empty.
func ResolvePath(flag string) string {
	if flag == "" {
		return ConfigFileName
	}
	return flag
}

// LoadFile reads, interpolates and validates the config at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s not found. Please run 'nas-tidy init' first", path)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	env, err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return nil, err
	}
	text := Interpolate(string(data), env)

	cfg := Default()
	cfg.Session = Session{Driver: "ssh", Port: "22"}
	cfg.Index.Exclude = nil
	if err := yaml.Unmarshal([]byte(text), cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.path = path
	cfg.Session.PrivateKey = expandHome(cfg.Session.PrivateKey)
	cfg.Session.KnownHosts = expandHome(cfg.Session.KnownHosts)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault writes the default config to path unless a file is there.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func loadDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	env, err := gotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return env, nil
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces ${VAR} with the OS environment value, falling back
// to fallback. Unknown variables expand to the empty string.
func Interpolate(text string, fallback map[string]string) string {
	return varPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return fallback[name]
	})
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
