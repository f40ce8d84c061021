package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"nas-tidy/internal/catalog"
	"nas-tidy/internal/config"
	"nas-tidy/internal/confirm"
	"nas-tidy/internal/events"
	"nas-tidy/internal/failure"
	"nas-tidy/internal/history"
	"nas-tidy/internal/index"
	"nas-tidy/internal/remote"
	"nas-tidy/internal/util"
)

// bulkThreshold is the number of files from which a typed token is required
// instead of a y/N answer.
const bulkThreshold = 20

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(config.ResolvePath(configPath))
	if err != nil {
		errColor.Printf("❌ Configuration validation failed:\n%v\n", err)
		fmt.Println("💡 Please fix the configuration issues or run 'nas-tidy init' to create one")
		return nil, err
	}
	useLogFile(cfg)
	return cfg, nil
}

var logFile *os.File

// useLogFile sends diagnostics to the log file next to the config. Later
// calls keep the file already open.
func useLogFile(cfg *config.Config) {
	if logFile != nil {
		return
	}
	p := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		warnColor.Printf("⚠️  cannot create %s: %v\n", filepath.Dir(p), err)
		return
	}
	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		warnColor.Printf("⚠️  cannot open log file: %v\n", err)
		return
	}
	log.SetOutput(f)
	logFile = f
}

func closeLogFile() {
	if logFile != nil {
		log.SetOutput(io.Discard)
		logFile.Close()
		logFile = nil
	}
}

func newSession(cfg *config.Config) (remote.Session, error) {
	s := cfg.Session
	if strings.EqualFold(s.Driver, "mount") {
		shares := make(map[string]string, len(s.Shares))
		for name := range s.Shares {
			shares[name], _ = cfg.ShareRoot(name)
		}
		return remote.NewMountSession(shares), nil
	}
	password := s.Password
	if password == config.PasswordPrompt {
		p, err := readPassword(fmt.Sprintf("Password for %s@%s: ", s.Username, s.Host))
		if err != nil {
			return nil, err
		}
		password = p
	}
	return remote.NewSSHSession(remote.SSHConfig{
		Host:       s.Host,
		Port:       s.Port,
		Username:   s.Username,
		PrivateKey: s.PrivateKey,
		Password:   password,
		KnownHosts: s.KnownHosts,
		Shares:     s.Shares,
	})
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("session.password is %q but stdin is not a terminal", config.PasswordPrompt)
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

func newConfirmer() confirm.Confirmer {
	if assumeYes {
		return confirm.AutoYes{Out: os.Stdout}
	}
	return confirm.Tiered{
		Threshold: bulkThreshold,
		Single:    confirm.NewInteractive(),
		Bulk:      confirm.NewCaptcha(),
	}
}

// app bundles what a command needs for one run.
type app struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	bar     *progressbar.ProgressBar
}

// openApp loads the config, builds the catalog for share (cleanup.share
// when empty) and subscribes the audit history to deletions.
func openApp(share string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if share == "" {
		share = cfg.Cleanup.Share
	}
	if _, ok := cfg.Session.Shares[share]; !ok {
		return nil, fmt.Errorf("share %q is not configured", share)
	}
	sess, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	store, err := index.OpenStore(cfg.Index.Backend, cfg.IndexPath(), log.Default())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	a.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(util.Default.Writer()),
		progressbar.OptionSetDescription("indexing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(65),
		progressbar.OptionClearOnFinish(),
	)
	a.catalog = catalog.New(catalog.Options{
		Session:   sess,
		Store:     store,
		Share:     share,
		Exclude:   cfg.Index.Exclude,
		Confirmer: newConfirmer(),
		Logger:    log.Default(),
		OnFile: func(p string, hashed bool) {
			_ = a.bar.Add(1)
		},
		OnPushFile: func(name string) {
			_ = a.bar.Add(1)
		},
	})
	return a, nil
}

func (a *app) finishProgress() {
	_ = a.bar.Finish()
}

func init() {
	events.GlobalBus.Subscribe(events.EventFileDeleted, func(share, p string, size int64, reason string) {
		if err := history.Record(share, p, size, reason); err != nil {
			log.Printf("failed to record deletion of %s in history: %v", p, err)
		}
	})
	events.GlobalBus.Subscribe(events.EventIndexRebuilt, func(share string, records int) {
		log.Printf("index for %s rebuilt: %d record(s)", share, records)
	})
	events.GlobalBus.Subscribe(events.EventFileUploaded, func(share, p string) {
		log.Printf("uploaded %s to %s", p, share)
	})
}

// warnSave prints a warning when err only reports a failed index save, and
// returns any other error unchanged.
func warnSave(err error) error {
	if err == nil {
		return nil
	}
	if failure.Is(err, failure.Persistence) {
		warnColor.Printf("⚠️  Index could not be saved: %v\n", err)
		return nil
	}
	return err
}
