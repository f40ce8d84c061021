package remote

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"nas-tidy/internal/failure"
)

// statFormat is the GNU stat format used for listings and attributes:
// type|size|birth|mtime|name. Birth is 0 (or "-") when the filesystem does
// not record it, in which case mtime stands in.
const statFormat = "%F|%s|%W|%Y|%n"

// SSHConfig holds what is needed to reach the NAS over SSH.
type SSHConfig struct {
	Host       string
	Port       string
	Username   string
	PrivateKey string // path to a private key file
	Password   string
	KnownHosts string // optional known_hosts file; host keys are not checked when empty
	Timeout    time.Duration
	// Shares maps a share name to its directory on the NAS,
	// e.g. "home" -> "/volume1/homes/admin".
	Shares map[string]string
}

// SSHSession drives a NAS through shell commands over one SSH connection.
// It needs GNU find/stat/cat/rm/mkdir on the remote side (DSM, QTS and most
// Linux based NAS firmwares ship them).
type SSHSession struct {
	cfg          SSHConfig
	clientConfig *ssh.ClientConfig
	client       *ssh.Client
}

// NewSSHSession validates cfg and prepares the client configuration.
// No connection is made until Connect.
func NewSSHSession(cfg SSHConfig) (*SSHSession, error) {
	var auth []ssh.AuthMethod
	if cfg.PrivateKey != "" {
		key, err := os.ReadFile(cfg.PrivateKey)
		if err != nil {
			return nil, failure.New(failure.Config, "read private key", cfg.PrivateKey, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, failure.New(failure.Config, "parse private key", cfg.PrivateKey, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, failure.New(failure.Config, "ssh auth", "", errors.New("either privateKey or password is required"))
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, failure.New(failure.Config, "known hosts", cfg.KnownHosts, err)
		}
		hostKey = cb
	}

	if cfg.Port == "" {
		cfg.Port = "22"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &SSHSession{
		cfg: cfg,
		clientConfig: &ssh.ClientConfig{
			User:            cfg.Username,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         cfg.Timeout,
		},
	}, nil
}

func (s *SSHSession) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	d := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return failure.New(failure.Connection, "dial", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, s.clientConfig)
	if err != nil {
		conn.Close()
		return failure.New(failure.Connection, "handshake", addr, err)
	}
	s.client = ssh.NewClient(c, chans, reqs)
	return nil
}

func (s *SSHSession) Disconnect() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return failure.New(failure.Connection, "disconnect", "", err)
}

// resolve maps a share path onto the absolute directory on the NAS.
func (s *SSHSession) resolve(share, p string) (string, error) {
	base, ok := s.cfg.Shares[share]
	if !ok {
		return "", failure.New(failure.Connection, "resolve", p, fmt.Errorf("unknown share %q", share))
	}
	return path.Join(base, Normalize(p)), nil
}

// run executes cmd with optional stdin/stdout. Cancelling ctx closes the
// command channel, which ends the remote process.
func (s *SSHSession) run(ctx context.Context, cmd string, stdin io.Reader, stdout io.Writer) error {
	if s.client == nil {
		return errors.New("ssh client not connected")
	}
	session, err := s.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = &stderr

	if err := session.Start(cmd); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}
	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("%w: %s", err, msg)
			}
			return err
		}
		return nil
	case <-ctx.Done():
		session.Close()
		<-done
		return ctx.Err()
	}
}

func (s *SSHSession) output(ctx context.Context, cmd string) (string, error) {
	var out bytes.Buffer
	if err := s.run(ctx, cmd, nil, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (s *SSHSession) List(ctx context.Context, share, dir string) ([]Entry, error) {
	abs, err := s.resolve(share, dir)
	if err != nil {
		return nil, err
	}
	cmd := fmt.Sprintf("find %s -mindepth 1 -maxdepth 1 -exec stat -c %s {} +", shellQuote(abs), shellQuote(statFormat))
	out, err := s.output(ctx, cmd)
	if err != nil {
		return nil, failure.New(failure.Listing, "list", dir, err)
	}
	var entries []Entry
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		e, ok := parseStatLine(sc.Text())
		if !ok || skipEntry(e.Name) {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *SSHSession) GetAttributes(ctx context.Context, share, p string) (Attributes, error) {
	abs, err := s.resolve(share, p)
	if err != nil {
		return Attributes{}, err
	}
	out, err := s.output(ctx, fmt.Sprintf("stat -c %s -- %s", shellQuote(statFormat), shellQuote(abs)))
	if err != nil {
		return Attributes{}, failure.New(failure.Listing, "stat", p, err)
	}
	e, ok := parseStatLine(strings.TrimSpace(out))
	if !ok {
		return Attributes{}, failure.New(failure.Listing, "stat", p, fmt.Errorf("unexpected stat output %q", out))
	}
	return Attributes{IsDir: e.IsDir, CreateTime: e.CreateTime, Size: e.Size}, nil
}

func (s *SSHSession) Retrieve(ctx context.Context, share, p string, w io.Writer) error {
	abs, err := s.resolve(share, p)
	if err != nil {
		return err
	}
	return failure.New(failure.IO, "retrieve", p, s.run(ctx, "cat -- "+shellQuote(abs), nil, w))
}

func (s *SSHSession) Store(ctx context.Context, share, p string, r io.Reader) error {
	abs, err := s.resolve(share, p)
	if err != nil {
		return err
	}
	return failure.New(failure.IO, "store", p, s.run(ctx, "cat > "+shellQuote(abs), r, io.Discard))
}

func (s *SSHSession) Delete(ctx context.Context, share, p string) error {
	abs, err := s.resolve(share, p)
	if err != nil {
		return err
	}
	return failure.New(failure.IO, "delete", p, s.run(ctx, "rm -- "+shellQuote(abs), nil, io.Discard))
}

func (s *SSHSession) CreateDirectory(ctx context.Context, share, p string) error {
	abs, err := s.resolve(share, p)
	if err != nil {
		return err
	}
	return failure.New(failure.IO, "mkdir", p, s.run(ctx, "mkdir -- "+shellQuote(abs), nil, io.Discard))
}

// parseStatLine parses one line produced with statFormat.
func parseStatLine(line string) (Entry, bool) {
	parts := strings.SplitN(line, "|", 5)
	if len(parts) != 5 {
		return Entry{}, false
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Entry{}, false
	}
	created, _ := strconv.ParseInt(parts[2], 10, 64)
	if created <= 0 {
		created, err = strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			return Entry{}, false
		}
	}
	return Entry{
		Name:       path.Base(parts[4]),
		IsDir:      parts[0] == "directory",
		Size:       size,
		CreateTime: time.Unix(created, 0),
	}, true
}

// shellQuote quotes a POSIX path using single quotes, escaping existing single quotes
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
