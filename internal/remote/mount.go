package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"nas-tidy/internal/failure"
)

// MountSession serves shares that are already mounted on this machine
// (mount.cifs, NFS, a Synology share under /Volumes, ...). Each share name
// maps to the local directory it is mounted on.
//
// The OS does not portably expose a creation time, so CreateTime is the
// modification time of the file.
type MountSession struct {
	shares    map[string]string
	connected bool
}

// NewMountSession returns a session for the given share name -> mount point map.
func NewMountSession(shares map[string]string) *MountSession {
	m := make(map[string]string, len(shares))
	for name, root := range shares {
		m[name] = root
	}
	return &MountSession{shares: m}
}

func (s *MountSession) Connect(ctx context.Context) error {
	if len(s.shares) == 0 {
		return failure.New(failure.Connection, "connect", "", errors.New("no shares configured"))
	}
	for name, root := range s.shares {
		info, err := os.Stat(root)
		if err != nil {
			return failure.New(failure.Connection, "connect", name, err)
		}
		if !info.IsDir() {
			return failure.New(failure.Connection, "connect", name, fmt.Errorf("mount point %s is not a directory", root))
		}
	}
	s.connected = true
	return nil
}

func (s *MountSession) Disconnect() error {
	s.connected = false
	return nil
}

// resolve maps a share path onto the local mount, refusing paths that would
// escape the mount point.
func (s *MountSession) resolve(share, p string) (string, error) {
	if !s.connected {
		return "", failure.New(failure.Connection, "resolve", p, errors.New("session not connected"))
	}
	root, ok := s.shares[share]
	if !ok {
		return "", failure.New(failure.Connection, "resolve", p, fmt.Errorf("unknown share %q", share))
	}
	rel := strings.TrimPrefix(Normalize(p), "/")
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

func (s *MountSession) List(ctx context.Context, share, dir string) ([]Entry, error) {
	local, err := s.resolve(share, dir)
	if err != nil {
		return nil, err
	}
	des, err := os.ReadDir(local)
	if err != nil {
		return nil, failure.New(failure.Listing, "list", dir, err)
	}
	out := make([]Entry, 0, len(des))
	for _, de := range des {
		if skipEntry(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// vanished between ReadDir and Info
			continue
		}
		out = append(out, Entry{
			Name:       de.Name(),
			IsDir:      de.IsDir(),
			Size:       info.Size(),
			CreateTime: info.ModTime(),
		})
	}
	return out, nil
}

func (s *MountSession) GetAttributes(ctx context.Context, share, p string) (Attributes, error) {
	local, err := s.resolve(share, p)
	if err != nil {
		return Attributes{}, err
	}
	info, err := os.Stat(local)
	if err != nil {
		return Attributes{}, failure.New(failure.Listing, "stat", p, err)
	}
	return Attributes{IsDir: info.IsDir(), CreateTime: info.ModTime(), Size: info.Size()}, nil
}

func (s *MountSession) Retrieve(ctx context.Context, share, p string, w io.Writer) error {
	local, err := s.resolve(share, p)
	if err != nil {
		return err
	}
	f, err := os.Open(local)
	if err != nil {
		return failure.New(failure.IO, "retrieve", p, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return failure.New(failure.IO, "retrieve", p, err)
	}
	return nil
}

func (s *MountSession) Store(ctx context.Context, share, p string, r io.Reader) error {
	local, err := s.resolve(share, p)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(local, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return failure.New(failure.IO, "store", p, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return failure.New(failure.IO, "store", p, err)
	}
	return failure.New(failure.IO, "store", p, f.Close())
}

func (s *MountSession) Delete(ctx context.Context, share, p string) error {
	local, err := s.resolve(share, p)
	if err != nil {
		return err
	}
	return failure.New(failure.IO, "delete", p, os.Remove(local))
}

func (s *MountSession) CreateDirectory(ctx context.Context, share, p string) error {
	local, err := s.resolve(share, p)
	if err != nil {
		return err
	}
	return failure.New(failure.IO, "mkdir", p, os.Mkdir(local, 0755))
}
