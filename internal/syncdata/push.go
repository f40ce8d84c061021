// Package syncdata copies or moves a local folder of files into a folder on
// a remote share.
package syncdata

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"nas-tidy/internal/failure"
	"nas-tidy/internal/remote"
)

// DefaultSmallFileThreshold is the size below which DropSmallFiles deletes a
// local file instead of uploading it.
const DefaultSmallFileThreshold = 10000

// Options describes one push.
type Options struct {
	LocalDir string
	Share    string
	// TargetPath is the share folder that holds FolderName.
	TargetPath string
	FolderName string
	// DropSmallFiles deletes local files smaller than SmallFileThreshold
	// without uploading them.
	DropSmallFiles     bool
	SmallFileThreshold int64
	// Move deletes each local file after a successful upload and finally
	// removes LocalDir.
	Move bool
}

// Destination is the share folder files are written to.
func (o Options) Destination() string {
	return remote.Join(o.TargetPath, o.FolderName)
}

// Report lists what happened to each local file, by name.
type Report struct {
	Destination string
	Uploaded    []string
	Skipped     []string
	// Ignored lists files matched by the folder's IgnoreFile.
	Ignored []string
	Dropped []string
	Failed  []string
	// DirRemoved is set when Move removed LocalDir.
	DirRemoved bool
}

// Pusher uploads local files through a session.
type Pusher struct {
	Session remote.Session
	Logger  *log.Logger
	// OnFile, when set, is called once per local regular file processed.
	OnFile func(name string)
	// OnUpload, when set, is called after every successful upload with the
	// share path written.
	OnUpload func(p string)
}

func (p *Pusher) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

// Push ensures the destination folder exists, then uploads every regular
// file of opts.LocalDir (not recursive) whose name is not already present
// in the destination and not matched by IgnoreFile. Existing remote files
// are never overwritten.
func (p *Pusher) Push(ctx context.Context, opts Options) (Report, error) {
	dest := opts.Destination()
	rep := Report{Destination: dest}
	threshold := opts.SmallFileThreshold
	if threshold <= 0 {
		threshold = DefaultSmallFileThreshold
	}

	locals, err := os.ReadDir(opts.LocalDir)
	if err != nil {
		return rep, failure.New(failure.IO, "read local dir", opts.LocalDir, err)
	}
	ignore, err := loadIgnore(opts.LocalDir)
	if err != nil {
		return rep, failure.New(failure.IO, "read ignore file", opts.LocalDir, err)
	}

	existing, err := p.ensureFolder(ctx, opts.Share, dest)
	if err != nil {
		return rep, err
	}

	sort.Slice(locals, func(i, j int) bool { return locals[i].Name() < locals[j].Name() })
	for _, de := range locals {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if !de.Type().IsRegular() {
			continue
		}
		name := de.Name()
		local := filepath.Join(opts.LocalDir, name)
		if ignore.Match(name) {
			rep.Ignored = append(rep.Ignored, name)
			continue
		}
		if p.OnFile != nil {
			p.OnFile(name)
		}

		if opts.DropSmallFiles {
			info, err := de.Info()
			if err != nil {
				p.logger().Printf("Cannot stat %s: %v", local, err)
				rep.Failed = append(rep.Failed, name)
				continue
			}
			if info.Size() < threshold {
				if err := os.Remove(local); err != nil {
					p.logger().Printf("Failed to delete small file %s: %v", local, err)
					rep.Failed = append(rep.Failed, name)
					continue
				}
				p.logger().Printf("Deleting small image file: %s", name)
				rep.Dropped = append(rep.Dropped, name)
				continue
			}
		}

		if existing[name] {
			p.logger().Printf("File %s already exists in %s. Skipping.", name, dest)
			rep.Skipped = append(rep.Skipped, name)
			continue
		}

		target := remote.Join(dest, name)
		if err := p.upload(ctx, opts.Share, local, target); err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			p.logger().Printf("Failed to upload %s: %v", local, err)
			rep.Failed = append(rep.Failed, name)
			continue
		}
		rep.Uploaded = append(rep.Uploaded, name)
		if p.OnUpload != nil {
			p.OnUpload(target)
		}

		if opts.Move {
			if err := os.Remove(local); err != nil {
				p.logger().Printf("Uploaded %s but could not delete it locally: %v", name, err)
				continue
			}
			p.logger().Printf("Moved %s to %s", name, dest)
		} else {
			p.logger().Printf("Copied %s to %s", name, dest)
		}
	}

	if opts.Move {
		if err := os.Remove(opts.LocalDir); err != nil {
			p.logger().Printf("Could not delete local folder %s: %v", opts.LocalDir, err)
		} else {
			p.logger().Printf("Deleted local folder: %s", opts.LocalDir)
			rep.DirRemoved = true
		}
	}
	return rep, nil
}

// ensureFolder creates dest when its parent does not list it, and returns the
// names already inside dest.
func (p *Pusher) ensureFolder(ctx context.Context, share, dest string) (map[string]bool, error) {
	parent := remote.Parent(dest)
	entries, err := p.Session.List(ctx, share, parent)
	if err != nil {
		return nil, err
	}
	found := false
	for _, e := range entries {
		if e.IsDir && remote.Join(parent, e.Name) == dest {
			found = true
			break
		}
	}
	if !found {
		if err := p.Session.CreateDirectory(ctx, share, dest); err != nil {
			return nil, err
		}
		p.logger().Printf("Created folder %s", dest)
	}

	existing := make(map[string]bool)
	entries, err = p.Session.List(ctx, share, dest)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		existing[e.Name] = true
	}
	return existing, nil
}

func (p *Pusher) upload(ctx context.Context, share, local, target string) error {
	f, err := os.Open(local)
	if err != nil {
		return failure.New(failure.IO, "open", local, err)
	}
	defer f.Close()
	if err := p.Session.Store(ctx, share, target, f); err != nil {
		return fmt.Errorf("store %s: %w", target, err)
	}
	return nil
}
