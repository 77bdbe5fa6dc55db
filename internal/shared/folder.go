// SPDX-License-Identifier: MIT

// Package shared mediates every access to the shared inspection
// folder: session workspaces, input image resolution and result crop
// export. Paths handed back to clients are rewritten onto the client
// mount prefix; paths received from clients are translated back and
// confined to the shared root before any filesystem access.
package shared

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/visualaoi/aoid/internal/imaging"
	"github.com/visualaoi/aoid/internal/log"
	aoifs "github.com/visualaoi/aoid/internal/platform/fs"
)

var (
	// ErrInputNotFound is returned when a referenced input image does
	// not exist. This is a client error: the capture was never written.
	ErrInputNotFound = errors.New("input image not found")

	// ErrOutsideShare is returned for client paths that do not resolve
	// into the shared root.
	ErrOutsideShare = errors.New("path outside the shared folder")
)

// Folder is the single mediator between process memory and the disk
// tree beneath one shared root.
type Folder struct {
	root        string
	clientMount string
	jpegQuality int
	logger      zerolog.Logger
}

// New prepares the session tree beneath root. clientMount is the
// absolute prefix under which clients see the same share.
func New(root, clientMount string, jpegQuality int) (*Folder, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("shared root must be absolute: %s", root)
	}
	if err := os.MkdirAll(filepath.Join(root, "sessions"), 0o750); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = 90
	}
	return &Folder{
		root:        filepath.Clean(root),
		clientMount: filepath.Clean(clientMount),
		jpegQuality: jpegQuality,
		logger:      log.WithComponent("shared"),
	}, nil
}

// Root returns the server-side shared root.
func (f *Folder) Root() string { return f.root }

// SessionDir returns the workspace directory of a session.
func (f *Folder) SessionDir(id string) string {
	return filepath.Join(f.root, "sessions", id)
}

// CreateWorkspace builds a fresh sessions/<id>/{input,output} tree.
// Any leftover from a previous session with the same id is removed
// first so the workspace always starts empty.
func (f *Folder) CreateWorkspace(id string) error {
	dir := f.SessionDir(id)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear stale workspace: %w", err)
	}
	for _, sub := range []string{"input", "output"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return fmt.Errorf("create workspace %s dir: %w", sub, err)
		}
	}
	return nil
}

// RemoveWorkspace deletes a session workspace. Removing a workspace
// that is already gone is not an error.
func (f *Folder) RemoveWorkspace(id string) error {
	if err := os.RemoveAll(f.SessionDir(id)); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// InputPath resolves a session-relative input filename, confined to the
// session's input directory.
func (f *Folder) InputPath(id, filename string) (string, error) {
	dir := filepath.Join(f.SessionDir(id), "input")
	path, err := aoifs.ConfineRelPath(dir, filename)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrOutsideShare, filename)
	}
	if err := aoifs.IsRegularFile(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInputNotFound, filename)
	}
	return path, nil
}

// ResolveClientPath translates an absolute client-side path into the
// server-side path, rewriting the client mount prefix and confining the
// result to the shared root. Server-side absolute paths beneath the
// root are accepted unchanged.
func (f *Folder) ResolveClientPath(clientPath string) (string, error) {
	p := filepath.Clean(strings.TrimSpace(clientPath))
	if !filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: path must be absolute: %s", ErrOutsideShare, clientPath)
	}
	if rel, ok := cutPrefix(p, f.clientMount); ok {
		p = filepath.Join(f.root, rel)
	}
	resolved, err := aoifs.ConfineAbsPath(f.root, p)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideShare, clientPath)
	}
	if err := aoifs.IsRegularFile(resolved); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInputNotFound, clientPath)
	}
	return resolved, nil
}

// ClientPath rewrites a server-side path beneath the root onto the
// client mount prefix. Paths outside the root are returned unchanged.
func (f *Folder) ClientPath(serverPath string) string {
	if rel, ok := cutPrefix(filepath.Clean(serverPath), f.root); ok {
		return filepath.Join(f.clientMount, rel)
	}
	return serverPath
}

// cutPrefix strips a path prefix at a component boundary.
func cutPrefix(path, prefix string) (string, bool) {
	if path == prefix {
		return ".", true
	}
	withSep := prefix
	if !strings.HasSuffix(withSep, string(filepath.Separator)) {
		withSep += string(filepath.Separator)
	}
	if strings.HasPrefix(path, withSep) {
		return path[len(withSep):], true
	}
	return "", false
}

// SaveOutput encodes img as JPEG under sessions/<id>/output/<name> and
// returns the server-side path. Export failures are non-fatal for the
// inspection; callers log and omit the path.
func (f *Folder) SaveOutput(id, name string, img image.Image) (string, error) {
	dir := filepath.Join(f.SessionDir(id), "output")
	path, err := aoifs.ConfineRelPath(dir, name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrOutsideShare, name)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	data, err := imaging.EncodeJPEG(img, f.jpegQuality)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write output image: %w", err)
	}
	return path, nil
}
