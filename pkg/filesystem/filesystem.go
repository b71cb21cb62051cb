package filesystem

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FS is the subset of file operations the installer needs
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	// AppendFile creates name when missing
	AppendFile(name string, data []byte, perm fs.FileMode) error
	// CopyFrom streams r into name, replacing it
	CopyFrom(r io.Reader, name string, perm fs.FileMode) error
	MkdirAll(path string, perm fs.FileMode) error
	Remove(name string) error
}

type aferoFS struct {
	fs afero.Fs
}

// New wraps an afero filesystem
func New(fs afero.Fs) FS {
	return &aferoFS{fs: fs}
}

// NewOS returns the live filesystem
func NewOS() FS {
	return New(afero.NewOsFs())
}

// NewRooted returns a view of the live filesystem below root, so that
// "/etc/fstab" resolves to root/etc/fstab
func NewRooted(root string) FS {
	return New(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewMemory returns an empty in-memory filesystem
func NewMemory() FS {
	return New(afero.NewMemMapFs())
}

func (a *aferoFS) Stat(name string) (fs.FileInfo, error) {
	return a.fs.Stat(name)
}

func (a *aferoFS) Open(name string) (io.ReadCloser, error) {
	return a.fs.Open(name)
}

func (a *aferoFS) ReadFile(name string) ([]byte, error) {
	info, err := a.fs.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return afero.ReadFile(a.fs, name)
}

func (a *aferoFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return afero.WriteFile(a.fs, name, data, perm)
}

func (a *aferoFS) AppendFile(name string, data []byte, perm fs.FileMode) error {
	f, err := a.fs.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (a *aferoFS) CopyFrom(r io.Reader, name string, perm fs.FileMode) error {
	if err := a.fs.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return err
	}
	f, err := a.fs.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// OpenFile's perm is masked by umask on the OS filesystem
	return a.fs.Chmod(name, perm)
}

func (a *aferoFS) MkdirAll(path string, perm fs.FileMode) error {
	return a.fs.MkdirAll(path, perm)
}

func (a *aferoFS) Remove(name string) error {
	return a.fs.Remove(name)
}
