package save

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const saveExt = ".save"

// DirStore keeps one file per slot in a directory.
type DirStore struct {
	dir string
}

// OpenDir returns a store rooted at dir, creating it if needed.
func OpenDir(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating save directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

func (d *DirStore) path(slot string) (string, error) {
	if slot == "" || strings.ContainsAny(slot, `/\`) || slot == "." || slot == ".." {
		return "", fmt.Errorf("invalid slot name %q", slot)
	}
	return filepath.Join(d.dir, slot+saveExt), nil
}

// Write replaces the slot atomically via a temp file and rename.
func (d *DirStore) Write(_ context.Context, slot string, data []byte) error {
	p, err := d.path(slot)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.dir, slot+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing save %q: %w", slot, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing save %q: %w", slot, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing save %q: %w", slot, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing save %q: %w", slot, err)
	}
	return nil
}

func (d *DirStore) Read(_ context.Context, slot string) ([]byte, error) {
	p, err := d.path(slot)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading save %q: %w", slot, err)
	}
	return data, nil
}

func (d *DirStore) List(context.Context) ([]SlotInfo, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	var out []SlotInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), saveExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SlotInfo{
			Name:      strings.TrimSuffix(e.Name(), saveExt),
			Size:      int(info.Size()),
			UpdatedAt: info.ModTime(),
		})
	}
	sortSlots(out)
	return out, nil
}

func (d *DirStore) Delete(_ context.Context, slot string) error {
	p, err := d.path(slot)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting save %q: %w", slot, err)
	}
	return nil
}

func (d *DirStore) Close() error { return nil }
