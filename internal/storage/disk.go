package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Footprint is the on-disk size of the files backing a deployment.
type Footprint struct {
	// Paths maps each inspected path to its size in bytes (0 when missing).
	Paths map[string]int64 `json:"paths"`
	Total int64            `json:"total_bytes"`
}

// MeasureFootprint sums the sizes of the given files or directories (recursively). Missing
// paths count as 0; empty strings are skipped. A SQLite database path also counts its -wal and
// -shm side files.
func MeasureFootprint(paths ...string) (Footprint, error) {
	fp := Footprint{Paths: make(map[string]int64, len(paths))}
	for _, p := range paths {
		if p == "" {
			continue
		}
		n, err := sizeOf(p)
		if err != nil {
			return Footprint{}, err
		}
		for _, side := range []string{p + "-wal", p + "-shm"} {
			m, err := sizeOf(side)
			if err != nil {
				return Footprint{}, err
			}
			n += m
		}
		fp.Paths[p] = n
		fp.Total += n
	}
	return fp, nil
}

func sizeOf(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
