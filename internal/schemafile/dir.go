package schemafile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"copyflat/internal/domain"
	"copyflat/internal/textio"
)

// Artifact file names inside a schema directory, one pair per table mode.
const (
	ExpandedDDL      = "expanded.sql"
	DirectDDL        = "direct.sql"
	ExpandedMetadata = "expanded_metadata.txt"
	DirectMetadata   = "direct_metadata.txt"
)

// ArtifactSet lists the files written by WriteDir.
type ArtifactSet struct {
	Files []string `json:"files"`
}

// WriteDir writes the DDL and metadata artifacts, split by table mode, into dir.
// All four files are always written so stale tables from a previous copybook vanish.
func WriteDir(dir string, tables []domain.TableSchema) (*ArtifactSet, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create schema directory: %w", err)
	}

	var expanded, direct []domain.TableSchema
	for _, t := range tables {
		switch t.Mode {
		case domain.ExpandedTable:
			expanded = append(expanded, t)
		case domain.DirectTable:
			direct = append(direct, t)
		default:
			return nil, fmt.Errorf("table %s: unknown mode %q", t.Name, t.Mode)
		}
	}

	set := &ArtifactSet{}
	for _, a := range []struct {
		ddl, meta string
		tables    []domain.TableSchema
	}{
		{ExpandedDDL, ExpandedMetadata, expanded},
		{DirectDDL, DirectMetadata, direct},
	} {
		ddlPath := filepath.Join(dir, a.ddl)
		if err := writeFile(ddlPath, func(f *os.File) error { return WriteDDL(f, a.tables) }); err != nil {
			return nil, err
		}
		metaPath := filepath.Join(dir, a.meta)
		if err := writeFile(metaPath, func(f *os.File) error { return WriteMetadata(f, a.tables) }); err != nil {
			return nil, err
		}
		set.Files = append(set.Files, ddlPath, metaPath)
	}
	return set, nil
}

// writeFile writes into a temporary file next to path and renames it into place,
// so readers see either the old artifact or the new one.
func writeFile(path string, write func(*os.File) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	tmp := f.Name()
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// LoadDir reads the metadata artifacts of dir into one catalog, expanded tables first.
// A missing metadata file counts as an empty one; when neither exists the DDL files
// are read instead.
func LoadDir(dir string) (*domain.Catalog, error) {
	var tables []domain.TableSchema
	found := false

	for _, m := range []struct {
		file string
		mode domain.TableMode
	}{
		{ExpandedMetadata, domain.ExpandedTable},
		{DirectMetadata, domain.DirectTable},
	} {
		text, err := textio.ReadFile(filepath.Join(dir, m.file), textio.Latin1)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", m.file, err)
		}
		found = true
		ts, err := ReadMetadata(strings.NewReader(text), m.mode)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", m.file, err)
		}
		tables = append(tables, ts...)
	}

	if !found {
		return loadDDLDir(dir)
	}
	return domain.NewCatalog(tables), nil
}

func loadDDLDir(dir string) (*domain.Catalog, error) {
	var tables []domain.TableSchema
	found := false
	for _, m := range []struct {
		file string
		mode domain.TableMode
	}{
		{ExpandedDDL, domain.ExpandedTable},
		{DirectDDL, domain.DirectTable},
	} {
		text, err := textio.ReadFile(filepath.Join(dir, m.file), textio.Latin1)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", m.file, err)
		}
		found = true
		ts, err := ReadDDL(strings.NewReader(text))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", m.file, err)
		}
		for i := range ts {
			ts[i].Mode = m.mode
		}
		tables = append(tables, ts...)
	}
	if !found {
		return nil, fmt.Errorf("no schema artifacts in %s", dir)
	}
	return domain.NewCatalog(tables), nil
}
