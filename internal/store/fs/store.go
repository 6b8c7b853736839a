// Package fs implements the artifact store on a local directory tree. The
// project namespace maps 1:1 to filesystem directories under a configured
// workspace root.
package fs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/WaterlinePL/hmse-projects/internal/raster"
	"github.com/WaterlinePL/hmse-projects/internal/store"
	"github.com/WaterlinePL/hmse-projects/pkg/domain"
)

// Store implements store.Store rooted at a workspace directory. Writes of the
// metadata record go through a temp file and rename so readers never observe
// a partial record.
type Store struct {
	root string
	log  *slog.Logger
}

// New returns a filesystem-backed store rooted at path, creating it if
// needed.
func New(root string, log *slog.Logger) (*Store, error) {
	if root == "" {
		root = "./workspace"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{root: root, log: log}, nil
}

// Driver reports the backend kind.
func (s *Store) Driver() store.Driver { return store.DriverFilesystem }

// sanitizeID rejects identifiers that would escape the workspace tree.
func sanitizeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("empty identifier")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid identifier %q", id)
	}
	return nil
}

func (s *Store) projectDir(projectID string) (string, error) {
	if err := sanitizeID(projectID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, projectID), nil
}

func (s *Store) projectPath(projectID string, relKey string) (string, error) {
	dir, err := s.projectDir(projectID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(relKey)), nil
}

// ReadMetadata loads and normalizes the metadata record.
func (s *Store) ReadMetadata(_ context.Context, projectID string) (domain.ProjectMetadata, error) {
	p, err := s.projectPath(projectID, store.MetadataFile)
	if err != nil {
		return domain.ProjectMetadata{}, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, iofs.ErrNotExist) {
		return domain.ProjectMetadata{}, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, projectID)
	}
	if err != nil {
		return domain.ProjectMetadata{}, err
	}
	var meta domain.ProjectMetadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return domain.ProjectMetadata{}, fmt.Errorf("decode metadata of %s: %w", projectID, err)
	}
	meta.Normalize()
	return meta, nil
}

// WriteMetadata persists the record and ensures every artifact sub-namespace
// exists.
func (s *Store) WriteMetadata(_ context.Context, meta domain.ProjectMetadata) error {
	dir, err := s.projectDir(meta.ProjectID)
	if err != nil {
		return err
	}
	for _, ns := range store.SubNamespaces {
		if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(ns)), 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".metadata-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, store.MetadataFile))
}

// ListProjectIDs lists immediate workspace subdirectories.
func (s *Store) ListProjectIDs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// DeleteProject removes the project subtree. Missing paths are not an error.
func (s *Store) DeleteProject(_ context.Context, projectID string) error {
	dir, err := s.projectDir(projectID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, iofs.ErrNotExist) {
		s.log.Debug("project directory already absent", "project", projectID)
		return nil
	}
	return os.RemoveAll(dir)
}

// AddModelDirectory copies the staging tree into models/<kind>/<modelID>/.
func (s *Store) AddModelDirectory(_ context.Context, projectID string, kind store.ModelKind, modelID, sourceDir string) error {
	if err := sanitizeID(modelID); err != nil {
		return err
	}
	dst, err := s.projectPath(projectID, store.ModelPath(kind, modelID))
	if err != nil {
		return err
	}
	return copyTree(sourceDir, dst)
}

// DeleteModelDirectory removes the model subtree; deleting the groundwater
// model also wipes the derived recharge masks.
func (s *Store) DeleteModelDirectory(_ context.Context, projectID string, kind store.ModelKind, modelID string) error {
	if err := sanitizeID(modelID); err != nil {
		return err
	}
	dir, err := s.projectPath(projectID, store.ModelPath(kind, modelID))
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if kind != store.ModelGroundwater {
		return nil
	}
	rechargeDir, err := s.projectPath(projectID, store.RechargeDir())
	if err != nil {
		return err
	}
	if err := os.RemoveAll(rechargeDir); err != nil {
		return err
	}
	return os.MkdirAll(rechargeDir, 0o755)
}

// PutWeatherFile stores a single weather time series.
func (s *Store) PutWeatherFile(_ context.Context, projectID, weatherID string, r io.Reader) error {
	if err := sanitizeID(weatherID); err != nil {
		return err
	}
	p, err := s.projectPath(projectID, store.WeatherPath(weatherID))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// DeleteWeatherFile removes a weather time series.
func (s *Store) DeleteWeatherFile(_ context.Context, projectID, weatherID string) error {
	if err := sanitizeID(weatherID); err != nil {
		return err
	}
	p, err := s.projectPath(projectID, store.WeatherPath(weatherID))
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return err
	}
	return nil
}

// PutShapeMask serializes a mask into the shape partition.
func (s *Store) PutShapeMask(_ context.Context, projectID, shapeID string, mask *raster.Mask, recharge bool) error {
	if err := sanitizeID(shapeID); err != nil {
		return err
	}
	p, err := s.projectPath(projectID, store.ShapePath(shapeID, recharge))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, mask.EncodeBytes(), 0o644)
}

// GetShapeMask loads a mask from the shape partition.
func (s *Store) GetShapeMask(_ context.Context, projectID, shapeID string, recharge bool) (*raster.Mask, error) {
	if err := sanitizeID(shapeID); err != nil {
		return nil, err
	}
	p, err := s.projectPath(projectID, store.ShapePath(shapeID, recharge))
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownShape, shapeID)
	}
	if err != nil {
		return nil, err
	}
	return raster.DecodeBytes(b)
}

// DeleteShapeMask removes a mask; absence is not an error.
func (s *Store) DeleteShapeMask(_ context.Context, projectID, shapeID string, recharge bool) error {
	if err := sanitizeID(shapeID); err != nil {
		return err
	}
	p, err := s.projectPath(projectID, store.ShapePath(shapeID, recharge))
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return err
	}
	return nil
}

// ListRechargeShapes loads every mask of the recharge partition.
func (s *Store) ListRechargeShapes(_ context.Context, projectID string) (map[string]*raster.Mask, error) {
	dir, err := s.projectPath(projectID, store.RechargeDir())
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, iofs.ErrNotExist) {
		return map[string]*raster.Mask{}, nil
	}
	if err != nil {
		return nil, err
	}
	masks := make(map[string]*raster.Mask, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), store.MaskExt) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		mask, err := raster.DecodeBytes(b)
		if err != nil {
			return nil, err
		}
		masks[strings.TrimSuffix(e.Name(), store.MaskExt)] = mask
	}
	return masks, nil
}

// ArchiveProject zips the output/ subtree. A project that produced no output
// yet yields an empty archive.
func (s *Store) ArchiveProject(_ context.Context, projectID string) (io.ReadCloser, error) {
	outDir, err := s.projectPath(projectID, store.OutputDir)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	err = filepath.WalkDir(outDir, func(path string, d iofs.DirEntry, err error) error {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil
		}
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
	if err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

// copyTree duplicates a staging directory tree, files only.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = in.Close() }()
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
}
