// Package memory implements an in-memory artifact store for tests. Semantics
// mirror the object backend: a project is a flat map of relative keys.
package memory

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/WaterlinePL/hmse-projects/internal/raster"
	"github.com/WaterlinePL/hmse-projects/internal/store"
	"github.com/WaterlinePL/hmse-projects/pkg/domain"
)

// Store implements store.Store backed by process memory.
type Store struct {
	mu       sync.RWMutex
	projects map[string]map[string][]byte // projectID -> relative key -> blob
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{projects: make(map[string]map[string][]byte)}
}

// Driver reports the backend kind.
func (s *Store) Driver() store.Driver { return store.DriverMemory }

func (s *Store) project(projectID string) map[string][]byte {
	p, ok := s.projects[projectID]
	if !ok {
		p = make(map[string][]byte)
		s.projects[projectID] = p
	}
	return p
}

// ReadMetadata loads and normalizes the metadata record.
func (s *Store) ReadMetadata(_ context.Context, projectID string) (domain.ProjectMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return domain.ProjectMetadata{}, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, projectID)
	}
	b, ok := p[store.MetadataFile]
	if !ok {
		return domain.ProjectMetadata{}, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, projectID)
	}
	var meta domain.ProjectMetadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return domain.ProjectMetadata{}, err
	}
	meta.Normalize()
	return meta, nil
}

// WriteMetadata persists the record.
func (s *Store) WriteMetadata(_ context.Context, meta domain.ProjectMetadata) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project(meta.ProjectID)[store.MetadataFile] = b
	return nil
}

// ListProjectIDs enumerates known projects.
func (s *Store) ListProjectIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.projects))
	for id := range s.projects {
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteProject drops the whole namespace.
func (s *Store) DeleteProject(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, projectID)
	return nil
}

// AddModelDirectory copies a local staging tree into the model namespace.
func (s *Store) AddModelDirectory(_ context.Context, projectID string, kind store.ModelKind, modelID, sourceDir string) error {
	base := store.ModelPath(kind, modelID)
	files := make(map[string][]byte)
	err := filepath.WalkDir(sourceDir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[base+"/"+filepath.ToSlash(rel)] = b
		return nil
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(projectID)
	for k, v := range files {
		p[k] = v
	}
	return nil
}

// DeleteModelDirectory removes the model namespace, plus recharge masks when
// the groundwater model goes away.
func (s *Store) DeleteModelDirectory(_ context.Context, projectID string, kind store.ModelKind, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(projectID)
	deleteKeysWithPrefix(p, store.ModelPath(kind, modelID)+"/")
	if kind == store.ModelGroundwater {
		deleteKeysWithPrefix(p, store.RechargeDir()+"/")
	}
	return nil
}

// PutWeatherFile stores a single weather time series.
func (s *Store) PutWeatherFile(_ context.Context, projectID, weatherID string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project(projectID)[store.WeatherPath(weatherID)] = b
	return nil
}

// DeleteWeatherFile removes a weather time series.
func (s *Store) DeleteWeatherFile(_ context.Context, projectID, weatherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.project(projectID), store.WeatherPath(weatherID))
	return nil
}

// PutShapeMask serializes a mask into the shape partition.
func (s *Store) PutShapeMask(_ context.Context, projectID, shapeID string, mask *raster.Mask, recharge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project(projectID)[store.ShapePath(shapeID, recharge)] = mask.EncodeBytes()
	return nil
}

// GetShapeMask loads a mask from the shape partition.
func (s *Store) GetShapeMask(_ context.Context, projectID, shapeID string, recharge bool) (*raster.Mask, error) {
	s.mu.RLock()
	b, ok := s.project(projectID)[store.ShapePath(shapeID, recharge)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownShape, shapeID)
	}
	return raster.DecodeBytes(b)
}

// DeleteShapeMask removes a mask.
func (s *Store) DeleteShapeMask(_ context.Context, projectID, shapeID string, recharge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.project(projectID), store.ShapePath(shapeID, recharge))
	return nil
}

// ListRechargeShapes loads every mask of the recharge partition.
func (s *Store) ListRechargeShapes(_ context.Context, projectID string) (map[string]*raster.Mask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := store.RechargeDir() + "/"
	masks := make(map[string]*raster.Mask)
	for key, b := range s.project(projectID) {
		name, ok := strings.CutPrefix(key, prefix)
		if !ok || !strings.HasSuffix(name, store.MaskExt) {
			continue
		}
		mask, err := raster.DecodeBytes(b)
		if err != nil {
			return nil, err
		}
		masks[strings.TrimSuffix(name, store.MaskExt)] = mask
	}
	return masks, nil
}

// ArchiveProject zips the output namespace.
func (s *Store) ArchiveProject(_ context.Context, projectID string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := store.OutputDir + "/"
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for key, b := range s.project(projectID) {
		name, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(b); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

// PutOutputFile seeds a simulation result blob; used by tests and the
// simulation engine integration.
func (s *Store) PutOutputFile(projectID, name string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project(projectID)[store.OutputDir+"/"+name] = b
}

func deleteKeysWithPrefix(p map[string][]byte, prefix string) {
	for k := range p {
		if strings.HasPrefix(k, prefix) {
			delete(p, k)
		}
	}
}
