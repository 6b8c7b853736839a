package project_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WaterlinePL/hmse-projects/internal/project"
	"github.com/WaterlinePL/hmse-projects/internal/raster"
	"github.com/WaterlinePL/hmse-projects/internal/store/memory"
	"github.com/WaterlinePL/hmse-projects/pkg/domain"
)

func newTestService(t *testing.T) (*project.Service, *memory.Store) {
	t.Helper()
	backend := memory.New()
	return project.NewService(backend, nil), backend
}

func createProject(t *testing.T, svc *project.Service, id string) {
	t.Helper()
	require.NoError(t, svc.Create(context.Background(), domain.NewProjectMetadata(id)))
}

func stagingDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func TestCreateRejectsDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")
	err := svc.Create(ctx, domain.NewProjectMetadata("demo"))
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestGetUnknownProject(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestListAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "alpha")
	createProject(t, svc, "beta")

	ids, err := svc.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, ids)

	require.NoError(t, svc.Delete(ctx, "alpha"))
	_, err = svc.Get(ctx, "alpha")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestSetSimulationMode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")
	require.NoError(t, svc.SetSimulationMode(ctx, "demo", domain.SimulationWithFeedback))
	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, domain.SimulationWithFeedback, meta.SimulationMode)
}

func TestArchiveRequiresFinishedSimulation(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	_, err := svc.Archive(ctx, "demo")
	assert.ErrorIs(t, err, domain.ErrNotReady)

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	meta.Finished = true
	require.NoError(t, svc.SaveOrUpdate(ctx, meta))
	backend.PutOutputFile("demo", "heads.dat", []byte("levels"))

	finished, err := svc.IsFinished(ctx, "demo")
	require.NoError(t, err)
	assert.True(t, finished)

	rc, err := svc.Archive(ctx, "demo")
	require.NoError(t, err)
	blob, err := io.ReadAll(rc)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "heads.dat", zr.File[0].Name)
}

func TestSoilModelLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	staging := stagingDir(t, map[string]string{"soil.swp": "profile"})
	require.NoError(t, svc.AddSoilModel(ctx, "demo", "loam", staging))
	assert.ErrorIs(t, svc.AddSoilModel(ctx, "demo", "loam", staging), domain.ErrDuplicateSoilModel)

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.True(t, meta.HasSoilModel("loam"))

	require.NoError(t, svc.DeleteSoilModel(ctx, "demo", "loam"))
	assert.ErrorIs(t, svc.DeleteSoilModel(ctx, "demo", "loam"), domain.ErrUnknownSoilModel)
}

func TestWeatherRemovalClearsSoilMapping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	staging := stagingDir(t, map[string]string{"soil.swp": "profile"})
	require.NoError(t, svc.AddSoilModel(ctx, "demo", "loam", staging))
	require.NoError(t, svc.AddWeatherFile(ctx, "demo", "wx1", strings.NewReader("date,precip\n")))
	require.NoError(t, svc.MapSoilModelToWeather(ctx, "demo", "loam", "wx1"))

	require.NoError(t, svc.DeleteWeatherFile(ctx, "demo", "wx1"))

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.False(t, meta.HasWeatherFile("wx1"))
	assert.NotContains(t, meta.SoilToWeather, "loam")
}

func TestDeleteSoilModelClearsShapeMapping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	staging := stagingDir(t, map[string]string{"soil.swp": "profile"})
	require.NoError(t, svc.AddSoilModel(ctx, "demo", "loam", staging))
	mask := raster.NewMask(4, 4)
	mask.Set(1, 1, true)
	require.NoError(t, svc.SaveOrUpdateShape(ctx, "demo", "", "zone1", mask, "#112233"))
	require.NoError(t, svc.MapShapeToSoilModel(ctx, "demo", "zone1", "loam"))

	require.NoError(t, svc.DeleteSoilModel(ctx, "demo", "loam"))

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.True(t, meta.HasShape("zone1"), "shape itself survives")
	assert.NotContains(t, meta.ShapesToSoil, "zone1")
	assert.NotContains(t, meta.SoilToWeather, "loam")
}

func gwUpload(t *testing.T, modelID string, rows, cols int) project.GroundwaterUpload {
	t.Helper()
	return project.GroundwaterUpload{
		StagingDir: stagingDir(t, map[string]string{"model.nam": modelID}),
		Model: domain.GroundwaterModel{
			ModelID:  modelID,
			Rows:     rows,
			Cols:     cols,
			GridUnit: "meters",
			Duration: 365,
		},
	}
}

func TestSetGroundwaterModelDerivesShapes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	upload := gwUpload(t, "gw", 10, 10)
	upload.StartDate = "2022-03-01"
	inactive := raster.NewMask(10, 10)
	for r := 7; r <= 9; r++ {
		for c := 0; c <= 2; c++ {
			inactive.Set(r, c, true)
		}
	}
	upload.InactiveCells = inactive
	zone := raster.NewMask(10, 10)
	zone.Set(0, 0, true)
	upload.RechargeZones = []*raster.Mask{zone, zone}

	require.NoError(t, svc.SetGroundwaterModel(ctx, "demo", upload))

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	require.NotNil(t, meta.Groundwater)
	assert.Equal(t, "gw", meta.Groundwater.ModelID)
	assert.Equal(t, "2022-03-01", meta.StartDate)
	assert.Equal(t, domain.InactiveCellsShapeColor, meta.Shapes[domain.InactiveCellsShapeID])
	assert.Contains(t, meta.Shapes, "rch_shape_1")
	assert.Contains(t, meta.Shapes, "rch_shape_2")

	stored, err := svc.GetAllShapes(ctx, "demo")
	require.NoError(t, err)
	require.Contains(t, stored, domain.InactiveCellsShapeID)
	got := stored[domain.InactiveCellsShapeID]
	assert.Equal(t, 9, got.CountSet())
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			assert.Equal(t, r >= 7 && c <= 2, got.At(r, c), "cell (%d,%d)", r, c)
		}
	}
}

func TestSetGroundwaterModelReplacesPrevious(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	first := gwUpload(t, "old", 10, 10)
	zone := raster.NewMask(10, 10)
	zone.Set(5, 5, true)
	first.RechargeZones = []*raster.Mask{zone, zone, zone}
	require.NoError(t, svc.SetGroundwaterModel(ctx, "demo", first))

	second := gwUpload(t, "new", 8, 8)
	newZone := raster.NewMask(8, 8)
	newZone.Set(1, 1, true)
	second.RechargeZones = []*raster.Mask{newZone}
	require.NoError(t, svc.SetGroundwaterModel(ctx, "demo", second))

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "new", meta.Groundwater.ModelID)
	assert.Contains(t, meta.Shapes, "rch_shape_1")
	assert.NotContains(t, meta.Shapes, "rch_shape_2", "stale recharge shapes must go with the old model")
	assert.NotContains(t, meta.Shapes, "rch_shape_3")
}

func TestDeleteGroundwaterModel(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	assert.ErrorIs(t, svc.DeleteGroundwaterModel(ctx, "demo"), domain.ErrNoGroundwaterModel)

	upload := gwUpload(t, "gw", 6, 6)
	inactive := raster.NewMask(6, 6)
	inactive.Set(0, 0, true)
	upload.InactiveCells = inactive
	zone := raster.NewMask(6, 6)
	zone.Set(2, 2, true)
	upload.RechargeZones = []*raster.Mask{zone}
	require.NoError(t, svc.SetGroundwaterModel(ctx, "demo", upload))

	require.NoError(t, svc.DeleteGroundwaterModel(ctx, "demo"))

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Nil(t, meta.Groundwater)
	assert.Empty(t, meta.Shapes)

	masks, err := backend.ListRechargeShapes(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, masks)
}

func TestSaveOrUpdateShapeAssignsColor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	mask := raster.NewMask(4, 4)
	mask.Set(2, 2, true)
	require.NoError(t, svc.SaveOrUpdateShape(ctx, "demo", "", "zone1", mask, ""))

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	color := meta.Shapes["zone1"]
	require.Len(t, color, 7)
	assert.Equal(t, "#", color[:1])

	// Upserting without a color keeps the existing one.
	require.NoError(t, svc.SaveOrUpdateShape(ctx, "demo", "", "zone1", mask, ""))
	meta, err = svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, color, meta.Shapes["zone1"])
}

func TestSaveOrUpdateShapeRenameCarriesColorAndMapping(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	staging := stagingDir(t, map[string]string{"soil.swp": "profile"})
	require.NoError(t, svc.AddSoilModel(ctx, "demo", "loam", staging))

	mask := raster.NewMask(4, 4)
	mask.Set(1, 1, true)
	require.NoError(t, svc.SaveOrUpdateShape(ctx, "demo", "", "zone1", mask, "#112233"))
	require.NoError(t, svc.MapShapeToSoilModel(ctx, "demo", "zone1", "loam"))

	require.NoError(t, svc.SaveOrUpdateShape(ctx, "demo", "zone1", "zone2", mask, ""))

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.False(t, meta.HasShape("zone1"))
	assert.Equal(t, "#112233", meta.Shapes["zone2"])
	soil, ok := meta.ShapesToSoil["zone2"].SoilModel()
	require.True(t, ok)
	assert.Equal(t, "loam", soil)
	assert.NotContains(t, meta.ShapesToSoil, "zone1")

	_, err = backend.GetShapeMask(ctx, "demo", "zone1", false)
	assert.ErrorIs(t, err, domain.ErrUnknownShape)
	stored, err := backend.GetShapeMask(ctx, "demo", "zone2", false)
	require.NoError(t, err)
	assert.True(t, stored.Equal(mask))
}

func TestDeleteShape(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	mask := raster.NewMask(3, 3)
	mask.Set(0, 0, true)
	require.NoError(t, svc.SaveOrUpdateShape(ctx, "demo", "", "zone1", mask, "#112233"))
	require.NoError(t, svc.DeleteShape(ctx, "demo", "zone1"))

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, meta.Shapes)
	_, err = backend.GetShapeMask(ctx, "demo", "zone1", false)
	assert.ErrorIs(t, err, domain.ErrUnknownShape)

	assert.ErrorIs(t, svc.DeleteShape(ctx, "demo", "zone1"), domain.ErrUnknownShape)
}

func TestWipeAllShapes(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	mask := raster.NewMask(3, 3)
	mask.Set(1, 1, true)
	require.NoError(t, svc.SaveOrUpdateShape(ctx, "demo", "", "zone1", mask, "#112233"))
	require.NoError(t, svc.SaveOrUpdateShape(ctx, "demo", "", "zone2", mask, "#445566"))

	require.NoError(t, svc.WipeAllShapes(ctx, "demo"))

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, meta.Shapes)
	assert.Empty(t, meta.ShapesToSoil)
	for _, id := range []string{"zone1", "zone2"} {
		_, err := backend.GetShapeMask(ctx, "demo", id, false)
		assert.ErrorIs(t, err, domain.ErrUnknownShape)
	}
}

func TestGetShapePolygon(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	mask := raster.NewMask(10, 10)
	for r := 2; r <= 5; r++ {
		for c := 2; c <= 5; c++ {
			mask.Set(r, c, true)
		}
	}
	require.NoError(t, svc.SaveOrUpdateShape(ctx, "demo", "", "zone1", mask, "#112233"))

	// No simulation grid yet.
	_, err := svc.GetShapePolygon(ctx, "demo", "zone1")
	assert.ErrorIs(t, err, domain.ErrNoGroundwaterModel)

	require.NoError(t, svc.SetGroundwaterModel(ctx, "demo", gwUpload(t, "gw", 10, 10)))

	poly, err := svc.GetShapePolygon(ctx, "demo", "zone1")
	require.NoError(t, err)
	require.NotEmpty(t, poly)
	for _, p := range poly {
		assert.GreaterOrEqual(t, p.X, 2)
		assert.LessOrEqual(t, p.X, 5)
		assert.GreaterOrEqual(t, p.Y, 2)
		assert.LessOrEqual(t, p.Y, 5)
	}

	_, err = svc.GetShapePolygon(ctx, "demo", "ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownShape)
}

func TestMappingOperations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProject(t, svc, "demo")

	staging := stagingDir(t, map[string]string{"soil.swp": "profile"})
	require.NoError(t, svc.AddSoilModel(ctx, "demo", "loam", staging))
	require.NoError(t, svc.AddWeatherFile(ctx, "demo", "wx1", strings.NewReader("csv")))
	mask := raster.NewMask(2, 2)
	mask.Set(0, 0, true)
	require.NoError(t, svc.SaveOrUpdateShape(ctx, "demo", "", "zone1", mask, "#112233"))

	require.NoError(t, svc.MapShapeToManualValue(ctx, "demo", "zone1", 0.4))
	require.NoError(t, svc.MapShapeToSoilModel(ctx, "demo", "zone1", "loam"))
	require.NoError(t, svc.MapSoilModelToWeather(ctx, "demo", "loam", "wx1"))
	assert.ErrorIs(t, svc.MapShapeToSoilModel(ctx, "demo", "zone1", "ghost"), domain.ErrUnknownSoilModel)

	require.NoError(t, svc.RemoveShapeMapping(ctx, "demo", "zone1"))
	require.NoError(t, svc.RemoveSoilWeatherMapping(ctx, "demo", "loam"))
	assert.ErrorIs(t, svc.RemoveShapeMapping(ctx, "demo", "ghost"), domain.ErrUnknownShape)

	meta, err := svc.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, meta.ShapesToSoil)
	assert.Empty(t, meta.SoilToWeather)
}
