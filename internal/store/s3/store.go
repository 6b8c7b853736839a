// Package s3 implements the artifact store on an S3 / MinIO compatible
// bucket. There are no real directories: the project namespace is emulated
// with slash-delimited key prefixes under projects/, and directory operations
// become one network round trip per key. A crash mid-deletion therefore
// leaves a partial subtree; every step is idempotent so the operation can be
// re-issued.
package s3

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

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/WaterlinePL/hmse-projects/internal/raster"
	"github.com/WaterlinePL/hmse-projects/internal/store"
	"github.com/WaterlinePL/hmse-projects/pkg/domain"
)

const rootPrefix = "projects/"

// keepMarker is the zero-byte object that keeps an otherwise empty namespace
// visible under its prefix.
const keepMarker = ".keep"

// Store implements store.Store against a single bucket.
type Store struct {
	client *s3.Client
	bucket string
	log    *slog.Logger
}

// Config holds explicit construction parameters. Credentials fall back to the
// default AWS chain when unset.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, enables MinIO style deployments
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// New creates an object store from Config.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: client, bucket: cfg.Bucket, log: log}, nil
}

// Driver reports the backend kind.
func (s *Store) Driver() store.Driver { return store.DriverS3 }

func projectPrefix(projectID string) string {
	return rootPrefix + projectID + "/"
}

func projectKey(projectID, relKey string) string {
	return projectPrefix(projectID) + relKey
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

func (s *Store) putObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: body}
	if contentType != "" {
		input.ContentType = &contentType
	}
	_, err := s.client.PutObject(ctx, input)
	return err
}

func (s *Store) deleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key})
	return err
}

// listKeys enumerates every object key under prefix, following continuation
// tokens.
func (s *Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		return keys, nil
	}
}

// deletePrefix removes every key under prefix one by one. Individual failures
// are logged; the first error is reported after all keys were attempted.
func (s *Store) deletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return err
	}
	var firstErr error
	for _, key := range keys {
		if err := s.deleteObject(ctx, key); err != nil {
			s.log.Warn("object delete failed, continuing", "key", key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ReadMetadata loads and normalizes the metadata record.
func (s *Store) ReadMetadata(ctx context.Context, projectID string) (domain.ProjectMetadata, error) {
	b, err := s.getObject(ctx, projectKey(projectID, store.MetadataFile))
	if isNotFound(err) {
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

// WriteMetadata persists the record and drops a marker object into each
// artifact sub-namespace so empty ones stay enumerable.
func (s *Store) WriteMetadata(ctx context.Context, meta domain.ProjectMetadata) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := s.putObject(ctx, projectKey(meta.ProjectID, store.MetadataFile), bytes.NewReader(b), "application/json"); err != nil {
		return err
	}
	for _, ns := range store.SubNamespaces {
		key := projectKey(meta.ProjectID, ns+"/"+keepMarker)
		if err := s.putObject(ctx, key, bytes.NewReader(nil), ""); err != nil {
			return err
		}
	}
	return nil
}

// ListProjectIDs enumerates immediate child prefixes of projects/.
func (s *Store) ListProjectIDs(ctx context.Context) ([]string, error) {
	var ids []string
	var token *string
	prefix := rootPrefix
	delimiter := "/"
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			Delimiter:         &delimiter,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, cp := range out.CommonPrefixes {
			id := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), rootPrefix), "/")
			if id != "" {
				ids = append(ids, id)
			}
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		return ids, nil
	}
}

// DeleteProject removes every key under the project prefix.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	return s.deletePrefix(ctx, projectPrefix(projectID))
}

// AddModelDirectory walks the local staging tree and issues one object put
// per file, rewriting separators and stripping the staging root so keys are
// relative to models/<kind>/<modelID>/.
func (s *Store) AddModelDirectory(ctx context.Context, projectID string, kind store.ModelKind, modelID, sourceDir string) error {
	base := projectKey(projectID, store.ModelPath(kind, modelID))
	return filepath.WalkDir(sourceDir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		return s.putObject(ctx, base+"/"+filepath.ToSlash(rel), f, "")
	})
}

// DeleteModelDirectory removes the model prefix; deleting the groundwater
// model also wipes the derived recharge masks.
func (s *Store) DeleteModelDirectory(ctx context.Context, projectID string, kind store.ModelKind, modelID string) error {
	if err := s.deletePrefix(ctx, projectKey(projectID, store.ModelPath(kind, modelID))+"/"); err != nil {
		return err
	}
	if kind != store.ModelGroundwater {
		return nil
	}
	rechargePrefix := projectKey(projectID, store.RechargeDir()) + "/"
	if err := s.deletePrefix(ctx, rechargePrefix); err != nil {
		return err
	}
	return s.putObject(ctx, rechargePrefix+keepMarker, bytes.NewReader(nil), "")
}

// PutWeatherFile stores a single weather time series.
func (s *Store) PutWeatherFile(ctx context.Context, projectID, weatherID string, r io.Reader) error {
	return s.putObject(ctx, projectKey(projectID, store.WeatherPath(weatherID)), r, "text/csv")
}

// DeleteWeatherFile removes a weather time series.
func (s *Store) DeleteWeatherFile(ctx context.Context, projectID, weatherID string) error {
	return s.deleteObject(ctx, projectKey(projectID, store.WeatherPath(weatherID)))
}

// PutShapeMask serializes a mask into the shape partition.
func (s *Store) PutShapeMask(ctx context.Context, projectID, shapeID string, mask *raster.Mask, recharge bool) error {
	key := projectKey(projectID, store.ShapePath(shapeID, recharge))
	return s.putObject(ctx, key, bytes.NewReader(mask.EncodeBytes()), "application/octet-stream")
}

// GetShapeMask loads a mask from the shape partition.
func (s *Store) GetShapeMask(ctx context.Context, projectID, shapeID string, recharge bool) (*raster.Mask, error) {
	b, err := s.getObject(ctx, projectKey(projectID, store.ShapePath(shapeID, recharge)))
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownShape, shapeID)
	}
	if err != nil {
		return nil, err
	}
	return raster.DecodeBytes(b)
}

// DeleteShapeMask removes a mask; S3 deletes are already idempotent.
func (s *Store) DeleteShapeMask(ctx context.Context, projectID, shapeID string, recharge bool) error {
	return s.deleteObject(ctx, projectKey(projectID, store.ShapePath(shapeID, recharge)))
}

// ListRechargeShapes loads every mask under the recharge prefix.
func (s *Store) ListRechargeShapes(ctx context.Context, projectID string) (map[string]*raster.Mask, error) {
	prefix := projectKey(projectID, store.RechargeDir()) + "/"
	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	masks := make(map[string]*raster.Mask)
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		if !strings.HasSuffix(name, store.MaskExt) || strings.Contains(name, "/") {
			continue
		}
		b, err := s.getObject(ctx, key)
		if err != nil {
			return nil, err
		}
		mask, err := raster.DecodeBytes(b)
		if err != nil {
			return nil, err
		}
		masks[strings.TrimSuffix(name, store.MaskExt)] = mask
	}
	return masks, nil
}

// ArchiveProject zips every object under the output prefix. Each object is
// fetched in its own round trip.
func (s *Store) ArchiveProject(ctx context.Context, projectID string) (io.ReadCloser, error) {
	prefix := projectKey(projectID, store.OutputDir) + "/"
	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		if name == "" || strings.HasSuffix(name, "/"+keepMarker) || name == keepMarker {
			continue
		}
		b, err := s.getObject(ctx, key)
		if err != nil {
			return nil, err
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
