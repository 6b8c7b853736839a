package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a *Store backed by an in-memory fake HTTP
// transport. Only the subset of S3 operations the artifact store issues is
// implemented: Head/Get/Put/Delete and ListObjectsV2 with prefix and
// delimiter.
func NewMockForTests() *Store {
	rt := &mockRoundTripper{state: make(map[string][]byte)}
	cfg, _ := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Store{client: client, bucket: "mock-bucket", log: slog.Default()}
}

type mockRoundTripper struct{ state map[string][]byte }

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) { //nolint:cyclop
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && strings.Contains(req.URL.RawQuery, "list-type=2") {
		return m.list(req.URL.Query().Get("prefix"), req.URL.Query().Get("delimiter")), nil
	}
	switch req.Method {
	case http.MethodHead:
		if body, ok := m.state[key]; ok {
			return resp(http.StatusOK, nil, http.Header{
				"Content-Length": {fmt.Sprintf("%d", len(body))},
				"ETag":           {"\"etag\""},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			}), nil
		}
		return resp(http.StatusNotFound, nil, http.Header{}), nil
	case http.MethodPut:
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
		}
		if dec, ok := decodeChunked(body); ok { // aws-chunked payload encoding
			body = dec
		}
		m.state[key] = body
		return resp(http.StatusOK, nil, http.Header{"ETag": {"\"etag\""}}), nil
	case http.MethodGet:
		if body, ok := m.state[key]; ok {
			return resp(http.StatusOK, body, http.Header{
				"Content-Length": {fmt.Sprintf("%d", len(body))},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
				"ETag":           {"\"etag\""},
			}), nil
		}
		errBody := []byte(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>absent</Message></Error>`)
		return resp(http.StatusNotFound, errBody, http.Header{"Content-Type": {"application/xml"}}), nil
	case http.MethodDelete:
		delete(m.state, key)
		return resp(http.StatusNoContent, nil, http.Header{}), nil
	}
	return resp(http.StatusNotImplemented, nil, http.Header{}), nil
}

func (m *mockRoundTripper) list(prefix, delimiter string) *http.Response {
	var keys []string
	for k := range m.state {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var contents []string
	commonPrefixes := map[string]bool{}
	for _, k := range keys {
		if delimiter != "" {
			rest := strings.TrimPrefix(k, prefix)
			if i := strings.Index(rest, delimiter); i >= 0 {
				commonPrefixes[prefix+rest[:i+1]] = true
				continue
			}
		}
		contents = append(contents, k)
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range contents {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(m.state[k]))
	}
	var cps []string
	for cp := range commonPrefixes {
		cps = append(cps, cp)
	}
	sort.Strings(cps)
	for _, cp := range cps {
		fmt.Fprintf(&b, "<CommonPrefixes><Prefix>%s</Prefix></CommonPrefixes>", cp)
	}
	b.WriteString("</ListBucketResult>")
	return resp(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

func resp(status int, body []byte, header http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: header}
}

// decodeChunked decodes an aws-chunked payload (<hex>[;ext]\r\n<bytes>\r\n
// repeated, terminated by a zero-size chunk). Chunk bodies are sliced by the
// declared length so binary payloads containing \r\n survive.
func decodeChunked(b []byte) ([]byte, bool) {
	var out []byte
	rest := b
	for {
		nl := bytes.Index(rest, []byte("\r\n"))
		if nl < 0 {
			return nil, false
		}
		sizeField := string(rest[:nl])
		if i := strings.IndexByte(sizeField, ';'); i >= 0 {
			sizeField = sizeField[:i]
		}
		sz, err := parseHex(sizeField)
		if err != nil {
			return nil, false
		}
		rest = rest[nl+2:]
		if sz == 0 {
			return out, out != nil
		}
		if int64(len(rest)) < sz+2 {
			return nil, false
		}
		out = append(out, rest[:sz]...)
		rest = rest[sz+2:]
	}
}

func parseHex(h string) (int64, error) {
	var v int64
	for _, c := range h {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v += int64(c - '0')
		case c >= 'a' && c <= 'f':
			v += int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v += int64(c-'A') + 10
		default:
			return 0, fmt.Errorf("invalid hex")
		}
	}
	return v, nil
}
