// Package s3test provides an in-memory S3 endpoint for tests.
//
// The server implements the path-style subset of the S3 API used by the s3
// transport: bucket listing and creation, object get/head/put/copy/delete and
// ListObjectsV2 with delimiter support. Requests are not authenticated.
package s3test

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/btree"
)

type object struct {
	content     []byte
	contentType string
	etag        string
	modified    time.Time
}

type bucket struct {
	created time.Time
	objects *btree.Map[string, object]
}

type Server struct {
	*httptest.Server

	mu      sync.Mutex
	buckets *btree.Map[string, *bucket]
}

// NewServer starts a server with no buckets. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		buckets: btree.NewMap[string, *bucket](0),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))

	return s
}

// Endpoint returns the host:port form expected by minio.New.
func (s *Server) Endpoint() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// Keys returns the object keys stored in a bucket, sorted.
func (s *Server) Keys(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets.Get(name)
	if !ok {
		return nil
	}

	return b.objects.Keys()
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	name, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "")
			return
		}
		s.listBuckets(w)
		return
	}

	b, exists := s.buckets.Get(name)
	if key == "" {
		switch r.Method {
		case http.MethodHead:
			if !exists {
				writeError(w, http.StatusNotFound, "NoSuchBucket", name)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			if exists {
				writeError(w, http.StatusConflict, "BucketAlreadyOwnedByYou", name)
				return
			}
			s.buckets.Set(name, &bucket{
				created: time.Now().UTC(),
				objects: btree.NewMap[string, object](0),
			})
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			switch {
			case !exists:
				writeError(w, http.StatusNotFound, "NoSuchBucket", name)
			case b.objects.Len() > 0:
				writeError(w, http.StatusConflict, "BucketNotEmpty", name)
			default:
				s.buckets.Delete(name)
				w.WriteHeader(http.StatusNoContent)
			}
		case http.MethodGet:
			if !exists {
				writeError(w, http.StatusNotFound, "NoSuchBucket", name)
				return
			}
			if r.URL.Query().Get("list-type") != "2" {
				writeError(w, http.StatusNotImplemented, "NotImplemented", name)
				return
			}
			listObjects(w, name, b, r.URL.Query())
		default:
			writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", name)
		}
		return
	}

	if !exists {
		writeError(w, http.StatusNotFound, "NoSuchBucket", name)
		return
	}

	switch r.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := b.objects.Get(key)
		if !ok {
			writeError(w, http.StatusNotFound, "NoSuchKey", key)
			return
		}
		w.Header().Set("ETag", `"`+obj.etag+`"`)
		w.Header().Set("Content-Type", obj.contentType)
		http.ServeContent(w, r, key, obj.modified, bytes.NewReader(obj.content))
	case http.MethodPut:
		if r.URL.Query().Has("uploadId") {
			writeError(w, http.StatusNotImplemented, "NotImplemented", key)
			return
		}
		if source := r.Header.Get("X-Amz-Copy-Source"); source != "" {
			s.copyObject(w, b, key, source)
			return
		}

		content, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "IncompleteBody", key)
			return
		}
		obj := newObject(content, r.Header.Get("Content-Type"))
		b.objects.Set(key, obj)
		w.Header().Set("ETag", `"`+obj.etag+`"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		b.objects.Delete(key)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", key)
	}
}

func (s *Server) listBuckets(w http.ResponseWriter) {
	result := listAllMyBucketsResult{}
	s.buckets.Scan(func(name string, b *bucket) bool {
		result.Buckets = append(result.Buckets, bucketInfo{
			Name:         name,
			CreationDate: b.created,
		})
		return true
	})

	writeXML(w, result)
}

func (s *Server) copyObject(w http.ResponseWriter, dst *bucket, key, source string) {
	source, err := url.PathUnescape(source)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidArgument", key)
		return
	}

	name, srcKey, _ := strings.Cut(strings.TrimPrefix(source, "/"), "/")
	src, ok := s.buckets.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "NoSuchBucket", name)
		return
	}
	obj, ok := src.objects.Get(srcKey)
	if !ok {
		writeError(w, http.StatusNotFound, "NoSuchKey", srcKey)
		return
	}

	copied := newObject(bytes.Clone(obj.content), obj.contentType)
	dst.objects.Set(key, copied)

	writeXML(w, copyObjectResult{
		ETag:         `"` + copied.etag + `"`,
		LastModified: copied.modified,
	})
}

// listObjects serves ListObjectsV2. max-keys is ignored; results are never truncated.
func listObjects(w http.ResponseWriter, name string, b *bucket, query url.Values) {
	prefix := query.Get("prefix")
	delimiter := query.Get("delimiter")

	result := listBucketResult{
		Name:      name,
		Prefix:    prefix,
		Delimiter: delimiter,
		MaxKeys:   1000,
	}

	seen := make(map[string]bool)
	b.objects.Ascend(prefix, func(key string, obj object) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}

		rest := key[len(prefix):]
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				common := prefix + rest[:i+len(delimiter)]
				if !seen[common] {
					seen[common] = true
					result.CommonPrefixes = append(result.CommonPrefixes, commonPrefix{Prefix: common})
				}
				return true
			}
		}

		result.Contents = append(result.Contents, objectEntry{
			Key:          key,
			LastModified: obj.modified,
			ETag:         `"` + obj.etag + `"`,
			Size:         int64(len(obj.content)),
		})
		return true
	})
	result.KeyCount = len(result.Contents) + len(result.CommonPrefixes)

	writeXML(w, result)
}

func newObject(content []byte, contentType string) object {
	sum := md5.Sum(content)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return object{
		content:     content,
		contentType: contentType,
		etag:        hex.EncodeToString(sum[:]),
		modified:    time.Now().UTC(),
	}
}

func writeXML(w http.ResponseWriter, v any) {
	body, err := xml.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", "")
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(body)
}

// writeError reports the error code in the x-minio-error-code header as well,
// so clients can classify responses to HEAD requests that carry no body.
func writeError(w http.ResponseWriter, status int, code, resource string) {
	w.Header().Set("x-minio-error-code", code)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)

	body, _ := xml.Marshal(errorResponse{
		Code:     code,
		Message:  http.StatusText(status),
		Resource: resource,
	})
	w.Write([]byte(xml.Header))
	w.Write(body)
}

type listAllMyBucketsResult struct {
	XMLName xml.Name     `xml:"ListAllMyBucketsResult"`
	Buckets []bucketInfo `xml:"Buckets>Bucket"`
}

type bucketInfo struct {
	Name         string
	CreationDate time.Time
}

type listBucketResult struct {
	XMLName        xml.Name `xml:"ListBucketResult"`
	Name           string
	Prefix         string
	Delimiter      string `xml:",omitempty"`
	MaxKeys        int
	KeyCount       int
	IsTruncated    bool
	Contents       []objectEntry
	CommonPrefixes []commonPrefix
}

type objectEntry struct {
	Key          string
	LastModified time.Time
	ETag         string
	Size         int64
}

type commonPrefix struct {
	Prefix string
}

type copyObjectResult struct {
	XMLName      xml.Name `xml:"CopyObjectResult"`
	LastModified time.Time
	ETag         string
}

type errorResponse struct {
	XMLName  xml.Name `xml:"Error"`
	Code     string
	Message  string
	Resource string
}
