package relfs

import (
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru"
)

// statCacheSize bounds the number of object FileInfos remembered between
// Stat calls. Mappers stat the same input objects repeatedly when
// calculating splits.
const statCacheSize = 8192

// S3FileSystem serves objects from an S3 bucket. Paths are addressed as
// "s3://bucket/key".
type S3FileSystem struct {
	s3Client  s3iface.S3API
	statCache *lru.Cache
}

func parseS3Path(path string) (bucket string, key string) {
	trimmed := strings.TrimPrefix(path, "s3://")
	split := strings.SplitN(trimmed, "/", 2)
	bucket = split[0]
	if len(split) == 2 {
		key = split[1]
	}
	return bucket, key
}

// ListFiles lists objects matching pathGlob. A path without glob
// metacharacters is treated as a key prefix; globs match with doublestar
// semantics against the object key.
func (s *S3FileSystem) ListFiles(pathGlob string) ([]FileInfo, error) {
	bucket, keyGlob := parseS3Path(pathGlob)
	prefix := globPrefix(keyGlob, "/")

	s3Files := make([]FileInfo, 0)
	var matchErr error

	params := &s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	err := s.s3Client.ListObjectsPages(params,
		func(page *s3.ListObjectsOutput, _ bool) bool {
			for _, object := range page.Contents {
				if hasGlobMeta(keyGlob) {
					matched, err := doublestar.Match(keyGlob, *object.Key)
					if err != nil {
						matchErr = err
						return false
					}
					if !matched {
						continue
					}
				}
				fInfo := FileInfo{
					Name: fmt.Sprintf("s3://%s/%s", bucket, *object.Key),
					Size: *object.Size,
				}
				s3Files = append(s3Files, fInfo)
				s.statCache.Add(fInfo.Name, fInfo)
			}
			return true
		})
	if matchErr != nil {
		return nil, matchErr
	}

	return s3Files, err
}

// OpenReader opens a chunked reader over the object, positioned startAt
// bytes in.
func (s *S3FileSystem) OpenReader(filePath string, startAt int64) (io.ReadCloser, error) {
	fInfo, err := s.Stat(filePath)
	if err != nil {
		return nil, err
	}

	bucket, key := parseS3Path(filePath)
	reader := &s3Reader{
		client:    s.s3Client,
		bucket:    bucket,
		key:       key,
		offset:    startAt,
		chunkSize: 20 * 1024 * 1024, // 20 Mb chunk size
		totalSize: fInfo.Size,
	}
	err = reader.loadNextChunk()
	return reader, err
}

// OpenWriter opens a buffered writer that uploads the object on Close.
func (s *S3FileSystem) OpenWriter(filePath string) (io.WriteCloser, error) {
	bucket, key := parseS3Path(filePath)
	writer := newS3Writer(s.s3Client, bucket, key)
	return writer, nil
}

// Stat returns the name and size of the object at filePath.
func (s *S3FileSystem) Stat(filePath string) (FileInfo, error) {
	if cached, ok := s.statCache.Get(filePath); ok {
		return cached.(FileInfo), nil
	}

	bucket, key := parseS3Path(filePath)
	params := &s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	}

	result, err := s.s3Client.ListObjects(params)
	if err != nil {
		return FileInfo{}, err
	}

	for _, object := range result.Contents {
		if *object.Key == key {
			fInfo := FileInfo{
				Name: filePath,
				Size: *object.Size,
			}
			s.statCache.Add(filePath, fInfo)
			return fInfo, nil
		}
	}

	return FileInfo{}, fmt.Errorf("No file found at %s", filePath)
}

// Delete removes the object at filePath.
func (s *S3FileSystem) Delete(filePath string) error {
	bucket, key := parseS3Path(filePath)
	params := &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	_, err := s.s3Client.DeleteObject(params)
	s.statCache.Remove(filePath)
	return err
}

// Join joins path elements with "/", preserving a trailing slash on the
// final element.
func (s *S3FileSystem) Join(elem ...string) string {
	stripped := make([]string, len(elem))
	for i, e := range elem {
		stripped[i] = strings.Trim(e, "/")
	}
	joined := strings.Join(stripped, "/")
	if strings.HasSuffix(elem[len(elem)-1], "/") {
		joined += "/"
	}
	return joined
}

// Init sets up the S3 session and stat cache.
func (s *S3FileSystem) Init() error {
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	s.s3Client = s3.New(sess)

	cache, err := lru.New(statCacheSize)
	if err != nil {
		return err
	}
	s.statCache = cache
	return nil
}
