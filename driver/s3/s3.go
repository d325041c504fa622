package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gobeaver/maxlines"
)

// Client is the subset of the S3 API the adapter uses. *s3.Client satisfies it.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Adapter provides an S3 implementation of maxlines.FileSystem.
// Directories are key prefixes; CreateDir writes an empty "dir/" marker.
type Adapter struct {
	client Client
	bucket string
	prefix string
}

// AdapterOption is a function that configures Adapter
type AdapterOption func(*Adapter)

// WithPrefix sets the prefix for S3 objects
func WithPrefix(prefix string) AdapterOption {
	return func(a *Adapter) {
		prefix = strings.Trim(prefix, "/")
		if prefix != "" {
			prefix += "/"
		}
		a.prefix = prefix
	}
}

// New creates a new S3 filesystem adapter
func New(client Client, bucket string, options ...AdapterOption) *Adapter {
	adapter := &Adapter{
		client: client,
		bucket: bucket,
	}
	for _, option := range options {
		option(adapter)
	}
	return adapter
}

// key maps a slash-separated path to an object key below the prefix
func (a *Adapter) key(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	return a.prefix + p
}

// dirKey is the key prefix of the directory p, always ending in "/" unless
// it is the bucket root
func (a *Adapter) dirKey(p string) string {
	k := a.key(p)
	if k != "" && !strings.HasSuffix(k, "/") {
		k += "/"
	}
	return k
}

// Write implements maxlines.FileWriter
func (a *Adapter) Write(ctx context.Context, p string, content io.Reader) error {
	key := a.key(p)
	if key == a.prefix {
		return &maxlines.PathError{Op: "write", Path: p, Err: maxlines.ErrIsDir}
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return &maxlines.PathError{Op: "write", Path: p, Err: err}
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return mapS3Error("write", p, err)
	}
	return nil
}

// Read implements maxlines.FileReader
func (a *Adapter) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	key := a.key(p)
	if key == a.prefix || strings.HasSuffix(p, "/") {
		return nil, &maxlines.PathError{Op: "read", Path: p, Err: maxlines.ErrIsDir}
	}

	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		err = mapS3Error("read", p, err)
		if maxlines.IsNotExist(err) && a.isDir(ctx, p) {
			return nil, &maxlines.PathError{Op: "read", Path: p, Err: maxlines.ErrIsDir}
		}
		return nil, err
	}

	return resp.Body, nil
}

// ReadAll implements maxlines.ContentReader
func (a *Adapter) ReadAll(ctx context.Context, p string) ([]byte, error) {
	rc, err := a.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &maxlines.PathError{Op: "read", Path: p, Err: err}
	}
	return data, nil
}

// Delete implements maxlines.FileWriter
func (a *Adapter) Delete(ctx context.Context, p string) error {
	// DeleteObject succeeds for missing keys
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
	})
	if err != nil {
		return mapS3Error("delete", p, err)
	}

	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
	})
	if err != nil {
		return mapS3Error("delete", p, err)
	}
	return nil
}

// CreateDir implements maxlines.FileWriter
func (a *Adapter) CreateDir(ctx context.Context, p string) error {
	key := a.dirKey(p)
	if key == "" {
		return nil
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
		ContentType:   aws.String("application/x-directory"),
	})
	if err != nil {
		return mapS3Error("createdir", p, err)
	}
	return nil
}

// Stat implements maxlines.FileReader
func (a *Adapter) Stat(ctx context.Context, p string) (*maxlines.FileInfo, error) {
	key := a.key(p)
	if key != a.prefix {
		resp, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return &maxlines.FileInfo{
				Name:    path.Base(key),
				Path:    p,
				Size:    aws.ToInt64(resp.ContentLength),
				ModTime: aws.ToTime(resp.LastModified),
			}, nil
		}
		if err = mapS3Error("stat", p, err); !maxlines.IsNotExist(err) {
			return nil, err
		}
	}

	if a.isDir(ctx, p) {
		return &maxlines.FileInfo{Name: path.Base(key), Path: p, IsDir: true}, nil
	}
	return nil, &maxlines.PathError{Op: "stat", Path: p, Err: maxlines.ErrNotExist}
}

// isDir reports whether any object lives below p
func (a *Adapter) isDir(ctx context.Context, p string) bool {
	prefix := a.dirKey(p)
	if prefix == "" {
		return true
	}

	resp, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	return err == nil && (len(resp.Contents) > 0 || len(resp.CommonPrefixes) > 0)
}

// ListContents implements maxlines.DirectoryLister.
// Entries are sorted by path. A prefix with no objects below it does not
// exist, except for the adapter root.
func (a *Adapter) ListContents(ctx context.Context, p string, recursive bool) ([]maxlines.FileInfo, error) {
	listPrefix := a.dirKey(p)
	base := strings.Trim(path.Clean("/"+p), "/")

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(listPrefix),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	files := []maxlines.FileInfo{}
	seen := make(map[string]bool)
	found := listPrefix == a.prefix

	paginator := s3.NewListObjectsV2Paginator(a.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error("listcontents", p, err)
		}

		for _, cp := range page.CommonPrefixes {
			found = true
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), listPrefix), "/")
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			files = append(files, maxlines.FileInfo{
				Name:  name,
				Path:  path.Join(base, name),
				IsDir: true,
			})
		}

		for _, obj := range page.Contents {
			found = true
			rel := strings.TrimPrefix(aws.ToString(obj.Key), listPrefix)
			isDir := strings.HasSuffix(rel, "/")
			rel = strings.TrimSuffix(rel, "/")
			if rel == "" || seen[rel] {
				continue
			}
			seen[rel] = true
			files = append(files, maxlines.FileInfo{
				Name:    path.Base(rel),
				Path:    path.Join(base, rel),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
				IsDir:   isDir,
			})
		}
	}

	if !found {
		if _, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(a.key(p)),
		}); err == nil {
			return nil, &maxlines.PathError{Op: "listcontents", Path: p, Err: maxlines.ErrNotDir}
		}
		return nil, &maxlines.PathError{Op: "listcontents", Path: p, Err: maxlines.ErrNotExist}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// Watch implements maxlines.CanWatch. S3 has no change notifications the
// adapter can subscribe to, so the token never fires.
func (a *Adapter) Watch(ctx context.Context, filter string) (maxlines.ChangeToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return maxlines.NeverChangeToken{}, nil
}

// mapS3Error translates S3 API errors into the maxlines sentinels
func mapS3Error(op, p string, err error) error {
	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	var noBucket *types.NoSuchBucket
	if errors.As(err, &nsk) || errors.As(err, &notFound) || errors.As(err, &noBucket) {
		return &maxlines.PathError{Op: op, Path: p, Err: maxlines.ErrNotExist}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden":
			return &maxlines.PathError{Op: op, Path: p, Err: maxlines.ErrPermission}
		case "NotFound", "NoSuchKey":
			return &maxlines.PathError{Op: op, Path: p, Err: maxlines.ErrNotExist}
		}
	}

	return &maxlines.PathError{Op: op, Path: p, Err: err}
}
