// Package s3 mirrors a local output directory to and from an S3 prefix.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

// ErrNoBucket is returned by New when no bucket is configured.
var ErrNoBucket = errors.New("s3: bucket is required (set S3_BUCKET)")

// Config selects the bucket and credentials. Empty credentials fall back to
// the default AWS chain.
type Config struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Prefix          string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	AccessKeyID     string `json:"-" yaml:"-"`
	SecretAccessKey string `json:"-" yaml:"-"`
}

// API is the subset of the S3 client used here.
type API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Concurrency bounds parallel transfers.
const Concurrency = 4

// Client pushes and pulls directory trees.
type Client struct {
	api    API
	bucket string
	log    logrus.FieldLogger
}

// New builds a client from cfg. A custom endpoint switches to path-style
// addressing, which S3-compatible stores such as MinIO expect.
func New(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, cfg.Bucket, log), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api API, bucket string, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{api: api, bucket: bucket, log: log.WithField("bucket", bucket)}
}

// Key joins prefix and a slash-separated relative path.
func Key(prefix, rel string) string {
	p := strings.Trim(prefix, "/")
	rel = strings.TrimLeft(filepath.ToSlash(rel), "/")
	if p == "" {
		return rel
	}
	return p + "/" + rel
}

// Push uploads every regular file under localDir to prefix/<relative path>
// and returns the number of files uploaded.
func (c *Client) Push(ctx context.Context, localDir, prefix string) (int, error) {
	st, err := os.Stat(localDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("s3: local directory not found: %s", localDir)
		}
		return 0, fmt.Errorf("s3: stat %s: %w", localDir, err)
	}
	if !st.IsDir() {
		return 0, fmt.Errorf("s3: %s is not a directory", localDir)
	}

	var files []string
	err = filepath.WalkDir(localDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("s3: walk %s: %w", localDir, err)
	}

	var n atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Concurrency)
	for _, path := range files {
		g.Go(func() error {
			rel, err := filepath.Rel(localDir, path)
			if err != nil {
				return err
			}
			key := Key(prefix, rel)
			if err := c.put(gctx, path, key); err != nil {
				return fmt.Errorf("s3: upload %s: %w", rel, describe(err))
			}
			c.log.WithFields(logrus.Fields{"file": path, "key": key}).Info("uploaded")
			n.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(n.Load()), err
}

func (c *Client) put(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return err
}

// Pull downloads every object under prefix into localDir, keeping the
// path relative to the prefix, and returns the number of files written.
func (c *Client) Pull(ctx context.Context, prefix, localDir string) (int, error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return 0, fmt.Errorf("s3: mkdir %s: %w", localDir, err)
	}
	base := strings.Trim(prefix, "/")
	p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(base),
	})

	n := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return n, fmt.Errorf("s3: list %s: %w", base, describe(err))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimLeft(strings.TrimPrefix(key, base), "/")
			if rel == "" || strings.HasSuffix(key, "/") {
				continue
			}
			dst, err := within(localDir, rel)
			if err != nil {
				return n, err
			}
			if err := c.get(ctx, key, dst); err != nil {
				return n, fmt.Errorf("s3: download %s: %w", key, describe(err))
			}
			c.log.WithFields(logrus.Fields{"key": key, "file": dst}).Info("downloaded")
			n++
		}
	}
	return n, nil
}

// within resolves rel under dir and rejects keys that would escape it.
func within(dir, rel string) (string, error) {
	dst := filepath.Join(dir, filepath.FromSlash(rel))
	r, err := filepath.Rel(dir, dst)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("s3: key %q escapes %s", rel, dir)
	}
	return dst, nil
}

func (c *Client) get(ctx context.Context, key, dst string) error {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		return err
	}
	defer out.Body.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// describe prefixes service errors with their S3 error code.
func describe(err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return fmt.Errorf("%s: %w", ae.ErrorCode(), err)
	}
	return err
}
