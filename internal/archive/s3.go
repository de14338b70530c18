package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type s3Store struct {
	bucket string
	prefix string
	region string
	client *s3.Client
}

type s3Options struct {
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
}

func newS3Store(ctx context.Context, opt s3Options) (*s3Store, error) {
	if opt.Bucket == "" || opt.Region == "" {
		return nil, fmt.Errorf("s3: bucket and region are required")
	}

	creds := credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, "")

	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(opt.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &s3Store{
		bucket: opt.Bucket,
		prefix: strings.Trim(opt.Prefix, "/"),
		region: opt.Region,
		client: s3.NewFromConfig(cfg),
	}, nil
}

func (s *s3Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// OpenWriter starts a PutObject that reads from the returned writer; Close
// waits for the upload to finish.
func (s *s3Store) OpenWriter(ctx context.Context, key string) (objectWriter, error) {
	pr, pw := io.Pipe()
	fullKey := s.fullKey(key)

	w := &uploadWriter{
		pw:   pw,
		loc:  fmt.Sprintf("s3://%s/%s", s.bucket, fullKey),
		done: make(chan error, 1),
	}

	go func() {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(fullKey),
			Body:   pr,
		})
		_ = pr.CloseWithError(err)

		if err != nil {
			if apiErr, ok := err.(smithy.APIError); ok {
				w.done <- fmt.Errorf("s3 putobject failed: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
				return
			}
			w.done <- fmt.Errorf("s3 putobject failed: %w", err)
			return
		}
		w.done <- nil
	}()

	return w, nil
}

// Open fetches an archived object for retrieval.
func (s *s3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if apiErr, ok := err.(smithy.APIError); ok {
			return nil, fmt.Errorf("s3 getobject failed: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return nil, fmt.Errorf("s3 getobject failed: %w", err)
	}
	return out.Body, nil
}

type uploadWriter struct {
	pw     *io.PipeWriter
	loc    string
	done   chan error
	closed bool
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close signals EOF to the upload and waits for its result.
func (w *uploadWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_ = w.pw.Close()
	return <-w.done
}

func (w *uploadWriter) Location() string { return w.loc }
