package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	perrors "github.com/vango-dev/pulse/internal/errors"
)

// ErrNoSink is returned when a capture is exported without a sink.
var ErrNoSink = errors.New("pulse: no capture sink configured")

// Capture is a point-in-time dump of a recorder.
type Capture struct {
	ID        string    `json:"id"`
	RuntimeID string    `json:"runtimeId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Stats     Stats     `json:"stats"`
	Events    []Event   `json:"events"`
}

// Name returns the object name a capture is stored under.
func (c *Capture) Name() string {
	return fmt.Sprintf("capture-%s-%s.json", c.CreatedAt.UTC().Format("20060102T150405Z"), c.ID)
}

// Sink stores encoded captures.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (location string, err error)
}

// FileSink writes captures into a directory.
type FileSink struct {
	Dir string
}

// Put implements Sink.
func (s FileSink) Put(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(s.Dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// S3API is the subset of the S3 client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads captures to an S3 bucket.
//
// Example usage:
//
//	client := inspect.NewS3Client("eu-west-1", "")
//	sink := &inspect.S3Sink{Client: client, Bucket: "captures", Prefix: "pulse/"}
type S3Sink struct {
	Client S3API
	Bucket string
	Prefix string
}

// Put implements Sink.
func (s *S3Sink) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := path.Join(s.Prefix, name)
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return "s3://" + s.Bucket + "/" + key, nil
}

// NewS3Client builds an S3 client for region using the standard AWS_*
// environment credentials. A non-empty endpoint selects an S3 compatible
// service with path-style addressing.
func NewS3Client(region, endpoint string) *s3.Client {
	creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		id := os.Getenv("AWS_ACCESS_KEY_ID")
		secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})
	opts := s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(creds),
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

// Exporter snapshots a recorder into a sink.
type Exporter struct {
	recorder  *Recorder
	sink      Sink
	runtimeID string
	now       func() time.Time
}

// NewExporter creates an exporter. sink may be nil, in which case Export
// fails with ErrNoSink.
func NewExporter(recorder *Recorder, sink Sink, runtimeID string) *Exporter {
	return &Exporter{
		recorder:  recorder,
		sink:      sink,
		runtimeID: runtimeID,
		now:       time.Now,
	}
}

// Capture takes a snapshot without storing it.
func (e *Exporter) Capture() *Capture {
	return &Capture{
		ID:        uuid.NewString(),
		RuntimeID: e.runtimeID,
		CreatedAt: e.now(),
		Stats:     e.recorder.Stats(),
		Events:    e.recorder.History().Snapshot(),
	}
}

// Export takes a snapshot and stores it, returning where it went.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	if e.sink == nil {
		return "", perrors.New("E401").Wrap(ErrNoSink)
	}
	c := e.Capture()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", perrors.New("E401").WithDetail("encode capture").Wrap(err)
	}
	loc, err := e.sink.Put(ctx, c.Name(), data)
	if err != nil {
		return "", perrors.New("E401").WithDetailf("store %s", c.Name()).Wrap(err)
	}
	return loc, nil
}
