package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	perrors "github.com/vango-dev/pulse/internal/errors"
	"github.com/vango-dev/pulse/pkg/transition"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestExportToFile(t *testing.T) {
	rec := NewRecorder(8)
	rec.TransitionEvent(transition.IntroStart)
	dir := t.TempDir()

	loc, err := NewExporter(rec, FileSink{Dir: dir}, "rt-1").Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if !strings.HasPrefix(loc, dir) || !strings.HasSuffix(loc, ".json") {
		t.Errorf("unexpected location %s", loc)
	}

	data, err := os.ReadFile(loc)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	var c Capture
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if c.RuntimeID != "rt-1" || len(c.Events) != 1 || c.Stats.Transitions != 1 {
		t.Errorf("unexpected capture %+v", c)
	}
}

func TestExportToS3(t *testing.T) {
	client := &fakeS3{}
	rec := NewRecorder(8)
	sink := &S3Sink{Client: client, Bucket: "captures", Prefix: "pulse"}

	loc, err := NewExporter(rec, sink, "").Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(client.inputs))
	}
	in := client.inputs[0]
	if aws.ToString(in.Bucket) != "captures" {
		t.Errorf("expected bucket captures, got %s", aws.ToString(in.Bucket))
	}
	key := aws.ToString(in.Key)
	if !strings.HasPrefix(key, "pulse/capture-") {
		t.Errorf("unexpected key %s", key)
	}
	if loc != "s3://captures/"+key {
		t.Errorf("unexpected location %s", loc)
	}
	if !json.Valid(client.bodies[0]) {
		t.Error("expected JSON body")
	}
}

func TestExportErrors(t *testing.T) {
	rec := NewRecorder(8)

	_, err := NewExporter(rec, nil, "").Export(context.Background())
	if !errors.Is(err, ErrNoSink) {
		t.Errorf("expected ErrNoSink, got %v", err)
	}

	boom := errors.New("access denied")
	sink := &S3Sink{Client: &fakeS3{err: boom}, Bucket: "b"}
	_, err = NewExporter(rec, sink, "").Export(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped upload error, got %v", err)
	}
	var ee *perrors.EngineError
	if !errors.As(err, &ee) || ee.Code != "E401" {
		t.Errorf("expected E401, got %v", err)
	}
}
