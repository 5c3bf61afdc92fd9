package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 keeps objects in a map. Multipart entry points are never hit —
// page artifacts are far below the uploader's part-size threshold.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	_, ok := f.objects[*in.Bucket+"/"+*in.Key]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("fakeS3: multipart not supported")
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("fakeS3: multipart not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("fakeS3: multipart not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, fmt.Errorf("fakeS3: multipart not supported")
}

func TestS3RoundTrip(t *testing.T) {
	fake := newFakeS3()
	sink := NewS3(fake, "extracted", "service1")
	ctx := context.Background()

	content := []byte("# Page 3 - PDFTEXT\n\nbody")
	uri, err := sink.Put(ctx, "doc-a/extracted_text/page_0003_pdftext.md", content, "text/markdown; charset=utf-8")
	if err != nil {
		t.Fatal(err)
	}
	want := "s3://extracted/service1/doc-a/extracted_text/page_0003_pdftext.md"
	if uri != want {
		t.Fatalf("uri = %q, want %q", uri, want)
	}

	ok, err := sink.Exists(ctx, "doc-a/extracted_text/page_0003_pdftext.md")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("uploaded key should exist")
	}

	got, err := sink.Get(ctx, "doc-a/extracted_text/page_0003_pdftext.md")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("read-back mismatch: %q", got)
	}
}

func TestS3ExistsMissing(t *testing.T) {
	sink := NewS3(newFakeS3(), "extracted", "")
	ok, err := sink.Exists(context.Background(), "nope.md")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("missing key reported as existing")
	}
}

func TestS3PutFailureClass(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = &types.NoSuchBucket{}
	sink := NewS3(fake, "extracted", "")

	_, err := sink.Put(context.Background(), "k.md", []byte("x"), "text/markdown")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestS3ResolveRoot(t *testing.T) {
	sink := NewS3(newFakeS3(), "extracted", "service1")
	root := sink.ResolveRoot("doc-a")
	if root != "s3://extracted/service1/doc-a/extracted_text" {
		t.Fatalf("root = %q", root)
	}

	noPrefix := NewS3(newFakeS3(), "extracted", "")
	if got := noPrefix.ResolveRoot("doc-a"); got != "s3://extracted/doc-a/extracted_text" {
		t.Fatalf("root = %q", got)
	}
}

func TestParseS3URI(t *testing.T) {
	bucket, prefix, err := ParseS3URI("s3://extracted/service1/out")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "extracted" || prefix != "service1/out" {
		t.Fatalf("got %q %q", bucket, prefix)
	}

	bucket, prefix, err = ParseS3URI("s3://extracted")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "extracted" || prefix != "" {
		t.Fatalf("got %q %q", bucket, prefix)
	}

	if _, _, err := ParseS3URI("/local/path"); err == nil {
		t.Fatal("expected error for non-s3 uri")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	sink, err := Open(ctx, Config{Location: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.(*FSSink); !ok {
		t.Fatalf("local path selected %T, want *FSSink", sink)
	}

	sink, err = Open(ctx, Config{Location: "s3://extracted/out", Region: "eu-west-1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.(*S3Sink); !ok {
		t.Fatalf("s3 location selected %T, want *S3Sink", sink)
	}

	if _, err := Open(ctx, Config{}); err == nil {
		t.Fatal("expected error for empty location")
	}
}
