package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	almalead "github.com/phbpx/almalead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects      map[string][]byte
	contentTypes map[string]string
	buckets      map[string]bool
	putErr       error
	headErr      error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:      map[string][]byte{},
		contentTypes: map[string]string{},
		buckets:      map[string]bool{},
	}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(in.Body); err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = buf.Bytes()
	f.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.buckets[aws.ToString(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func TestS3Storage_Store(t *testing.T) {
	client := newFakeS3()
	s := newS3Storage(client, "resumes", "http://localhost:9000/", DefaultPolicy())

	key, err := s.Store(context.Background(), almalead.Upload{
		Filename:    "resume.pdf",
		ContentType: "application/pdf",
		Size:        5,
		Body:        bytes.NewReader([]byte("hello")),
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("hello"), client.objects[key])
	assert.Equal(t, "application/pdf", client.contentTypes[key])
	assert.Equal(t, "http://localhost:9000/resumes/"+key, s.URL(key))
}

func TestS3Storage_StoreRejectsBeforeUpload(t *testing.T) {
	client := newFakeS3()
	s := newS3Storage(client, "resumes", "http://localhost:9000", DefaultPolicy())

	_, err := s.Store(context.Background(), almalead.Upload{
		Filename: "resume.pdf",
		Size:     15 << 20,
		Body:     bytes.NewReader(nil),
	})
	assert.ErrorIs(t, err, almalead.ErrPayloadTooLarge)
	assert.Empty(t, client.objects)
}

func TestS3Storage_StoreBackendFailure(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("connection refused")
	s := newS3Storage(client, "resumes", "http://localhost:9000", DefaultPolicy())

	_, err := s.Store(context.Background(), almalead.Upload{
		Filename: "resume.pdf",
		Size:     1,
		Body:     bytes.NewReader([]byte("x")),
	})
	assert.ErrorIs(t, err, almalead.ErrStorage)
}

func TestS3Storage_EnsureBucket(t *testing.T) {
	client := newFakeS3()
	s := newS3Storage(client, "resumes", "http://localhost:9000", DefaultPolicy())

	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.True(t, client.buckets["resumes"])

	require.NoError(t, s.EnsureBucket(context.Background()))
}

func TestS3Storage_Remove(t *testing.T) {
	client := newFakeS3()
	client.objects["resumes/a.pdf"] = []byte("x")
	s := newS3Storage(client, "resumes", "http://localhost:9000", DefaultPolicy())

	require.NoError(t, s.Remove(context.Background(), "resumes/a.pdf"))
	assert.ErrorIs(t, s.Remove(context.Background(), "resumes/a.pdf"), almalead.ErrResumeNotFound)

	client.headErr = errors.New("timeout")
	assert.ErrorIs(t, s.Remove(context.Background(), "resumes/b.pdf"), almalead.ErrStorage)
}
