package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	meta, err := s.Put(context.Background(), Object{
		Prefix:      "imaging/ind-1",
		FileName:    "chest.png",
		ContentType: "image/png",
		CreatedBy:   "dd-1",
	}, strings.NewReader("pngdata"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(meta.Key, "imaging/ind-1/"))
	assert.True(t, strings.HasSuffix(meta.Key, "-chest.png"))
	assert.Equal(t, int64(7), meta.Size)
	assert.Len(t, meta.Hash, 64)

	rc, got, err := s.Get(context.Background(), meta.Key)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "pngdata", string(body))
	assert.Equal(t, "chest.png", got.FileName)
}

func TestMemoryStore_Validation(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Put(context.Background(), Object{ContentType: "image/png"}, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrMissingFileName)

	_, err = s.Put(context.Background(), Object{FileName: "a.exe", ContentType: "application/octet-stream"}, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidContentType)

	_, _, err = s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestPrepare_StripsPathFromFileName(t *testing.T) {
	meta, _, err := prepare(Object{Prefix: "p", FileName: "../../etc/x.pdf", ContentType: "application/pdf; charset=binary"}, strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "x.pdf", meta.FileName)
	assert.Equal(t, "application/pdf", meta.ContentType)
}

type fakeS3 struct {
	objects map[string][]byte
	meta    map[string]map[string]string
	putErr  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = b
	f.meta[aws.ToString(in.Key)] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(b)),
		ContentLength: aws.Int64(int64(len(b))),
		ContentType:   aws.String("image/jpeg"),
		Metadata:      f.meta[aws.ToString(in.Key)],
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	delete(f.meta, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_PutGet(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
	s := NewS3Store(fake, "clinic-imaging")

	meta, err := s.Put(context.Background(), Object{Prefix: "imaging/ind-2", FileName: "knee.jpg", ContentType: "image/jpeg"}, strings.NewReader("jpeg"))
	require.NoError(t, err)
	assert.Contains(t, fake.objects, meta.Key)

	rc, got, err := s.Get(context.Background(), meta.Key)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "knee.jpg", got.FileName)
	assert.Equal(t, meta.Hash, got.Hash)

	_, _, err = s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	require.NoError(t, s.Delete(context.Background(), meta.Key))
	assert.NotContains(t, fake.objects, meta.Key)
	_, _, err = s.Get(context.Background(), meta.Key)
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestS3Store_PutError(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}, putErr: errors.New("throttled")}
	s := NewS3Store(fake, "b")
	_, err := s.Put(context.Background(), Object{FileName: "a.png", ContentType: "image/png"}, strings.NewReader("x"))
	assert.Error(t, err)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	meta, err := s.Put(context.Background(), Object{Prefix: "imaging/ind-3", FileName: "a.png", ContentType: "image/png"}, strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, []string{meta.Key}, s.Keys("imaging/ind-3"))

	require.NoError(t, s.Delete(context.Background(), meta.Key))
	require.NoError(t, s.Delete(context.Background(), meta.Key))
	assert.Empty(t, s.Keys("imaging/ind-3"))
	_, _, err = s.Get(context.Background(), meta.Key)
	assert.ErrorIs(t, err, ErrBlobNotFound)
}
