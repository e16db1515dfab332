package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oniichan80000/image-resizer/internal/repository"
)

type presignUploadCall struct {
	key         string
	contentType string
	metadata    map[string]string
	expiry      time.Duration
}

type uploadCall struct {
	key         string
	body        []byte
	contentType string
}

// fakeStorage is an in-memory repository.ObjectStorage. Objects are keyed
// "bucket/key" for downloads; uploads land in the processed map.
type fakeStorage struct {
	mu sync.Mutex

	objects   map[string]*repository.StoredObject
	processed map[string][]byte

	presignUploads []presignUploadCall
	uploads        []uploadCall
	downloads      []string

	presignUploadErr error
	uploadErr        error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects:   make(map[string]*repository.StoredObject),
		processed: make(map[string][]byte),
	}
}

func (f *fakeStorage) putObject(bucket, key string, obj *repository.StoredObject) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = obj
}

func (f *fakeStorage) PresignUpload(_ context.Context, key, contentType string, metadata map[string]string, expiry time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presignUploadErr != nil {
		return "", f.presignUploadErr
	}
	f.presignUploads = append(f.presignUploads, presignUploadCall{
		key:         key,
		contentType: contentType,
		metadata:    metadata,
		expiry:      expiry,
	})
	return "https://s3.test/upload/" + key, nil
}

func (f *fakeStorage) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.processed[key]; !ok {
		return "", repository.ErrObjectNotFound
	}
	return "https://s3.test/processed/" + key, nil
}

func (f *fakeStorage) Download(_ context.Context, bucket, key string) (*repository.StoredObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, bucket+"/"+key)
	obj, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", repository.ErrObjectNotFound, bucket, key)
	}
	return obj, nil
}

func (f *fakeStorage) Upload(_ context.Context, key string, body []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, uploadCall{key: key, body: body, contentType: contentType})
	f.processed[key] = body
	return nil
}
