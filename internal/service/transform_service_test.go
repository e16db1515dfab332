package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oniichan80000/image-resizer/internal/domain"
	"github.com/oniichan80000/image-resizer/internal/repository"
)

const (
	uploadBucket    = "imageresizer-imageuploads"
	processedBucket = "imageresizer-imageprocessed"
)

func newTransform(store *fakeStorage) TransformService {
	return NewTransformService(store, processedBucket, zap.NewNop())
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x), G: 128, B: 64, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestProcessResizesWithMetadataBound(t *testing.T) {
	store := newFakeStorage()
	store.putObject(uploadBucket, "pic", &repository.StoredObject{
		Body:        encodePNG(t, 4000, 2000),
		ContentType: "image/png",
		Metadata:    map[string]string{MetadataMaxDimension: "500"},
	})

	err := newTransform(store).Process(context.Background(), domain.Notification{
		Bucket: uploadBucket,
		Key:    "pic",
	})
	require.NoError(t, err)

	require.Len(t, store.uploads, 1)
	up := store.uploads[0]
	assert.Equal(t, "pic", up.key)
	assert.Equal(t, "image/png", up.contentType)

	w, h := decodeDims(t, up.body)
	assert.Equal(t, 500, w)
	assert.Equal(t, 250, h)
}

func TestProcessDefaultBoundWhenNoMetadata(t *testing.T) {
	store := newFakeStorage()
	store.putObject(uploadBucket, "pic", &repository.StoredObject{
		Body:        encodeJPEG(t, 1024, 768),
		ContentType: "image/jpeg",
	})

	err := newTransform(store).Process(context.Background(), domain.Notification{
		Bucket: uploadBucket,
		Key:    "pic",
	})
	require.NoError(t, err)

	require.Len(t, store.uploads, 1)
	w, h := decodeDims(t, store.uploads[0].body)
	assert.Equal(t, DefaultMaxDimension, w)
	assert.Equal(t, 192, h)
}

func TestProcessInvalidMetadataFallsBack(t *testing.T) {
	for _, value := range []string{"huge", "5000", "0", "-5"} {
		t.Run(value, func(t *testing.T) {
			store := newFakeStorage()
			store.putObject(uploadBucket, "pic", &repository.StoredObject{
				Body:        encodePNG(t, 512, 128),
				ContentType: "image/png",
				Metadata:    map[string]string{MetadataMaxDimension: value},
			})

			err := newTransform(store).Process(context.Background(), domain.Notification{
				Bucket: uploadBucket,
				Key:    "pic",
			})
			require.NoError(t, err)

			require.Len(t, store.uploads, 1)
			w, h := decodeDims(t, store.uploads[0].body)
			assert.Equal(t, DefaultMaxDimension, w)
			assert.Equal(t, 64, h)
		})
	}
}

func TestProcessPassthroughWithinBound(t *testing.T) {
	original := encodePNG(t, 200, 100)

	store := newFakeStorage()
	store.putObject(uploadBucket, "small", &repository.StoredObject{
		Body:        original,
		ContentType: "image/png",
	})

	err := newTransform(store).Process(context.Background(), domain.Notification{
		Bucket: uploadBucket,
		Key:    "small",
	})
	require.NoError(t, err)

	require.Len(t, store.uploads, 1)
	assert.Equal(t, original, store.uploads[0].body, "compliant images must pass through byte-identical")
}

func TestProcessIdempotent(t *testing.T) {
	store := newFakeStorage()
	store.putObject(uploadBucket, "pic", &repository.StoredObject{
		Body:        encodePNG(t, 1000, 600),
		ContentType: "image/png",
		Metadata:    map[string]string{MetadataMaxDimension: "300"},
	})

	transform := newTransform(store)
	n := domain.Notification{Bucket: uploadBucket, Key: "pic"}

	require.NoError(t, transform.Process(context.Background(), n))
	require.NoError(t, transform.Process(context.Background(), n))

	require.Len(t, store.uploads, 2)
	assert.Equal(t, store.uploads[0].body, store.uploads[1].body,
		"duplicate delivery must converge to identical bytes")
}

func TestProcessLoopGuard(t *testing.T) {
	store := newFakeStorage()

	err := newTransform(store).Process(context.Background(), domain.Notification{
		Bucket: processedBucket,
		Key:    "anything",
	})
	require.NoError(t, err)

	assert.Empty(t, store.downloads, "loop guard must skip before fetching")
	assert.Empty(t, store.uploads)
}

func TestProcessUnescapesKey(t *testing.T) {
	store := newFakeStorage()
	store.putObject(uploadBucket, "my cat.png", &repository.StoredObject{
		Body:        encodePNG(t, 100, 100),
		ContentType: "image/png",
	})

	err := newTransform(store).Process(context.Background(), domain.Notification{
		Bucket: uploadBucket,
		Key:    "my+cat.png",
	})
	require.NoError(t, err)

	require.Len(t, store.downloads, 1)
	assert.Equal(t, uploadBucket+"/my cat.png", store.downloads[0])
	require.Len(t, store.uploads, 1)
	assert.Equal(t, "my cat.png", store.uploads[0].key)
}

func TestProcessDownloadFailure(t *testing.T) {
	store := newFakeStorage()

	err := newTransform(store).Process(context.Background(), domain.Notification{
		Bucket: uploadBucket,
		Key:    "missing",
	})
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.Empty(t, store.uploads)
}

func TestProcessDecodeFailure(t *testing.T) {
	store := newFakeStorage()
	store.putObject(uploadBucket, "garbage", &repository.StoredObject{
		Body:        []byte("definitely not an image"),
		ContentType: "image/jpeg",
	})

	err := newTransform(store).Process(context.Background(), domain.Notification{
		Bucket: uploadBucket,
		Key:    "garbage",
	})
	assert.ErrorIs(t, err, ErrDecodeFailed)
	assert.Empty(t, store.uploads, "invalid images must never reach the processed bucket")
}

func TestProcessUploadFailure(t *testing.T) {
	store := newFakeStorage()
	store.uploadErr = assert.AnError
	store.putObject(uploadBucket, "pic", &repository.StoredObject{
		Body:        encodePNG(t, 100, 100),
		ContentType: "image/png",
	})

	err := newTransform(store).Process(context.Background(), domain.Notification{
		Bucket: uploadBucket,
		Key:    "pic",
	})
	assert.ErrorIs(t, err, ErrUploadFailed)
}
