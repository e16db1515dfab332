package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/oniichan80000/image-resizer/internal/domain"
	"github.com/oniichan80000/image-resizer/internal/repository"
	"github.com/oniichan80000/image-resizer/pkg/imaging"
)

// Stage errors let an operator tell the fatal transform phases apart from the
// invocation result alone; there is no retry or dead-letter path in here, so
// the message is the whole diagnosis.
var (
	ErrDownloadFailed = errors.New("download failed")
	ErrDecodeFailed   = errors.New("decode failed")
	ErrEncodeFailed   = errors.New("encode failed")
	ErrUploadFailed   = errors.New("upload failed")
)

// TransformService processes one object-arrival notification: fetch from the
// upload bucket, downscale to the resolved bound, write the result to the
// processed bucket under the same key.
//
// A failed invocation leaves the key permanently "not ready" for retrieval;
// there is deliberately no recorded failure state. Redelivery is owned by the
// notification transport.
type TransformService interface {
	Process(ctx context.Context, n domain.Notification) error
}

type transformService struct {
	storage         repository.ObjectStorage
	processedBucket string
	log             *zap.Logger
	proc            *imaging.Processor
}

func NewTransformService(storage repository.ObjectStorage, processedBucket string, log *zap.Logger) TransformService {
	return &transformService{
		storage:         storage,
		processedBucket: processedBucket,
		log:             log,
		proc:            imaging.NewProcessor(log),
	}
}

func (s *transformService) Process(ctx context.Context, n domain.Notification) error {
	key := unescapeKey(n.Key)

	log := s.log.With(zap.String("bucket", n.Bucket), zap.String("key", key))

	// Loop guard: if the notification originates from the processed bucket,
	// writing back would re-trigger the transform forever.
	if n.Bucket == s.processedBucket {
		log.Info("Source bucket is the processed bucket, skipping")
		return nil
	}

	obj, err := s.storage.Download(ctx, n.Bucket, key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	bound := s.resolveBound(obj.Metadata)

	img, format, err := s.proc.Decode(obj.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	output := obj.Body
	if width > bound || height > bound {
		resized := s.proc.FitWithin(img, bound)
		output, err = s.proc.Encode(resized, format)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEncodeFailed, err)
		}
		log.Info("Image resized",
			zap.String("format", format),
			zap.Int("original_width", width),
			zap.Int("original_height", height),
			zap.Int("bound", bound))
	} else {
		// Already within the bound: pass the original bytes through
		// untouched, avoiding a lossy re-encode.
		log.Info("Image within bound, passing through",
			zap.Int("width", width),
			zap.Int("height", height),
			zap.Int("bound", bound))
	}

	if err := s.storage.Upload(ctx, key, output, obj.ContentType); err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	return nil
}

// resolveBound re-validates the max-dimension metadata exactly as issuance
// does; the metadata travelled through the client's PUT request and is
// untrusted. Missing, non-numeric and out-of-range values all fall back to
// the default bound.
func (s *transformService) resolveBound(metadata map[string]string) int {
	value, ok := metadata[MetadataMaxDimension]
	if !ok {
		return DefaultMaxDimension
	}

	bound, err := strconv.Atoi(value)
	if err != nil {
		s.log.Warn("Non-integer max-dimension metadata, using default",
			zap.String("value", value))
		return DefaultMaxDimension
	}
	if bound < MinDimension || bound > MaxDimension {
		s.log.Warn("Out-of-range max-dimension metadata, using default",
			zap.Int("value", bound))
		return DefaultMaxDimension
	}

	return bound
}

// unescapeKey reverses the URL encoding S3 applies to object keys in event
// records ('+' for space, percent escapes).
func unescapeKey(key string) string {
	unescaped, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return unescaped
}
