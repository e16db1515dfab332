package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oniichan80000/image-resizer/internal/domain"
	"github.com/oniichan80000/image-resizer/internal/repository"
)

// Resize bound limits. Values outside the closed range are discarded, never
// rejected: the request still succeeds and the transform falls back to
// DefaultMaxDimension.
const (
	MinDimension        = 64
	MaxDimension        = 4096
	DefaultMaxDimension = 256

	// MetadataMaxDimension is the write-time metadata key carrying the
	// validated resize preference from issuance to the transform.
	MetadataMaxDimension = "max-dimension"

	// URLExpiry bounds the lifetime of every presigned capability.
	URLExpiry = 5 * time.Minute

	defaultContentType = "image/jpeg"

	maxFilenameLen = 100
)

// ErrMissingKey reports a retrieval request without an object key. This is
// the only client input with no safe default.
var ErrMissingKey = errors.New("missing object key")

var unsafeFilenameChars = regexp.MustCompile(`[^\w.\-]`)

// IntentService issues time-limited capabilities against the two buckets:
// presigned PUT URLs for intake and presigned GET URLs for processed results.
type IntentService interface {
	IssueUpload(ctx context.Context, req domain.UploadIntentRequest) (*domain.UploadIntent, error)
	IssueRetrieval(ctx context.Context, key string) (*domain.RetrievalIntent, error)
}

type intentService struct {
	storage repository.ObjectStorage
	log     *zap.Logger
}

func NewIntentService(storage repository.ObjectStorage, log *zap.Logger) IntentService {
	return &intentService{
		storage: storage,
		log:     log,
	}
}

// IssueUpload validates the untrusted request, generates a unique object key
// and returns a presigned PUT URL bound to that key, the declared content
// type and, when a valid resize preference was supplied, the max-dimension
// metadata entry. No object is written here.
func (s *intentService) IssueUpload(ctx context.Context, req domain.UploadIntentRequest) (*domain.UploadIntent, error) {
	key := uuid.New().String()
	if safe := sanitizeFilename(req.Filename); safe != "" {
		key = key + "-" + safe
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	var metadata map[string]string
	if dimension, ok := s.resolveRequestedDimension(req.MaxDimension); ok {
		metadata = map[string]string{
			MetadataMaxDimension: strconv.Itoa(dimension),
		}
	}

	uploadURL, err := s.storage.PresignUpload(ctx, key, contentType, metadata, URLExpiry)
	if err != nil {
		return nil, err
	}

	s.log.Info("Issued upload URL",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Bool("has_max_dimension", metadata != nil))

	return &domain.UploadIntent{
		UploadURL: uploadURL,
		Key:       key,
	}, nil
}

// IssueRetrieval returns a presigned GET URL for the processed object, or
// repository.ErrObjectNotFound while the transform has not completed yet.
func (s *intentService) IssueRetrieval(ctx context.Context, key string) (*domain.RetrievalIntent, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	processedURL, err := s.storage.PresignDownload(ctx, key, URLExpiry)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			s.log.Info("Processed object not ready", zap.String("key", key))
		}
		return nil, err
	}

	return &domain.RetrievalIntent{ProcessedURL: processedURL}, nil
}

// resolveRequestedDimension parses the raw maxDimension field, accepting bare
// and quoted integers within [MinDimension, MaxDimension]. Anything else is
// logged and dropped so the request still succeeds with the default bound.
func (s *intentService) resolveRequestedDimension(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	value := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	dimension, err := strconv.Atoi(value)
	if err != nil {
		s.log.Warn("Ignoring non-integer max dimension", zap.String("value", value))
		return 0, false
	}
	if dimension < MinDimension || dimension > MaxDimension {
		s.log.Warn("Ignoring out-of-range max dimension",
			zap.Int("value", dimension),
			zap.Int("min", MinDimension),
			zap.Int("max", MaxDimension))
		return 0, false
	}

	return dimension, true
}

// sanitizeFilename keeps only word characters, dots and hyphens, capped at
// 100 characters, so a hostile filename cannot shape the object key.
func sanitizeFilename(filename string) string {
	safe := unsafeFilenameChars.ReplaceAllString(filename, "")
	if len(safe) > maxFilenameLen {
		safe = safe[:maxFilenameLen]
	}
	return safe
}
