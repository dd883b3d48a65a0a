package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// MinioStore writes evidence to an S3 compatible bucket and returns presigned links.
type MinioStore struct {
	client *minio.Client
	cfg    config.EvidenceConfig
	logger *zap.Logger
}

// NewMinioStore creates the client. It does not contact the server.
func NewMinioStore(cfg config.EvidenceConfig, logger *zap.Logger) (*MinioStore, error) {
	if !cfg.Enabled() {
		return nil, errors.New("evidence storage not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		useSSL = useSSL || u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client, cfg: cfg, logger: logger}, nil
}

// EnsureBucket creates the evidence bucket when missing.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return classify(err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return classify(err)
	}
	s.logger.Info("created evidence bucket", zap.String("bucket", s.cfg.Bucket))
	return nil
}

// Ping checks the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	return err
}

func (s *MinioStore) Upload(ctx context.Context, ticketID int64, fileName, contentType string, body io.Reader, size int64) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := ObjectKey(ticketID, fileName)
	if _, err := s.client.PutObject(ctx, s.cfg.Bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"ticket-id": fmt.Sprintf("%d", ticketID),
		},
	}); err != nil {
		return "", classify(err)
	}

	link, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, key, s.cfg.PresignTTL, nil)
	if err != nil {
		return "", classify(err)
	}
	return link.String(), nil
}

func classify(err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return apperrors.NewPermissionDenied("evidence storage rejected the request", map[string]any{"storage_code": resp.Code})
		case "SlowDown", "ServiceUnavailable", "InternalError":
			return apperrors.NewTransientFailure(err)
		}
		return apperrors.NewInternalError(err)
	}
	return apperrors.NewTransientFailure(err)
}
