package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"abegfix/internal/config"
)

const (
	// MaxAvatarSize bounds direct avatar uploads.
	MaxAvatarSize = 2 << 20

	presignTTL = 15 * time.Minute
)

var ErrUnsupportedImageType = errors.New("unsupported image type")

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Service stores user-uploaded images in an S3-compatible bucket.
type Service struct {
	client        *s3.Client
	presigner     *s3.PresignClient
	bucket        string
	publicBaseURL string
}

func NewService(ctx context.Context, cfg config.S3Config) (*Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Service{
		client:        client,
		presigner:     s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// UploadAvatar stores an avatar image and returns its public URL. The reader
// is limited to MaxAvatarSize; content type is sniffed, not trusted from the
// request.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarSize+1))
	if err != nil {
		return "", fmt.Errorf("reading avatar upload: %w", err)
	}
	if len(data) > MaxAvatarSize {
		return "", fmt.Errorf("avatar exceeds %d bytes", MaxAvatarSize)
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", ErrUnsupportedImageType
	}

	key := s.objectKey("avatars", userID, ext)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading avatar: %w", err)
	}

	return s.publicURL(key), nil
}

// PresignPortfolioPut returns a URL the client can PUT a portfolio image to
// directly, plus the public URL the object will have afterwards.
func (s *Service) PresignPortfolioPut(ctx context.Context, userID, contentType string) (uploadURL, objectURL string, err error) {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", "", ErrUnsupportedImageType
	}

	key := s.objectKey("portfolio", userID, ext)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", "", fmt.Errorf("presigning portfolio upload: %w", err)
	}

	return req.URL, s.publicURL(key), nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

func (s *Service) objectKey(kind, userID, ext string) string {
	now := time.Now().UTC()
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%s%s",
		kind, userID, now.Year(), now.Month(), now.Day(), uuid.NewString(), ext)
}

func (s *Service) publicURL(key string) string {
	return fmt.Sprintf("%s/%s", s.publicBaseURL, key)
}
