// photos/r2.go
package photos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// ObjectAPI is the subset of the S3 client the R2 store calls.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// R2Options configure the Cloudflare R2 bucket photos are written to.
type R2Options struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// R2Store uploads photos to R2 and keeps the public URL on the match.
type R2Store struct {
	client     ObjectAPI
	bucket     string
	cdnBaseURL string
}

// NewR2Store builds an S3 client pointed at the account's R2 endpoint.
func NewR2Store(ctx context.Context, opts R2Options) (*R2Store, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	cdn := opts.CDNBaseURL
	if cdn == "" {
		cdn = endpoint + "/" + opts.Bucket
	}
	return NewR2StoreWithClient(client, opts.Bucket, cdn), nil
}

func NewR2StoreWithClient(client ObjectAPI, bucket, cdnBaseURL string) *R2Store {
	return &R2Store{
		client:     client,
		bucket:     bucket,
		cdnBaseURL: strings.TrimRight(cdnBaseURL, "/"),
	}
}

func (s *R2Store) Put(ctx context.Context, owner string, photo *Upload) (string, error) {
	if photo == nil || len(photo.Data) == 0 {
		return "", fmt.Errorf("empty photo")
	}

	key := objectKey(owner, photo.ContentType)
	contentType := photo.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(photo.Data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	return fmt.Sprintf("%s/%s", s.cdnBaseURL, key), nil
}

func (s *R2Store) Get(ctx context.Context, ref string) ([]byte, error) {
	key, err := s.keyOf(ref)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from R2: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from R2: %w", key, err)
	}
	return data, nil
}

func (s *R2Store) Delete(ctx context.Context, ref string) error {
	key, err := s.keyOf(ref)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from R2: %w", key, err)
	}
	return nil
}

func (s *R2Store) keyOf(ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, s.cdnBaseURL+"/")
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %q is not under %s", ErrInvalidRef, ref, s.cdnBaseURL)
	}
	return key, nil
}

func objectKey(owner, contentType string) string {
	prefix := slug.Make(owner)
	if prefix == "" {
		prefix = "anonymous"
	}
	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	return "matches/" + prefix + "/" + uuid.NewString() + ext
}
