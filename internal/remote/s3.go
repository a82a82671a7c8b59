package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultS3Endpoint = "s3.amazonaws.com"

// S3Options configures an S3 remote.
type S3Options struct {
	Bucket          string
	Endpoint        string
	Region          string
	Insecure        bool
	AccessKeyID     string
	SecretAccessKey string
	// CredentialsFile is a JSON file holding accessKeyId and secretAccessKey.
	CredentialsFile string
}

type credentialsFile struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
}

func loadCredentialsFile(path string) (credentialsFile, error) {
	var c credentialsFile
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("invalid credentials file %s: %w", path, err)
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return c, fmt.Errorf("credentials file %s needs accessKeyId and secretAccessKey", path)
	}
	return c, nil
}

func (o S3Options) credentials() (*credentials.Credentials, error) {
	switch {
	case o.AccessKeyID != "" && o.SecretAccessKey != "":
		return credentials.NewStaticV4(o.AccessKeyID, o.SecretAccessKey, ""), nil
	case o.CredentialsFile != "":
		c, err := loadCredentialsFile(o.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return credentials.NewStaticV4(c.AccessKeyID, c.SecretAccessKey, ""), nil
	default:
		return credentials.NewEnvAWS(), nil
	}
}

// NewS3 returns a remote stored in an S3 bucket.
func NewS3(opts S3Options) (*Bucket, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 remote needs a bucket")
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultS3Endpoint
	}
	creds, err := opts.credentials()
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: !opts.Insecure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &Bucket{
		objects: &s3Objects{client: client, bucket: opts.Bucket},
		name:    "s3://" + opts.Bucket,
	}, nil
}

type s3Objects struct {
	client *minio.Client
	bucket string
}

func (s *s3Objects) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	return data, nil
}

func (s *s3Objects) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *s3Objects) mapErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("failed to get %s: %w", key, err)
}
