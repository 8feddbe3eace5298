package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MediaArchive — хранилище исходных голосовых и фото. Используется
// best effort: ошибка архивации не должна ломать обработку сообщения.
type MediaArchive interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
}

type s3Archive struct {
	client *minio.Client
	bucket string
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

func NewS3Archive(cfg S3Config) (MediaArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: true,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	// проверим, что бакет существует
	exists, err := client.BucketExists(context.Background(), cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	return &s3Archive{client: client, bucket: cfg.Bucket}, nil
}

func (a *s3Archive) Save(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

type nopArchive struct{}

// NewNopArchive — заглушка, когда архив выключен конфигом.
func NewNopArchive() MediaArchive { return nopArchive{} }

func (nopArchive) Save(context.Context, string, []byte, string) error { return nil }
