package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lms_backend/internal/config"
	"lms_backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider 文件存储抽象：头像、课件 PDF 等
type StorageProvider interface {
	Upload(ctx context.Context, file *multipart.FileHeader, dir string) (string, error)
	Delete(ctx context.Context, url string) error
}

func NewStorageProvider(cfg *config.StorageConfig) (StorageProvider, error) {
	switch cfg.Type {
	case "minio":
		return newMinioStorage(cfg)
	case "local", "":
		return &localStorage{basePath: cfg.LocalPath}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func objectName(dir, filename string) string {
	ext := filepath.Ext(filename)
	return fmt.Sprintf("%s/%s%s", dir, uuid.New().String(), ext)
}

type localStorage struct {
	basePath string
}

func (s *localStorage) Upload(_ context.Context, file *multipart.FileHeader, dir string) (string, error) {
	name := objectName(dir, file.Filename)
	fullPath := filepath.Join(s.basePath, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return "/uploads/" + name, nil
}

func (s *localStorage) Delete(_ context.Context, url string) error {
	name := strings.TrimPrefix(url, "/uploads/")
	if name == url {
		// 不是本存储签发的地址，忽略
		return nil
	}
	return os.Remove(filepath.Join(s.basePath, name))
}

type minioStorage struct {
	client *minio.Client
	bucket string
}

func newMinioStorage(cfg *config.StorageConfig) (*minioStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		logger.Log.Info("created storage bucket", zap.String("bucket", cfg.MinioBucket))
	}

	return &minioStorage{client: client, bucket: cfg.MinioBucket}, nil
}

func (s *minioStorage) Upload(ctx context.Context, file *multipart.FileHeader, dir string) (string, error) {
	name := objectName(dir, file.Filename)

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	_, err = s.client.PutObject(ctx, s.bucket, name, src, file.Size, minio.PutObjectOptions{
		ContentType: file.Header.Get("Content-Type"),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/%s/%s", s.bucket, name), nil
}

func (s *minioStorage) Delete(ctx context.Context, url string) error {
	name := strings.TrimPrefix(url, "/"+s.bucket+"/")
	if name == url {
		return nil
	}
	return s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})
}
