package service

import (
	"context"
	"net/url"
	"time"

	"phynetix_backend/internal/config"
	"phynetix_backend/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageService 选项配图的对象存储出口。库里只存对象键，出库时换成
// 限时预签名 URL。Minio 未配置时服务照常跑，配图保持对象键原样返回。
type StorageService struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewStorageService(cfg *config.Config) *StorageService {
	s := &StorageService{
		bucket: cfg.Storage.MinioBucket,
		expiry: time.Duration(cfg.Storage.URLExpiry) * time.Minute,
	}
	if s.expiry <= 0 {
		s.expiry = 30 * time.Minute
	}

	if cfg.Storage.MinioEndpoint == "" {
		logger.Log.Warn("Minio not configured, question images will be served as raw object keys")
		return s
	}

	client, err := minio.New(cfg.Storage.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.MinioAccessID, cfg.Storage.MinioSecret, ""),
		Secure: cfg.Storage.MinioUseSSL,
	})
	if err != nil {
		logger.Log.Error("Failed to initialize Minio client", zap.Error(err))
		return s
	}
	s.client = client
	return s
}

// PresignImage 对象键换预签名 GET URL。签不出来时退回原始键，
// 宁可配图裂掉也不让整套题打不开。
func (s *StorageService) PresignImage(ctx context.Context, objectKey string) string {
	if objectKey == "" || s.client == nil {
		return objectKey
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.expiry, url.Values{})
	if err != nil {
		logger.Log.Warn("Failed to presign object",
			zap.String("object", objectKey), zap.Error(err))
		return objectKey
	}
	return signed.String()
}
