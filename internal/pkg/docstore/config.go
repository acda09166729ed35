package docstore

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
)

// Config holds document storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
	LocalRoot       string
}

// LoadConfig loads storage configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "ap-south-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetBool("DOCSTORE_ENABLED", false),
		LocalRoot:       env.GetEnv("DOCSTORE_LOCAL_ROOT", "./uploads"),
	}

	if cfg.Enabled {
		if cfg.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the document store is enabled")
		}
		if cfg.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the document store is enabled")
		}
		if cfg.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the document store is enabled")
		}
	}
	return cfg, nil
}

// KYCObjectKey builds the object key of a KYC document:
// kyc/<providerId>/<field>/<uuid><ext>
func KYCObjectKey(providerID uint, field, ext string) string {
	field = strings.NewReplacer("/", "_", "..", "_").Replace(field)
	return fmt.Sprintf("kyc/%d/%s/%s%s", providerID, field, uuid.New().String(), strings.ToLower(ext))
}

// PreviewKey is the object key of the WebP preview of a document.
func PreviewKey(objectKey string) string {
	return "previews/" + strings.TrimSuffix(objectKey, path.Ext(objectKey)) + ".webp"
}
