package retrieval

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bowerhall/mira/internal/logger"
)

// LoadDir reads every .md and .txt file under dir as one document. A document
// is tagged with a domain when its path contains a known domain name, e.g.
// knowledge/Yachts/prices.md.
func LoadDir(dir string) ([]Document, error) {
	var docs []Document

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isKnowledgeFile(path) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		docs = append(docs, Document{
			Name:    rel,
			Domain:  domainFromPath(rel),
			Content: strings.TrimSpace(string(data)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load knowledge dir: %w", err)
	}

	logger.Info("knowledge base loaded", "source", dir, "documents", len(docs))
	return docs, nil
}

// BucketConfig points at an object-store bucket holding the knowledge base.
type BucketConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// LoadBucket pulls every knowledge object from the bucket at startup. The
// object key plays the same role as the relative path in LoadDir.
func LoadBucket(ctx context.Context, cfg BucketConfig) ([]Document, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	var docs []Document
	for obj := range mc.ListObjects(ctx, cfg.Bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", cfg.Bucket, obj.Err)
		}
		if !isKnowledgeFile(obj.Key) {
			continue
		}

		reader, err := mc.GetObject(ctx, cfg.Bucket, obj.Key, minio.GetObjectOptions{})
		if err != nil {
			return nil, fmt.Errorf("get object %s: %w", obj.Key, err)
		}
		data, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return nil, fmt.Errorf("read object %s: %w", obj.Key, err)
		}

		docs = append(docs, Document{
			Name:    obj.Key,
			Domain:  domainFromPath(obj.Key),
			Content: strings.TrimSpace(string(data)),
		})
	}

	logger.Info("knowledge base loaded", "source", "bucket:"+cfg.Bucket, "documents", len(docs))
	return docs, nil
}

func isKnowledgeFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		return true
	default:
		return false
	}
}

func domainFromPath(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if _, ok := domainKeywords[part]; ok {
			return part
		}
	}
	return ""
}
