// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datasets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BucketClient moves dataset bundles between a GCS bucket and the local
// dataset directories. Teams share raw datasets through the bucket; the
// pull command hydrates a fresh checkout.
type BucketClient struct {
	storageClient *storage.Client
	ProjectID     string
	BucketName    string
	logger        *slog.Logger
}

// NewBucketClient creates a client authenticated with a service account
// key file.
func NewBucketClient(ctx context.Context, projectID, bucketName, saKeyPath string, logger *slog.Logger) (*BucketClient, error) {
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
	}

	storageClient, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BucketClient{
		storageClient: storageClient,
		ProjectID:     projectID,
		BucketName:    bucketName,
		logger:        logger,
	}, nil
}

// Close releases the underlying storage client.
func (c *BucketClient) Close() error {
	return c.storageClient.Close()
}

// DownloadObject downloads one object to a local path, creating parent
// directories as needed.
func (c *BucketClient) DownloadObject(ctx context.Context, objectPath, localPath string) error {
	reader, err := c.storageClient.Bucket(c.BucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to open GCS object %s: %w", objectPath, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}
	localFile, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create the local file %s: %w", localPath, err)
	}
	defer localFile.Close()

	if _, err := io.Copy(localFile, reader); err != nil {
		return fmt.Errorf("failed to copy GCS object %s to %s: %w", objectPath, localPath, err)
	}
	if err := localFile.Close(); err != nil {
		return fmt.Errorf("failed to close local file %s: %w", localPath, err)
	}

	c.logger.Info("Downloaded dataset object",
		"object", fmt.Sprintf("gs://%s/%s", c.BucketName, objectPath),
		"local", localPath,
	)
	return nil
}

// DownloadPrefix downloads every object under a prefix into localDir
// and returns the number of files written.
func (c *BucketClient) DownloadPrefix(ctx context.Context, prefix, localDir string) (int, error) {
	it := c.storageClient.Bucket(c.BucketName).Objects(ctx, &storage.Query{Prefix: prefix})

	count := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to list GCS objects under %s: %w", prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		localPath := filepath.Join(localDir, filepath.Base(attrs.Name))
		if err := c.DownloadObject(ctx, attrs.Name, localPath); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// UploadFile uploads a local file to the bucket.
func (c *BucketClient) UploadFile(ctx context.Context, localPath, objectPath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open the local file: %s: %w", localPath, err)
	}
	defer localFile.Close()

	obj := c.storageClient.Bucket(c.BucketName).Object(objectPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/octet-stream"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, localFile); err != nil {
		return fmt.Errorf("failed to copy local file %s to GCS object %s: %w", localPath, objectPath, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", objectPath, err)
	}

	c.logger.Info("Uploaded dataset object",
		"local", localPath,
		"object", fmt.Sprintf("gs://%s/%s", c.BucketName, objectPath),
	)
	return nil
}

// UploadDir uploads every regular file directly inside localDir.
func (c *BucketClient) UploadDir(ctx context.Context, localDir, gcsPrefix string) error {
	return filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			gcsPath := filepath.Join(gcsPrefix, info.Name())
			return c.UploadFile(ctx, path, gcsPath)
		}
		return nil
	})
}
