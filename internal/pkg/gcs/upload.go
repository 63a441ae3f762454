package gcs

import (
	"context"
	"fmt"
	"log/slog"

	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/service/interfaces"

	"cloud.google.com/go/storage"
)

// GCSClient archives sweep reports as JSON objects under one folder.
type GCSClient struct {
	Client     *storage.Client
	BucketName string
	FolderName string
}

var _ interfaces.GcsInterface = (*GCSClient)(nil)

func NewGCSClient(ctx context.Context, bucketName, folderName string) (*GCSClient, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSClient{
		Client:     client,
		BucketName: bucketName,
		FolderName: folderName,
	}, nil
}

func (g *GCSClient) Close() error {
	if g.Client == nil {
		return nil
	}
	if err := g.Client.Close(); err != nil {
		logger.Error(log_messages.ErrorClosingGCSClient, err)
		return err
	}
	return nil
}

// Upload writes data to <folder>/<objectName>. Existing objects are never overwritten.
func (g *GCSClient) Upload(ctx context.Context, objectName string, data []byte) error {
	fullName := objectName
	if g.FolderName != "" {
		fullName = fmt.Sprintf("%s/%s", g.FolderName, objectName)
	}
	object := g.Client.Bucket(g.BucketName).Object(fullName)

	writer := object.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		logger.CtxError(ctx, log_messages.ErrorUploadingToGCSBucket, err)
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		logger.CtxError(ctx, log_messages.ErrorClosingGCSWriter, err)
		return err
	}
	logger.CtxInfo(ctx, log_messages.UploadedToGCSBucket, slog.String("objectName", fullName))
	return nil
}
