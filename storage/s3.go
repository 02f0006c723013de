package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"crypto-pulse/config"
)

// NewS3Client erstellt einen S3-Client für das Artefakt-Archiv
// (S3-kompatibler Endpunkt, z.B. Strato HiDrive oder MinIO).
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.ArchiveS3URL,
				SigningRegion:     cfg.ArchiveS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.ArchiveS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.ArchiveS3Key, cfg.ArchiveS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// ArtifactArchive legt verarbeitete Roh-Artefakte tagesweise im S3-Bucket ab.
type ArtifactArchive struct {
	Client *s3.Client
	Bucket string
}

// NewArtifactArchive erstellt ein neues ArtifactArchive.
func NewArtifactArchive(client *s3.Client, bucket string) *ArtifactArchive {
	return &ArtifactArchive{Client: client, Bucket: bucket}
}

// Archive lädt ein Artefakt unter articles/<datum>/<name> hoch.
func (a *ArtifactArchive) Archive(ctx context.Context, filename string, data []byte) error {
	key := fmt.Sprintf("articles/%s/%s", time.Now().UTC().Format("2006-01-02"), filename)
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &a.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed for %s: %w", key, err)
	}
	return nil
}
