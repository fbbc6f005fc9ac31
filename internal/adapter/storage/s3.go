package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/fierylion/pg-backups/internal/config"
	"github.com/fierylion/pg-backups/internal/domain"
)

// S3Backend keeps backup folders under <prefix>/<folderId>/<artifact> keys.
type S3Backend struct {
	client        *s3.Client
	uploader      *s3manager.Uploader
	bucket        string
	prefix        string
	retentionDays int
}

var _ domain.Backend = (*S3Backend)(nil)

// A custom endpoint switches the client to path-style addressing.
func NewS3(ctx context.Context, cfg *appconfig.S3Config) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &S3Backend{
		client:        client,
		uploader:      s3manager.NewUploader(client),
		bucket:        cfg.Bucket,
		prefix:        strings.Trim(cfg.Prefix, "/"),
		retentionDays: cfg.RetentionDays,
	}, nil
}

func (s *S3Backend) Kind() domain.DestinationKind { return domain.DestinationS3 }

func (s *S3Backend) Name() string { return "s3" }

func (s *S3Backend) RetentionDays() int { return s.retentionDays }

func (s *S3Backend) folderKey(folderID string) string {
	return path.Join(s.prefix, folderID) + "/"
}

// basePrefix is the folder-level listing prefix. An empty configured prefix
// must stay empty rather than become "/", which matches nothing folderKey
// writes.
func (s *S3Backend) basePrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

func (s *S3Backend) ListFolders(ctx context.Context) ([]string, error) {
	var folders []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.basePrefix()),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 folders: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			id := path.Base(strings.TrimSuffix(*cp.Prefix, "/"))
			if domain.IsFolderName(id) {
				folders = append(folders, id)
			}
		}
	}

	domain.SortFolderIDs(folders)
	return folders, nil
}

func (s *S3Backend) ListArtifacts(ctx context.Context, folderID string) ([]domain.Artifact, error) {
	var artifacts []domain.Artifact

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.folderKey(folderID)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 folder %s: %w", folderID, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}
			if a, ok := domain.ParseArtifact(path.Base(*obj.Key), size); ok {
				artifacts = append(artifacts, a)
			}
		}
	}

	return artifacts, nil
}

func (s *S3Backend) PushFolder(ctx context.Context, localPath string, folderID string) error {
	entries, err := os.ReadDir(localPath)
	if err != nil {
		return fmt.Errorf("failed to read source folder: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := s.putFile(ctx, filepath.Join(localPath, entry.Name()), path.Join(s.prefix, folderID, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3Backend) putFile(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// FetchFolder mirrors the remote folder into destRoot/folderID.
func (s *S3Backend) FetchFolder(ctx context.Context, folderID string, destRoot string) (string, error) {
	if !domain.IsFolderName(folderID) {
		return "", fmt.Errorf("refusing to fetch %q: not a backup folder name", folderID)
	}
	destPath := filepath.Join(destRoot, folderID)
	if err := os.MkdirAll(destPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create dest folder: %w", err)
	}

	var fetched int
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.folderKey(folderID)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list S3 folder %s: %w", folderID, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			if err := s.getFile(ctx, *obj.Key, filepath.Join(destPath, path.Base(*obj.Key))); err != nil {
				return "", err
			}
			fetched++
		}
	}

	if fetched == 0 {
		return "", fmt.Errorf("folder %s not found in bucket %s", folderID, s.bucket)
	}
	return destPath, nil
}

func (s *S3Backend) getFile(ctx context.Context, key, destPath string) error {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer output.Body.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest: %w", err)
	}
	defer dest.Close()

	if _, err := dest.ReadFrom(output.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return nil
}

// DeleteFolder removes every object under the folder's key prefix, in
// batches of up to 1000, the DeleteObjects limit.
func (s *S3Backend) DeleteFolder(ctx context.Context, folderID string) error {
	if !domain.IsFolderName(folderID) {
		return fmt.Errorf("refusing to delete %q: not a backup folder name", folderID)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.folderKey(folderID)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list S3 folder %s: %w", folderID, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	for len(keys) > 0 {
		batch := keys
		if len(batch) > 1000 {
			batch = keys[:1000]
		}
		keys = keys[len(batch):]

		objects := make([]s3types.ObjectIdentifier, len(batch))
		for i := range batch {
			objects[i] = s3types.ObjectIdentifier{Key: aws.String(batch[i])}
		}
		output, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete S3 folder %s: %w", folderID, err)
		}
		// Quiet mode still reports per-key failures in the 200 response body.
		if len(output.Errors) > 0 {
			first := output.Errors[0]
			return fmt.Errorf("failed to delete %d object(s) in S3 folder %s, first %s: %s",
				len(output.Errors), folderID, aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	return nil
}

func (s *S3Backend) IsReachable(ctx context.Context) bool {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	return err == nil
}
