package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// presignTTL is how long listed URLs stay valid. The album is re-listed on
// every page load, so an hour is plenty.
const presignTTL = time.Hour

// S3 stores files under key prefixes of one bucket. Listed files carry
// presigned GET URLs because the bucket itself stays private.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3 loads the default AWS credential chain for region.
func NewS3(ctx context.Context, region, bucket string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: loading AWS config: %w", err)
	}
	return NewS3FromClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3FromClient wraps an existing client.
func NewS3FromClient(client *s3.Client, bucket string) *S3 {
	return &S3{client: client, presign: s3.NewPresignClient(client), bucket: bucket}
}

func prefixKey(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return ""
	}
	return folder + "/"
}

// List returns the objects directly under the folder prefix.
func (p *S3) List(ctx context.Context, folder string) ([]File, error) {
	prefix := prefixKey(folder)
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var files []File
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			f, err := p.file(ctx, key, "")
			if err != nil {
				return nil, err
			}
			f.CreatedAt = aws.ToTime(obj.LastModified)
			files = append(files, f)
		}
	}
	return files, nil
}

// Upload puts r at folder/name.
func (p *S3) Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (*File, error) {
	key := prefixKey(folder) + name
	contentType = contentTypeFor(name, contentType)

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: s3 upload %s: %w", key, err)
	}

	f, err := p.file(ctx, key, contentType)
	if err != nil {
		return nil, err
	}
	f.CreatedAt = time.Now().UTC()
	return &f, nil
}

func (p *S3) file(ctx context.Context, key, contentType string) (File, error) {
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return File{}, fmt.Errorf("storage: presigning %s: %w", key, err)
	}

	name := path.Base(key)
	return File{
		ID:           key,
		Name:         name,
		MimeType:     contentTypeFor(name, contentType),
		ThumbnailURL: req.URL,
		ViewURL:      req.URL,
		DownloadURL:  req.URL,
	}, nil
}
