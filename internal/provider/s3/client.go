// Package s3 stores saves as objects in an S3-compatible bucket under
// {prefix}/{owner}/{slot}.save.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"savesync/internal/provider"
)

const name = "s3"

// Options configures the backend. Endpoint overrides the AWS endpoint for
// S3-compatible services; static credentials are used when both key fields
// are set, otherwise the default credential chain applies.
type Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
}

// Client implements provider.Client over the AWS SDK.
type Client struct {
	api    *s3.Client
	bucket string
	prefix string
}

// New loads AWS configuration and constructs the backend. No network
// traffic happens here; use TestConnection for that.
func New(ctx context.Context, opts Options) (*Client, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, provider.Wrap(provider.ErrAuth, name, "configure", "bucket is required", nil)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(strings.TrimSpace(opts.Region)),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, provider.Wrap(provider.ErrAuth, name, "configure", "load AWS config", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	prefix := strings.Trim(strings.TrimSpace(opts.KeyPrefix), "/")
	if prefix == "" {
		prefix = "saves"
	}
	return &Client{api: api, bucket: bucket, prefix: prefix}, nil
}

func (c *Client) Name() string { return name }

func (c *Client) key(ownerID string, slot int) string {
	return path.Join(c.prefix, ownerID, fmt.Sprintf("%d.save", slot))
}

func (c *Client) Save(ctx context.Context, ownerID string, slot int, data []byte) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.key(ownerID, slot)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return translateError(err, "save")
	}
	return nil
}

func (c *Client) Load(ctx context.Context, ownerID string, slot int) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(ownerID, slot)),
	})
	if err != nil {
		return nil, translateError(err, "load")
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, provider.Wrap(provider.ErrUnavailable, name, "load", "read object body", err)
	}
	return data, nil
}

func (c *Client) Delete(ctx context.Context, ownerID string, slot int) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(ownerID, slot)),
	})
	if err != nil {
		return translateError(err, "delete")
	}
	return nil
}

func (c *Client) List(ctx context.Context, ownerID string) ([]provider.SlotInfo, error) {
	prefix := path.Join(c.prefix, ownerID) + "/"
	var out []provider.SlotInfo

	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translateError(err, "list")
		}
		for _, object := range page.Contents {
			slot, ok := slotFromKey(aws.ToString(object.Key))
			if !ok {
				continue
			}
			info := provider.SlotInfo{Slot: slot, Size: aws.ToInt64(object.Size)}
			if object.LastModified != nil {
				info.UpdatedAt = *object.LastModified
			}
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return translateError(err, "test connection")
	}
	return nil
}

func (c *Client) Close() error { return nil }

func slotFromKey(key string) (int, bool) {
	base := path.Base(key)
	base = strings.TrimSuffix(base, ".save")
	slot, err := strconv.Atoi(base)
	if err != nil {
		return 0, false
	}
	return slot, true
}

// translateError maps SDK failures onto the provider sentinel taxonomy.
func translateError(err error, operation string) error {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return provider.Wrap(provider.ErrNotFound, name, operation, "object missing", err)
	}
	var noSuchBucket *s3types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return provider.Wrap(provider.ErrNotFound, name, operation, "bucket missing", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return provider.Wrap(provider.ErrAuth, name, operation, apiErr.ErrorCode(), err)
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return provider.Wrap(provider.ErrNotFound, name, operation, apiErr.ErrorCode(), err)
		case "RequestTimeout", "SlowDown":
			return provider.Wrap(provider.ErrTimeout, name, operation, apiErr.ErrorCode(), err)
		}
	}
	return provider.Wrap(provider.ErrUnavailable, name, operation, "request failed", err)
}
