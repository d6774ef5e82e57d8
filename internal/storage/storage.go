// Package storage はプロフィール画像のオブジェクトストレージ操作を提供する。
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore はオブジェクトストレージのインターフェース。
type ObjectStore interface {
	// Put はオブジェクトを保存し、公開URLを返す。
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	// Delete は保存済みURLが指すオブジェクトを削除する。
	// プロフィール画像の差し替え時に、新URLのコミット前に呼ばれる。
	Delete(ctx context.Context, objectURL string) error
}

// S3API はS3Storeが必要とするS3クライアント操作の部分集合。
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store はAmazon S3を使用したObjectStore実装。
type S3Store struct {
	client S3API
	bucket string
	region string
}

// NewS3Store はS3Storeを生成する。
func NewS3Store(client S3API, bucket, region string) *S3Store {
	return &S3Store{client: client, bucket: bucket, region: region}
}

// Put はオブジェクトをアップロードし、公開URLを返す。
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// Delete は保存済みURLが指すオブジェクトを削除する。
func (s *S3Store) Delete(ctx context.Context, objectURL string) error {
	key, err := keyFromURL(objectURL)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// keyFromURL は公開URLからオブジェクトキーを取り出す。
func keyFromURL(objectURL string) (string, error) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse object URL: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("object URL has no key: %s", objectURL)
	}
	return key, nil
}

// compile-time interface check
var _ ObjectStore = (*S3Store)(nil)
