package filestore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/civicwatch/backend/core/logger"
)

// S3Configuration contains the configuration for the S3 filestore
type S3Configuration struct {
	AWSRegion     string `env:"AWS_REGION,optional" description:"the AWS region for the photo bucket"`
	AWSBucketName string `env:"AWS_BUCKET_NAME,optional" description:"the AWS bucket to store photos in"`
	AccessID      string `env:"AWS_ACCESS_ID,optional" description:"the AWS access id"`
	AccessKey     string `env:"AWS_ACCESS_KEY,optional" description:"the AWS access key"`
	KeyPrefix     string `env:"AWS_KEY_PREFIX,default uploads/" description:"key prefix within the bucket"`
	PublicURL     string `env:"AWS_PUBLIC_URL,optional" description:"public base URL the bucket is served from"`
}

// S3 is the implementation of the filestore Driver for AWS S3
type S3 struct {
	config      aws.Config
	bucket      string
	baseKeyName string
	publicURL   string
}

// NewS3 returns a new S3 filestore
func NewS3(cfg S3Configuration) (*S3, error) {
	if cfg.AWSBucketName == "" {
		return nil, fmt.Errorf("AWSBucketName must not be empty")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		context.TODO(),
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessID, cfg.AccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	logger.Default().Debugln("filestore S3 enabled")
	return &S3{
		config:      awsCfg,
		bucket:      cfg.AWSBucketName,
		baseKeyName: cfg.KeyPrefix,
		publicURL:   strings.TrimSuffix(cfg.PublicURL, "/"),
	}, nil
}

// Put uploads the blob into a new key object
func (s *S3) Put(key string, r io.Reader) error {
	client := s3.NewFromConfig(s.config)
	_, err := client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.baseKeyName + key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Delete deletes the key object
func (s *S3) Delete(key string) error {
	logger.Default().Infoln("deleting", s.baseKeyName+key)
	client := s3.NewFromConfig(s.config)
	_, err := client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.baseKeyName + key),
	})
	if err != nil {
		logger.Default().Error("could not delete ", s.baseKeyName+key)
		return err
	}
	return nil
}

// PublicPath returns the public URL for the key
func (s *S3) PublicPath(key string) string {
	return s.publicURL + "/" + s.baseKeyName + key
}
