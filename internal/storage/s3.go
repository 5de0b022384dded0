package storage

import (
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

type S3Provider struct {
	api *s3.S3
}

func NewS3Provider(sess *session.Session) *S3Provider {
	return &S3Provider{api: s3.New(sess)}
}

func (s *S3Provider) List(bucket, prefix string) ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	err := s.api.ListObjectsV2Pages(input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, item := range page.Contents {
			keys = append(keys, *item.Key)
		}
		return true
	})
	return keys, err
}

func (s *S3Provider) Get(bucket, key string) (*FileObject, error) {
	out, err := s.api.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, err
	}
	return &FileObject{
		Body:          out.Body,
		ContentType:   aws.StringValue(out.ContentType),
		ContentLength: aws.Int64Value(out.ContentLength),
		LastModified:  aws.TimeValue(out.LastModified),
	}, nil
}

func (s *S3Provider) Put(bucket, key string, body io.ReadSeeker, contentType, cacheControl string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if cacheControl != "" {
		input.CacheControl = aws.String(cacheControl)
	}
	_, err := s.api.PutObject(input)
	return err
}

func (s *S3Provider) Delete(bucket, key string) error {
	_, err := s.api.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Provider) Exists(bucket, key string) (bool, error) {
	_, err := s.api.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HeadObject reports "NotFound", GetObject reports "NoSuchKey".
func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
