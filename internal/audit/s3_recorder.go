package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"hr-auth-server/config"
	"hr-auth-server/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// s3API : часть s3.Client, которой пользуется рекордер
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Recorder складывает каждое событие отдельным JSON объектом:
// <prefix>/YYYY/MM/DD/<id>.json
type S3Recorder struct {
	client s3API
	bucket string
	prefix string
}

func NewS3Recorder(ctx context.Context, cfg *config.S3Config) (*S3Recorder, error) {
	var client *s3.Client

	if cfg.Local {
		client = s3.New(s3.Options{
			Region: cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				"minioadmin",
				"minioadmin",
				"",
			),
			BaseEndpoint: aws.String(cfg.Endpoint),
			UsePathStyle: true,
		})

		if err := createBucketIfNotExists(ctx, client, cfg.Bucket); err != nil {
			return nil, err
		}
	} else {
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, util.LogError("[S3Recorder] ошибка загрузки AWS config", err)
		}
		client = s3.NewFromConfig(awsCfg)
	}

	return newS3Recorder(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Recorder(client s3API, bucket, prefix string) *S3Recorder {
	return &S3Recorder{client: client, bucket: bucket, prefix: prefix}
}

// createBucketIfNotExists создает бакет если он не существует
func createBucketIfNotExists(ctx context.Context, client s3API, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return util.LogError("[S3Recorder] ошибка создания бакета", err)
	}

	zap.L().Info("[S3Recorder] бакет создан", zap.String("bucket", bucket))
	return nil
}

func (r *S3Recorder) Record(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.objectKey(event)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("[S3Recorder] не удалось записать событие %s: %w", event.ID, err)
	}
	return nil
}

func (r *S3Recorder) objectKey(event Event) string {
	return path.Join(r.prefix, event.OccurredAt.UTC().Format("2006/01/02"), event.ID+".json")
}
