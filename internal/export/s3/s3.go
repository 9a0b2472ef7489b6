// Package s3 writes period summaries as JSON objects to S3 or any
// S3-compatible store.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"budgeteer/internal/core"
)

// putter is the slice of *s3.Client the exporter uses.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

type Exporter struct {
	client putter
	bucket string
	prefix string
	now    func() time.Time
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// New builds a client from cfg. Static credentials are used when given,
// otherwise the default AWS chain. A custom Endpoint switches to path-style
// addressing for MinIO and friends.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newExporter(client, cfg.Bucket, cfg.Prefix), nil
}

func newExporter(client putter, bucket, prefix string) *Exporter {
	return &Exporter{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

func (e *Exporter) Name() string { return "s3" }

// Key is {prefix}/{owner}/{YYYY-MM}.json.
func (e *Exporter) Key(ownerID string, p core.Period) string {
	return path.Join(e.prefix, ownerID, p.String()+".json")
}

type report struct {
	OwnerID     string       `json:"ownerId"`
	Period      string       `json:"period"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Rows        []reportRow  `json:"rows"`
	Totals      reportTotals `json:"totals"`
}

type reportRow struct {
	CategoryID string     `json:"categoryId"`
	Name       string     `json:"name"`
	Color      string     `json:"color,omitempty"`
	Budget     core.Money `json:"budget"`
	Spent      core.Money `json:"spent"`
	Remaining  core.Money `json:"remaining"`
	Over       bool       `json:"over"`
}

type reportTotals struct {
	Budget    core.Money `json:"totalBudget"`
	Spent     core.Money `json:"totalSpent"`
	Remaining core.Money `json:"totalRemaining"`
}

func (e *Exporter) encode(ownerID string, s core.PeriodSummary) ([]byte, error) {
	r := report{
		OwnerID:     ownerID,
		Period:      s.Period.String(),
		GeneratedAt: e.now().UTC(),
		Rows:        make([]reportRow, 0, len(s.Rows)),
		Totals:      reportTotals{Budget: s.Totals.Budget, Spent: s.Totals.Spent, Remaining: s.Totals.Remaining},
	}
	for _, row := range s.Rows {
		r.Rows = append(r.Rows, reportRow{
			CategoryID: row.CategoryID,
			Name:       row.Name,
			Color:      row.Color,
			Budget:     row.Budget,
			Spent:      row.Spent,
			Remaining:  row.Remaining,
			Over:       row.Over(),
		})
	}
	return json.MarshalIndent(r, "", "  ")
}

// Export overwrites the object for the period, so replays are harmless.
func (e *Exporter) Export(ctx context.Context, ownerID string, s core.PeriodSummary) error {
	body, err := e.encode(ownerID, s)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	key := e.Key(ownerID, s.Period)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", e.bucket, key, err)
	}
	return nil
}
