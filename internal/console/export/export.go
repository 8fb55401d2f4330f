package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"

	"naimuAdmin/internal/console/listview"
)

// Snapshot is the serialised form of an export.
type Snapshot struct {
	Entity     string            `json:"entity"`
	Columns    []listview.Column `json:"columns"`
	Filters    map[string]string `json:"filters,omitempty"`
	Rows       []listview.Row    `json:"rows"`
	RowCount   int               `json:"rowCount"`
	ExportedAt time.Time         `json:"exportedAt"`
}

func marshal(set listview.ExportSet, now time.Time) ([]byte, error) {
	snap := Snapshot{
		Entity:     set.Entity,
		Columns:    set.Columns,
		Filters:    set.Filters,
		Rows:       set.Rows,
		RowCount:   len(set.Rows),
		ExportedAt: now.UTC(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal export %s: %w", set.Entity, err)
	}
	return data, nil
}

// S3Config describes an S3-compatible bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL is the base of returned links; defaults to the s3:// URI.
	PublicURL string
	Prefix    string
}

// S3Sink uploads export snapshots to S3-compatible storage.
type S3Sink struct {
	client s3iface.S3API
	cfg    S3Config
	now    func() time.Time
	newID  func() string
}

// NewS3Sink builds an S3 client from cfg.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("export: bucket is required")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("export: s3 session: %w", err)
	}
	return NewS3SinkWithClient(s3.New(sess), cfg), nil
}

// NewS3SinkWithClient wraps an existing S3 client.
func NewS3SinkWithClient(client s3iface.S3API, cfg S3Config) *S3Sink {
	if cfg.Prefix == "" {
		cfg.Prefix = "exports"
	}
	return &S3Sink{
		client: client,
		cfg:    cfg,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Key returns the object key of an export.
func (s *S3Sink) Key(entity, id string) string {
	return fmt.Sprintf("%s/%s/%s.json", strings.Trim(s.cfg.Prefix, "/"), entity, id)
}

// Export uploads set and returns a link to it.
func (s *S3Sink) Export(ctx context.Context, set listview.ExportSet) (string, error) {
	data, err := marshal(set, s.now())
	if err != nil {
		return "", err
	}
	key := s.Key(set.Entity, s.newID())
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload export to S3: %w", err)
	}
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + key, nil
	}
	return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key), nil
}

// InlineSink returns the snapshot JSON itself instead of a link.
type InlineSink struct {
	now func() time.Time
}

// NewInlineSink constructs an InlineSink.
func NewInlineSink() *InlineSink {
	return &InlineSink{now: time.Now}
}

func (s *InlineSink) Export(_ context.Context, set listview.ExportSet) (string, error) {
	data, err := marshal(set, s.now())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
