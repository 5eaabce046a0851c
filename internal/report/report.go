// Package report builds the daily analytics summary and ships it to S3.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/stats"
)

// CrowdSource lists the readings taken in a window
type CrowdSource interface {
	Since(ctx context.Context, from, to time.Time) ([]models.CrowdReading, error)
}

// AlertCounter counts alerts per type raised in a window
type AlertCounter interface {
	CountByType(ctx context.Context, from, to time.Time) (map[string]int, error)
}

// FleetStats returns the current fleet overview
type FleetStats interface {
	Stats(ctx context.Context) (*models.VehicleStats, error)
}

// Uploader stores a finished report under key
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// Reporter builds one day's report, logs it and uploads it when an uploader is set
type Reporter struct {
	crowd    CrowdSource
	alerts   AlertCounter
	fleet    FleetStats
	uploader Uploader
	log      logger.Logger
}

// NewReporter creates a reporter. uploader may be nil.
func NewReporter(crowd CrowdSource, alerts AlertCounter, fleet FleetStats, uploader Uploader, log logger.Logger) *Reporter {
	return &Reporter{crowd: crowd, alerts: alerts, fleet: fleet, uploader: uploader, log: log.With("component", "report")}
}

// Window returns the previous calendar day relative to now, in now's location
func Window(now time.Time) (from, to time.Time) {
	y, m, d := now.Date()
	to = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return to.AddDate(0, 0, -1), to
}

// Build aggregates the day starting at from
func (r *Reporter) Build(ctx context.Context, from, to time.Time, now time.Time) (*models.DailyStats, error) {
	readings, err := r.crowd.Since(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load crowd readings: %w", err)
	}
	alerts, err := r.alerts.CountByType(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	fleet, err := r.fleet.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fleet stats: %w", err)
	}

	return &models.DailyStats{
		Date:     from.Format("2006-01-02"),
		Vehicles: *fleet,
		Crowd:    summarize(readings),
		Alerts:   alerts,
		Built:    now,
	}, nil
}

func summarize(readings []models.CrowdReading) models.DailyCrowd {
	day := models.DailyCrowd{TotalReadings: len(readings)}
	if len(readings) == 0 {
		return day
	}

	percentages := make([]float64, 0, len(readings))
	for _, r := range readings {
		percentages = append(percentages, float64(r.Percentage))
		if r.Occupancy.Current > day.PeakCrowd {
			day.PeakCrowd = r.Occupancy.Current
		}
		if r.Risk.Level == models.RiskCritical {
			day.CriticalEvents++
		}
	}
	day.AverageCrowd = math.Round(stats.Mean(percentages)*10) / 10
	return day
}

// Run builds yesterday's report relative to now and ships it
func (r *Reporter) Run(ctx context.Context, now time.Time) (*models.DailyStats, error) {
	from, to := Window(now)
	daily, err := r.Build(ctx, from, to, now)
	if err != nil {
		return nil, err
	}

	r.log.Info("Daily analytics report generated",
		"date", daily.Date,
		"readings", daily.Crowd.TotalReadings,
		"criticalEvents", daily.Crowd.CriticalEvents,
		"alerts", daily.Alerts)

	if r.uploader == nil {
		return daily, nil
	}

	body, err := json.MarshalIndent(daily, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	key := "daily/" + daily.Date + ".json"
	if err := r.uploader.Upload(ctx, key, body); err != nil {
		return daily, err
	}
	r.log.Info("Daily report uploaded", "key", key)
	return daily, nil
}

// PutObjectAPI is the slice of the S3 client the uploader uses
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader writes reports to a bucket under an optional prefix
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Uploader loads the default AWS credential chain for region
func NewS3Uploader(ctx context.Context, region, bucket, prefix string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewS3UploaderWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3UploaderWithClient wraps an existing client
func NewS3UploaderWithClient(client PutObjectAPI, bucket, prefix string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, prefix: prefix}
}

// Upload implements Uploader
func (u *S3Uploader) Upload(ctx context.Context, key string, body []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(path.Join(u.prefix, key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("unable to upload report to s3://%s: %w", u.bucket, err)
	}
	return nil
}
