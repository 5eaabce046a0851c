package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
)

type fakeCrowd struct {
	readings []models.CrowdReading
	from, to time.Time
}

func (f *fakeCrowd) Since(_ context.Context, from, to time.Time) ([]models.CrowdReading, error) {
	f.from, f.to = from, to
	return f.readings, nil
}

type fakeAlerts map[string]int

func (f fakeAlerts) CountByType(context.Context, time.Time, time.Time) (map[string]int, error) {
	return f, nil
}

type fakeFleet struct{ err error }

func (f fakeFleet) Stats(context.Context) (*models.VehicleStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.VehicleStats{TotalVehicles: 2, OnTimeVehicles: 1, OnTimePerformance: 50}, nil
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func crowdReading(current, pct int, level models.RiskLevel) models.CrowdReading {
	return models.CrowdReading{
		Occupancy:  models.OccupancyReading{Current: current, Capacity: 300},
		Percentage: pct,
		Risk:       models.RiskAssessment{Level: level},
	}
}

func TestWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	from, to := Window(now)
	if !from.Equal(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Window() = %v..%v", from, to)
	}
}

func TestRunBuildsAndUploads(t *testing.T) {
	crowd := &fakeCrowd{readings: []models.CrowdReading{
		crowdReading(60, 20, models.RiskLow),
		crowdReading(285, 95, models.RiskCritical),
		crowdReading(150, 50, models.RiskMedium),
	}}
	s3c := &fakeS3{}
	r := NewReporter(crowd, fakeAlerts{"warning": 2}, fakeFleet{}, NewS3UploaderWithClient(s3c, "reports", "safecommute"), logger.Nop())

	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	daily, err := r.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if daily.Date != "2025-03-09" {
		t.Errorf("Date = %s", daily.Date)
	}
	if daily.Crowd.TotalReadings != 3 || daily.Crowd.PeakCrowd != 285 || daily.Crowd.CriticalEvents != 1 {
		t.Errorf("Crowd = %+v", daily.Crowd)
	}
	if daily.Crowd.AverageCrowd != 55 {
		t.Errorf("AverageCrowd = %v, want 55", daily.Crowd.AverageCrowd)
	}
	if daily.Alerts["warning"] != 2 || daily.Vehicles.OnTimePerformance != 50 {
		t.Errorf("daily = %+v", daily)
	}

	if s3c.input == nil {
		t.Fatal("report not uploaded")
	}
	if aws.ToString(s3c.input.Bucket) != "reports" || aws.ToString(s3c.input.Key) != "safecommute/daily/2025-03-09.json" {
		t.Errorf("uploaded to %s/%s", aws.ToString(s3c.input.Bucket), aws.ToString(s3c.input.Key))
	}
	var decoded models.DailyStats
	if err := json.Unmarshal(s3c.body, &decoded); err != nil || decoded.Date != "2025-03-09" {
		t.Errorf("uploaded body not a report: %v", err)
	}
}

func TestRunWithoutUploader(t *testing.T) {
	r := NewReporter(&fakeCrowd{}, fakeAlerts{}, fakeFleet{}, nil, logger.Nop())
	daily, err := r.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if daily.Crowd.TotalReadings != 0 || daily.Crowd.AverageCrowd != 0 {
		t.Errorf("empty day = %+v", daily.Crowd)
	}
}

func TestRunPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewReporter(&fakeCrowd{}, fakeAlerts{}, fakeFleet{err: boom}, nil, logger.Nop())
	if _, err := r.Run(context.Background(), time.Now()); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want boom", err)
	}

	s3c := &fakeS3{err: boom}
	r = NewReporter(&fakeCrowd{}, fakeAlerts{}, fakeFleet{}, NewS3UploaderWithClient(s3c, "b", ""), logger.Nop())
	if _, err := r.Run(context.Background(), time.Now()); !errors.Is(err, boom) {
		t.Errorf("upload error = %v, want boom", err)
	}
}
