package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	appconfig "meetclub_go/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// ReportArchiveService uploads import reports to S3 so every bulk
// reconciliation run leaves an auditable artifact. When no bucket is
// configured the service degrades to a no-op.
type ReportArchiveService struct {
	awsConfig aws.Config
	bucket    string
	loadErr   error
}

func NewReportArchiveService() *ReportArchiveService {
	bucket := appconfig.AppConfig.ReportBucket
	if bucket == "" {
		return &ReportArchiveService{}
	}

	cfg, err := awscfg.LoadDefaultConfig(context.Background(),
		awscfg.WithRegion(appconfig.AppConfig.AWSRegion))
	if err != nil {
		logrus.WithError(err).Warn("Failed to load AWS config; report archiving disabled")
		return &ReportArchiveService{loadErr: err}
	}
	return &ReportArchiveService{awsConfig: cfg, bucket: bucket}
}

// Enabled reports whether uploads will actually happen.
func (ras *ReportArchiveService) Enabled() bool {
	return ras != nil && ras.bucket != "" && ras.loadErr == nil
}

// UploadReport stores the report JSON under import-reports/<date>/<job>.json
// and returns the object key.
func (ras *ReportArchiveService) UploadReport(report *ImportReport) (string, error) {
	if !ras.Enabled() {
		return "", nil
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	key := fmt.Sprintf("import-reports/%s/%s.json",
		time.Now().Format("2006-01-02"), report.JobID)

	client := s3.NewFromConfig(ras.awsConfig)
	_, err = client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(ras.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"job_id": report.JobID,
		"s3_key": key,
	}).Info("Import report archived")
	return key, nil
}
