package service

import (
	"context"
	"errors"
	"path"
	"regexp"
	"time"

	"github.com/kubev2v/document-extractor/internal/analysis"
	"github.com/kubev2v/document-extractor/internal/notification"
	"github.com/kubev2v/document-extractor/pkg/metrics"
	"github.com/kubev2v/document-extractor/pkg/requestid"
	"go.uber.org/zap"
)

// Textract only accepts job tags made of these characters.
var jobTagPattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-:]{1,64}$`)

type Uploader interface {
	Upload(ctx context.Context, localPath, bucket, key string) error
}

type JobSubmitter interface {
	Submit(ctx context.Context, req analysis.SubmitRequest) (string, error)
}

type CompletionAwaiter interface {
	AwaitCompletion(ctx context.Context, jobID string) error
}

type ResultFetcher interface {
	Fetch(ctx context.Context, jobID string) (*analysis.Document, error)
}

type JobStatus string

const (
	JobStatusPending  JobStatus = "Pending"
	JobStatusComplete JobStatus = "Complete"
	JobStatusTimedOut JobStatus = "TimedOut"
	JobStatusFailed   JobStatus = "Failed"
)

// Job tracks the analysis job of a single upload.
type Job struct {
	ID       string
	Location analysis.Location
	Status   JobStatus
}

// Upload is a file received from a user and copied locally.
type Upload struct {
	// Filename is the sanitized name of the file, used as object key.
	Filename  string
	LocalPath string
}

type ExtractionOptions struct {
	Bucket    string
	KeyPrefix string
	Features  analysis.FeatureSet
	Channel   analysis.NotificationChannel
	// Timeout bounds a whole extraction. Zero means no bound besides the caller context.
	Timeout time.Duration
}

type ExtractionService struct {
	store     Uploader
	submitter JobSubmitter
	awaiter   CompletionAwaiter
	fetcher   ResultFetcher
	opts      ExtractionOptions
}

func NewExtractionService(store Uploader, submitter JobSubmitter, awaiter CompletionAwaiter, fetcher ResultFetcher, opts ExtractionOptions) *ExtractionService {
	return &ExtractionService{
		store:     store,
		submitter: submitter,
		awaiter:   awaiter,
		fetcher:   fetcher,
		opts:      opts,
	}
}

// Extract uploads the file, runs a document analysis on it and returns the
// extracted lines. The first failing stage aborts the extraction; nothing done
// by the previous stages is undone.
func (s *ExtractionService) Extract(ctx context.Context, upload Upload) (*analysis.Document, error) {
	_, doc, err := s.Run(ctx, upload)
	return doc, err
}

// Run is Extract returning the job as well. The job is never nil and its
// status is terminal: Complete on success, Failed or TimedOut otherwise.
func (s *ExtractionService) Run(ctx context.Context, upload Upload) (*Job, *analysis.Document, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	job := &Job{
		Location: analysis.Location{Bucket: s.opts.Bucket, Key: s.objectKey(upload.Filename)},
		Status:   JobStatusPending,
	}

	doc, err := s.extract(ctx, job, upload.LocalPath)
	if err != nil {
		var stage string
		var stageErr StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage()
		}
		metrics.IncreaseExtractionRequestsMetric(string(job.Status), stage)
		return job, nil, err
	}

	metrics.IncreaseExtractionRequestsMetric(string(job.Status), "")
	return job, doc, nil
}

// extract moves job through the stages and sets its status.
func (s *ExtractionService) extract(ctx context.Context, job *Job, localPath string) (*analysis.Document, error) {
	reqID := requestid.FromContext(ctx)
	logger := zap.S().Named("extraction_service").With("request_id", reqID)

	start := time.Now()
	err := s.store.Upload(ctx, localPath, job.Location.Bucket, job.Location.Key)
	metrics.ObserveStageDuration(StageUpload, time.Since(start))
	if err != nil {
		job.Status = JobStatusFailed
		logger.Errorw("error uploading file", "location", job.Location.String(), "error", err)
		return nil, NewStoreError(job.Location.Bucket, job.Location.Key, err)
	}
	logger.Infow("file uploaded", "location", job.Location.String())

	req := analysis.SubmitRequest{
		Location: job.Location,
		Features: s.opts.Features,
		Channel:  s.opts.Channel,
	}
	if jobTagPattern.MatchString(reqID) {
		req.JobTag = reqID
	}

	start = time.Now()
	job.ID, err = s.submitter.Submit(ctx, req)
	metrics.ObserveStageDuration(StageSubmit, time.Since(start))
	if err != nil {
		job.Status = JobStatusFailed
		logger.Errorw("error starting analysis job", "location", job.Location.String(), "error", err)
		return nil, NewSubmitError(job.Location.Bucket, job.Location.Key, err)
	}
	logger = logger.With("job_id", job.ID)
	logger.Info("analysis job started")

	start = time.Now()
	err = s.awaiter.AwaitCompletion(ctx, job.ID)
	metrics.ObserveStageDuration(StageAwait, time.Since(start))
	if err != nil {
		if errors.Is(err, notification.ErrJobFailed) {
			job.Status = JobStatusFailed
			logger.Errorw("analysis job failed", "status", job.Status, "error", err)
			return nil, NewJobFailedError(job.ID, err)
		}
		job.Status = JobStatusTimedOut
		logger.Errorw("analysis job did not complete", "status", job.Status, "error", err)
		return nil, NewTimeoutError(job.ID, err)
	}

	start = time.Now()
	doc, err := s.fetcher.Fetch(ctx, job.ID)
	metrics.ObserveStageDuration(StageFetch, time.Since(start))
	if err != nil {
		job.Status = JobStatusFailed
		logger.Errorw("error getting analysis results", "error", err)
		return nil, NewFetchError(job.ID, err)
	}

	job.Status = JobStatusComplete
	logger.Infow("text extraction completed", "status", job.Status, "lines", len(doc.Lines))
	return doc, nil
}

func (s *ExtractionService) objectKey(filename string) string {
	if s.opts.KeyPrefix == "" {
		return filename
	}
	return path.Join(s.opts.KeyPrefix, filename)
}
