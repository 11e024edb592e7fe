package service

import (
	"fmt"
)

const (
	StageUpload = "upload"
	StageSubmit = "submit"
	StageAwait  = "await"
	StageFetch  = "fetch"
)

// StageError is implemented by every error returned by ExtractionService.Extract.
type StageError interface {
	error
	Stage() string
}

type StoreError struct {
	error
}

func NewStoreError(bucket, key string, err error) *StoreError {
	return &StoreError{fmt.Errorf("failed to upload %s to bucket %s: %w", key, bucket, err)}
}

func (e *StoreError) Unwrap() error { return e.error }
func (e *StoreError) Stage() string { return StageUpload }

type SubmitError struct {
	error
}

func NewSubmitError(bucket, key string, err error) *SubmitError {
	return &SubmitError{fmt.Errorf("failed to start analysis of s3://%s/%s: %w", bucket, key, err)}
}

func (e *SubmitError) Unwrap() error { return e.error }
func (e *SubmitError) Stage() string { return StageSubmit }

type TimeoutError struct {
	error
}

func NewTimeoutError(jobID string, err error) *TimeoutError {
	return &TimeoutError{fmt.Errorf("job %s did not complete: %w", jobID, err)}
}

func (e *TimeoutError) Unwrap() error { return e.error }
func (e *TimeoutError) Stage() string { return StageAwait }

type JobFailedError struct {
	error
}

func NewJobFailedError(jobID string, err error) *JobFailedError {
	return &JobFailedError{fmt.Errorf("job %s failed: %w", jobID, err)}
}

func (e *JobFailedError) Unwrap() error { return e.error }
func (e *JobFailedError) Stage() string { return StageAwait }

type FetchError struct {
	error
}

func NewFetchError(jobID string, err error) *FetchError {
	return &FetchError{fmt.Errorf("failed to get results of job %s: %w", jobID, err)}
}

func (e *FetchError) Unwrap() error { return e.error }
func (e *FetchError) Stage() string { return StageFetch }
