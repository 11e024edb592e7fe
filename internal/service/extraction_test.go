package service_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/kubev2v/document-extractor/internal/analysis"
	"github.com/kubev2v/document-extractor/internal/notification"
	"github.com/kubev2v/document-extractor/internal/service"
	"github.com/kubev2v/document-extractor/pkg/requestid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("extraction service", func() {
	var (
		calls   *[]string
		store   *testStore
		jobs    *testJobs
		awaiter *testAwaiter
		opts    service.ExtractionOptions
		upload  service.Upload
	)

	newService := func() *service.ExtractionService {
		return service.NewExtractionService(store, jobs, awaiter, jobs, opts)
	}

	BeforeEach(func() {
		calls = &[]string{}
		store = &testStore{calls: calls}
		jobs = &testJobs{calls: calls, jobID: "job-1", doc: &analysis.Document{JobID: "job-1", Lines: []string{"a", "b"}}}
		awaiter = &testAwaiter{calls: calls}
		opts = service.ExtractionOptions{
			Bucket:   "bucket",
			Features: analysis.FeatureSet{types.FeatureTypeForms, types.FeatureTypeTables},
			Channel:  analysis.NotificationChannel{TopicArn: "arn:topic", RoleArn: "arn:role"},
		}
		upload = service.Upload{Filename: "invoice.pdf", LocalPath: "/tmp/abc-invoice.pdf"}
	})

	Context("successful extraction", func() {
		It("runs upload, submit, await and fetch in order", func() {
			doc, err := newService().Extract(context.TODO(), upload)
			Expect(err).To(BeNil())
			Expect(doc.Lines).To(Equal([]string{"a", "b"}))
			Expect(*calls).To(Equal([]string{"upload", "submit", "await", "fetch"}))

			Expect(store.localPath).To(Equal("/tmp/abc-invoice.pdf"))
			Expect(store.bucket).To(Equal("bucket"))
			Expect(store.key).To(Equal("invoice.pdf"))

			Expect(jobs.req.Location).To(Equal(analysis.Location{Bucket: "bucket", Key: "invoice.pdf"}))
			Expect(jobs.req.Features).To(Equal(opts.Features))
			Expect(jobs.req.Channel).To(Equal(opts.Channel))
			Expect(awaiter.jobID).To(Equal("job-1"))
			Expect(jobs.fetchedJobID).To(Equal("job-1"))
		})

		It("completes the job", func() {
			job, doc, err := newService().Run(context.TODO(), upload)
			Expect(err).To(BeNil())
			Expect(doc.Lines).To(Equal([]string{"a", "b"}))
			Expect(job.ID).To(Equal("job-1"))
			Expect(job.Status).To(Equal(service.JobStatusComplete))
		})

		It("prefixes object keys", func() {
			opts.KeyPrefix = "uploads"

			_, err := newService().Extract(context.TODO(), upload)
			Expect(err).To(BeNil())
			Expect(store.key).To(Equal("uploads/invoice.pdf"))
			Expect(jobs.req.Location.Key).To(Equal("uploads/invoice.pdf"))
		})

		It("tags the job with the request id", func() {
			ctx := requestid.ToContext(context.TODO(), "5b0c7a1e-3d1f-4a51-9f0e-2b8a4c3d9e10")

			_, err := newService().Extract(ctx, upload)
			Expect(err).To(BeNil())
			Expect(jobs.req.JobTag).To(Equal("5b0c7a1e-3d1f-4a51-9f0e-2b8a4c3d9e10"))
		})

		It("does not tag the job with a request id Textract would reject", func() {
			ctx := requestid.ToContext(context.TODO(), "not a valid tag!")

			_, err := newService().Extract(ctx, upload)
			Expect(err).To(BeNil())
			Expect(jobs.req.JobTag).To(BeEmpty())
		})
	})

	Context("failures", func() {
		It("stops after a store failure", func() {
			store.err = errors.New("access denied")

			_, err := newService().Extract(context.TODO(), upload)
			var storeErr *service.StoreError
			Expect(errors.As(err, &storeErr)).To(BeTrue())
			Expect(storeErr.Stage()).To(Equal(service.StageUpload))
			Expect(errors.Is(err, store.err)).To(BeTrue())
			Expect(*calls).To(Equal([]string{"upload"}))
		})

		It("stops after a submit failure", func() {
			jobs.submitErr = errors.New("InvalidS3ObjectException")

			_, err := newService().Extract(context.TODO(), upload)
			var submitErr *service.SubmitError
			Expect(errors.As(err, &submitErr)).To(BeTrue())
			Expect(submitErr.Stage()).To(Equal(service.StageSubmit))
			Expect(*calls).To(Equal([]string{"upload", "submit"}))
		})

		It("maps an exhausted budget to a timeout", func() {
			awaiter.err = fmt.Errorf("%w: job job-1 not completed after 30 attempts", notification.ErrExhausted)

			_, err := newService().Extract(context.TODO(), upload)
			var timeoutErr *service.TimeoutError
			Expect(errors.As(err, &timeoutErr)).To(BeTrue())
			Expect(errors.Is(err, notification.ErrExhausted)).To(BeTrue())
			Expect(*calls).To(Equal([]string{"upload", "submit", "await"}))
		})

		It("maps a failed job notification", func() {
			awaiter.err = fmt.Errorf("%w: job job-1 reported status FAILED", notification.ErrJobFailed)

			_, err := newService().Extract(context.TODO(), upload)
			var failedErr *service.JobFailedError
			Expect(errors.As(err, &failedErr)).To(BeTrue())
			Expect(*calls).To(Equal([]string{"upload", "submit", "await"}))
		})

		It("maps a fetch failure", func() {
			jobs.fetchErr = errors.New("InvalidJobIdException")

			_, err := newService().Extract(context.TODO(), upload)
			var fetchErr *service.FetchError
			Expect(errors.As(err, &fetchErr)).To(BeTrue())
			Expect(fetchErr.Stage()).To(Equal(service.StageFetch))
		})

		DescribeTable("leaves the job in a terminal status",
			func(setup func(), status service.JobStatus, jobID string) {
				setup()

				job, _, err := newService().Run(context.TODO(), upload)
				Expect(err).NotTo(BeNil())
				Expect(job.Status).To(Equal(status))
				Expect(job.ID).To(Equal(jobID))
				Expect(job.Location).To(Equal(analysis.Location{Bucket: "bucket", Key: "invoice.pdf"}))
			},
			Entry("store failure", func() { store.err = errors.New("access denied") }, service.JobStatusFailed, ""),
			Entry("submit failure", func() { jobs.submitErr = errors.New("throttled") }, service.JobStatusFailed, ""),
			Entry("failed job", func() {
				awaiter.err = fmt.Errorf("%w: job job-1 reported status FAILED", notification.ErrJobFailed)
			}, service.JobStatusFailed, "job-1"),
			Entry("exhausted budget", func() {
				awaiter.err = fmt.Errorf("%w: job job-1 not completed after 30 attempts", notification.ErrExhausted)
			}, service.JobStatusTimedOut, "job-1"),
			Entry("fetch failure", func() { jobs.fetchErr = errors.New("InvalidJobIdException") }, service.JobStatusFailed, "job-1"),
		)

		It("bounds the extraction with the configured timeout", func() {
			opts.Timeout = 20 * time.Millisecond
			awaiter.block = true

			_, err := newService().Extract(context.TODO(), upload)
			var timeoutErr *service.TimeoutError
			Expect(errors.As(err, &timeoutErr)).To(BeTrue())
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})
	})
})

type testStore struct {
	calls     *[]string
	localPath string
	bucket    string
	key       string
	err       error
}

func (s *testStore) Upload(ctx context.Context, localPath, bucket, key string) error {
	*s.calls = append(*s.calls, "upload")
	s.localPath, s.bucket, s.key = localPath, bucket, key
	return s.err
}

type testJobs struct {
	calls        *[]string
	req          analysis.SubmitRequest
	jobID        string
	submitErr    error
	fetchedJobID string
	doc          *analysis.Document
	fetchErr     error
}

func (j *testJobs) Submit(ctx context.Context, req analysis.SubmitRequest) (string, error) {
	*j.calls = append(*j.calls, "submit")
	j.req = req
	if j.submitErr != nil {
		return "", j.submitErr
	}
	return j.jobID, nil
}

func (j *testJobs) Fetch(ctx context.Context, jobID string) (*analysis.Document, error) {
	*j.calls = append(*j.calls, "fetch")
	j.fetchedJobID = jobID
	if j.fetchErr != nil {
		return nil, j.fetchErr
	}
	return j.doc, nil
}

type testAwaiter struct {
	calls *[]string
	jobID string
	err   error
	block bool
}

func (a *testAwaiter) AwaitCompletion(ctx context.Context, jobID string) error {
	*a.calls = append(*a.calls, "await")
	a.jobID = jobID
	if a.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return a.err
}
