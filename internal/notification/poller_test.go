package notification_test

import (
	"context"
	"errors"

	"github.com/kubev2v/document-extractor/internal/notification"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("notification poller", func() {
	var (
		queue  *fakeQueue
		waiter *fakeWaiter
		opts   notification.Options
	)

	BeforeEach(func() {
		queue = &fakeQueue{}
		waiter = &fakeWaiter{}
		opts = notification.Options{MaxAttempts: 5}
	})

	Context("budget", func() {
		It("fails after exactly max attempts when the queue stays empty", func() {
			poller := notification.NewPoller(queue, opts, waiter)

			c := poller.Start(context.TODO(), "job-1")
			<-c.Done()

			Expect(errors.Is(c.Err(), notification.ErrExhausted)).To(BeTrue())
			Expect(c.State()).To(Equal(notification.StateExhausted))
			Expect(c.Attempts()).To(Equal(5))
			Expect(queue.Receives()).To(Equal(5))
			Expect(waiter.Calls()).To(Equal(4))
		})

		It("fails when only notifications of other jobs are received", func() {
			for i := 0; i < 5; i++ {
				queue.responses = append(queue.responses, batch(rawNotification("m", "other-job", "SUCCEEDED")))
			}
			poller := notification.NewPoller(queue, opts, waiter)

			err := poller.AwaitCompletion(context.TODO(), "job-1")
			Expect(errors.Is(err, notification.ErrExhausted)).To(BeTrue())
			Expect(queue.Receives()).To(Equal(5))
			Expect(queue.Deleted()).To(BeEmpty())
		})

		It("treats a non positive budget as a single attempt", func() {
			poller := notification.NewPoller(queue, notification.Options{}, waiter)

			err := poller.AwaitCompletion(context.TODO(), "job-1")
			Expect(errors.Is(err, notification.ErrExhausted)).To(BeTrue())
			Expect(queue.Receives()).To(Equal(1))
			Expect(waiter.Calls()).To(Equal(0))
		})
	})

	Context("matching", func() {
		It("acknowledges only the first matching notification", func() {
			queue.responses = []fakeResponse{
				batch(rawNotification("1", "other-job", "SUCCEEDED")),
				batch(),
				batch(rawNotification("2", "job-1", "SUCCEEDED")),
				batch(rawNotification("3", "job-1", "SUCCEEDED")),
			}
			poller := notification.NewPoller(queue, opts, waiter)

			c := poller.Start(context.TODO(), "job-1")
			<-c.Done()

			Expect(c.Err()).To(BeNil())
			Expect(c.State()).To(Equal(notification.StateMatched))
			Expect(c.Attempts()).To(Equal(3))
			Expect(queue.Deleted()).To(Equal([]string{"rh-2"}))
		})

		It("unwraps SNS envelopes", func() {
			queue.responses = []fakeResponse{
				batch(notification.RawMessage{
					ID:            "1",
					ReceiptHandle: "rh-1",
					Body:          `{"Type":"Notification","TopicArn":"arn:topic","Message":"{\"JobId\":\"job-1\",\"Status\":\"SUCCEEDED\"}"}`,
				}),
			}
			poller := notification.NewPoller(queue, opts, waiter)

			Expect(poller.AwaitCompletion(context.TODO(), "job-1")).To(Succeed())
			Expect(queue.Deleted()).To(Equal([]string{"rh-1"}))
		})

		It("reports failed jobs", func() {
			queue.responses = []fakeResponse{batch(rawNotification("1", "job-1", "FAILED"))}
			poller := notification.NewPoller(queue, opts, waiter)

			c := poller.Start(context.TODO(), "job-1")
			<-c.Done()

			Expect(errors.Is(c.Err(), notification.ErrJobFailed)).To(BeTrue())
			Expect(c.State()).To(Equal(notification.StateFailed))
			Expect(queue.Deleted()).To(Equal([]string{"rh-1"}))
		})
	})

	Context("transient errors", func() {
		It("swallows receive and parse errors", func() {
			queue.responses = []fakeResponse{
				{err: errors.New("connection reset")},
				batch(notification.RawMessage{ID: "bad", ReceiptHandle: "rh-bad", Body: "not json"}),
				batch(rawNotification("1", "job-1", "SUCCEEDED")),
			}
			poller := notification.NewPoller(queue, opts, waiter)

			Expect(poller.AwaitCompletion(context.TODO(), "job-1")).To(Succeed())
			Expect(queue.Receives()).To(Equal(3))
			Expect(queue.Deleted()).To(Equal([]string{"rh-1"}))
		})

		It("retries when the acknowledgement fails", func() {
			queue.responses = []fakeResponse{
				batch(rawNotification("1", "job-1", "SUCCEEDED")),
				batch(rawNotification("1", "job-1", "SUCCEEDED")),
			}
			queue.deleteErrs = []error{errors.New("throttled")}
			poller := notification.NewPoller(queue, opts, waiter)

			Expect(poller.AwaitCompletion(context.TODO(), "job-1")).To(Succeed())
			Expect(queue.Receives()).To(Equal(2))
			Expect(queue.Deleted()).To(Equal([]string{"rh-1"}))
		})
	})

	Context("cancellation", func() {
		It("stops when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			waiter.onWait = cancel
			poller := notification.NewPoller(queue, opts, waiter)

			c := poller.Start(ctx, "job-1")
			<-c.Done()

			Expect(errors.Is(c.Err(), context.Canceled)).To(BeTrue())
			Expect(c.State()).To(Equal(notification.StateCancelled))
			Expect(queue.Receives()).To(Equal(1))
		})

		It("does not poll with an already cancelled context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			poller := notification.NewPoller(queue, opts, waiter)

			err := poller.AwaitCompletion(ctx, "job-1")
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(queue.Receives()).To(Equal(0))
		})
	})

	It("names its states", func() {
		Expect(notification.StateWaiting.String()).To(Equal("waiting"))
		Expect(notification.StateMatched.String()).To(Equal("matched"))
		Expect(notification.StateExhausted.String()).To(Equal("exhausted"))
	})
})
