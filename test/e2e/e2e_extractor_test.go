package e2e_test

import (
	"html"
	"net/http"
	"strings"

	. "github.com/kubev2v/document-extractor/test/e2e"
	. "github.com/kubev2v/document-extractor/test/e2e/e2e_service"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("extractor-api", Ordered, func() {
	var svc *ServiceApi

	BeforeAll(func() {
		if ExtractorURL == "" {
			Skip("EXTRACTOR_URL is not set")
		}
		svc = NewServiceApi(ExtractorURL, RequestTimeout)
	})

	It("is healthy", func() {
		res, err := svc.Get("/health")
		Expect(err).To(BeNil())
		Expect(res.StatusCode).To(Equal(http.StatusOK))
	})

	It("serves the upload form", func() {
		res, err := svc.Get("/upload")
		Expect(err).To(BeNil())
		Expect(res.StatusCode).To(Equal(http.StatusOK))
		Expect(res.Body).To(ContainSubstring(`name="file"`))
	})

	It("rejects a file name with nothing usable left", func() {
		res, err := svc.Upload("...", strings.NewReader("content"))
		Expect(err).To(BeNil())
		Expect(res.StatusCode).To(Equal(http.StatusBadRequest))

		msg, err := res.ErrorMessage()
		Expect(err).To(BeNil())
		Expect(msg).To(Equal("Invalid file name"))
	})

	It("extracts the text of a document", func() {
		if DocumentPath == "" {
			Skip("E2E_DOCUMENT_PATH is not set")
		}

		res, err := svc.UploadFile(DocumentPath)
		Expect(err).To(BeNil())
		Expect(res.StatusCode).To(Equal(http.StatusOK), res.Body)
		Expect(res.Body).To(ContainSubstring("<pre>"))
		if DocumentText != "" {
			Expect(html.UnescapeString(res.Body)).To(ContainSubstring(DocumentText))
		}
	})
})

var _ = Describe("hello-api", func() {
	It("greets with its host name", func() {
		if HelloURL == "" {
			Skip("HELLO_URL is not set")
		}
		svc := NewServiceApi(HelloURL, RequestTimeout)

		res, err := svc.Get("/")
		Expect(err).To(BeNil())
		Expect(res.StatusCode).To(Equal(http.StatusOK))
		Expect(res.Body).To(HavePrefix("Hello, World! Hostname: "))

		res, err = svc.Get("/health")
		Expect(err).To(BeNil())
		Expect(res.Body).To(Equal("Status: OK"))
	})
})
