package e2e

import (
	"os"
	"time"
)

var (
	// ExtractorURL is the base url of a running extractor-api. The suite is skipped when unset.
	ExtractorURL string = os.Getenv("EXTRACTOR_URL")
	HelloURL     string = os.Getenv("HELLO_URL")
	// DocumentPath points to a document containing DocumentText.
	DocumentPath string = os.Getenv("E2E_DOCUMENT_PATH")
	DocumentText string = os.Getenv("E2E_DOCUMENT_TEXT")

	RequestTimeout = 12 * time.Minute
)
