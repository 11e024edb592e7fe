package analysis

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/thoas/go-funk"
)

// Location addresses a document in the object store.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

// NotificationChannel is the SNS topic signaled by Textract when a job
// completes, together with the role Textract assumes to publish on it.
type NotificationChannel struct {
	TopicArn string
	RoleArn  string
}

// FeatureSet is the set of extraction capabilities requested for a job.
type FeatureSet []types.FeatureType

// ParseFeatureSet converts configuration values (case insensitive) into a FeatureSet.
// Duplicates are removed and unknown values are rejected.
func ParseFeatureSet(values []string) (FeatureSet, error) {
	known := funk.Map(types.FeatureType("").Values(), func(f types.FeatureType) string {
		return string(f)
	}).([]string)

	normalized := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if !funk.ContainsString(known, v) {
			return nil, fmt.Errorf("unknown feature type %q, expected one of %s", v, strings.Join(known, ","))
		}
		normalized = append(normalized, v)
	}

	if len(normalized) == 0 {
		return nil, fmt.Errorf("at least one feature type is required")
	}

	fs := FeatureSet{}
	for _, v := range funk.UniqString(normalized) {
		fs = append(fs, types.FeatureType(v))
	}
	return fs, nil
}

// SubmitRequest describes an analysis job.
type SubmitRequest struct {
	Location Location
	Features FeatureSet
	Channel  NotificationChannel
	// JobTag is echoed back by Textract in the completion notification.
	JobTag string
}

// Document is the text extracted from a completed job.
type Document struct {
	JobID string
	Pages int
	Lines []string
}

// Text renders the document one line per row.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, l := range d.Lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return sb.String()
}

// ExtractLines keeps the LINE blocks, in the order returned by Textract.
func ExtractLines(blocks []types.Block) []string {
	lines := []string{}
	for _, b := range blocks {
		if b.BlockType != types.BlockTypeLine {
			continue
		}
		if b.Text == nil {
			continue
		}
		lines = append(lines, *b.Text)
	}
	return lines
}
