package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"go.uber.org/zap"
)

const defaultMaxResults = 1000

var ErrMalformedLocation = errors.New("malformed document location")

// TextractAPI is the subset of the Textract client used by the analysis client.
type TextractAPI interface {
	StartDocumentAnalysis(ctx context.Context, params *textract.StartDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.StartDocumentAnalysisOutput, error)
	GetDocumentAnalysis(ctx context.Context, params *textract.GetDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.GetDocumentAnalysisOutput, error)
}

type Client struct {
	api        TextractAPI
	maxResults int32
}

// New creates a Textract backed client. endpoint overrides the default
// regional endpoint when set.
func New(awsCfg aws.Config, endpoint string) *Client {
	opts := []func(*textract.Options){}
	if endpoint != "" {
		opts = append(opts, func(o *textract.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return NewWithAPI(textract.NewFromConfig(awsCfg, opts...))
}

func NewWithAPI(api TextractAPI) *Client {
	return &Client{api: api, maxResults: defaultMaxResults}
}

// Submit starts an asynchronous document analysis and returns the job id.
// Completion is signaled on req.Channel.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.Location.Bucket == "" || req.Location.Key == "" {
		return "", fmt.Errorf("%w: %s", ErrMalformedLocation, req.Location)
	}

	input := &textract.StartDocumentAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(req.Location.Bucket),
				Name:   aws.String(req.Location.Key),
			},
		},
		FeatureTypes: req.Features,
	}
	if req.Channel.TopicArn != "" {
		input.NotificationChannel = &types.NotificationChannel{
			SNSTopicArn: aws.String(req.Channel.TopicArn),
			RoleArn:     aws.String(req.Channel.RoleArn),
		}
	}
	if req.JobTag != "" {
		input.JobTag = aws.String(req.JobTag)
	}

	out, err := c.api.StartDocumentAnalysis(ctx, input)
	if err != nil {
		return "", err
	}

	jobID := aws.ToString(out.JobId)
	if jobID == "" {
		return "", fmt.Errorf("textract returned an empty job id for %s", req.Location)
	}

	zap.S().Named("textract").Infow("document analysis started", "job_id", jobID, "location", req.Location.String())
	return jobID, nil
}

// Fetch reads every page of the analysis result of a completed job.
func (c *Client) Fetch(ctx context.Context, jobID string) (*Document, error) {
	doc := &Document{JobID: jobID, Lines: []string{}}

	var nextToken *string
	for {
		out, err := c.api.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
			JobId:      aws.String(jobID),
			MaxResults: aws.Int32(c.maxResults),
			NextToken:  nextToken,
		})
		if err != nil {
			return nil, err
		}

		switch out.JobStatus {
		case types.JobStatusFailed:
			return nil, fmt.Errorf("job %s failed: %s", jobID, aws.ToString(out.StatusMessage))
		case types.JobStatusInProgress:
			return nil, fmt.Errorf("job %s is still in progress", jobID)
		}

		if out.DocumentMetadata != nil {
			doc.Pages = int(aws.ToInt32(out.DocumentMetadata.Pages))
		}
		doc.Lines = append(doc.Lines, ExtractLines(out.Blocks)...)

		if aws.ToString(out.NextToken) == "" {
			break
		}
		nextToken = out.NextToken
	}

	zap.S().Named("textract").Infow("document analysis retrieved", "job_id", jobID, "lines", len(doc.Lines), "pages", doc.Pages)
	return doc, nil
}
