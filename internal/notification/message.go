package notification

import (
	"encoding/json"
	"fmt"
)

const (
	StatusSucceeded      = "SUCCEEDED"
	StatusPartialSuccess = "PARTIAL_SUCCESS"
	StatusFailed         = "FAILED"
	StatusError          = "ERROR"

	snsNotificationType = "Notification"
)

// RawMessage is a message received from the queue, before it is parsed.
type RawMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Notification is the completion signal published by Textract.
type Notification struct {
	JobID            string           `json:"JobId"`
	Status           string           `json:"Status"`
	API              string           `json:"API"`
	JobTag           string           `json:"JobTag"`
	Timestamp        int64            `json:"Timestamp"`
	DocumentLocation documentLocation `json:"DocumentLocation"`
}

type documentLocation struct {
	S3ObjectName string `json:"S3ObjectName"`
	S3Bucket     string `json:"S3Bucket"`
}

// snsEnvelope wraps the Textract notification when the SQS subscription
// does not use raw message delivery.
type snsEnvelope struct {
	Type     string `json:"Type"`
	TopicArn string `json:"TopicArn"`
	Message  string `json:"Message"`
}

// ParseNotification decodes a queue message body. Both raw notifications and
// SNS envelopes are accepted.
func ParseNotification(body string) (*Notification, error) {
	var env snsEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, fmt.Errorf("failed to decode message body: %w", err)
	}

	payload := body
	if env.Type == snsNotificationType && env.Message != "" {
		payload = env.Message
	}

	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return &n, nil
}

// Succeeded reports whether the job produced a result that can be fetched.
// An absent status is treated as success.
func (n *Notification) Succeeded() bool {
	switch n.Status {
	case "", StatusSucceeded, StatusPartialSuccess:
		return true
	default:
		return false
	}
}
