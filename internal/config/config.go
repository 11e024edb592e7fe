package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/kubev2v/document-extractor/internal/util"
	"sigs.k8s.io/yaml"
)

const (
	DispatchModePerRequest = "per-request"
	DispatchModeShared     = "shared"

	BackendS3    = "s3"
	BackendMinio = "minio"

	redacted = "*****"
)

type Config struct {
	Service  *SvcConfig      `json:"service" validate:"required"`
	AWS      *awsConfig      `json:"aws" validate:"required"`
	Storage  *StorageConfig  `json:"storage" validate:"required"`
	Textract *TextractConfig `json:"textract" validate:"required"`
	Queue    *QueueConfig    `json:"queue" validate:"required"`
}

type SvcConfig struct {
	Address           string        `json:"address" envconfig:"EXTRACTOR_ADDRESS" default:":8080" validate:"required"`
	HelloAddress      string        `json:"helloAddress" envconfig:"HELLO_ADDRESS" default:":8080"`
	MetricsAddress    string        `json:"metricsAddress" envconfig:"METRICS_ADDRESS" default:":8081"`
	LogLevel          string        `json:"logLevel" envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string        `json:"logFormat" envconfig:"LOG_FORMAT" default:"console" validate:"oneof=console json"`
	UploadDir         string        `json:"uploadDir" envconfig:"UPLOAD_DIR" default:"/tmp" validate:"required"`
	MaxUploadSize     int64         `json:"maxUploadSize" envconfig:"MAX_UPLOAD_SIZE" default:"33554432" validate:"min=1"`
	ExtractionTimeout util.Duration `json:"extractionTimeout" envconfig:"EXTRACTION_TIMEOUT" default:"16m"`
	AllowedOrigins    []string      `json:"allowedOrigins" envconfig:"CORS_ALLOWED_ORIGINS"`
}

type awsConfig struct {
	Region string `json:"region" envconfig:"AWS_REGION" default:"eu-central-1" validate:"required"`
}

type StorageConfig struct {
	Backend   string `json:"backend" envconfig:"OBJECT_STORE_BACKEND" default:"s3" validate:"oneof=s3 minio"`
	Bucket    string `json:"bucket" envconfig:"S3_BUCKET" default:"mikosins4-workshop" validate:"required"`
	Endpoint  string `json:"endpoint" envconfig:"S3_ENDPOINT"`
	AccessKey string `json:"accessKey" envconfig:"S3_ACCESS_KEY"`
	SecretKey string `json:"secretKey" envconfig:"S3_SECRET_KEY"`
	UseSSL    bool   `json:"useSSL" envconfig:"S3_USE_SSL" default:"true"`
	KeyPrefix string `json:"keyPrefix" envconfig:"S3_KEY_PREFIX"`
}

type TextractConfig struct {
	SNSTopicArn  string   `json:"snsTopicArn" envconfig:"SNS_TOPIC_ARN" default:"arn:aws:sns:eu-central-1:416655267863:AmazonTextract-mikosins-workshop" validate:"required"`
	RoleArn      string   `json:"roleArn" envconfig:"ROLE_ARN" default:"arn:aws:iam::416655267863:role/mikosins-workshop" validate:"required"`
	FeatureTypes []string `json:"featureTypes" envconfig:"TEXTRACT_FEATURE_TYPES" default:"FORMS,TABLES" validate:"min=1"`
	Endpoint     string   `json:"endpoint" envconfig:"TEXTRACT_ENDPOINT"`
}

type QueueConfig struct {
	URL          string        `json:"url" envconfig:"SQS_QUEUE_URL" default:"https://sqs.eu-central-1.amazonaws.com/416655267863/mikosins-workshop" validate:"required,url"`
	Endpoint     string        `json:"endpoint" envconfig:"SQS_ENDPOINT"`
	MaxAttempts  int           `json:"maxAttempts" envconfig:"SQS_MAX_ATTEMPTS" default:"30" validate:"min=1"`
	WaitTime     util.Duration `json:"waitTime" envconfig:"SQS_WAIT_TIME" default:"20s"`
	PollDelay    util.Duration `json:"pollDelay" envconfig:"SQS_POLL_DELAY" default:"10s"`
	DispatchMode string        `json:"dispatchMode" envconfig:"SQS_DISPATCH_MODE" default:"per-request" validate:"oneof=per-request shared"`
}

// PollBudget is the longest time spent waiting for a completion notification
// in either dispatch mode.
func (q *QueueConfig) PollBudget() time.Duration {
	return time.Duration(q.MaxAttempts) * (q.WaitTime.Duration + q.PollDelay.Duration)
}

// New reads the configuration from the environment only.
func New() (*Config, error) {
	return Load("")
}

// Load reads the configuration from the environment and, when configFile is set,
// overlays the values found in the YAML file on top of it.
func Load(configFile string) (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	if configFile != "" {
		contents, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// SQS long polling accepts at most 20 seconds
	if c.Queue.WaitTime.Duration < 0 || c.Queue.WaitTime.Duration > 20*time.Second {
		return fmt.Errorf("invalid configuration: queue wait time must be between 0s and 20s, got %s", c.Queue.WaitTime)
	}
	if c.Queue.PollDelay.Duration < 0 {
		return fmt.Errorf("invalid configuration: queue poll delay must not be negative")
	}
	if c.Service.ExtractionTimeout.Duration <= 0 {
		return fmt.Errorf("invalid configuration: extraction timeout must be positive")
	}
	// the notification wait must fit in the extraction deadline
	if budget := c.Queue.PollBudget(); c.Service.ExtractionTimeout.Duration < budget {
		return fmt.Errorf("invalid configuration: extraction timeout %s is shorter than the queue poll budget %s", c.Service.ExtractionTimeout, budget)
	}

	return nil
}

func (c *Config) String() string {
	cp := *c
	if c.Storage != nil {
		storage := *c.Storage
		if storage.AccessKey != "" {
			storage.AccessKey = redacted
		}
		if storage.SecretKey != "" {
			storage.SecretKey = redacted
		}
		cp.Storage = &storage
	}

	contents, err := json.Marshal(cp)
	if err != nil {
		return "<error>"
	}
	return string(contents)
}
