// Package provision sets up Bedrock model-invocation logging: the
// CloudWatch log group the runtime delivers into, the IAM role it assumes
// to do so, an optional S3 bucket for large payloads, and the
// account-level logging configuration itself. Every operation is
// idempotent so the setup can be re-run.
package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	btypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Client interfaces cover just the calls this package makes, so tests can
// fake them.
type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

type LogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	PutMetricFilter(ctx context.Context, params *cloudwatchlogs.PutMetricFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutMetricFilterOutput, error)
}

type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

type ControlAPI interface {
	PutModelInvocationLoggingConfiguration(ctx context.Context, params *bedrock.PutModelInvocationLoggingConfigurationInput, optFns ...func(*bedrock.Options)) (*bedrock.PutModelInvocationLoggingConfigurationOutput, error)
	GetModelInvocationLoggingConfiguration(ctx context.Context, params *bedrock.GetModelInvocationLoggingConfigurationInput, optFns ...func(*bedrock.Options)) (*bedrock.GetModelInvocationLoggingConfigurationOutput, error)
	DeleteModelInvocationLoggingConfiguration(ctx context.Context, params *bedrock.DeleteModelInvocationLoggingConfigurationInput, optFns ...func(*bedrock.Options)) (*bedrock.DeleteModelInvocationLoggingConfigurationOutput, error)
}

type Config struct {
	Region        string
	AccountID     string
	LogGroupName  string
	RoleName      string
	RetentionDays int
	S3BucketName  string
	S3KeyPrefix   string
	TextDelivery  bool
	ImageDelivery bool
	EmbedDelivery bool

	MetricNamespace string
}

type Provisioner struct {
	config  Config
	iam     IAMAPI
	logs    LogsAPI
	s3      S3API
	control ControlAPI
}

func NewWithConfig(config Config, iamClient IAMAPI, logsClient LogsAPI, s3Client S3API, controlClient ControlAPI) (*Provisioner, error) {
	if config.LogGroupName == "" {
		return nil, fmt.Errorf("provisioner requires a log group name")
	}
	if config.RoleName == "" {
		return nil, fmt.Errorf("provisioner requires a role name")
	}
	if config.RetentionDays == 0 {
		config.RetentionDays = 30
	}
	if config.MetricNamespace == "" {
		config.MetricNamespace = "Strata/Bedrock"
	}

	return &Provisioner{
		config:  config,
		iam:     iamClient,
		logs:    logsClient,
		s3:      s3Client,
		control: controlClient,
	}, nil
}

// Setup provisions everything and enables invocation logging. It returns
// the ARN of the delivery role.
func (p *Provisioner) Setup(ctx context.Context) (string, error) {
	roleArn, err := p.EnsureRole(ctx)
	if err != nil {
		return "", err
	}

	if err := p.EnsureLogGroup(ctx); err != nil {
		return "", err
	}

	if p.config.S3BucketName != "" {
		if err := p.EnsureBucket(ctx); err != nil {
			return "", err
		}
	}

	if err := p.EnableLogging(ctx, roleArn); err != nil {
		return "", err
	}

	return roleArn, nil
}

// trustPolicy lets the Bedrock service assume the role, pinned to this
// account so another account's Bedrock usage cannot deliver here.
func (p *Provisioner) trustPolicy() (string, error) {
	statement := map[string]interface{}{
		"Effect":    "Allow",
		"Principal": map[string]string{"Service": "bedrock.amazonaws.com"},
		"Action":    "sts:AssumeRole",
	}
	if p.config.AccountID != "" {
		statement["Condition"] = map[string]interface{}{
			"StringEquals": map[string]string{"aws:SourceAccount": p.config.AccountID},
		}
	}

	doc, err := json.Marshal(map[string]interface{}{
		"Version":   "2012-10-17",
		"Statement": []interface{}{statement},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode trust policy: %w", err)
	}
	return string(doc), nil
}

func (p *Provisioner) deliveryPolicy() (string, error) {
	resource := fmt.Sprintf("arn:aws:logs:%s:%s:log-group:%s:log-stream:aws/bedrock/modelinvocations",
		p.config.Region, p.config.AccountID, p.config.LogGroupName)

	doc, err := json.Marshal(map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []interface{}{
			map[string]interface{}{
				"Effect":   "Allow",
				"Action":   []string{"logs:CreateLogStream", "logs:PutLogEvents"},
				"Resource": resource,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode delivery policy: %w", err)
	}
	return string(doc), nil
}

// EnsureRole creates the delivery role and its inline policy, reusing the
// role when it already exists.
func (p *Provisioner) EnsureRole(ctx context.Context) (string, error) {
	trust, err := p.trustPolicy()
	if err != nil {
		return "", err
	}

	var roleArn string
	created, err := p.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(p.config.RoleName),
		AssumeRolePolicyDocument: aws.String(trust),
		Description:              aws.String("Delivery role for Bedrock model invocation logs"),
	})
	if err != nil {
		var exists *iamtypes.EntityAlreadyExistsException
		if !errors.As(err, &exists) {
			return "", fmt.Errorf("failed to create role %s: %w", p.config.RoleName, err)
		}

		existing, err := p.iam.GetRole(ctx, &iam.GetRoleInput{
			RoleName: aws.String(p.config.RoleName),
		})
		if err != nil {
			return "", fmt.Errorf("failed to read existing role %s: %w", p.config.RoleName, err)
		}
		roleArn = aws.ToString(existing.Role.Arn)
	} else {
		roleArn = aws.ToString(created.Role.Arn)
	}

	policy, err := p.deliveryPolicy()
	if err != nil {
		return "", err
	}

	_, err = p.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(p.config.RoleName),
		PolicyName:     aws.String(p.config.RoleName + "-delivery"),
		PolicyDocument: aws.String(policy),
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach delivery policy: %w", err)
	}

	return roleArn, nil
}

// EnsureLogGroup creates the log group, sets retention and installs a
// metric filter counting delivered invocations.
func (p *Provisioner) EnsureLogGroup(ctx context.Context) error {
	_, err := p.logs.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(p.config.LogGroupName),
	})
	if err != nil {
		var exists *cwltypes.ResourceAlreadyExistsException
		if !errors.As(err, &exists) {
			return fmt.Errorf("failed to create log group %s: %w", p.config.LogGroupName, err)
		}
	}

	_, err = p.logs.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(p.config.LogGroupName),
		RetentionInDays: aws.Int32(int32(p.config.RetentionDays)),
	})
	if err != nil {
		return fmt.Errorf("failed to set retention on %s: %w", p.config.LogGroupName, err)
	}

	_, err = p.logs.PutMetricFilter(ctx, &cloudwatchlogs.PutMetricFilterInput{
		LogGroupName: aws.String(p.config.LogGroupName),
		FilterName:   aws.String("model-invocations"),
		// Every delivered record carries a modelId field
		FilterPattern: aws.String(`{ $.modelId = "*" }`),
		MetricTransformations: []cwltypes.MetricTransformation{
			{
				MetricName:      aws.String("ModelInvocations"),
				MetricNamespace: aws.String(p.config.MetricNamespace),
				MetricValue:     aws.String("1"),
				DefaultValue:    aws.Float64(0),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to install metric filter: %w", err)
	}

	return nil
}

// EnsureBucket creates the large-data delivery bucket, tolerating a bucket
// this account already owns.
func (p *Provisioner) EnsureBucket(ctx context.Context) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(p.config.S3BucketName),
	}
	// us-east-1 rejects an explicit location constraint
	if p.config.Region != "" && p.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(p.config.Region),
		}
	}

	_, err := p.s3.CreateBucket(ctx, input)
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", p.config.S3BucketName, err)
	}

	return nil
}

// EnableLogging writes the account-level invocation logging configuration.
func (p *Provisioner) EnableLogging(ctx context.Context, roleArn string) error {
	loggingConfig := &btypes.LoggingConfig{
		CloudWatchConfig: &btypes.CloudWatchConfig{
			LogGroupName: aws.String(p.config.LogGroupName),
			RoleArn:      aws.String(roleArn),
		},
		TextDataDeliveryEnabled:      aws.Bool(p.config.TextDelivery),
		ImageDataDeliveryEnabled:     aws.Bool(p.config.ImageDelivery),
		EmbeddingDataDeliveryEnabled: aws.Bool(p.config.EmbedDelivery),
	}

	if p.config.S3BucketName != "" {
		s3Config := &btypes.S3Config{
			BucketName: aws.String(p.config.S3BucketName),
			KeyPrefix:  aws.String(p.config.S3KeyPrefix),
		}
		loggingConfig.CloudWatchConfig.LargeDataDeliveryS3Config = s3Config
		loggingConfig.S3Config = s3Config
	}

	_, err := p.control.PutModelInvocationLoggingConfiguration(ctx, &bedrock.PutModelInvocationLoggingConfigurationInput{
		LoggingConfig: loggingConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to enable invocation logging: %w", err)
	}

	return nil
}

// Status reads back the current invocation logging configuration. A nil
// LoggingConfig means logging is not configured.
func (p *Provisioner) Status(ctx context.Context) (*btypes.LoggingConfig, error) {
	out, err := p.control.GetModelInvocationLoggingConfiguration(ctx, &bedrock.GetModelInvocationLoggingConfigurationInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to read logging configuration: %w", err)
	}
	return out.LoggingConfig, nil
}

// Disable removes the invocation logging configuration. The log group,
// role and bucket are left in place.
func (p *Provisioner) Disable(ctx context.Context) error {
	_, err := p.control.DeleteModelInvocationLoggingConfiguration(ctx, &bedrock.DeleteModelInvocationLoggingConfigurationInput{})
	if err != nil {
		return fmt.Errorf("failed to disable invocation logging: %w", err)
	}
	return nil
}
