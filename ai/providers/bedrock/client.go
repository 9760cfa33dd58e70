package bedrock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/itsneelabh/gomind-genai/core"
	"github.com/itsneelabh/gomind-genai/instrumentation"
	"github.com/itsneelabh/gomind-genai/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultRegion is used when neither the caller nor the environment names one.
const DefaultRegion = "us-east-1"

// ConverseAPI is the part of the Bedrock Runtime client the decorator wraps.
// *bedrockruntime.Client satisfies it.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

var _ ConverseAPI = (*bedrockruntime.Client)(nil)

// Client decorates a ConverseAPI with GenAI telemetry. It returns exactly
// what the wrapped client returns; telemetry problems are logged, never
// surfaced.
type Client struct {
	api    ConverseAPI
	inst   *instrumentation.Instrumenter
	logger core.Logger
}

var _ ConverseAPI = (*Client)(nil)

// NewClient wraps api. A nil logger uses the telemetry self-logger and a nil
// inst an Instrumenter on the OpenTelemetry globals. If that Instrumenter
// cannot be built, calls pass through uninstrumented.
func NewClient(api ConverseAPI, inst *instrumentation.Instrumenter, logger core.Logger) *Client {
	if logger == nil {
		logger = telemetry.GetLogger()
	}
	logger = core.WithComponent(logger, "genai/bedrock")
	if inst == nil {
		var err error
		if inst, err = instrumentation.New(); err != nil {
			logger.Error("GenAI instrumentation unavailable", map[string]interface{}{
				"error":  err.Error(),
				"impact": "Bedrock calls are made without telemetry",
			})
		}
	}
	return &Client{
		api:    api,
		inst:   inst,
		logger: logger,
	}
}

// NewFromConfig creates an instrumented Bedrock Runtime client from cfg.
// Instrumentation options default to the OpenTelemetry globals.
func NewFromConfig(cfg aws.Config, opts ...instrumentation.Option) (*Client, error) {
	inst, err := instrumentation.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewClient(bedrockruntime.NewFromConfig(cfg), inst, nil), nil
}

// Converse calls the wrapped client inside a GenAI chat operation. The
// wrapped call receives a context carrying the chat span.
//
// A request without a model id is rejected before the call is made.
func (c *Client) Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	if c.inst == nil {
		return c.api.Converse(ctx, in, optFns...)
	}
	req, err := RequestFromConverse(in)
	if err != nil {
		return nil, err
	}
	op, err := c.inst.OnRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	out, callErr := c.api.Converse(op.Context(), in, optFns...)
	if callErr != nil {
		c.logCallFailure(op, callErr)
		c.report(op, c.inst.OnError(op, callErr))
		return out, callErr
	}

	resp, err := ResponseFromConverse(out)
	if err != nil {
		fields := map[string]interface{}{
			"operation_id": op.ID(),
			"model":        op.Model(),
			"error":        err.Error(),
			"impact":       "operation recorded as failed, response returned unchanged",
		}
		c.logger.Warn("Bedrock response has no message", fields)
		c.report(op, c.inst.OnError(op, err))
		return out, nil
	}

	c.report(op, c.inst.OnResponse(op, resp))
	return out, nil
}

func (c *Client) logCallFailure(op *instrumentation.Operation, err error) {
	fields := map[string]interface{}{
		"operation_id": op.ID(),
		"model":        op.Model(),
		"error":        err.Error(),
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		fields["error_code"] = apiErr.ErrorCode()
		fields["fault"] = apiErr.ErrorFault().String()
	}
	c.logger.Debug("Bedrock converse call failed", fields)
}

// report logs a hook error. Hooks only fail on misuse, which the decorator
// cannot cause, so this is a diagnostics path.
func (c *Client) report(op *instrumentation.Operation, err error) {
	if err == nil {
		return
	}
	c.logger.Error("GenAI operation could not be ended", map[string]interface{}{
		"operation_id": op.ID(),
		"error":        err.Error(),
		"impact":       "span, metrics or choice event may be missing",
	})
}

// AWSOption configures CreateAWSConfig.
type AWSOption func(*awsOptions)

type awsOptions struct {
	credentials aws.CredentialsProvider
	httpTracing bool
	httpClient  *http.Client
}

// WithStaticCredentials uses a fixed access key instead of the default
// credential chain.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) AWSOption {
	return func(o *awsOptions) {
		o.credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
	}
}

// WithCredentialsProvider uses an explicit credentials provider.
func WithCredentialsProvider(p aws.CredentialsProvider) AWSOption {
	return func(o *awsOptions) {
		o.credentials = p
	}
}

// WithHTTPTracing sends Bedrock HTTP calls through an otelhttp transport, so
// each attempt shows up as a child span of the chat span.
func WithHTTPTracing() AWSOption {
	return func(o *awsOptions) {
		o.httpTracing = true
	}
}

// WithHTTPClient replaces the SDK's HTTP client. Combined with
// WithHTTPTracing its transport is wrapped. The client is used as given, so
// AWS_CA_BUNDLE and other shared-config transport settings do not apply to
// it.
func WithHTTPClient(client *http.Client) AWSOption {
	return func(o *awsOptions) {
		o.httpClient = client
	}
}

// CreateAWSConfig creates an AWS configuration for Bedrock.
// Credentials resolve in this order:
// 1. Explicit credentials passed in
// 2. AWS credentials from environment variables
// 3. AWS profile from ~/.aws/credentials
// 4. IAM role (when running on EC2/ECS/Lambda)
//
// An empty region falls back to AWS_REGION, AWS_DEFAULT_REGION, then
// DefaultRegion.
func CreateAWSConfig(ctx context.Context, region string, opts ...AWSOption) (aws.Config, error) {
	var o awsOptions
	for _, opt := range opts {
		opt(&o)
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(resolveRegion(region)),
	}
	if o.credentials != nil {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(o.credentials))
	}

	// The SDK's own client is resolved first so shared-config transport
	// settings such as a custom CA bundle are applied before tracing wraps it.
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, core.NewOperationError("bedrock.CreateAWSConfig", core.KindConfig,
			fmt.Errorf("failed to load AWS config: %w", err))
	}

	var client aws.HTTPClient = cfg.HTTPClient
	if o.httpClient != nil {
		client = o.httpClient
	}
	if client == nil {
		client = awshttp.NewBuildableClient()
	}
	if o.httpTracing {
		client = tracedClient(client)
	}
	cfg.HTTPClient = client
	return cfg, nil
}

// tracedClient routes client through an otelhttp transport.
func tracedClient(client aws.HTTPClient) *http.Client {
	if hc, ok := client.(*http.Client); ok {
		transport := hc.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		traced := *hc
		traced.Transport = otelhttp.NewTransport(transport)
		return &traced
	}
	return &http.Client{Transport: otelhttp.NewTransport(doerTransport{client})}
}

// doerTransport adapts an aws.HTTPClient, such as the SDK's BuildableClient,
// to http.RoundTripper.
type doerTransport struct {
	client aws.HTTPClient
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

func resolveRegion(region string) string {
	if region != "" {
		return region
	}
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r
	}
	if r := os.Getenv("AWS_DEFAULT_REGION"); r != "" {
		return r
	}
	return DefaultRegion
}
