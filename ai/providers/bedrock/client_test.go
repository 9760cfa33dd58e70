package bedrock

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/itsneelabh/gomind-genai/core"
	"github.com/itsneelabh/gomind-genai/genai"
	"github.com/itsneelabh/gomind-genai/instrumentation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type fakeConverse struct {
	calls int
	ctx   context.Context
	in    *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(ctx context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.calls++
	f.ctx = ctx
	f.in = in
	return f.out, f.err
}

type clientHarness struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	fake   *fakeConverse
	client *Client
}

func newClientHarness(t *testing.T) *clientHarness {
	t.Helper()
	h := &clientHarness{
		spans:  tracetest.NewSpanRecorder(),
		reader: sdkmetric.NewManualReader(),
		fake:   &fakeConverse{},
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(h.reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	inst, err := instrumentation.New(
		instrumentation.WithTracerProvider(tp),
		instrumentation.WithMeterProvider(mp),
		instrumentation.WithLogger(&core.NoOpLogger{}),
	)
	require.NoError(t, err)
	h.client = NewClient(h.fake, inst, &core.NoOpLogger{})
	return h
}

func (h *clientHarness) span(t *testing.T) sdktrace.ReadOnlySpan {
	t.Helper()
	ended := h.spans.Ended()
	require.Len(t, ended, 1)
	return ended[0]
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func titanOutput() *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "Hi there! How can I help you today?"}},
		}},
		StopReason: types.StopReasonEndTurn,
		Usage:      &types.TokenUsage{InputTokens: aws.Int32(8), OutputTokens: aws.Int32(14)},
	}
}

func TestClient_Converse(t *testing.T) {
	h := newClientHarness(t)
	h.fake.out = titanOutput()

	in := titanInput()
	out, err := h.client.Converse(context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, h.fake.out, out, "result is returned unchanged")
	assert.Same(t, in, h.fake.in)
	assert.Equal(t, 1, h.fake.calls)

	span := h.span(t)
	assert.Equal(t, "chat "+ModelTitanTextLite, span.Name())
	assert.Equal(t, trace.SpanKindClient, span.SpanKind())

	// The wrapped call runs inside the chat span
	assert.Equal(t, span.SpanContext(), trace.SpanContextFromContext(h.fake.ctx))

	reasons, ok := spanAttr(span, genai.AttrResponseFinishReasons)
	require.True(t, ok)
	assert.Equal(t, []string{"end_turn"}, reasons.AsStringSlice())
	input, _ := spanAttr(span, genai.AttrUsageInputTokens)
	assert.Equal(t, int64(8), input.AsInt64())
	output, _ := spanAttr(span, genai.AttrUsageOutputTokens)
	assert.Equal(t, int64(14), output.AsInt64())
}

func TestClient_ConverseAPIError(t *testing.T) {
	h := newClientHarness(t)
	apiErr := &smithy.GenericAPIError{
		Code:    "ThrottlingException",
		Message: "Too many requests",
		Fault:   smithy.FaultClient,
	}
	h.fake.err = apiErr

	out, err := h.client.Converse(context.Background(), titanInput())
	assert.Nil(t, out)
	assert.Same(t, apiErr, err, "error is returned unchanged")

	span := h.span(t)
	assert.Equal(t, codes.Error, span.Status().Code)
	errType, ok := spanAttr(span, genai.AttrErrorType)
	require.True(t, ok)
	assert.Equal(t, "ThrottlingException", errType.AsString())

	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			assert.NotEqual(t, genai.MetricTokenUsage, m.Name, "no token points on failure")
		}
	}
}

func TestClient_ConverseMissingMessage(t *testing.T) {
	h := newClientHarness(t)
	h.fake.out = &bedrockruntime.ConverseOutput{StopReason: types.StopReasonEndTurn}

	out, err := h.client.Converse(context.Background(), titanInput())
	require.NoError(t, err)
	assert.Same(t, h.fake.out, out)

	span := h.span(t)
	assert.Equal(t, codes.Error, span.Status().Code)
	errType, _ := spanAttr(span, genai.AttrErrorType)
	assert.Equal(t, core.KindUpstreamFailure, errType.AsString())
}

func TestClient_ConverseMissingModel(t *testing.T) {
	h := newClientHarness(t)
	in := titanInput()
	in.ModelId = nil

	_, err := h.client.Converse(context.Background(), in)
	assert.True(t, errors.Is(err, core.ErrRequiredFieldMissing))
	assert.Equal(t, 0, h.fake.calls, "request is not sent")
	assert.Empty(t, h.spans.Ended())
}

func TestNewClient_NilInstrumenter(t *testing.T) {
	fake := &fakeConverse{out: titanOutput()}
	client := NewClient(fake, nil, &core.NoOpLogger{})
	require.NotNil(t, client.inst, "defaults to the global providers")

	var out *bedrockruntime.ConverseOutput
	var err error
	assert.NotPanics(t, func() {
		out, err = client.Converse(context.Background(), titanInput())
	})
	require.NoError(t, err)
	assert.Same(t, fake.out, out)
	assert.Equal(t, 1, fake.calls)
}

func TestClient_ConverseUninstrumented(t *testing.T) {
	fake := &fakeConverse{out: titanOutput()}
	client := &Client{api: fake, logger: &core.NoOpLogger{}}

	out, err := client.Converse(context.Background(), titanInput())
	require.NoError(t, err)
	assert.Same(t, fake.out, out)
	assert.Equal(t, 1, fake.calls)
}

func isolateAWSEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", t.TempDir()+"/config")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", t.TempDir()+"/credentials")
	t.Setenv("AWS_CA_BUNDLE", "")
	t.Setenv("AWS_PROFILE", "")
}

// writeCABundle writes a self-signed certificate as a PEM bundle.
func writeCABundle(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "bedrock-test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	return path
}

func TestCreateAWSConfig(t *testing.T) {
	isolateAWSEnv(t)

	cfg, err := CreateAWSConfig(context.Background(), "eu-west-1",
		WithStaticCredentials("AKIDEXAMPLE", "secret", ""),
		WithHTTPTracing(),
	)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)

	client, ok := cfg.HTTPClient.(*http.Client)
	require.True(t, ok)
	_, ok = client.Transport.(*otelhttp.Transport)
	assert.True(t, ok, "transport is traced")
}

func TestCreateAWSConfig_CABundle(t *testing.T) {
	isolateAWSEnv(t)
	t.Setenv("AWS_CA_BUNDLE", writeCABundle(t))

	t.Run("untraced keeps the SDK client", func(t *testing.T) {
		cfg, err := CreateAWSConfig(context.Background(), "us-east-1",
			WithStaticCredentials("AKIDEXAMPLE", "secret", ""))
		require.NoError(t, err)

		bc, ok := cfg.HTTPClient.(*awshttp.BuildableClient)
		require.True(t, ok, "got %T", cfg.HTTPClient)
		tlsCfg := bc.GetTransport().TLSClientConfig
		require.NotNil(t, tlsCfg)
		assert.NotNil(t, tlsCfg.RootCAs, "custom CA bundle applied")
	})

	t.Run("traced wraps the SDK client", func(t *testing.T) {
		cfg, err := CreateAWSConfig(context.Background(), "us-east-1",
			WithStaticCredentials("AKIDEXAMPLE", "secret", ""),
			WithHTTPTracing(),
		)
		require.NoError(t, err)

		client, ok := cfg.HTTPClient.(*http.Client)
		require.True(t, ok)
		_, ok = client.Transport.(*otelhttp.Transport)
		assert.True(t, ok, "transport is traced")
	})
}

func TestTracedClient(t *testing.T) {
	var served int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		assert.NotEmpty(t, r.Header.Get("Traceparent"), "trace context is propagated")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "chat")
	defer span.End()

	client := tracedClient(awshttp.NewBuildableClient())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, served)
}

func TestResolveRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	assert.Equal(t, DefaultRegion, resolveRegion(""))

	t.Setenv("AWS_DEFAULT_REGION", "ap-south-1")
	assert.Equal(t, "ap-south-1", resolveRegion(""))

	t.Setenv("AWS_REGION", "us-west-2")
	assert.Equal(t, "us-west-2", resolveRegion(""))
	assert.Equal(t, "eu-central-1", resolveRegion("eu-central-1"))
}
