package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
	"github.com/hive-corporation/fraudshield/internal/core/service"
)

func startBufconnServer(t *testing.T) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(service.NewDetectionService(service.Options{}))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGrpc_Analyze(t *testing.T) {
	client := NewDetectorClient(startBufconnServer(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Analyze(ctx, domain.KindText, scamText, "")
	require.NoError(t, err)
	assert.True(t, resp.IsFraudulent)
	assert.Equal(t, domain.TierFraud, resp.RiskTier)
	assert.Equal(t, "heuristic", resp.Source)
	require.NotNil(t, resp.Analysis)
	assert.GreaterOrEqual(t, resp.Analysis.Score, 60)
}

func TestGrpc_AnalyzeMalformedURL(t *testing.T) {
	client := NewDetectorClient(startBufconnServer(t))

	_, err := client.Analyze(context.Background(), domain.KindURL, "ftp://files.example/x", "")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGrpc_AnalyzeImageUnavailable(t *testing.T) {
	client := NewDetectorClient(startBufconnServer(t))

	_, err := client.Analyze(context.Background(), domain.KindImage, pngHeader, "a.png")
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGrpc_UnknownType(t *testing.T) {
	conn := startBufconnServer(t)

	req, err := structpb.NewStruct(map[string]interface{}{"type": "audio", "content": "x"})
	require.NoError(t, err)

	err = conn.Invoke(context.Background(), analyzeMethod, req, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGrpc_Score(t *testing.T) {
	client := NewDetectorClient(startBufconnServer(t))

	result, err := client.Score(context.Background(), "", "http://192.168.10.5/secure-login")
	require.NoError(t, err)
	assert.Equal(t, domain.KindURL, result.Kind)
	assert.NotEmpty(t, result.MatchedRules)

	_, err = client.Score(context.Background(), domain.KindText, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGrpc_Health(t *testing.T) {
	conn := startBufconnServer(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: DetectorServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
