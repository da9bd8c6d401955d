package sut

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func TestRetrieverStartup(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs the service binary")
	}

	// 1. Build the binary
	cmdBuild := exec.Command("go", "build", "-o", "community-retriever-sut", "./cmd/community-retriever")
	cmdBuild.Dir = "../../"
	out, err := cmdBuild.CombinedOutput()
	require.NoError(t, err, "failed to build binary: %s", out)
	defer func() { _ = os.Remove("../../community-retriever-sut") }()

	// 2. Start it. Upstreams are only contacted on the first retrieval, so none are needed here.
	httpAddr, grpcAddr := freeAddr(t), freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmdRun := exec.CommandContext(ctx, "./community-retriever-sut", "serve")
	cmdRun.Dir = "../../"
	cmdRun.Env = append(os.Environ(),
		"HTTP_ADDR="+httpAddr,
		"GRPC_HEALTH_ADDR="+grpcAddr,
		"OPENAI_API_KEY=",
		"LLM_PROVIDER=tgi",
		"EMBEDDING_PROVIDER=tei",
	)
	require.NoError(t, cmdRun.Start())
	defer func() {
		cancel()
		_ = cmdRun.Wait()
	}()

	// 3. The health check answers once the HTTP server is up.
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + httpAddr + "/v1/health_check")
		if err != nil {
			return false
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return false
		}
		return true
	}, 10*time.Second, 100*time.Millisecond)
	defer func() { _ = resp.Body.Close() }()

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, false, health["ready"])

	// 4. gRPC health reports the retriever as not serving until the first query.
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	checkCtx, checkCancel := context.WithTimeout(ctx, 5*time.Second)
	defer checkCancel()
	status, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{Service: "retriever"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status.GetStatus())
}
