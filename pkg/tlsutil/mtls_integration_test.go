package tlsutil

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagwave/vision-middleware/pkg/security"
)

// mtlsTestFiles generates a server cert and a client cert (self-signed, so
// each cert doubles as its own CA) and writes them under a temp dir.
type mtlsTestFiles struct {
	serverCert string
	serverKey  string
	clientCert string
	clientKey  string
}

func setupMTLSFiles(t *testing.T, clientCN string) mtlsTestFiles {
	t.Helper()

	tmpDir := t.TempDir()

	serverCertPEM, serverKeyPEM := generateTestCert(t, "localhost")
	clientCertPEM, clientKeyPEM := generateTestCert(t, clientCN)

	files := mtlsTestFiles{
		serverCert: filepath.Join(tmpDir, "server-cert.pem"),
		serverKey:  filepath.Join(tmpDir, "server-key.pem"),
		clientCert: filepath.Join(tmpDir, "client-cert.pem"),
		clientKey:  filepath.Join(tmpDir, "client-key.pem"),
	}

	require.NoError(t, os.WriteFile(files.serverCert, serverCertPEM, 0644))
	require.NoError(t, os.WriteFile(files.serverKey, serverKeyPEM, 0600))
	require.NoError(t, os.WriteFile(files.clientCert, clientCertPEM, 0644))
	require.NoError(t, os.WriteFile(files.clientKey, clientKeyPEM, 0600))

	return files
}

// startMTLSServer starts an httptest server whose TLS config comes from the
// production loader, so the handshake path under test is the real one.
func startMTLSServer(t *testing.T, files mtlsTestFiles, mtlsCfg security.ServerMTLSConfig) *httptest.Server {
	t.Helper()

	serverCfg := security.ServerTLSConfig{
		Enabled:  true,
		CertFile: files.serverCert,
		KeyFile:  files.serverKey,
	}

	tlsCfg, err := LoadServerTLSConfigWithMTLS(serverCfg, mtlsCfg)
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)

	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.TLS.PeerCertificates) > 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("authenticated: " + r.TLS.PeerCertificates[0].Subject.CommonName))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("anonymous"))
	}))
	server.TLS = tlsCfg
	server.StartTLS()
	t.Cleanup(server.Close)

	return server
}

// mtlsHTTPClient builds an HTTP client through the production client loader.
func mtlsHTTPClient(t *testing.T, files mtlsTestFiles, withCert bool) *http.Client {
	t.Helper()

	clientCfg := security.ClientTLSConfig{
		// Self-signed server cert acts as its own CA
		CAFiles: []string{files.serverCert},
	}
	mtlsCfg := security.ClientMTLSConfig{
		Enabled:  withCert,
		CertFile: files.clientCert,
		KeyFile:  files.clientKey,
	}

	tlsCfg, err := LoadClientTLSConfigWithMTLS(clientCfg, mtlsCfg)
	require.NoError(t, err)

	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: tlsCfg,
		},
	}
}

func TestMTLSHandshake_ServerRequiresClientCert(t *testing.T) {
	files := setupMTLSFiles(t, "fusion-client")

	server := startMTLSServer(t, files, security.ServerMTLSConfig{
		Enabled: true,
		// Self-signed client cert doubles as the client CA
		ClientCAFiles:     []string{files.clientCert},
		RequireClientCert: true,
	})

	client := mtlsHTTPClient(t, files, true)

	resp, err := client.Get(server.URL)
	require.NoError(t, err, "mTLS handshake should succeed with a valid client cert")
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "authenticated: fusion-client", string(body))
}

func TestMTLSHandshake_RejectsClientWithoutCert(t *testing.T) {
	files := setupMTLSFiles(t, "fusion-client")

	server := startMTLSServer(t, files, security.ServerMTLSConfig{
		Enabled:           true,
		ClientCAFiles:     []string{files.clientCert},
		RequireClientCert: true,
	})

	client := mtlsHTTPClient(t, files, false)

	resp, err := client.Get(server.URL)
	if err == nil {
		_ = resp.Body.Close()
		t.Fatal("expected handshake failure without client certificate")
	}
	assert.Contains(t, err.Error(), "tls")
}

func TestMTLSHandshake_OptionalClientCert(t *testing.T) {
	files := setupMTLSFiles(t, "fusion-client")

	server := startMTLSServer(t, files, security.ServerMTLSConfig{
		Enabled:           true,
		ClientCAFiles:     []string{files.clientCert},
		RequireClientCert: false,
	})

	// Without a client certificate the connection is still accepted
	client := mtlsHTTPClient(t, files, false)

	resp, err := client.Get(server.URL)
	require.NoError(t, err, "optional mTLS should accept anonymous clients")
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "anonymous", string(body))
}

func TestMTLSHandshake_CNWhitelist(t *testing.T) {
	t.Run("allowed CN", func(t *testing.T) {
		files := setupMTLSFiles(t, "pose-producer")

		server := startMTLSServer(t, files, security.ServerMTLSConfig{
			Enabled:           true,
			ClientCAFiles:     []string{files.clientCert},
			RequireClientCert: true,
			AllowedClientCNs:  []string{"pose-producer", "mask-producer"},
		})

		client := mtlsHTTPClient(t, files, true)

		resp, err := client.Get(server.URL)
		require.NoError(t, err, "whitelisted CN should be accepted")
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rejected CN", func(t *testing.T) {
		files := setupMTLSFiles(t, "rogue-client")

		server := startMTLSServer(t, files, security.ServerMTLSConfig{
			Enabled:           true,
			ClientCAFiles:     []string{files.clientCert},
			RequireClientCert: true,
			AllowedClientCNs:  []string{"pose-producer", "mask-producer"},
		})

		client := mtlsHTTPClient(t, files, true)

		resp, err := client.Get(server.URL)
		if err == nil {
			_ = resp.Body.Close()
			t.Fatal("expected handshake failure for non-whitelisted CN")
		}
	})
}
