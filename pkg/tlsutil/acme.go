package tlsutil

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/pkg/acme"
	"github.com/kagwave/vision-middleware/pkg/security"
)

// LoadServerTLSConfigWithACME creates a listener tls.Config with ACME
// automation: certificate obtainment, renewal, and hot-reload. If ACME is
// unavailable it falls back to manual certificates when configured. The
// returned cleanup function stops the renewal loop.
func LoadServerTLSConfigWithACME(ctx context.Context, cfg security.ServerTLSConfig) (*tls.Config, func(), error) {
	mode := cfg.Mode
	if mode == "" {
		mode = "manual"
	}

	if mode != "acme" || !cfg.ACME.Enabled {
		tlsConfig, err := LoadServerTLSConfigWithMTLS(cfg, cfg.MTLS)
		return tlsConfig, func() {}, err
	}

	manualFallback := func() (*tls.Config, func(), error) {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, nil, nil
		}
		tlsConfig, err := LoadServerTLSConfigWithMTLS(cfg, cfg.MTLS)
		if err != nil {
			return nil, nil, errors.WrapFatal(err, "tlsutil", "LoadServerTLSConfigWithACME",
				"fallback to manual TLS failed")
		}
		return tlsConfig, func() {}, nil
	}

	acmeClient, err := initACMEClient(cfg.ACME)
	if err != nil {
		if tlsConfig, cleanup, fbErr := manualFallback(); tlsConfig != nil || fbErr != nil {
			return tlsConfig, cleanup, fbErr
		}
		return nil, nil, err
	}

	cert, err := obtainOrRenew(ctx, acmeClient)
	if err != nil {
		if tlsConfig, cleanup, fbErr := manualFallback(); tlsConfig != nil || fbErr != nil {
			return tlsConfig, cleanup, fbErr
		}
		return nil, nil, errors.WrapTransient(err, "tlsutil", "LoadServerTLSConfigWithACME",
			"obtain ACME certificate")
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   parseTLSVersion(cfg.MinVersion),
	}

	if cfg.MTLS.Enabled {
		if err := applyMTLSConfig(tlsConfig, cfg.MTLS); err != nil {
			return nil, nil, err
		}
	}

	cleanup := startRenewalLoop(ctx, acmeClient, tlsConfig)
	return tlsConfig, cleanup, nil
}

// LoadClientTLSConfigWithACME creates a client tls.Config whose client
// certificate is obtained and renewed via ACME, for mTLS towards upstream
// services. Falls back to manual mTLS certificates if configured.
func LoadClientTLSConfigWithACME(ctx context.Context, cfg security.ClientTLSConfig) (*tls.Config, func(), error) {
	mode := cfg.Mode
	if mode == "" {
		mode = "manual"
	}

	if mode != "acme" || !cfg.ACME.Enabled {
		tlsConfig, err := LoadClientTLSConfigWithMTLS(cfg, cfg.MTLS)
		return tlsConfig, func() {}, err
	}

	manualFallback := func() (*tls.Config, func(), error) {
		if !cfg.MTLS.Enabled || cfg.MTLS.CertFile == "" || cfg.MTLS.KeyFile == "" {
			return nil, nil, nil
		}
		tlsConfig, err := LoadClientTLSConfigWithMTLS(cfg, cfg.MTLS)
		if err != nil {
			return nil, nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfigWithACME",
				"fallback to manual client TLS failed")
		}
		return tlsConfig, func() {}, nil
	}

	tlsConfig, err := LoadClientTLSConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	acmeClient, err := initACMEClient(cfg.ACME)
	if err != nil {
		if fbConfig, cleanup, fbErr := manualFallback(); fbConfig != nil || fbErr != nil {
			return fbConfig, cleanup, fbErr
		}
		return nil, nil, err
	}

	cert, err := obtainOrRenew(ctx, acmeClient)
	if err != nil {
		if fbConfig, cleanup, fbErr := manualFallback(); fbConfig != nil || fbErr != nil {
			return fbConfig, cleanup, fbErr
		}
		return nil, nil, errors.WrapTransient(err, "tlsutil", "LoadClientTLSConfigWithACME",
			"obtain ACME client certificate")
	}

	tlsConfig.Certificates = []tls.Certificate{*cert}

	cleanup := startRenewalLoop(ctx, acmeClient, tlsConfig)
	return tlsConfig, cleanup, nil
}

// obtainOrRenew returns a usable certificate: the stored one (renewed if
// close to expiry) or a freshly obtained one.
func obtainOrRenew(ctx context.Context, client *acme.Client) (*tls.Certificate, error) {
	cert, _, err := client.RenewCertificateIfNeeded(ctx)
	if err == nil && cert != nil {
		return cert, nil
	}
	return client.ObtainCertificate(ctx)
}

// startRenewalLoop runs the background renewal check and hot-reloads the
// certificate on the given config. The returned function stops the loop and
// waits for it to exit.
func startRenewalLoop(ctx context.Context, client *acme.Client, tlsConfig *tls.Config) func() {
	renewalCtx, cancel := context.WithCancel(ctx)
	renewalDone := make(chan struct{})

	go func() {
		defer close(renewalDone)
		_ = client.StartRenewalLoop(renewalCtx, 1*time.Hour,
			func(newCert *tls.Certificate) {
				tlsConfig.Certificates = []tls.Certificate{*newCert}
			})
	}()

	return func() {
		cancel()
		<-renewalDone
	}
}

// initACMEClient creates an ACME client from security config
func initACMEClient(cfg security.ACMEConfig) (*acme.Client, error) {
	renewBefore, err := time.ParseDuration(cfg.RenewBefore)
	if err != nil {
		renewBefore = 8 * time.Hour // Default
	}

	return acme.NewClient(acme.Config{
		DirectoryURL:  cfg.DirectoryURL,
		Email:         cfg.Email,
		Domains:       cfg.Domains,
		ChallengeType: cfg.ChallengeType,
		RenewBefore:   renewBefore,
		StoragePath:   cfg.StoragePath,
		CABundle:      cfg.CABundle,
	})
}
