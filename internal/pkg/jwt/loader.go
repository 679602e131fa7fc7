// internal/pkg/jwt/loader.go
package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"time"
)

type Config struct {
	PrivPath   string
	PubPath    string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	KID        string
}

type Manager struct {
	Generator *Generator
	Verifier  *Verifier
}

// LoadAndBuild loads the key pair named in cfg. With no PrivPath an
// ephemeral 2048-bit key is generated; tokens then die with the process.
func LoadAndBuild(cfg Config) (*Manager, error) {
	var (
		priv *rsa.PrivateKey
		pub  *rsa.PublicKey
		err  error
	)

	if cfg.PrivPath == "" {
		priv, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
		}
		pub = &priv.PublicKey
	} else {
		priv, err = LoadRSAPrivateKeyFromPEM(cfg.PrivPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load private key from %s: %w", cfg.PrivPath, err)
		}
		pub = &priv.PublicKey
		if cfg.PubPath != "" {
			pub, err = LoadRSAPublicKeyFromPEM(cfg.PubPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load public key from %s: %w", cfg.PubPath, err)
			}
		}
	}

	return &Manager{
		Generator: NewGenerator(priv, cfg.Issuer, cfg.Audience, cfg.KID, cfg.AccessTTL, cfg.RefreshTTL),
		Verifier:  NewVerifier(pub, cfg.Issuer, cfg.Audience),
	}, nil
}
