package auth

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SignerKeySource is the resolved origin of the signing key, either a
// SecretKey or a FilePrivateKey.
type SignerKeySource interface {
	isSignerKeySource()
}

// SecretKey is an HMAC shared secret
type SecretKey struct {
	Secret string
}

// FilePrivateKey is a PEM encoded RSA private key on disk
type FilePrivateKey struct {
	Path     string
	Password string
}

func (SecretKey) isSignerKeySource()      {}
func (FilePrivateKey) isSignerKeySource() {}

// Signer holds the key material for one token operation
type Signer struct {
	Method          jwt.SigningMethod
	SigningKey      any
	VerificationKey any
	Source          SignerKeySource
}

// ResolveSignerKeySource decides how the configured signer key is used.
// A value that resolves to an existing file is a private key path,
// anything else is a shared secret.
func ResolveSignerKeySource(cfg Config) (SignerKeySource, error) {
	key := cfg.GetSignerKey()
	if strings.TrimSpace(key) == "" {
		return nil, ErrMissingSignerKey
	}

	if path, ok := resolveKeyPath(key, cfg.GetBasePath()); ok {
		return FilePrivateKey{Path: path, Password: cfg.GetKeyPassword()}, nil
	}

	return SecretKey{Secret: key}, nil
}

// ResolveSigner loads the signing and verification keys. Nothing is
// cached, configuration changes apply to the next call.
func ResolveSigner(cfg Config) (*Signer, error) {
	source, err := ResolveSignerKeySource(cfg)
	if err != nil {
		return nil, err
	}

	switch src := source.(type) {
	case SecretKey:
		return &Signer{
			Method:          jwt.SigningMethodHS256,
			SigningKey:      []byte(src.Secret),
			VerificationKey: []byte(src.Secret),
			Source:          src,
		}, nil
	case FilePrivateKey:
		return resolveRSASigner(cfg, src)
	}

	return nil, ErrInvalidKey
}

func resolveRSASigner(cfg Config, src FilePrivateKey) (*Signer, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, withSource(ErrInvalidKey, err, map[string]any{"path": src.Path})
	}

	signingKey, err := parseRSAPrivateKey(data, src.Password)
	if err != nil {
		return nil, withSource(ErrInvalidKey, err, map[string]any{"path": src.Path})
	}

	publicPath := cfg.GetPublicKey()
	if strings.TrimSpace(publicPath) == "" {
		return nil, ErrMissingPublicKey
	}

	resolved, ok := resolveKeyPath(publicPath, cfg.GetBasePath())
	if !ok {
		return nil, withSource(ErrMissingPublicKey, nil, map[string]any{"path": publicPath})
	}

	publicData, err := os.ReadFile(resolved)
	if err != nil {
		return nil, withSource(ErrMissingPublicKey, err, map[string]any{"path": resolved})
	}

	verificationKey, err := jwt.ParseRSAPublicKeyFromPEM(publicData)
	if err != nil {
		return nil, withSource(ErrMissingPublicKey, err, map[string]any{"path": resolved})
	}

	return &Signer{
		Method:          jwt.SigningMethodRS256,
		SigningKey:      signingKey,
		VerificationKey: verificationKey,
		Source:          src,
	}, nil
}

func parseRSAPrivateKey(data []byte, password string) (any, error) {
	if password == "" {
		return jwt.ParseRSAPrivateKeyFromPEM(data)
	}
	//nolint:staticcheck // legacy encrypted PEM blocks are still in use
	return jwt.ParseRSAPrivateKeyFromPEMWithPassword(data, password)
}

// resolveKeyPath returns the absolute path of key when it points to a
// regular file, either as given or relative to basePath
func resolveKeyPath(key, basePath string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, "\n\r") {
		return "", false
	}

	candidates := []string{key}
	if basePath != "" && !filepath.IsAbs(key) {
		candidates = append([]string{filepath.Join(basePath, key)}, candidates...)
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}

	return "", false
}
