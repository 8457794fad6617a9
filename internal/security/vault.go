// internal/security/vault.go
package security

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MasterKeyPath is where the wallet encryption key lives in every provider.
const MasterKeyPath = "wallet/master-key"

// VaultProvider is a secret storage backend.
type VaultProvider interface {
	GetSecret(ctx context.Context, path string) (string, error)
	SetSecret(ctx context.Context, path, value string) error
}

// Vault resolves secrets through a provider with a short lived cache.
type Vault struct {
	provider   VaultProvider
	cache      map[string]*cachedSecret
	cacheMutex sync.RWMutex
	cacheTTL   time.Duration
	logger     *zap.Logger
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

func NewVault(provider VaultProvider, logger *zap.Logger) *Vault {
	return &Vault{
		provider: provider,
		cache:    make(map[string]*cachedSecret),
		cacheTTL: 5 * time.Minute,
		logger:   logger,
	}
}

func (v *Vault) GetMasterKey(ctx context.Context) (string, error) {
	return v.GetSecret(ctx, MasterKeyPath)
}

func (v *Vault) GetSecret(ctx context.Context, path string) (string, error) {
	v.cacheMutex.RLock()
	if cached, ok := v.cache[path]; ok && time.Now().Before(cached.expiresAt) {
		v.cacheMutex.RUnlock()
		return cached.value, nil
	}
	v.cacheMutex.RUnlock()

	v.logger.Debug("fetching secret from provider", zap.String("path", path))
	secret, err := v.provider.GetSecret(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to get secret from vault: %w", err)
	}

	v.cacheMutex.Lock()
	v.cache[path] = &cachedSecret{
		value:     secret,
		expiresAt: time.Now().Add(v.cacheTTL),
	}
	v.cacheMutex.Unlock()

	return secret, nil
}

func (v *Vault) SetSecret(ctx context.Context, path, value string) error {
	if err := v.provider.SetSecret(ctx, path, value); err != nil {
		return fmt.Errorf("failed to set secret in vault: %w", err)
	}

	v.cacheMutex.Lock()
	delete(v.cache, path)
	v.cacheMutex.Unlock()

	v.logger.Info("secret updated in vault", zap.String("path", path))
	return nil
}

// EnvVaultProvider maps "wallet/master-key" to WALLET_MASTER_KEY.
type EnvVaultProvider struct{}

func NewEnvVaultProvider() *EnvVaultProvider {
	return &EnvVaultProvider{}
}

func (p *EnvVaultProvider) GetSecret(ctx context.Context, path string) (string, error) {
	envKey := pathToEnvKey(path)
	value := os.Getenv(envKey)
	if value == "" {
		return "", fmt.Errorf("secret not found: %s (env: %s)", path, envKey)
	}
	return value, nil
}

func (p *EnvVaultProvider) SetSecret(ctx context.Context, path, value string) error {
	return os.Setenv(pathToEnvKey(path), value)
}

// FileVaultProvider keeps each secret in its own sealed file under baseDir.
type FileVaultProvider struct {
	baseDir    string
	encryption *Encryption
	mutex      sync.RWMutex
}

func NewFileVaultProvider(baseDir, encryptionKey string) (*FileVaultProvider, error) {
	encryption, err := NewEncryption(encryptionKey)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	return &FileVaultProvider{
		baseDir:    baseDir,
		encryption: encryption,
	}, nil
}

func (p *FileVaultProvider) GetSecret(ctx context.Context, path string) (string, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	ciphertext, err := os.ReadFile(p.filePath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret not found: %s", path)
		}
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	plaintext, err := p.encryption.DecryptBytes(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return string(plaintext), nil
}

func (p *FileVaultProvider) SetSecret(ctx context.Context, path, value string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	ciphertext, err := p.encryption.EncryptBytes([]byte(value))
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}

	filePath := p.filePath(path)
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, ciphertext, 0600); err != nil {
		return fmt.Errorf("failed to write secret: %w", err)
	}
	return nil
}

func (p *FileVaultProvider) filePath(path string) string {
	return filepath.Join(p.baseDir, path+".enc")
}

func pathToEnvKey(path string) string {
	key := strings.ToUpper(path)
	key = strings.ReplaceAll(key, "/", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}
