package crypto

import (
	"context"

	"github.com/caarlos0/env/v10"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/pkg/errors"

	"github.com/achuala/go-pasta/pkg/cache"
	"github.com/achuala/go-pasta/pkg/crypto/hash"
	"github.com/achuala/go-pasta/pkg/crypto/hashfmt"
	"github.com/achuala/go-pasta/pkg/crypto/password"
	"github.com/achuala/go-pasta/pkg/crypto/pwconfig"
)

// CryptoConfig is read from the environment.
type CryptoConfig struct {
	// ConfigPath points at the YAML password policy. A missing file selects
	// the built-in policy.
	ConfigPath string `env:"PASTA_CONFIG" envDefault:".pasta.yaml"`
	// DecodeCacheSize bounds the decoded token cache, zero disables it.
	DecodeCacheSize uint64 `env:"PASTA_DECODE_CACHE_SIZE" envDefault:"10000"`
	// HmacKeys enables the keyed hmac primitive, as "id:key,id:key".
	HmacKeys map[string]string `env:"PASTA_HMAC_KEYS"`
}

// LoadCryptoConfig parses CryptoConfig from the environment.
func LoadCryptoConfig() (*CryptoConfig, error) {
	var cfg CryptoConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "unable to parse crypto config")
	}
	return &cfg, nil
}

// CryptoUtil hashes and verifies passwords under a policy file.
type CryptoUtil struct {
	engine *password.Engine
}

func NewCryptoUtil(cfg *CryptoConfig, logger log.Logger) (*CryptoUtil, error) {
	helper := log.NewHelper(log.With(logger, "module", "crypto"))

	reg := hash.DefaultRegistry()
	if len(cfg.HmacKeys) > 0 {
		reg = hash.NewRegistry()
		if err := hash.RegisterBuiltins(reg); err != nil {
			return nil, err
		}
		keys := make(hash.StaticKeyring, len(cfg.HmacKeys))
		for id, key := range cfg.HmacKeys {
			keys[id] = []byte(key)
		}
		if err := reg.Register(hash.IDHMAC, hash.HMACFactory(keys)); err != nil {
			return nil, err
		}
	}

	policy, err := pwconfig.NewResolver(reg, pwconfig.WithLogger(logger)).FromFile(cfg.ConfigPath)
	if errors.Is(err, pwconfig.ErrConfigNotFound) {
		helper.Infow("msg", "password policy not found, using defaults", "path", cfg.ConfigPath)
		policy, err = pwconfig.Default(), nil
	}
	if err != nil {
		return nil, err
	}

	var codecOpts []hashfmt.Option
	if cfg.DecodeCacheSize > 0 {
		c, err := cache.NewCache(&cache.CacheConfig{CacheName: "pasta-tokens", MaxElements: cfg.DecodeCacheSize})
		if err != nil {
			return nil, err
		}
		codecOpts = append(codecOpts, hashfmt.WithCache(c))
	}

	engine, err := password.NewEngine(policy, reg,
		password.WithLogger(logger),
		password.WithCodec(hashfmt.NewCodec(reg, codecOpts...)),
	)
	if err != nil {
		return nil, err
	}
	return &CryptoUtil{engine: engine}, nil
}

// Engine exposes the underlying engine for role-aware calls.
func (u *CryptoUtil) Engine() *password.Engine {
	return u.engine
}

// HashPassword returns a new token for plain under the default policy.
func (u *CryptoUtil) HashPassword(ctx context.Context, plain string) (string, error) {
	return u.engine.Hash(ctx, []byte(plain))
}

// VerifyPassword reports whether plain matches stored.
func (u *CryptoUtil) VerifyPassword(ctx context.Context, plain, stored string) (bool, error) {
	res, err := u.engine.Verify(ctx, []byte(plain), stored)
	return res.Matched, err
}

// VerifyPasswordUpdateHash verifies plain and also returns a replacement
// token when stored is outdated. The replacement is empty otherwise.
func (u *CryptoUtil) VerifyPasswordUpdateHash(ctx context.Context, plain, stored string) (bool, string, error) {
	res, token, err := u.engine.VerifyAndUpdate(ctx, []byte(plain), stored)
	return res.Matched, token, err
}

// MigrateHash upgrades stored to the current policy without the password.
func (u *CryptoUtil) MigrateHash(ctx context.Context, stored string) (string, error) {
	return u.engine.Migrate(ctx, stored)
}
