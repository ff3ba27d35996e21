package password

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/pkg/errors"

	"github.com/achuala/go-pasta/pkg/crypto/hash"
	"github.com/achuala/go-pasta/pkg/crypto/hashfmt"
	"github.com/achuala/go-pasta/pkg/crypto/pwconfig"
)

// VerifyResult is the outcome of checking a password against a stored token.
type VerifyResult struct {
	Matched bool
	// NeedsRehash is set only on a match whose token is stale under the
	// active policy.
	NeedsRehash bool
	// MigrationChain lists the primitives applied to the password, innermost
	// first. A plain token has a single entry.
	MigrationChain []string
}

// Engine hashes, verifies and migrates tokens under a fixed policy. It is
// safe for concurrent use.
type Engine struct {
	cfg    *pwconfig.Config
	reg    *hash.Registry
	codec  *hashfmt.Codec
	stale  StalenessFunc
	logger log.Logger
	log    *log.Helper
}

type Option func(*Engine)

func WithStaleness(f StalenessFunc) Option {
	return func(e *Engine) {
		e.stale = f
	}
}

func WithLogger(l log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithCodec replaces the default codec, for instance with one backed by a
// decode cache.
func WithCodec(c *hashfmt.Codec) Option {
	return func(e *Engine) {
		e.codec = c
	}
}

// NewEngine checks every spec of cfg against reg.
func NewEngine(cfg *pwconfig.Config, reg *hash.Registry, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg, reg: reg, stale: DefaultStaleness, logger: log.DefaultLogger}
	for _, opt := range opts {
		opt(e)
	}
	if e.codec == nil {
		e.codec = hashfmt.NewCodec(reg)
	}
	e.log = log.NewHelper(log.With(e.logger, "module", "password"))

	if err := reg.Check(cfg.Default()); err != nil {
		return nil, errors.WithMessage(err, "default policy")
	}
	for _, role := range cfg.Roles() {
		spec, _ := cfg.Role(role)
		if err := reg.Check(spec); err != nil {
			return nil, errors.WithMessagef(err, "role %s", role)
		}
	}
	return e, nil
}

// Config returns the active policy.
func (e *Engine) Config() *pwconfig.Config {
	return e.cfg
}

// Hash creates a token for password under the default policy.
func (e *Engine) Hash(ctx context.Context, password []byte) (string, error) {
	return e.HashRole(ctx, "", password)
}

// HashRole creates a token for password under the policy of role. Unknown
// roles use the default policy.
func (e *Engine) HashRole(ctx context.Context, role string, password []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	spec := e.cfg.Resolve(role)
	p, err := e.reg.Lookup(spec.ID)
	if err != nil {
		return "", err
	}
	salt, err := p.NewSalt()
	if err != nil {
		return "", err
	}
	digest, err := p.Derive(password, salt, spec.Params)
	if err != nil {
		return "", errors.WithMessage(err, spec.ID)
	}
	return e.codec.Encode(spec, salt, digest, nil), nil
}

// Verify checks password against stored under the default policy.
func (e *Engine) Verify(ctx context.Context, password []byte, stored string) (VerifyResult, error) {
	return e.VerifyRole(ctx, "", password, stored)
}

// VerifyRole checks password against stored and reports whether the token
// is stale under the policy of role. Tokens that cannot be decoded or
// recomputed yield a *VerificationError wrapping the cause.
func (e *Engine) VerifyRole(ctx context.Context, role string, password []byte, stored string) (VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return VerifyResult{}, err
	}
	h, err := e.codec.Decode(stored)
	if err != nil {
		e.log.Warnw("msg", "stored hash rejected", "role", role, "kind", errKind(err))
		return VerifyResult{}, &VerificationError{Op: "decode", Err: err}
	}
	digest, err := e.recompute(ctx, password, h)
	if err != nil {
		if ctx.Err() != nil {
			return VerifyResult{}, err
		}
		e.log.Errorw("msg", "hash recomputation failed", "role", role, "spec", h.Spec.String(), "kind", errKind(err))
		return VerifyResult{}, &VerificationError{Op: "derive", Err: err}
	}

	res := VerifyResult{
		Matched:        subtle.ConstantTimeCompare(digest, h.Digest) == 1,
		MigrationChain: h.Chain(),
	}
	// computed on every call so a mismatch costs the same
	stale, active := e.isStale(h, role)
	res.NeedsRehash = res.Matched && stale
	if res.NeedsRehash {
		e.log.Infow("msg", "rehash required", "role", role, "stored", h.Spec.String(),
			"active", active.String(), "depth", h.Depth())
	}
	return res, nil
}

// VerifyAndUpdate verifies password and, on a stale match, returns a fresh
// token under the default policy. The token is empty when no update is due.
func (e *Engine) VerifyAndUpdate(ctx context.Context, password []byte, stored string) (VerifyResult, string, error) {
	return e.VerifyAndUpdateRole(ctx, "", password, stored)
}

func (e *Engine) VerifyAndUpdateRole(ctx context.Context, role string, password []byte, stored string) (VerifyResult, string, error) {
	res, err := e.VerifyRole(ctx, role, password, stored)
	if err != nil || !res.NeedsRehash {
		return res, "", err
	}
	token, err := e.HashRole(ctx, role, password)
	if err != nil {
		return res, "", err
	}
	return res, token, nil
}

// Migrate wraps stored under the default policy without the password.
func (e *Engine) Migrate(ctx context.Context, stored string) (string, error) {
	return e.MigrateRole(ctx, "", stored)
}

// MigrateRole wraps stored in a new outer layer under the policy of role.
// The outer digest is computed over the canonical encoding of stored and the
// inner digest is dropped. Tokens whose outer layer is already current are
// returned unchanged.
//
// A bcrypt policy fails with ErrMigrationUnsupported: bcrypt reads at most
// 72 bytes and every encoded token is longer. Such tokens are upgraded on the
// next successful login through VerifyAndUpdate instead.
func (e *Engine) MigrateRole(ctx context.Context, role string, stored string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h, err := e.codec.Decode(stored)
	if err != nil {
		return "", errors.WithMessage(err, "migrate")
	}
	active := e.cfg.Resolve(role)
	p, err := e.reg.Lookup(active.ID)
	if err != nil {
		return "", err
	}
	outer := &hashfmt.HashString{Spec: h.Spec, Salt: h.Salt, Digest: h.Digest}
	if !e.stale(outer, active, p.Schema()) {
		return stored, nil
	}
	if active.ID == hash.IDBcrypt {
		return "", errors.Wrapf(ErrMigrationUnsupported, "%s input is limited to %d bytes", active.ID, hash.BcryptMaxPassword)
	}
	if h.Depth() >= hashfmt.MaxDepth {
		return "", errors.Wrapf(hashfmt.ErrMalformedHash, "cannot wrap a token of %d layers", h.Depth())
	}

	salt, err := p.NewSalt()
	if err != nil {
		return "", err
	}
	digest, err := p.Derive([]byte(hashfmt.Encode(h)), salt, active.Params)
	if err != nil {
		return "", errors.WithMessage(err, active.ID)
	}
	inner := h.Clone()
	inner.Digest = nil
	wrapped := &hashfmt.HashString{Spec: active, Salt: salt, Digest: digest, Inner: inner}
	e.log.Infow("msg", "hash migrated", "role", role, "chain", strings.Join(wrapped.Chain(), ">"))
	return hashfmt.Encode(wrapped), nil
}

// recompute derives the digest of h from password, leaf first. Every outer
// layer is derived over the canonical encoding of the layer beneath it,
// carrying that layer's recomputed digest.
func (e *Engine) recompute(ctx context.Context, password []byte, h *hashfmt.HashString) ([]byte, error) {
	layers := make([]*hashfmt.HashString, 0, h.Depth())
	for l := h; l != nil; l = l.Inner {
		layers = append(layers, l)
	}
	input := password
	var digest []byte
	for i := len(layers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l := layers[i]
		p, err := e.reg.Lookup(l.Spec.ID)
		if err != nil {
			return nil, err
		}
		if digest, err = p.Derive(input, l.Salt, l.Spec.Params); err != nil {
			return nil, errors.WithMessage(err, l.Spec.ID)
		}
		if i > 0 {
			input = []byte(hashfmt.Encode(&hashfmt.HashString{Spec: l.Spec, Salt: l.Salt, Digest: digest, Inner: l.Inner}))
		}
	}
	return digest, nil
}

func (e *Engine) isStale(h *hashfmt.HashString, role string) (bool, hash.Spec) {
	active := e.cfg.Resolve(role)
	p, err := e.reg.Lookup(active.ID)
	if err != nil {
		return true, active
	}
	return e.stale(h, active, p.Schema()), active
}
