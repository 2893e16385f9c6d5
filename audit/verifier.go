package audit

import (
	"context"
	"crypto/rsa"

	"github.com/kasparena/anchorcore/model"
	"github.com/kasparena/anchorcore/ulogger"
)

// Verifier runs the five ordered checks of spec.md §4.7 over a Bundle and
// produces a Verdict. It owns only read-only views it builds from parsed
// payloads and never mutates any orchestrator state (spec.md §3).
type Verifier struct {
	logger  ulogger.Logger
	source  EntropySource
	betaPub *rsa.PublicKey
}

// Option configures an optional Verifier dependency.
type Option func(*Verifier)

// WithEntropySource supplies the external collaborator for check 2. Without
// one, check 2 degrades to a single warning (spec.md "absence ... is a
// warning, not a failure").
func WithEntropySource(src EntropySource) Option {
	return func(v *Verifier) { v.source = src }
}

// WithBetaPublicKey supplies the NIST beacon's public key for strict
// RSASSA-PKCS1-v1_5-SHA512 signature verification. Without one, a present
// signature degrades to a nist_signature_unverified warning (DESIGN.md
// Open Question #3).
func WithBetaPublicKey(pub *rsa.PublicKey) Option {
	return func(v *Verifier) { v.betaPub = pub }
}

// New builds a Verifier.
func New(logger ulogger.Logger, opts ...Option) *Verifier {
	v := &Verifier{logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs all five checks in order, accumulating reasons and warnings
// rather than stopping at the first failure, so a caller always sees the
// full picture of what diverged.
func (vf *Verifier) Verify(ctx context.Context, b Bundle) *Verdict {
	v := &Verdict{OK: true}

	actions := b.Actions
	if actions == nil {
		actions = model.NewActionMap()
	}

	d := decodeBundle(b, v)

	checkStructural(d, v)
	checkExternalEntropy(ctx, vf.source, vf.betaPub, d, v)
	checkResultHash(d, v)
	checkMerkleReconciliation(d, actions, v)
	checkVrfReplay(b, v)

	if vf.logger != nil {
		if v.OK {
			vf.logger.Infof("audit verdict for %s: clean", b.GameID)
		} else {
			vf.logger.Warnf("audit verdict for %s: %d reason(s), %d warning(s)", b.GameID, len(v.Reasons), len(v.Warnings))
		}
	}

	return v
}
