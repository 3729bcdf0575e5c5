package compare

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"romlib/internal/program"
)

// Comparer reports whether two images hold the same program. The result is
// zero for equivalent images; non-zero values carry no meaning beyond
// inequality.
type Comparer interface {
	Compare(ctx context.Context, a *program.Image, aInfo program.Info, b *program.Image, bInfo program.Info) (int, error)
}

// New returns the Comparer for mode. Canonical modes require a session.
func New(mode Mode, session *Session) (Comparer, error) {
	switch mode {
	case CRC:
		return crcComparer{}, nil
	case Strict:
		return strictComparer{}, nil
	case Canonical, CanonicalStrict:
		if session == nil {
			return nil, fmt.Errorf("%s comparison requires a session", mode)
		}
		return &canonicalComparer{session: session, strict: mode == CanonicalStrict}, nil
	}
	return nil, fmt.Errorf("unknown comparison mode %d", int(mode))
}

type crcComparer struct{}

func (crcComparer) Compare(_ context.Context, a *program.Image, _ program.Info, b *program.Image, _ program.Info) (int, error) {
	return compareChecksums(a, b)
}

type strictComparer struct{}

func (strictComparer) Compare(_ context.Context, a *program.Image, aInfo program.Info, b *program.Image, bInfo program.Info) (int, error) {
	if result, err := compareChecksums(a, b); err != nil || result != 0 {
		return result, err
	}
	return compareFeatures(aInfo.Features, bInfo.Features), nil
}

// compareChecksums compares primary checksums and, when both images carry a
// companion, companion checksums.
func compareChecksums(a, b *program.Image) (int, error) {
	if !a.Valid() || !b.Valid() {
		return 0, errors.New("compare: invalid image")
	}
	ap, ac, err := a.Checksums()
	if err != nil {
		return 0, err
	}
	bp, bc, err := b.Checksums()
	if err != nil {
		return 0, err
	}
	if result := cmp.Compare(ap, bp); result != 0 {
		return result, nil
	}
	if a.HasCompanion() && b.HasCompanion() {
		return cmp.Compare(ac, bc), nil
	}
	return 0, nil
}

func compareFeatures(a, b program.Features) int {
	if a.Equal(b) {
		return 0
	}
	if result := cmp.Compare(a.Flags, b.Flags); result != 0 {
		return result
	}
	return cmp.Compare(a.Extended, b.Extended)
}

type canonicalComparer struct {
	session *Session
	strict  bool
}

// Compare takes the checksum fast path first and only converts when it
// reports a difference. Conversion failures are returned as errors; a
// canonical output that cannot be read compares unequal.
func (c *canonicalComparer) Compare(ctx context.Context, a *program.Image, aInfo program.Info, b *program.Image, bInfo program.Info) (int, error) {
	var fast Comparer = crcComparer{}
	if c.strict {
		fast = strictComparer{}
	}
	result, err := fast.Compare(ctx, a, aInfo, b, bInfo)
	if err != nil || result == 0 {
		return result, err
	}

	ca, err := c.session.Canonical(ctx, a)
	if err != nil {
		return 1, err
	}
	cb, err := c.session.Canonical(ctx, b)
	if err != nil {
		return 1, err
	}

	ignored := c.session.Ignored()
	if c.strict {
		ha, errA := ca.Header()
		hb, errB := cb.Header()
		if errA != nil || errB != nil {
			c.session.unreadable(ctx, errors.Join(errA, errB))
			return 1, nil
		}
		if result := compareFeatures(ha.Features, hb.Features); result != 0 {
			return result, nil
		}
		ignored = program.Features{}
	}

	sa, errA := program.CanonicalChecksum(ca.Primary, ignored)
	sb, errB := program.CanonicalChecksum(cb.Primary, ignored)
	if errA != nil || errB != nil {
		c.session.unreadable(ctx, errors.Join(errA, errB))
		return 1, nil
	}
	return cmp.Compare(sa, sb), nil
}
