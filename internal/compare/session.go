package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"romlib/internal/convert"
	"romlib/internal/logging"
	"romlib/internal/program"
	"romlib/internal/stagecache"
)

// tempCopy is a private copy owned by a Session.
type tempCopy struct {
	image *program.Image
	dir   string
}

// Session owns the canonical counterparts produced while comparing. It
// remembers temporary raw copies and temporary canonical outputs by the
// original location so a program is converted at most once per session.
// ClearCache or Close deletes the backing files.
//
// A Session is not safe for concurrent use.
type Session struct {
	canon   *convert.Canonicalizer
	stage   *stagecache.Manager
	ignored program.Features
	logger  *slog.Logger

	tempRaw       map[string]tempCopy
	tempCanonical map[string]tempCopy
}

// NewSession returns a Session converting through canon. stage may be nil,
// in which case every conversion is temporary.
func NewSession(canon *convert.Canonicalizer, stage *stagecache.Manager, ignored program.Features, logger *slog.Logger) *Session {
	return &Session{
		canon:         canon,
		stage:         stage,
		ignored:       ignored,
		logger:        logging.NewComponentLogger(logger, "compare"),
		tempRaw:       make(map[string]tempCopy),
		tempCanonical: make(map[string]tempCopy),
	}
}

// Ignored returns the feature bits cleared before canonical checksums.
func (s *Session) Ignored() program.Features { return s.ignored }

// Tracked reports how many temporary raw and canonical copies are held.
func (s *Session) Tracked() (raw, canonical int) {
	return len(s.tempRaw), len(s.tempCanonical)
}

// Canonical returns a canonical counterpart of img. In order it tries a
// staged conversion whose header still matches img, a conversion already
// made in this session, a conversion of a freshly staged copy and finally a
// temporary conversion.
func (s *Session) Canonical(ctx context.Context, img *program.Image) (*program.Image, error) {
	if img.Format == program.CanonicalContainer {
		return img, nil
	}
	primary, companion, err := img.Checksums()
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, s.logger)
	key := img.Primary.String()

	if s.stage != nil {
		if staged, ok := s.stage.StagedCanonical(img); ok && s.current(staged, img.Format, primary, companion) {
			logger.Debug("using staged canonical copy", logging.String(logging.FieldPath, key))
			return staged, nil
		}
	}

	if held, ok := s.tempCanonical[key]; ok {
		if s.current(held.image, img.Format, primary, companion) {
			return held.image, nil
		}
		s.forget(key)
	}

	if s.stage != nil {
		staged, err := s.stage.Stage(ctx, img)
		if err == nil {
			res, err := s.canon.Canonicalize(ctx, staged, false)
			if err != nil {
				var convErr *convert.ConversionError
				if errors.As(err, &convErr) {
					convErr.Path = key
				}
				return nil, err
			}
			if res.Temporary {
				s.track(key, res)
			}
			return res.Image, nil
		}
		logging.WarnWithContext(logger, "staging failed; converting a temporary copy", "staging_failed",
			logging.String(logging.FieldPath, key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the staging directory"),
			logging.String(logging.FieldImpact, "conversion is repeated in later sessions"),
		)
	}

	res, err := s.canon.Canonicalize(ctx, img, true)
	if err != nil {
		return nil, err
	}
	s.track(key, res)
	return res.Image, nil
}

// current reports whether canonical was converted from content with the
// given origin and checksums.
func (s *Session) current(canonical *program.Image, origin program.Format, primary, companion uint32) bool {
	header, err := canonical.Header()
	if err != nil {
		return false
	}
	return header.Matches(origin, primary, companion)
}

func (s *Session) track(key string, res convert.Result) {
	if !res.Temporary {
		return
	}
	s.tempCanonical[key] = tempCopy{image: res.Image, dir: res.LocalCopy}
	if res.Source != nil {
		s.tempRaw[key] = tempCopy{image: res.Source, dir: res.LocalCopy}
	}
}

func (s *Session) forget(key string) error {
	var errs []error
	for _, m := range []map[string]tempCopy{s.tempRaw, s.tempCanonical} {
		held, ok := m[key]
		if !ok {
			continue
		}
		delete(m, key)
		if held.dir == "" {
			continue
		}
		if err := os.RemoveAll(held.dir); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", held.dir, err))
		}
	}
	return errors.Join(errs...)
}

// ClearCache deletes every temporary copy and forgets it.
func (s *Session) ClearCache() error {
	keys := make(map[string]struct{}, len(s.tempCanonical)+len(s.tempRaw))
	for key := range s.tempCanonical {
		keys[key] = struct{}{}
	}
	for key := range s.tempRaw {
		keys[key] = struct{}{}
	}
	var errs []error
	for key := range keys {
		if err := s.forget(key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(keys) > 0 {
		s.logger.Debug("cleared temporary copies", logging.Int("count", len(keys)))
	}
	return errors.Join(errs...)
}

// Close ends the session and removes its temporary files.
func (s *Session) Close() error {
	return s.ClearCache()
}

func (s *Session) unreadable(ctx context.Context, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "canonical output unreadable", "canonical_unreadable",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the converter may have produced a truncated file"),
		logging.String(logging.FieldImpact, "programs compared as different"),
	)
}
