package compare

import (
	"context"
	"errors"
	"fmt"

	"romlib/internal/convert"
	"romlib/internal/program"
)

// Group is a set of equivalent images. The first image is the one the
// others were compared against.
type Group []*program.Image

// FindDuplicates partitions images into groups of equivalent programs and
// returns only groups with more than one member, in input order. An image
// that fails to convert is excluded from further comparisons and the errors
// are joined into the returned error. Context cancellation stops the search.
func FindDuplicates(ctx context.Context, comparer Comparer, images []*program.Image) ([]Group, error) {
	var (
		groups []Group
		failed []error
		bad    = make(map[*program.Image]bool)
	)
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		placed := false
		for i, group := range groups {
			if bad[group[0]] {
				continue
			}
			result, err := comparer.Compare(ctx, group[0], program.Info{}, img, program.Info{})
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				failed = append(failed, fmt.Errorf("%s vs %s: %w", group[0].Name(), img.Name(), err))
				var convErr *convert.ConversionError
				if errors.As(err, &convErr) && convErr.Path == group[0].Primary.String() {
					bad[group[0]] = true
					continue
				}
				bad[img] = true
				break
			}
			if result == 0 {
				groups[i] = append(group, img)
				placed = true
				break
			}
		}
		if !placed && !bad[img] {
			groups = append(groups, Group{img})
		}
	}

	duplicates := groups[:0]
	for _, group := range groups {
		if len(group) > 1 {
			duplicates = append(duplicates, group)
		}
	}
	return duplicates, errors.Join(failed...)
}
