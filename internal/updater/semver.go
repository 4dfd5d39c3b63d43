package updater

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// IsNewer reports whether latest is a higher version than current. Both
// accept an optional "v" prefix. A current version that does not parse,
// such as "dev", is treated as older than any release.
func IsNewer(current, latest string) (bool, error) {
	l, err := semver.NewVersion(latest)
	if err != nil {
		return false, fmt.Errorf("invalid release version %q: %w", latest, err)
	}
	c, err := semver.NewVersion(current)
	if err != nil {
		return true, nil
	}
	return c.LessThan(l), nil
}
