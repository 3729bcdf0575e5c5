package convert

import (
	"path/filepath"

	"romlib/internal/program"
)

// NeedsLocalCopy reports whether img must be copied to a private directory
// before conversion: archive members, stock or misnamed companions, and
// sources on network or removable filesystems.
func NeedsLocalCopy(img *program.Image) bool {
	if img.Primary.InArchive() {
		return true
	}
	if img.HasCompanion() {
		if img.StockCompanion || img.Companion.InArchive() {
			return true
		}
		if img.Companion.Base() != img.Primary.Base() {
			return true
		}
		if filepath.Dir(img.Companion.Path) != filepath.Dir(img.Primary.Path) {
			return true
		}
		if filepath.Ext(img.Companion.Name()) != program.CompanionExtension {
			return true
		}
	}
	return isRemoteOrRemovable(img.Primary.Path)
}
