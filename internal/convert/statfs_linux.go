//go:build linux

package convert

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

var remoteOrRemovableMagic = map[uint32]struct{}{
	unix.NFS_SUPER_MAGIC:   {},
	unix.SMB_SUPER_MAGIC:   {},
	unix.SMB2_SUPER_MAGIC:  {},
	unix.CIFS_SUPER_MAGIC:  {},
	unix.FUSE_SUPER_MAGIC:  {},
	unix.AFS_SUPER_MAGIC:   {},
	unix.CODA_SUPER_MAGIC:  {},
	unix.V9FS_MAGIC:        {},
	unix.MSDOS_SUPER_MAGIC: {},
	unix.EXFAT_SUPER_MAGIC: {},
	unix.ISOFS_SUPER_MAGIC: {},
	unix.UDF_SUPER_MAGIC:   {},
}

func isRemoteOrRemovable(path string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(path), &st); err != nil {
		return false
	}
	_, ok := remoteOrRemovableMagic[uint32(st.Type)]
	return ok
}
