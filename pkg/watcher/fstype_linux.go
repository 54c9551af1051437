//go:build linux

package watcher

import (
	"bufio"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// statfs f_type magic numbers, see statfs(2).
const (
	nfsSuperMagic  = 0x6969
	smbSuperMagic  = 0x517B
	cifsSuperMagic = 0xFF534D42
	smb2SuperMagic = 0xFE534D42
	fuseSuperMagic = 0x65735546
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}

	switch uint32(st.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, cifsSuperMagic, smb2SuperMagic:
		return FSTypeSMB
	case fuseSuperMagic:
		if mountType(path) == "fuse.sshfs" {
			return FSTypeSSHFS
		}
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}

// mountType returns the type column of the longest mount point in
// /proc/self/mounts containing path.
func mountType(path string) string {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return ""
	}
	defer f.Close()

	best, bestType := "", ""
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		mnt := fields[1]
		if !strings.HasPrefix(path, mnt) || len(mnt) <= len(best) {
			continue
		}
		if mnt != "/" && len(path) > len(mnt) && path[len(mnt)] != '/' {
			continue
		}
		best, bestType = mnt, fields[2]
	}
	return bestType
}
