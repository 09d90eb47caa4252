//go:build linux

package watcher

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Superblock magic numbers from statfs(2).
const (
	nfsMagic  int64 = 0x6969
	smbMagic  int64 = 0x517B
	cifsMagic int64 = 0xFF534D42
	smb2Magic int64 = 0xFE534D42
	fuseMagic int64 = 0x65735546
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}
	switch int64(st.Type) {
	case nfsMagic:
		return FSTypeNFS
	case smbMagic, cifsMagic, smb2Magic:
		return FSTypeSMB
	case fuseMagic:
		if strings.Contains(mountType(path), "sshfs") {
			return FSTypeSSHFS
		}
		return FSTypeFUSE
	}
	return FSTypeLocal
}

// mountType returns the fstype of the longest mount point containing path,
// read from /proc/self/mountinfo, or "" if it cannot be determined.
func mountType(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	data, err := os.ReadFile("/proc/self/mountinfo")
	if err != nil {
		return ""
	}

	var best, bestType string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		// id parent major:minor root mount_point options [optional...] - fstype source super_options
		pre, post, ok := strings.Cut(sc.Text(), " - ")
		if !ok {
			continue
		}
		fields := strings.Fields(pre)
		rest := strings.Fields(post)
		if len(fields) < 5 || len(rest) < 1 {
			continue
		}
		mp := unescapeMount(fields[4])
		if withinMount(abs, mp) && len(mp) > len(best) {
			best, bestType = mp, rest[0]
		}
	}
	return bestType
}

func withinMount(path, mp string) bool {
	switch {
	case mp == "":
		return false
	case mp == "/", path == mp:
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(mp, "/")+"/")
}

// unescapeMount undoes the octal escapes the kernel uses in mountinfo.
func unescapeMount(s string) string {
	return strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`).Replace(s)
}
