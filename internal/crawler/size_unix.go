//go:build unix

package crawler

import (
	"io/fs"
	"sync"
	"syscall"
)

type inode struct {
	dev, ino uint64
}

// allocatedSize returns the bytes occupied on disk. A file with several
// hard links is counted the first time one of its names is seen.
func allocatedSize(info fs.FileInfo, seen *sync.Map) (int64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	if st.Nlink > 1 && !info.IsDir() {
		key := inode{dev: uint64(st.Dev), ino: uint64(st.Ino)}
		if _, loaded := seen.LoadOrStore(key, struct{}{}); loaded {
			return 0, true
		}
	}
	return int64(st.Blocks) * 512, true
}

func deviceOf(info fs.FileInfo) (uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Dev), true
}
