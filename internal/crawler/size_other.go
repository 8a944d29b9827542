//go:build !unix

package crawler

import (
	"io/fs"
	"sync"
)

func allocatedSize(fs.FileInfo, *sync.Map) (int64, bool) { return 0, false }

func deviceOf(fs.FileInfo) (uint64, bool) { return 0, false }
