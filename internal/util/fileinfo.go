package util

import (
	"os"

	"golang.org/x/sys/unix"
)

// FileInfo contains extended file information, including modification time, size, and inode number.
type FileInfo struct {
	ModTime int64  // Last modification time of the file
	Size    int64  // File size in bytes
	Inode   uint64 // Inode number (unique file identifier on Unix-like systems)
}

// GetFileInfo retrieves detailed file information, including inode number.
// Supported on Linux and macOS.
func GetFileInfo(path string) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return nil, err
	}

	return &FileInfo{
		ModTime: stat.ModTime().Unix(),
		Size:    stat.Size(),
		Inode:   uint64(st.Ino),
	}, nil
}

// SameFile reports whether path still refers to the file with the given
// inode.
func SameFile(path string, inode uint64) bool {
	info, err := GetFileInfo(path)
	if err != nil {
		return false
	}
	return info.Inode == inode
}
