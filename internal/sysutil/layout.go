package sysutil

import (
	"os"
	"path/filepath"
)

// ExpectedLayout 典型 iOS 文件系统镜像应有的目录
var ExpectedLayout = []string{
	"private/var/mobile",
	"private/var/root",
	"private/var/containers",
}

// MissingLayoutDirs 返回镜像中缺失的典型目录；缺失只提示，不阻断扫描
func MissingLayoutDirs(root string) []string {
	var missing []string
	for _, d := range ExpectedLayout {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(d)))
		if err != nil || !info.IsDir() {
			missing = append(missing, d)
		}
	}
	return missing
}

// IsDir 路径存在且为目录
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
