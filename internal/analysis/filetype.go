package analysis

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// ErrUnexpectedType 文件头与期望的工件格式不符
var ErrUnexpectedType = errors.New("unexpected artifact type")

// headerLen 262 bytes 是 filetype 库建议的最佳长度
const headerLen = 262

// SniffKind 读取文件头，返回识别出的真实类型后缀 (未知返回 "unknown")
func SniffKind(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file failed: %w", err)
	}
	defer file.Close()

	head := make([]byte, headerLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read header failed: %w", err)
	}
	if n == 0 {
		return "unknown", nil
	}

	kind, _ := filetype.Match(head[:n])
	if kind == filetype.Unknown {
		return "unknown", nil
	}
	return kind.Extension, nil
}

// ExpectKind 校验工件文件头，防止把损坏或伪装的文件交给解析器
func ExpectKind(path, ext string) error {
	got, err := SniffKind(path)
	if err != nil {
		return err
	}
	if got != ext {
		return fmt.Errorf("%w: header is '%s', expected '%s'", ErrUnexpectedType, got, ext)
	}
	return nil
}
