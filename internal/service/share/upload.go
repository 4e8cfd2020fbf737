package share

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen 内容类型嗅探读取的头部长度
const sniffLen = 3072

// errFileTooLarge 上传流超过大小上限
var errFileTooLarge = errors.New("file exceeds size limit")

// CoerceDownloadLimit 解析下载次数上限
// 非整数或 <=0 时使用默认值
func CoerceDownloadLimit(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// SanitizeFileName 清洗上传文件名
// 只保留最后一段路径，去除控制字符和首尾空白
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '"' {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// extensionAllowed 判断扩展名是否在白名单中，白名单包含 "*" 时全部放行
func extensionAllowed(ext string, allowed []string) bool {
	ext = strings.ToLower(ext)
	for _, a := range allowed {
		if a == "*" || (ext != "" && a == ext) {
			return true
		}
	}
	return false
}

// BuildLink 生成下载链接，设置了密码时附带 password 查询参数
func BuildLink(baseURL, alias, password string) string {
	link := strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(alias)
	if password != "" {
		link += "?password=" + url.QueryEscape(password)
	}
	return link
}

// sniffContentType 读取头部嗅探MIME类型，返回的 reader 仍包含完整内容
func sniffContentType(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]
	mtype := mimetype.Detect(head)
	return mtype.String(), io.MultiReader(bytes.NewReader(head), r), nil
}

// sizeLimitReader 读取超过上限时返回 errFileTooLarge
type sizeLimitReader struct {
	r         io.Reader
	remaining int64
}

func newSizeLimitReader(r io.Reader, max int64) *sizeLimitReader {
	return &sizeLimitReader{r: r, remaining: max}
}

func (l *sizeLimitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errFileTooLarge
	}
	// 多读一个字节用于判断是否超限
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errFileTooLarge
	}
	return n, err
}
