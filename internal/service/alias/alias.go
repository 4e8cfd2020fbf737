// Package alias 负责分配分享链接中的别名
// 别名唯一性由存储层的唯一索引保证，分配器只负责生成候选并在冲突时重试
package alias

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// MaxLength 别名最大长度，与 share_records.alias 列宽一致
	MaxLength = 64
	// DefaultLength 随机别名默认长度
	DefaultLength = 8
	// DefaultMaxAttempts 随机别名默认最大重试次数
	DefaultMaxAttempts = 32

	randomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	// ErrTaken 由 Claimer 返回(可包装)，表示别名已被占用
	ErrTaken = errors.New("alias taken")
	// ErrConflict 用户指定的别名已被占用或为保留字
	ErrConflict = errors.New("alias conflict")
	// ErrInvalid 用户指定的别名不合法
	ErrInvalid = errors.New("alias invalid")
	// ErrExhausted 随机别名重试次数耗尽
	ErrExhausted = errors.New("alias allocation exhausted")
)

// reserved 与根路径路由冲突的保留字
var reserved = map[string]struct{}{
	"api":     {},
	"health":  {},
	"metrics": {},
	"swagger": {},
}

// Claimer 以原子插入的方式占用别名
// 别名已被占用时必须返回包装了 ErrTaken 的错误
type Claimer func(ctx context.Context, alias string) error

// Allocator 别名分配器
type Allocator struct {
	length      int
	maxAttempts int
	random      func(n int) (string, error)
}

// Option 分配器选项
type Option func(*Allocator)

// WithLength 设置随机别名长度
func WithLength(n int) Option {
	return func(a *Allocator) {
		if n > 0 && n <= MaxLength {
			a.length = n
		}
	}
}

// WithMaxAttempts 设置随机别名最大重试次数
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithRandom 替换随机源，测试中用于制造冲突
func WithRandom(fn func(n int) (string, error)) Option {
	return func(a *Allocator) {
		if fn != nil {
			a.random = fn
		}
	}
}

// NewAllocator 创建别名分配器
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{
		length:      DefaultLength,
		maxAttempts: DefaultMaxAttempts,
		random:      randomString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reserve 分配并占用别名
// 参数:
//   - preferred: 用户指定的别名，清洗后为空则随机生成
//   - claim: 原子占用回调，通常就是插入分享记录
//
// 返回值:
//   - string: 最终占用的别名
//   - error: ErrInvalid / ErrConflict / ErrExhausted，或 claim 返回的其他错误
//
// 用途:
//   - 指定别名被占用时直接返回 ErrConflict，不会替换成其他别名
func (a *Allocator) Reserve(ctx context.Context, preferred string, claim Claimer) (string, error) {
	if strings.TrimSpace(preferred) != "" {
		candidate, err := Sanitize(preferred)
		if err != nil {
			return "", err
		}
		if candidate != "" {
			return a.reservePreferred(ctx, candidate, claim)
		}
	}
	return a.reserveRandom(ctx, claim)
}

func (a *Allocator) reservePreferred(ctx context.Context, candidate string, claim Claimer) (string, error) {
	if IsReserved(candidate) {
		return "", fmt.Errorf("%w: %q is reserved", ErrConflict, candidate)
	}
	if err := claim(ctx, candidate); err != nil {
		if errors.Is(err, ErrTaken) {
			return "", fmt.Errorf("%w: %q", ErrConflict, candidate)
		}
		return "", err
	}
	return candidate, nil
}

func (a *Allocator) reserveRandom(ctx context.Context, claim Claimer) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate, err := a.random(a.length)
		if err != nil {
			return "", fmt.Errorf("generate alias: %w", err)
		}
		if IsReserved(candidate) {
			continue
		}

		err = claim(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, ErrTaken) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, a.maxAttempts)
}

// Sanitize 只保留 [A-Za-z0-9_] 字符
// 返回值:
//   - string: 清洗后的别名，可能为空
//   - error: 清洗后超过 MaxLength 时返回 ErrInvalid
func Sanitize(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > MaxLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalid, MaxLength)
	}
	return out, nil
}

// IsReserved 判断别名是否与保留路由冲突(不区分大小写)
func IsReserved(alias string) bool {
	_, ok := reserved[strings.ToLower(alias)]
	return ok
}

// randomString 使用 crypto/rand 生成 [A-Za-z0-9] 随机串
func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(randomAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = randomAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
