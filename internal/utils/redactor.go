package utils

import (
	"net/http"
	"sort"
	"strings"
)

// sensitiveParts 名称中包含这些片段的头部在日志中脱敏
var sensitiveParts = []string{
	"authorization",
	"token",
	"key",
	"secret",
	"password",
	"credential",
	"session",
}

// HeaderRedactor 日志输出前隐藏头部中的凭据
// Cookie 只隐藏值,保留名称,方便确认 yandexuid 等是否带上
type HeaderRedactor struct {
	parts []string
}

func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{parts: sensitiveParts}
}

func isCookieHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Cookie", "Set-Cookie":
		return true
	}
	return false
}

// IsSensitiveHeader Cookie 类头部总是敏感
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	if isCookieHeader(name) {
		return true
	}
	lower := strings.ToLower(name)
	for _, part := range hr.parts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// RedactHeaderValue 非敏感头部原样返回
func (hr *HeaderRedactor) RedactHeaderValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}
	if value == "" {
		return "***"
	}
	if isCookieHeader(name) {
		return redactCookies(value)
	}
	// 认证方案保留,凭据隐藏
	if scheme, _, ok := strings.Cut(value, " "); ok {
		switch strings.ToLower(scheme) {
		case "bearer", "basic", "oauth", "token":
			return scheme + " ***"
		}
	}
	return MaskSecret(value)
}

// redactCookies "a=1; b=2" -> "a=***; b=***"
func redactCookies(value string) string {
	pairs := strings.Split(value, ";")
	for i, pair := range pairs {
		name, _, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			pairs[i] = "***"
			continue
		}
		pairs[i] = name + "=***"
	}
	return strings.Join(pairs, "; ")
}

// Redact 只取每个头部的第一个值
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = hr.RedactHeaderValue(name, values[0])
	}
	return result
}

// RedactToString 按名称排序输出,便于对比两次运行的日志
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	redacted := hr.Redact(headers)
	names := make([]string, 0, len(redacted))
	for name := range redacted {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(redacted[name])
	}
	return b.String()
}

// MaskSecret 保留前后各4位
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) > 8 {
		return secret[:4] + "***" + secret[len(secret)-4:]
	}
	return "***"
}
