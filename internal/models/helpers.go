package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// NormalizeKeyword 去除首尾空白并合并连续空白
// 去重集合以此结果作为关键词标识
func NormalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(keyword), " ")
}

// DedupeKeywords 去除列表中的重复关键词,保持原有顺序
// 返回去重后的列表和被丢弃的重复项
func DedupeKeywords(keywords []string) (unique []string, duplicates []string) {
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		norm := NormalizeKeyword(kw)
		if norm == "" {
			continue
		}
		if seen[norm] {
			duplicates = append(duplicates, norm)
			continue
		}
		seen[norm] = true
		unique = append(unique, norm)
	}
	return unique, duplicates
}

// generateID 生成唯一ID
func generateID() string {
	return uuid.New().String()
}
