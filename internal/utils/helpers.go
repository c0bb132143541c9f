package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
)

// readLines 读取非空、非注释行
func readLines(path string, visit func(lineNum int, line string)) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		visit(lineNum, line)
	}
	return scanner.Err()
}

// ReadKeywordsFromFile 从文件中读取关键词列表,每行一个
// 重复的关键词会被丢弃并记录警告
func ReadKeywordsFromFile(path string) ([]string, error) {
	var raw []string
	if err := readLines(path, func(_ int, line string) {
		raw = append(raw, line)
	}); err != nil {
		return nil, fmt.Errorf("读取关键词文件失败: %w", err)
	}

	keywords, duplicates := models.DedupeKeywords(raw)
	for _, dup := range duplicates {
		Warnf("关键词重复,已忽略: %s", dup)
	}

	if len(keywords) == 0 {
		return nil, fmt.Errorf("关键词文件中没有有效的关键词")
	}

	Infof("从文件加载了 %d 个关键词", len(keywords))
	return keywords, nil
}

// ReadProxiesFromFile 读取代理列表,格式 host:port[:login:password]
// 格式错误的行被跳过
func ReadProxiesFromFile(path string) ([]*models.Proxy, error) {
	var proxies []*models.Proxy
	if err := readLines(path, func(lineNum int, line string) {
		proxy, err := models.ParseProxyLine(line)
		if err != nil {
			Warnf("跳过无效代理 (行 %d): %v", lineNum, err)
			return
		}
		proxies = append(proxies, proxy)
	}); err != nil {
		return nil, fmt.Errorf("读取代理文件失败: %w", err)
	}

	if len(proxies) == 0 {
		return nil, fmt.Errorf("代理文件中没有有效的代理")
	}

	Infof("从文件加载了 %d 个代理", len(proxies))
	return proxies, nil
}
