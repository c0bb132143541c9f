package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestHeaderManager(t *testing.T, engine, fileContent string, cli []string) *HeaderManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "headers.yaml")
	if fileContent != "" {
		if err := os.WriteFile(path, []byte(fileContent), 0644); err != nil {
			t.Fatalf("写入配置失败: %v", err)
		}
	}
	hm, err := NewHeaderManager(path, engine, cli)
	if err != nil {
		t.Fatalf("创建HeaderManager失败: %v", err)
	}
	return hm
}

func TestHeaderManager_GetHeaders(t *testing.T) {
	tests := []struct {
		name    string
		engine  string
		file    string
		cli     []string
		want    map[string]string
		removed []string
	}{
		{
			name: "默认头部",
			want: map[string]string{
				"User-Agent":      DefaultUserAgent,
				"Accept-Language": "en-US,en;q=0.9",
			},
		},
		{
			name: "配置文件覆盖默认",
			file: "headers:\n  Accept-Language: ru-RU\n  X-Config: from-config\n",
			want: map[string]string{
				"Accept-Language": "ru-RU",
				"X-Config":        "from-config",
				"User-Agent":      DefaultUserAgent,
			},
		},
		{
			name:   "yandex内置头部",
			engine: "yandex",
			want: map[string]string{
				"Accept-Language": "ru-RU,ru;q=0.9,en;q=0.8",
				"User-Agent":      DefaultUserAgent,
			},
		},
		{
			name:   "引擎节覆盖通用头部",
			engine: "ya",
			file:   "headers:\n  X-Config: common\nengines:\n  yandex:\n    X-Config: yandex\n  bing:\n    X-Config: bing\n",
			want:   map[string]string{"X-Config": "yandex"},
		},
		{
			name:    "命令行空值删除头部",
			engine:  "bing",
			cli:     []string{"Accept-Encoding:", "X-CLI: 1"},
			want:    map[string]string{"X-CLI": "1"},
			removed: []string{"Accept-Encoding"},
		},
		{
			name: "命令行覆盖配置文件",
			file: "headers:\n  User-Agent: config-agent\n  X-Config: from-config\n",
			cli:  []string{"User-Agent: cli-agent", "X-CLI: from-cli"},
			want: map[string]string{
				"User-Agent": "cli-agent",
				"X-Config":   "from-config",
				"X-CLI":      "from-cli",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm := newTestHeaderManager(t, tt.engine, tt.file, tt.cli)
			headers, err := hm.GetHeaders()
			if err != nil {
				t.Fatalf("GetHeaders失败: %v", err)
			}
			for k, v := range tt.want {
				if got := headers.Get(k); got != v {
					t.Errorf("%s = %q, 期望 %q", k, got, v)
				}
			}
			for _, k := range tt.removed {
				if _, ok := headers[k]; ok {
					t.Errorf("%s 应被删除", k)
				}
			}
		})
	}
}

func TestHeaderManager_Errors(t *testing.T) {
	t.Run("命令行格式错误", func(t *testing.T) {
		if _, err := NewHeaderManager(filepath.Join(t.TempDir(), "h.yaml"), "", []string{"InvalidFormat"}); err == nil {
			t.Error("期望返回错误")
		}
	})

	t.Run("未知引擎", func(t *testing.T) {
		if _, err := NewHeaderManager(filepath.Join(t.TempDir(), "h.yaml"), "google", nil); err == nil {
			t.Error("期望返回错误")
		}
	})

	t.Run("禁止头部", func(t *testing.T) {
		hm := newTestHeaderManager(t, "", "", []string{"Host: ya.ru"})
		_, err := hm.GetHeaders()
		if err == nil || !strings.Contains(err.Error(), "命令行") {
			t.Errorf("期望命令行头部验证错误, 实际 %v", err)
		}
	})

	t.Run("配置文件未知引擎节", func(t *testing.T) {
		hm := newTestHeaderManager(t, "bing", "engines:\n  google:\n    X-A: 1\n", nil)
		if _, err := hm.GetHeaders(); err == nil {
			t.Error("期望返回配置错误")
		}
	})
}

func TestHeaderManager_ReturnsCopy(t *testing.T) {
	hm := newTestHeaderManager(t, "", "", nil)

	first, err := hm.GetHeaders()
	if err != nil {
		t.Fatalf("GetHeaders失败: %v", err)
	}
	first.Set("User-Agent", "mutated")

	second, _ := hm.GetHeaders()
	if second.Get("User-Agent") != DefaultUserAgent {
		t.Error("修改返回值不应影响缓存")
	}
}

func TestHeaderManager_GetSafeHeaders(t *testing.T) {
	hm := newTestHeaderManager(t, "", "", []string{
		"Authorization: Bearer secret-token-12345",
		"Cookie: yandexuid=1234567890",
	})

	safe := hm.GetSafeHeaders()
	if safe["Authorization"] != "Bearer ***" {
		t.Errorf("Authorization = %q", safe["Authorization"])
	}
	if safe["Cookie"] == "yandexuid=1234567890" {
		t.Error("Cookie应该被脱敏")
	}
	if safe["User-Agent"] != DefaultUserAgent {
		t.Error("普通头部不应该被脱敏")
	}
}
