package serp

import (
	"net/url"
	"testing"
)

func TestProfileByName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"yandex", "yandex", "yandex", false},
		{"ya.ru别名", " YA.RU ", "yandex", false},
		{"bing", "Bing", "bing", false},
		{"未知引擎", "google", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProfileByName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProfileByName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Name != tt.want {
				t.Errorf("Name = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestProfile_SearchURL(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		keyword string
		want    string
	}{
		{"yandex空格编码为%20", Yandex, "go lang", "https://ya.ru/search/?text=go%20lang"},
		{"bing空格编码为+", Bing, "go lang", "https://www.bing.com/search?q=go+lang"},
		{"bing特殊字符", Bing, "a&b", "https://www.bing.com/search?q=a%26b"},
		{"yandex加号", Yandex, "c++ tutorial", "https://ya.ru/search/?text=c%2B%2B%20tutorial"},
		{"yandex与号", Yandex, "tom & jerry", "https://ya.ru/search/?text=tom%20%26%20jerry"},
		{"yandex等号与井号", Yandex, "a=b #1", "https://ya.ru/search/?text=a%3Db%20%231"},
		{"bing加号", Bing, "c++", "https://www.bing.com/search?q=c%2B%2B"},
		{"yandex西里尔字母", Yandex, "купить слона", "https://ya.ru/search/?text=%D0%BA%D1%83%D0%BF%D0%B8%D1%82%D1%8C%20%D1%81%D0%BB%D0%BE%D0%BD%D0%B0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.profile.SearchURL(tt.keyword)
			if got != tt.want {
				t.Errorf("SearchURL() = %q, want %q", got, tt.want)
			}

			// 关键词必须能从查询参数原样还原
			u, err := url.Parse(got)
			if err != nil {
				t.Fatalf("url.Parse() error = %v", err)
			}
			param := "q"
			if tt.profile.Name == "yandex" {
				param = "text"
			}
			if back := u.Query().Get(param); back != tt.keyword {
				t.Errorf("还原关键词 = %q, want %q", back, tt.keyword)
			}
		})
	}
}

func TestProfile_IsGate(t *testing.T) {
	if !Yandex.IsGate("https://ya.ru/showcaptcha?cc=1&retpath=x") {
		t.Error("验证码页面应被识别")
	}
	if Yandex.IsGate("https://ya.ru/search/?text=x") {
		t.Error("搜索页不应被识别为验证码")
	}
	if Bing.IsGate("https://www.bing.com/showcaptcha") {
		t.Error("bing没有验证码特征,不应识别")
	}
}

func TestProfile_Resolve(t *testing.T) {
	got, err := Yandex.Resolve("/search/?text=beta")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "https://ya.ru/search/?text=beta" {
		t.Errorf("Resolve() = %q", got)
	}

	got, err = Bing.Resolve("https://other.example/x")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "https://other.example/x" {
		t.Errorf("绝对地址应保持不变, got %q", got)
	}
}
