package models

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Proxy 代理配置,格式 host:port[:login:password]
type Proxy struct {
	Server   string `json:"server"`
	Port     string `json:"port"`
	Login    string `json:"login,omitempty"`
	Password string `json:"-"`
}

// ParseProxyLine 解析单行代理
func ParseProxyLine(line string) (*Proxy, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("代理行为空")
	}

	parts := strings.Split(line, ":")
	if len(parts) != 2 && len(parts) != 4 {
		return nil, fmt.Errorf("代理格式错误: %s (应为 host:port 或 host:port:login:password)", line)
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("代理端口无效: %s", parts[1])
	}
	if parts[0] == "" {
		return nil, fmt.Errorf("代理主机不能为空")
	}

	p := &Proxy{Server: parts[0], Port: parts[1]}
	if len(parts) == 4 {
		p.Login = parts[2]
		p.Password = parts[3]
	}
	return p, nil
}

// Address 返回 host:port
func (p *Proxy) Address() string {
	return net.JoinHostPort(p.Server, p.Port)
}

// HasAuth 是否需要认证
func (p *Proxy) HasAuth() bool {
	return p.Login != ""
}

// URL 返回带认证信息的代理URL (供HTTP客户端使用)
func (p *Proxy) URL() string {
	u := url.URL{Scheme: "http", Host: p.Address()}
	if p.HasAuth() {
		u.User = url.UserPassword(p.Login, p.Password)
	}
	return u.String()
}

// Redacted 日志用,隐藏密码
func (p *Proxy) Redacted() string {
	if !p.HasAuth() {
		return p.Address()
	}
	return p.Login + ":***@" + p.Address()
}
