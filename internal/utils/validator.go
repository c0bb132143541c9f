package utils

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"golang.org/x/net/http/httpguts"
)

// MaxHeaderValueLength 单个头部值的上限,Cookie 过长时 ya.ru 直接返回 400
const MaxHeaderValueLength = 8192

// forbiddenHeaders 由浏览器或 Colly 的传输层自行设置
var forbiddenHeaders = map[string]string{
	"Host":                "由目标URL决定",
	"Content-Length":      "由传输层计算",
	"Transfer-Encoding":   "由传输层计算",
	"Connection":          "逐跳头部,由传输层管理",
	"Keep-Alive":          "逐跳头部,由传输层管理",
	"Proxy-Connection":    "逐跳头部,由传输层管理",
	"Te":                  "逐跳头部,由传输层管理",
	"Trailer":             "逐跳头部,由传输层管理",
	"Upgrade":             "逐跳头部,由传输层管理",
	"Proxy-Authorization": "代理认证请写在代理文件中",
}

// ForbiddenHeaders 返回不允许自定义的头部名称
func ForbiddenHeaders() []string {
	names := make([]string, 0, len(forbiddenHeaders))
	for name := range forbiddenHeaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HeaderValidator 检查头部能否交给 CDP 的 SetExtraHTTPHeaders 和 Colly 的请求
type HeaderValidator struct {
	maxValueLength int
}

func NewHeaderValidator() *HeaderValidator {
	return &HeaderValidator{maxValueLength: MaxHeaderValueLength}
}

// ValidateName 名称必须是 RFC 7230 token
func (hv *HeaderValidator) ValidateName(name string) error {
	if name == "" {
		return &models.ValidationError{HeaderName: name, Reason: "名称为空"}
	}
	if !httpguts.ValidHeaderFieldName(name) {
		return &models.ValidationError{
			HeaderName: name,
			Reason:     "名称包含空格或分隔符",
			Suggestion: "例如 User-Agent、X-Requested-With",
		}
	}
	return nil
}

// ValidateValue 值不能含控制字符,且只允许ASCII
func (hv *HeaderValidator) ValidateValue(name, value string) error {
	if len(value) > hv.maxValueLength {
		return &models.ValidationError{
			HeaderName: name,
			Reason:     fmt.Sprintf("值长度 %d 字节,超过上限 %d", len(value), hv.maxValueLength),
		}
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return &models.ValidationError{
			HeaderName: name,
			Reason:     "值包含控制字符",
			Suggestion: "检查是否误粘贴了换行",
		}
	}
	for i := 0; i < len(value); i++ {
		if value[i] >= 0x80 {
			return &models.ValidationError{
				HeaderName: name,
				Reason:     "值包含非ASCII字符",
				Suggestion: "先做百分号编码",
			}
		}
	}
	return nil
}

// ValidateHeader 依次检查禁止列表、名称、值
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	if reason, ok := forbiddenHeaders[http.CanonicalHeaderKey(name)]; ok {
		return &models.ValidationError{
			HeaderName: name,
			Reason:     "不允许自定义," + reason,
		}
	}
	if err := hv.ValidateName(name); err != nil {
		return err
	}
	return hv.ValidateValue(name, value)
}

// IsForbidden 不区分大小写
func (hv *HeaderValidator) IsForbidden(name string) bool {
	_, ok := forbiddenHeaders[http.CanonicalHeaderKey(name)]
	return ok
}

// Validate 返回第一个不合法的头部,source 写入错误信息
// 名称按字母序检查,保证同一份配置每次报同一个错误
func (hv *HeaderValidator) Validate(source string, headers http.Header) error {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range headers[name] {
			if err := hv.ValidateHeader(name, value); err != nil {
				if ve, ok := err.(*models.ValidationError); ok {
					ve.Source = source
				}
				return err
			}
		}
	}
	return nil
}
