// Package sanitize 用户提交内容的 HTML 清洗
package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	once   sync.Once
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	once.Do(func() {
		rich = bluemonday.UGCPolicy()
		rich.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
		strict = bluemonday.StrictPolicy()
	})
	return rich, strict
}

// HTML 保留安全的富文本标签（帖子正文）
func HTML(s string) string {
	p, _ := policies()
	return strings.TrimSpace(p.Sanitize(s))
}

// Text 去除全部标签（标题、评论）
func Text(s string) string {
	_, p := policies()
	return strings.TrimSpace(p.Sanitize(s))
}
