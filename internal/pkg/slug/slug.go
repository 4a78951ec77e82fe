package slug

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// maxProbes caps the suffix search so a broken lookup cannot loop forever.
const maxProbes = 10000

// fallback is used when a name contains no word characters at all.
const fallback = "mission"

var (
	whitespaceRe = regexp.MustCompile(`[\s\p{Z}]+`)
	nonWordRe    = regexp.MustCompile(`[^\w-]+`)
	multiDashRe  = regexp.MustCompile(`-{2,}`)
)

// TakenFunc reports whether a slug is already in use.
type TakenFunc func(ctx context.Context, slug string) (bool, error)

// Make 将名称转换为 URL 安全的 slug。
//
// lowercase → whitespace to "-" → strip non-word chars → collapse "--" → trim "-".
func Make(name string) string {
	s := strings.ToLower(name)
	s = whitespaceRe.ReplaceAllString(s, "-")
	s = nonWordRe.ReplaceAllString(s, "")
	s = multiDashRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallback
	}
	return s
}

// Unique 返回 name 对应的第一个未被占用的 slug：base, base-1, base-2, ...
func Unique(ctx context.Context, name string, taken TakenFunc) (string, error) {
	base := Make(name)
	candidate := base
	for i := 1; i <= maxProbes; i++ {
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe slug %q: %w", candidate, err)
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("no free slug for %q after %d probes", base, maxProbes)
}
