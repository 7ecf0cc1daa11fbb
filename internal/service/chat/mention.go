package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"course_chat_server/internal/model"
)

// maxNameWords 显示名最多匹配的单词数，如 "@Jane Doe"
const maxNameWords = 2

// Resolution 提及解析结果
type Resolution struct {
	Mentions        []string `json:"mentions"`
	RenderedContent string   `json:"renderedContent"`
}

// ResolveMentions 将 "@显示名" 与成员名单按显示名（忽略大小写）匹配
// 优先匹配更长的名字；匹配不上的 "@xxx" 保留原文，不影响发送
// 匹配成功的提及在 RenderedContent 中写成 @[显示名](userId)
func ResolveMentions(content string, roster []model.Participant) Resolution {
	byName := make(map[string]model.Participant, len(roster))
	for _, p := range roster {
		if p.Name == "" {
			continue
		}
		key := strings.ToLower(p.Name)
		if _, dup := byName[key]; !dup {
			byName[key] = p
		}
	}

	var (
		b        strings.Builder
		mentions []string
		seen     = make(map[string]struct{})
	)
	b.Grow(len(content))

	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		if r != '@' || !mentionBoundary(content, i) {
			b.WriteRune(r)
			i += size
			continue
		}

		matched, end := matchName(content, i+size, byName)
		if matched == nil {
			b.WriteRune(r)
			i += size
			continue
		}
		b.WriteString("@[")
		b.WriteString(content[i+size : end])
		b.WriteString("](")
		b.WriteString(matched.UserID)
		b.WriteString(")")
		if _, ok := seen[matched.UserID]; !ok {
			seen[matched.UserID] = struct{}{}
			mentions = append(mentions, matched.UserID)
		}
		i = end
	}
	return Resolution{Mentions: mentions, RenderedContent: b.String()}
}

// mentionBoundary "@" 前必须是开头或非单词字符，排除邮箱地址
func mentionBoundary(s string, at int) bool {
	if at == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:at])
	return !isNameRune(prev)
}

// matchName 从 start 开始依次尝试 maxNameWords..1 个单词
func matchName(s string, start int, byName map[string]model.Participant) (*model.Participant, int) {
	ends := wordEnds(s, start, maxNameWords)
	for n := len(ends); n > 0; n-- {
		end := ends[n-1]
		if p, ok := byName[strings.ToLower(s[start:end])]; ok {
			return &p, end
		}
	}
	return nil, start
}

// wordEnds 返回前 n 个单词各自的结束位置，单词之间只允许一个空格
func wordEnds(s string, start, n int) []int {
	var ends []int
	i := start
	for len(ends) < n {
		j := i
		for j < len(s) {
			r, size := utf8.DecodeRuneInString(s[j:])
			if !isNameRune(r) {
				break
			}
			j += size
		}
		if j == i {
			break
		}
		ends = append(ends, j)
		if j >= len(s) || s[j] != ' ' {
			break
		}
		i = j + 1
	}
	return ends
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '\''
}

// mergeMentions 客户端附带的提及只保留名单内的用户，与解析结果去重合并
func mergeMentions(resolved, supplied []string, roster []model.Participant) []string {
	if len(supplied) == 0 {
		return resolved
	}
	members := make(map[string]struct{}, len(roster))
	for _, p := range roster {
		members[p.UserID] = struct{}{}
	}
	out := append([]string(nil), resolved...)
	seen := make(map[string]struct{}, len(out))
	for _, id := range out {
		seen[id] = struct{}{}
	}
	for _, id := range supplied {
		if _, ok := members[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
