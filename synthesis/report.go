package synthesis

import (
	"fmt"
	"strings"

	"github.com/petal-labs/petalpilot/core"
)

const previewRunes = 200

// labels holds the localized strings of the rendered report.
type labels struct {
	title       string
	session     string
	failed      string
	similar     string
	distinct    string
	noneShared  string
	noContent   string
	sessionWord string
}

var localeLabels = map[string]labels{
	"en": {
		title:       "Cross-session synthesis",
		session:     "Session",
		failed:      "unavailable",
		similar:     "Shared across sessions",
		distinct:    "Distinct to",
		noneShared:  "Nothing shared across sessions.",
		noContent:   "(no content)",
		sessionWord: "sessions",
	},
	"zh": {
		title:       "跨会话综合",
		session:     "会话",
		failed:      "不可用",
		similar:     "各会话共有",
		distinct:    "独有于",
		noneShared:  "各会话之间没有共同内容。",
		noContent:   "（无内容）",
		sessionWord: "个会话",
	},
	"ja": {
		title:       "セッション横断の統合",
		session:     "セッション",
		failed:      "利用不可",
		similar:     "全セッション共通",
		distinct:    "固有:",
		noneShared:  "セッション間に共通点はありません。",
		noContent:   "（内容なし）",
		sessionWord: "セッション",
	},
}

// buildReport renders the collected contexts, and the comparison when
// present, as a titled plain-text report in the requested locale. Unknown
// locales fall back to English.
func buildReport(contexts []core.SessionContext, cmp *core.ComparisonResult, locale string) string {
	l, found := localeLabels[locale]
	if !found {
		l = localeLabels["en"]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s (%d %s)\n\n", l.title, len(contexts), l.sessionWord)

	for i, c := range contexts {
		name := c.Title
		if name == "" {
			name = c.URL
		}
		fmt.Fprintf(&sb, "## %s %d: %s\n", l.session, i+1, name)
		fmt.Fprintf(&sb, "%s\n", c.URL)
		switch {
		case c.Failed():
			fmt.Fprintf(&sb, "[%s: %s]\n", l.failed, c.Err)
		case c.Content == "":
			fmt.Fprintf(&sb, "%s\n", l.noContent)
		default:
			fmt.Fprintf(&sb, "%s\n", preview(c.Content))
		}
		sb.WriteString("\n")
	}

	if cmp != nil {
		if len(cmp.Similarities) > 0 {
			fmt.Fprintf(&sb, "## %s\n%s\n\n", l.similar, strings.Join(cmp.Similarities, ", "))
		} else if len(contexts) > 1 {
			fmt.Fprintf(&sb, "%s\n\n", l.noneShared)
		}
		for _, c := range contexts {
			if unique := cmp.Unique[c.SessionID]; len(unique) > 0 {
				name := c.Title
				if name == "" {
					name = c.SessionID
				}
				fmt.Fprintf(&sb, "## %s %s\n%s\n\n", l.distinct, name, strings.Join(unique, ", "))
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// preview truncates content at a rune boundary for the report body.
func preview(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= previewRunes {
		return string(runes)
	}
	return string(runes[:previewRunes]) + "…"
}
