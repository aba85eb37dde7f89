package intent

// Keyword tables are ordered slices, not maps: overlapping keywords make
// detection order-dependent, and the first listed entry wins. Reorderings
// change behavior.

// actionEntry binds one canonical action to its keyword variants across
// supported languages (English, Chinese, Japanese).
type actionEntry struct {
	Action   string
	Keywords []string
}

var actionKeywords = []actionEntry{
	{"summarize", []string{"summarize", "summary", "tldr", "总结", "概括", "摘要", "要約", "まとめ"}},
	{"extract", []string{"extract", "pull out", "get all", "提取", "抽取", "抽出"}},
	{"reply", []string{"reply", "respond", "answer back", "回复", "回覆", "返信"}},
	{"translate", []string{"translate", "translation", "翻译", "翻訳"}},
	{"explain", []string{"explain", "what does", "what is", "解释", "说明", "説明"}},
	{"search", []string{"search", "find", "look up", "搜索", "查找", "検索"}},
	{"help", []string{"help", "how do i", "帮助", "怎么", "ヘルプ"}},
	{"create", []string{"create", "make", "add", "new", "创建", "新建", "作成"}},
	{"delete", []string{"delete", "remove", "clear", "删除", "移除", "削除"}},
	{"stop", []string{"stop", "cancel", "abort", "停止", "取消", "中止", "やめて"}},
}

// targetEntry binds one canonical target to its keyword variants.
type targetEntry struct {
	Target   string
	Keywords []string
}

var targetKeywords = []targetEntry{
	{"page", []string{"page", "article", "website", "页面", "网页", "文章", "ページ", "記事"}},
	{"selection", []string{"selection", "selected", "highlighted", "选中", "选择的", "選択"}},
	{"post", []string{"post", "tweet", "comment", "帖子", "评论", "投稿"}},
	{"memory", []string{"memory", "memories", "remember", "记忆", "メモリ"}},
	{"rule", []string{"rule", "rules", "规则", "ルール"}},
	{"persona", []string{"persona", "profile", "style", "人设", "角色", "ペルソナ"}},
}

// entityEntry maps entity-type synonyms (CJK included) to the English key
// recorded in extracted parameters.
type entityEntry struct {
	Entity   string
	Keywords []string
}

var entityKeywords = []entityEntry{
	{"email", []string{"email", "e-mail", "邮箱", "邮件地址", "メール"}},
	{"phone", []string{"phone", "telephone", "电话", "手机号", "電話"}},
	{"url", []string{"url", "link", "links", "链接", "网址", "リンク"}},
	{"price", []string{"price", "prices", "cost", "价格", "价钱", "価格", "値段"}},
}

// Fixed word lists for the standalone membership checks. These are exact
// token sets, matched against the trimmed, lowercased message.
var confirmationWords = []string{
	"yes", "y", "yeah", "yep", "ok", "okay", "sure", "confirm", "go ahead",
	"好", "好的", "是", "是的", "可以", "确认", "はい", "うん", "いいよ",
}

var negationWords = []string{
	"no", "n", "nope", "cancel", "don't", "dont", "stop that",
	"不", "不要", "不行", "别", "取消", "いいえ", "いや", "だめ",
}

var stopWords = []string{
	"stop", "cancel", "abort", "halt", "quit",
	"停止", "停", "取消", "中止", "やめて", "ストップ",
}

// questionWords mark clarifications and queries across supported languages.
var questionWords = []string{
	"what", "why", "how", "when", "where", "who", "which",
	"什么", "为什么", "怎么", "哪", "谁",
	"何", "なぜ", "どう", "どこ", "だれ",
}

// Reference wording for pronoun-like resolution.
var pageReferenceWords = []string{
	"this page", "the page", "current page", "whole page",
	"这个页面", "本页", "当前页面", "このページ", "今のページ",
}

var selectionReferenceWords = []string{
	"the selection", "selected text", "this selection", "highlighted text",
	"选中的", "选中内容", "選択したテキスト", "選択部分",
}

var backReferenceWords = []string{
	"it", "that", "this", "它", "这个", "那个", "これ", "それ", "あれ",
}
