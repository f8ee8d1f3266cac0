package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantArgs string
	}{
		{input: "/add Buy milk", wantName: "add", wantArgs: "Buy milk"},
		{input: "/list", wantName: "list", wantArgs: ""},
		{input: "/Done@task_bot  photos from trip ", wantName: "done", wantArgs: "photos from trip"},
		{input: "/add\nsecond line", wantName: "add", wantArgs: "second line"},
		{input: "hello", wantName: "", wantArgs: "hello"},
		{input: "  /stats  ", wantName: "stats", wantArgs: ""},
	}

	for _, tt := range tests {
		name, args := parseCommand(tt.input)
		if name != tt.wantName || args != tt.wantArgs {
			t.Fatalf("parseCommand(%q) = (%q, %q), want (%q, %q)", tt.input, name, args, tt.wantName, tt.wantArgs)
		}
	}
}

func TestParseTaskID(t *testing.T) {
	tests := []struct {
		input string
		want  int64
		ok    bool
	}{
		{input: "12", want: 12, ok: true},
		{input: "#1717232400000", want: 1717232400000, ok: true},
		{input: "5 extra words", want: 5, ok: true},
		{input: "", ok: false},
		{input: "abc", ok: false},
		{input: "0", ok: false},
		{input: "-3", ok: false},
	}

	for _, tt := range tests {
		got, ok := parseTaskID(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("parseTaskID(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("привет мир", 6); got != "привет..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Fatalf("short text should be unchanged: %q", got)
	}
}

func TestEscape(t *testing.T) {
	if got := escape(`<b>"x" & y</b>`); got != "&lt;b&gt;&#34;x&#34; &amp; y&lt;/b&gt;" {
		t.Fatalf("unexpected escape: %q", got)
	}
}

func TestEscapeLimit(t *testing.T) {
	tests := []struct {
		input string
		limit int
		want  string
	}{
		{input: "a < b", limit: 20, want: "a &lt; b"},
		{input: "a&b", limit: 4, want: "a..."},
		{input: "a&b", limit: 6, want: "a&amp;..."},
		{input: "日本語テキスト", limit: 3, want: "日本語..."},
	}
	for _, tt := range tests {
		if got := escapeLimit(tt.input, tt.limit); got != tt.want {
			t.Fatalf("escapeLimit(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.want)
		}
	}
}

func TestPaginate(t *testing.T) {
	entry := strings.Repeat("x", 1500) + "\n\n"
	pages := paginate("head\n\n", []string{entry, entry, entry}, "\n\nfoot")

	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].From != 0 || pages[0].To != 2 || pages[1].From != 2 || pages[1].To != 3 {
		t.Fatalf("unexpected ranges: %+v %+v", pages[0].From, pages[1])
	}
	if !strings.HasPrefix(pages[0].Text, "head") || strings.Contains(pages[0].Text, "foot") {
		t.Fatalf("header/footer misplaced on first page")
	}
	if !strings.HasSuffix(pages[1].Text, "x\n\nfoot") || strings.HasPrefix(pages[1].Text, "head") {
		t.Fatalf("unexpected last page tail: %q", pages[1].Text[len(pages[1].Text)-10:])
	}
	for i, page := range pages {
		if n := utf8.RuneCountInString(page.Text); n > maxMessageRunes {
			t.Fatalf("page %d has %d runes", i, n)
		}
	}
}

func TestPaginateFooterOnOwnPage(t *testing.T) {
	entry := strings.Repeat("y", maxMessageRunes-10)
	pages := paginate("", []string{entry}, "\n\n"+strings.Repeat("f", 20))
	if len(pages) != 2 {
		t.Fatalf("expected footer on its own page, got %d page(s)", len(pages))
	}
	if pages[1].Text != strings.Repeat("f", 20) || pages[1].From != 1 || pages[1].To != 1 {
		t.Fatalf("unexpected footer page: %+v", pages[1])
	}
}
