package preview

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lepinkainen/rss-enhancer/pkg/enhancer"
	"github.com/lepinkainen/rss-enhancer/pkg/rss"
)

func sampleSummary() *enhancer.Summary {
	return &enhancer.Summary{
		FeedPath: "dist/rss.xml",
		Total:    3,
		Enhanced: 1,
		Skipped:  1,
		Failed:   1,
		Items: []enhancer.ItemResult{
			{
				Index:         0,
				Slug:          "hello-world",
				Title:         "Hello World",
				Link:          "https://example.com/posts/hello-world/",
				Status:        enhancer.StatusEnhanced,
				Page:          "posts/hello-world/index.html",
				ContentLength: 2048,
				Item: &rss.Item{
					Title:       "Hello World",
					Link:        "https://example.com/posts/hello-world/",
					Description: "A short greeting",
					Content:     "<p>Hello <strong>there</strong></p>",
				},
			},
			{Index: 1, Title: "External", Status: enhancer.StatusSkipped},
			{Index: 2, Title: "Broken", Status: enhancer.StatusFailed, Error: "boom"},
		},
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"fits", "short text", 20, "short text"},
		{"breaks at words", "one two three four", 9, "one two\nthree\nfour"},
		{"collapses whitespace", "a   b\n\tc", 10, "a b c"},
		{"long word kept whole", "abcdefghij x", 4, "abcdefghij\nx"},
		{"default width", strings.Repeat("w ", 40), 0, strings.TrimSpace(strings.Repeat("w ", 35)) + "\n" + strings.TrimSpace(strings.Repeat("w ", 5))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrapText(tt.text, tt.width); got != tt.want {
				t.Errorf("wrapText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatCompactListItem(t *testing.T) {
	res := sampleSummary().Items[0]
	got := FormatCompactListItem(0, res)

	for _, want := range []string{" 1.", "✚", "enhanced", "2.0 KB", "Hello World"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatCompactListItem() = %q, missing %q", got, want)
		}
	}

	long := enhancer.ItemResult{Title: strings.Repeat("ä", 100), Status: enhancer.StatusCached}
	got = FormatCompactListItem(9, long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long title not truncated: %q", got)
	}
	if !strings.Contains(got, "10.") || !strings.Contains(got, "↺") {
		t.Errorf("unexpected prefix: %q", got)
	}
}

func TestFormatDetailedItem(t *testing.T) {
	res := sampleSummary().Items[0]
	res.Modified = time.Now().Add(-2 * time.Hour)

	got := FormatDetailedItem(res)
	for _, want := range []string{
		"Title: Hello World",
		"Slug: hello-world",
		"Status: enhanced",
		"Page: posts/hello-world/index.html",
		"2 hours ago",
		"A short greeting",
		"Hello there",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatDetailedItem() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "<strong>") {
		t.Error("content preview should be plain text")
	}

	failed := FormatDetailedItem(sampleSummary().Items[2])
	if !strings.Contains(failed, "Error: boom") {
		t.Errorf("failed item lacks error line:\n%s", failed)
	}
	if strings.Contains(failed, "Modified:") {
		t.Error("zero modification time should be omitted")
	}
}

func TestFormatXMLItem(t *testing.T) {
	got := FormatXMLItem(sampleSummary().Items[0])
	if !strings.Contains(got, "<title>Hello World</title>") {
		t.Errorf("FormatXMLItem() = %s", got)
	}

	if got := FormatXMLItem(enhancer.ItemResult{}); got != "No item available" {
		t.Errorf("FormatXMLItem(nil item) = %q", got)
	}
}

func TestWrapXMLContent(t *testing.T) {
	line := "<description>" + strings.Repeat("word ", 30) + "</description>"
	got := wrapXMLContent(line, 40)

	for _, l := range strings.Split(strings.TrimSuffix(got, "\n"), "\n") {
		if len([]rune(l)) > 40 {
			t.Errorf("line longer than width: %q", l)
		}
	}
	if strings.ReplaceAll(got, "\n", "") != line {
		t.Error("wrapping changed the content")
	}
}

func TestFormatTimeAgo(t *testing.T) {
	now := time.Now()
	tests := []struct {
		t    time.Time
		want string
	}{
		{now.Add(time.Hour), "in the future"},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-1*time.Minute - time.Second), "1 minute ago"},
		{now.Add(-5 * time.Minute), "5 minutes ago"},
		{now.Add(-3 * 24 * time.Hour), "3 days ago"},
		{time.Date(2020, 5, 6, 0, 0, 0, 0, time.UTC), "2020-05-06"},
	}

	for _, tt := range tests {
		if got := formatTimeAgo(tt.t); got != tt.want {
			t.Errorf("formatTimeAgo(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	if got := formatSize(0); got != "-" {
		t.Errorf("formatSize(0) = %q", got)
	}
	if got := formatSize(512); got != "512 B" {
		t.Errorf("formatSize(512) = %q", got)
	}
	if got := formatSize(1536); got != "1.5 KB" {
		t.Errorf("formatSize(1536) = %q", got)
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

func TestModel_Navigation(t *testing.T) {
	m := NewModel(sampleSummary())

	m = press(t, m, "j", "j", "j")
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2 (clamped)", m.cursor)
	}
	m = press(t, m, "k")
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}

	m = press(t, m, "enter")
	if m.viewMode != DetailViewMode || m.selectedIndex != 1 {
		t.Fatalf("enter: mode %v index %d", m.viewMode, m.selectedIndex)
	}
	if !strings.Contains(m.View(), "Title: External") {
		t.Errorf("detail view shows wrong item:\n%s", m.View())
	}

	m = press(t, m, "x")
	if m.viewMode != XMLViewMode {
		t.Errorf("x in detail view: mode %v, want XML", m.viewMode)
	}
	m = press(t, m, "esc")
	if m.viewMode != ListViewMode {
		t.Errorf("esc: mode %v, want list", m.viewMode)
	}
}

func TestModel_Filter(t *testing.T) {
	m := NewModel(sampleSummary())

	m = press(t, m, "f")
	if m.filter != enhancer.StatusEnhanced || len(m.items) != 1 {
		t.Fatalf("filter %q shows %d items", m.filter, len(m.items))
	}
	if !strings.Contains(m.View(), "Showing enhanced items only (1)") {
		t.Errorf("list view lacks filter line:\n%s", m.View())
	}

	// cached has no results
	m = press(t, m, "f")
	if m.filter != enhancer.StatusCached || len(m.items) != 0 {
		t.Fatalf("filter %q shows %d items", m.filter, len(m.items))
	}
	m = press(t, m, "enter")
	if m.viewMode != ListViewMode {
		t.Error("enter on an empty list should stay in list view")
	}

	m = press(t, m, "f", "f", "f")
	if m.filter != "" || len(m.items) != 3 {
		t.Errorf("filter cycle did not wrap: %q with %d items", m.filter, len(m.items))
	}
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(sampleSummary())
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
