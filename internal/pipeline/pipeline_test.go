package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/fetgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func writingItem(id int64) *types.Item {
	item := types.NewItem("writing", id, fmt.Sprintf("https://fetlife.com/users/555/posts/%d", id))
	item.Set("title", "  On Knots  ")
	item.Set("content", `<p>First <b>knot</b></p><p>Mail me at rope@example.com</p>`)
	item.Set("comment_count", 2)
	return item
}

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	item := writingItem(40)
	result, err := p.Process(item)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.GetString("title") != "On Knots" {
		t.Errorf("expected trimmed title, got %q", result.GetString("title"))
	}
	if v, _ := result.Get("comment_count"); v != 2 {
		t.Errorf("non-string field changed: %v", v)
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "boom" }
func (failingMiddleware) Process(*types.Item) (*types.Item, error) {
	return nil, errors.New("boom")
}

func TestPipelineErrorNamesStage(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})
	p.Use(failingMiddleware{})

	_, err := p.Run([]*types.Item{writingItem(1)})
	var pe *types.PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pe.Stage != "boom" {
		t.Errorf("expected stage boom, got %q", pe.Stage)
	}
}

func TestDedupByKindAndID(t *testing.T) {
	m := NewDedupMiddleware()

	first, _ := m.Process(types.NewItem("profile", 555, "a"))
	again, _ := m.Process(types.NewItem("profile", 555, "b"))
	other, _ := m.Process(types.NewItem("writing", 555, "c"))

	if first == nil || other == nil {
		t.Error("distinct entities should pass")
	}
	if again != nil {
		t.Error("repeated profile should be dropped")
	}
}

func TestKindFilter(t *testing.T) {
	m := NewKindFilterMiddleware("Profile", " event ")

	if r, _ := m.Process(types.NewItem("profile", 1, "")); r == nil {
		t.Error("profile should pass")
	}
	if r, _ := m.Process(types.NewItem("event", 1, "")); r == nil {
		t.Error("event should pass")
	}
	if r, _ := m.Process(types.NewItem("writing", 1, "")); r != nil {
		t.Error("writing should be dropped")
	}
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{Fields: []string{"nickname"}}

	ok := types.NewItem("profile", 1, "")
	ok.Set("nickname", "Rope_Bunny")
	if r, err := m.Process(ok); err != nil || r == nil {
		t.Error("item with required field should pass")
	}

	empty := types.NewItem("profile", 2, "")
	empty.Set("nickname", "")
	if r, _ := m.Process(empty); r != nil {
		t.Error("empty required field should drop the item")
	}

	missing := types.NewItem("profile", 3, "")
	if r, _ := m.Process(missing); r != nil {
		t.Error("missing required field should drop the item")
	}
}

func TestHTMLSanitizeMiddleware(t *testing.T) {
	m := NewHTMLSanitizeMiddleware("content")
	item := types.NewItem("writing", 1, "")
	item.Set("content", `<p>Hello <b>World</b></p> &amp; <a href="x">link</a>`)
	item.Set("title", "<b>kept</b>")

	result, err := m.Process(item)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if got := result.GetString("content"); got != "Hello World & link" {
		t.Errorf("expected 'Hello World & link', got %q", got)
	}
	if got := result.GetString("title"); got != "<b>kept</b>" {
		t.Errorf("fields outside the list should be untouched, got %q", got)
	}
}

func TestPIIRedactMiddleware(t *testing.T) {
	m := NewPIIRedactMiddleware([]string{"bio"}, testLogger)
	item := types.NewItem("profile", 1, "")
	item.Set("bio", "Write me: rope@example.com or call +49 30 1234567. Kik: ropebunny")

	result, _ := m.Process(item)
	bio := result.GetString("bio")
	for _, leaked := range []string{"rope@example.com", "1234567", "ropebunny"} {
		if strings.Contains(bio, leaked) {
			t.Errorf("%q not redacted in %q", leaked, bio)
		}
	}
	if !strings.Contains(bio, "[REDACTED_EMAIL]") || !strings.Contains(bio, "[REDACTED_PHONE]") {
		t.Errorf("unexpected redaction: %q", bio)
	}
}

func TestWordCountIgnoresMarkup(t *testing.T) {
	m := NewWordCountMiddleware([]string{"content"})
	item := types.NewItem("writing", 1, "")
	item.Set("content", `<p>one <b>two</b></p><p>three</p>`)

	result, _ := m.Process(item)
	if v, _ := result.Get("content_word_count"); v != 3 {
		t.Errorf("expected 3 words, got %v", v)
	}
}

func TestFieldFilter(t *testing.T) {
	m := NewFieldFilterMiddleware("title")
	result, _ := m.Process(writingItem(1))
	if keys := result.Keys(); len(keys) != 1 || keys[0] != "title" {
		t.Errorf("expected only title, got %v", keys)
	}
}

func TestBuildRunsBatch(t *testing.T) {
	p := Build(Options{
		Kinds:     []string{"writing"},
		Required:  []string{"title"},
		PlainText: true,
		Redact:    true,
		WordCount: true,
	}, testLogger)

	profile := types.NewItem("profile", 555, "")
	profile.Set("nickname", "Rope_Bunny")
	untitled := types.NewItem("writing", 99, "")

	out, err := p.Run([]*types.Item{writingItem(40), writingItem(40), profile, untitled, writingItem(41)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	w := out[0]
	if w.ID != 40 || out[1].ID != 41 {
		t.Errorf("order not kept: %d, %d", w.ID, out[1].ID)
	}
	if got := w.GetString("content"); got != "First knot Mail me at [REDACTED_EMAIL]" {
		t.Errorf("unexpected content %q", got)
	}
	if v, _ := w.Get("content_word_count"); v != 6 {
		t.Errorf("expected 6 words counted before redaction, got %v", v)
	}
}
