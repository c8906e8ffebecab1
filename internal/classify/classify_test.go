package classify

import (
	"strings"
	"testing"

	"github.com/nao1215/harvester/internal/model"
)

func TestDetectFromContentLanguageHeader(t *testing.T) {
	t.Parallel()

	page := &model.Page{
		Headers:  map[string][]string{"Content-Language": {"de-DE, de"}},
		Snapshot: "the and was with have this the and was", // contradicting body is ignored
	}

	if got := Detect(page); got != "de" {
		t.Errorf("Detect() = %q, want %q", got, "de")
	}
}

func TestDetectFromHTMLLangAttribute(t *testing.T) {
	t.Parallel()

	page := &model.Page{
		Raw:      []byte(`<html lang="ja"><head><title>x</title></head><body></body></html>`),
		Snapshot: "x",
	}

	if got := Detect(page); got != "ja" {
		t.Errorf("Detect() = %q, want %q", got, "ja")
	}
}

func TestDetectFromStopWords(t *testing.T) {
	t.Parallel()

	english := strings.Repeat("the quick fox and the lazy dog was here with this one ", 5)
	german := strings.Repeat("der hund und die katze das haus ist nicht ein auto ", 5)

	tests := []struct {
		name     string
		snapshot string
		want     string
	}{
		{name: "english text", snapshot: english, want: "en"},
		{name: "german text", snapshot: german, want: "de"},
		{name: "too short", snapshot: "the and was", want: ""},
		{name: "no stop words", snapshot: strings.Repeat("zzz qqq kkk ", 20), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := &model.Page{Snapshot: tt.snapshot}
			if got := Detect(page); got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectInconclusive(t *testing.T) {
	t.Parallel()

	if got := Detect(nil); got != "" {
		t.Errorf("Detect(nil) = %q, want empty", got)
	}
	if got := Detect(&model.Page{}); got != "" {
		t.Errorf("Detect(empty page) = %q, want empty", got)
	}
}

func TestDeclaredLanguageOutsideSupportedSet(t *testing.T) {
	t.Parallel()

	page := &model.Page{
		Headers: map[string][]string{"content-language": {"fi"}},
	}

	// Finnish is not in the supported set, but a declared language is
	// kept rather than discarded.
	if got := Detect(page); got != "fi" {
		t.Errorf("Detect() = %q, want %q", got, "fi")
	}
}
