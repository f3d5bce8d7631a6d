package segment_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/infoagentai/infoagent-web/internal/segment"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []segment.Fragment
	}{
		{
			name:    "Empty input",
			content: "",
			want:    nil,
		},
		{
			name:    "Plain text only",
			content: "hello world",
			want:    []segment.Fragment{{Text: "hello world"}},
		},
		{
			name:    "Code fence with language",
			content: "pre ```js\nconsole.log(1)\n``` post",
			want: []segment.Fragment{
				{Text: "pre "},
				{Text: "console.log(1)\n", IsCode: true, Language: "js"},
				{Text: " post"},
			},
		},
		{
			name:    "Code fence without language",
			content: "```x = 1```",
			want: []segment.Fragment{
				{Text: "x = 1", IsCode: true},
			},
		},
		{
			name:    "Unterminated fence stays plain",
			content: "before ```js\nnot closed",
			want:    []segment.Fragment{{Text: "before ```js\nnot closed"}},
		},
		{
			name:    "Two code fences",
			content: "a ```go\none\n``` b ```\ntwo``` c",
			want: []segment.Fragment{
				{Text: "a "},
				{Text: "one\n", IsCode: true, Language: "go"},
				{Text: " b "},
				{Text: "\ntwo", IsCode: true},
				{Text: " c"},
			},
		},
		{
			name:    "Block math",
			content: `sum: \[a + b\] done`,
			want: []segment.Fragment{
				{Text: "sum: "},
				{Text: "a + b", IsMath: true},
				{Text: " done"},
			},
		},
		{
			name:    "Inline math",
			content: `the value \(x^2\) grows`,
			want: []segment.Fragment{
				{Text: "the value "},
				{Text: "x^2", IsInlineMath: true},
				{Text: " grows"},
			},
		},
		{
			name:    "Block and inline math together",
			content: `\[E = mc^2\] and \(v = d/t\)`,
			want: []segment.Fragment{
				{Text: "E = mc^2", IsMath: true},
				{Text: " and "},
				{Text: "v = d/t", IsInlineMath: true},
			},
		},
		{
			name:    "Unterminated math stays plain",
			content: `open \[never closed`,
			want:    []segment.Fragment{{Text: `open \[never closed`}},
		},
		{
			name:    "Math inside code is not split",
			content: "```\n\\[not math\\]\n```",
			want: []segment.Fragment{
				{Text: "\n\\[not math\\]\n", IsCode: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := segment.Split(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSplitCodeFragmentCount(t *testing.T) {
	content := "x ```a\n1\n``` y ```b\n2\n``` z ```3```"
	got := segment.Split(content)

	codes := 0
	for _, f := range got {
		if f.IsCode {
			codes++
		}
	}
	if codes != 3 {
		t.Errorf("code fragment count = %d, want 3", codes)
	}
}

func TestSplitReconstruction(t *testing.T) {
	// Concatenating fragment texts must reproduce the input minus delimiter syntax.
	tests := []struct {
		content string
		want    string
	}{
		{"pre ```js\nbody\n``` post", "pre body\n post"},
		{`a \[m\] b \(n\) c`, "a m b n c"},
		{"plain only", "plain only"},
		{"``` no lang ```", " no lang "},
	}

	for _, tt := range tests {
		var sb strings.Builder
		for _, f := range segment.Split(tt.content) {
			sb.WriteString(f.Text)
		}
		if sb.String() != tt.want {
			t.Errorf("reconstruction of %q = %q, want %q", tt.content, sb.String(), tt.want)
		}
	}
}

func TestSplitSingleTag(t *testing.T) {
	content := "a ```go\nb\n``` c \\[d\\] e \\(f\\) g"
	for _, f := range segment.Split(content) {
		set := 0
		if f.IsCode {
			set++
		}
		if f.IsMath {
			set++
		}
		if f.IsInlineMath {
			set++
		}
		if set > 1 {
			t.Errorf("fragment %+v has %d tags set, want at most 1", f, set)
		}
	}
}
