package loader

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/jonathan/docmind/internal/types"
)

var (
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	extraBlanks  = regexp.MustCompile(`\n\n\n+`)
	rtfControl   = regexp.MustCompile(`\\[a-zA-Z]+-?\d* ?|\\[^a-zA-Z]`)
	rtfGroupMark = regexp.MustCompile(`[{}]`)
	rtfPar       = regexp.MustCompile(`\\par\b`)
)

// TextLoader reads a whole file as a single document. RTF input has its
// control words stripped.
type TextLoader struct{}

// Load implements Loader.
func (TextLoader) Load(ctx context.Context, path string) ([]types.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Format: "text", Message: "failed to read file", Cause: err}
	}

	content := string(data)
	if strings.HasPrefix(strings.TrimSpace(content), `{\rtf`) {
		content = StripRTF(content)
	}
	content = CleanText(content)
	if content == "" {
		return nil, nil
	}
	return []types.SourceDocument{{
		Content:  content,
		Metadata: map[string]any{"source": path},
	}}, nil
}

// CleanText normalizes line endings, collapses runs of spaces within lines,
// keeps at most one blank line between paragraphs and trims the result.
func CleanText(content string) string {
	if content == "" {
		return ""
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		indent := len(line) - len(trimmed)
		body := multiSpace.ReplaceAllString(strings.TrimRight(trimmed, " \t"), " ")
		if body == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.Repeat(" ", indent) + body
	}

	result := extraBlanks.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(result)
}

// StripRTF removes RTF control words and group braces, leaving the plain text.
func StripRTF(content string) string {
	content = rtfPar.ReplaceAllString(content, "\n")
	content = rtfControl.ReplaceAllString(content, "")
	return rtfGroupMark.ReplaceAllString(content, "")
}
