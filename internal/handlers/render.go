package handlers

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/infoagentai/infoagent-web/internal/models"
	"github.com/infoagentai/infoagent-web/internal/segment"
)

// renderContents converts message contents into display HTML. Text contents are split into
// fragments first: prose renders through markdown, code through the syntax highlighter, and
// math into tagged spans the client-side typesetter picks up.
func (m Main) renderContents(contents []models.Content) (template.HTML, error) {
	var sb strings.Builder

	for _, ct := range contents {
		switch ct.Type {
		case models.ContentTypeImage:
			sb.WriteString(`<img class="chat-image" src="`)
			sb.WriteString(template.HTMLEscapeString(ct.ImageData))
			sb.WriteString(`" alt="uploaded image">`)
		case models.ContentTypeText:
			if err := m.renderText(&sb, ct.Text); err != nil {
				return "", err
			}
		}
	}

	return template.HTML(sb.String()), nil
}

func (m Main) renderText(sb *strings.Builder, text string) error {
	for _, frag := range segment.Split(text) {
		switch {
		case frag.IsCode:
			// We rebuild the fenced block so the highlighting extension picks up the language tag
			source := fmt.Sprintf("```%s\n%s\n```\n", frag.Language, frag.Text)
			if err := m.markdown.Convert([]byte(source), sb); err != nil {
				return fmt.Errorf("failed to render code fragment: %w", err)
			}
		case frag.IsMath:
			sb.WriteString(`<div class="math math-block">\[`)
			sb.WriteString(template.HTMLEscapeString(frag.Text))
			sb.WriteString(`\]</div>`)
		case frag.IsInlineMath:
			sb.WriteString(`<span class="math math-inline">\(`)
			sb.WriteString(template.HTMLEscapeString(frag.Text))
			sb.WriteString(`\)</span>`)
		default:
			if err := m.markdown.Convert([]byte(frag.Text), sb); err != nil {
				return fmt.Errorf("failed to render text fragment: %w", err)
			}
		}
	}
	return nil
}
