package tui

import (
	_ "embed"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/russross/blackfriday/v2"
)

//go:embed help.md
var helpMarkdown string

var (
	helpH1Style     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Underline(true)
	helpH2Style     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	helpCodeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStrongStyle = lipgloss.NewStyle().Bold(true)
	helpEmphStyle   = lipgloss.NewStyle().Italic(true)
)

// RenderMarkdown 把 Markdown 渲染为终端文本。
// 只处理帮助文档用到的元素：标题、段落、列表、行内代码和强调。
func RenderMarkdown(src string) string {
	md := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	root := md.Parse([]byte(src))

	var out strings.Builder
	var line strings.Builder
	var style *lipgloss.Style
	listDepth := 0

	flush := func() {
		text := strings.TrimRight(line.String(), " ")
		line.Reset()
		if text == "" {
			return
		}
		out.WriteString(text)
		out.WriteString("\n")
	}

	root.Walk(func(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		switch node.Type {
		case blackfriday.Heading:
			if entering {
				s := helpH2Style
				if node.HeadingData.Level == 1 {
					s = helpH1Style
				}
				style = &s
			} else {
				style = nil
				flush()
				out.WriteString("\n")
			}

		case blackfriday.List:
			if entering {
				listDepth++
			} else {
				listDepth--
				if listDepth == 0 {
					out.WriteString("\n")
				}
			}

		case blackfriday.Item:
			if entering {
				line.WriteString(strings.Repeat("  ", listDepth-1))
				line.WriteString("• ")
			} else {
				flush()
			}

		case blackfriday.Paragraph:
			if !entering {
				flush()
				if listDepth == 0 {
					out.WriteString("\n")
				}
			}

		case blackfriday.Text:
			text := string(node.Literal)
			if style != nil {
				text = style.Render(text)
			}
			line.WriteString(text)

		case blackfriday.Code:
			line.WriteString(helpCodeStyle.Render(string(node.Literal)))

		case blackfriday.Strong:
			if entering {
				s := helpStrongStyle
				style = &s
			} else {
				style = nil
			}

		case blackfriday.Emph:
			if entering {
				s := helpEmphStyle
				style = &s
			} else {
				style = nil
			}

		case blackfriday.Softbreak, blackfriday.Hardbreak:
			flush()
		}
		return blackfriday.GoToNext
	})
	flush()

	return strings.TrimRight(out.String(), "\n")
}

// HelpView 渲染帮助面板
func HelpView(width int) string {
	return PaneStyle.Width(width).Render(RenderMarkdown(helpMarkdown))
}
