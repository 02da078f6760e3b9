package tui

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/russross/blackfriday/v2"
)

const markdownExtensions = blackfriday.CommonExtensions &^ blackfriday.Footnotes

// 渲染缓存，key 为原始 markdown
var (
	renderCache   = make(map[string]string)
	cacheMutex    sync.Mutex
	cacheMaxItems = 256
)

// RenderMarkdown 把回答内容渲染为终端文本，原始 HTML 会被丢弃
func RenderMarkdown(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}

	cacheMutex.Lock()
	if out, ok := renderCache[markdown]; ok {
		cacheMutex.Unlock()
		return out
	}
	cacheMutex.Unlock()

	out := renderMarkdown(markdown)

	cacheMutex.Lock()
	if len(renderCache) >= cacheMaxItems {
		renderCache = make(map[string]string)
	}
	renderCache[markdown] = out
	cacheMutex.Unlock()

	return out
}

func renderMarkdown(markdown string) string {
	r := newTerminalRenderer()
	out := blackfriday.Run([]byte(markdown),
		blackfriday.WithRenderer(r),
		blackfriday.WithExtensions(markdownExtensions),
	)
	return strings.TrimRight(string(out), "\n ")
}

// terminalRenderer blackfriday.Renderer 的终端实现
type terminalRenderer struct {
	strong  int
	emph    int
	del     int
	link    int
	heading int
	quote   int

	lists []*listState

	headingStyle lipgloss.Style
	strongStyle  lipgloss.Style
	emphStyle    lipgloss.Style
	delStyle     lipgloss.Style
	codeStyle    lipgloss.Style
	linkStyle    lipgloss.Style
	quoteStyle   lipgloss.Style
	mutedStyle   lipgloss.Style
}

type listState struct {
	ordered bool
	next    int
}

func newTerminalRenderer() *terminalRenderer {
	return &terminalRenderer{
		headingStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		strongStyle:  lipgloss.NewStyle().Bold(true),
		emphStyle:    lipgloss.NewStyle().Italic(true),
		delStyle:     lipgloss.NewStyle().Strikethrough(true),
		codeStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")),
		linkStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Underline(true),
		quoteStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
		mutedStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (r *terminalRenderer) RenderHeader(w io.Writer, ast *blackfriday.Node) {}

func (r *terminalRenderer) RenderFooter(w io.Writer, ast *blackfriday.Node) {}

func (r *terminalRenderer) RenderNode(w io.Writer, node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
	switch node.Type {
	case blackfriday.HTMLBlock, blackfriday.HTMLSpan:
		return blackfriday.SkipChildren

	case blackfriday.Text:
		r.text(w, node.Literal)

	case blackfriday.Softbreak, blackfriday.Hardbreak:
		io.WriteString(w, "\n")
		r.quotePrefix(w)

	case blackfriday.Strong:
		r.strong += step(entering)
	case blackfriday.Emph:
		r.emph += step(entering)
	case blackfriday.Del:
		r.del += step(entering)

	case blackfriday.Code:
		io.WriteString(w, r.codeStyle.Render(string(node.Literal)))

	case blackfriday.Link:
		r.link += step(entering)
		if !entering {
			dest := string(node.LinkData.Destination)
			if dest != "" && !r.linkTextIs(node, dest) {
				io.WriteString(w, r.mutedStyle.Render(" ("+dest+")"))
			}
		}

	case blackfriday.Image:
		if entering {
			io.WriteString(w, r.mutedStyle.Render("[图片: "))
		} else {
			io.WriteString(w, r.mutedStyle.Render("]"))
		}

	case blackfriday.Heading:
		r.heading += step(entering)
		if !entering {
			io.WriteString(w, "\n\n")
		}

	case blackfriday.Paragraph:
		if entering {
			r.quotePrefix(w)
			return blackfriday.GoToNext
		}
		if node.Parent != nil && node.Parent.Type == blackfriday.Item {
			io.WriteString(w, "\n")
		} else {
			io.WriteString(w, "\n\n")
		}

	case blackfriday.BlockQuote:
		r.quote += step(entering)

	case blackfriday.List:
		if entering {
			r.lists = append(r.lists, &listState{
				ordered: node.ListFlags&blackfriday.ListTypeOrdered != 0,
				next:    1,
			})
			return blackfriday.GoToNext
		}
		r.lists = r.lists[:len(r.lists)-1]
		if len(r.lists) == 0 {
			io.WriteString(w, "\n")
		}

	case blackfriday.Item:
		if entering {
			r.item(w)
		}

	case blackfriday.CodeBlock:
		r.codeBlock(w, node)

	case blackfriday.HorizontalRule:
		io.WriteString(w, r.mutedStyle.Render(strings.Repeat("─", 24))+"\n\n")

	case blackfriday.TableCell:
		if entering && node.Prev != nil {
			io.WriteString(w, r.mutedStyle.Render(" │ "))
		}
	case blackfriday.TableRow:
		if !entering {
			io.WriteString(w, "\n")
		}
	case blackfriday.TableHead:
		if !entering {
			io.WriteString(w, r.mutedStyle.Render(strings.Repeat("─", 24))+"\n")
		}
	case blackfriday.Table:
		if !entering {
			io.WriteString(w, "\n")
		}
	}
	return blackfriday.GoToNext
}

func (r *terminalRenderer) text(w io.Writer, literal []byte) {
	if len(literal) == 0 {
		return
	}
	style := lipgloss.NewStyle()
	switch {
	case r.heading > 0:
		style = r.headingStyle
	case r.link > 0:
		style = r.linkStyle
	case r.quote > 0:
		style = r.quoteStyle
	}
	if r.strong > 0 {
		style = style.Inherit(r.strongStyle)
	}
	if r.emph > 0 {
		style = style.Inherit(r.emphStyle)
	}
	if r.del > 0 {
		style = style.Inherit(r.delStyle)
	}
	io.WriteString(w, style.Render(string(literal)))
}

func (r *terminalRenderer) item(w io.Writer) {
	if len(r.lists) == 0 {
		return
	}
	list := r.lists[len(r.lists)-1]
	indent := strings.Repeat("  ", len(r.lists)-1)
	marker := "• "
	if list.ordered {
		marker = strconv.Itoa(list.next) + ". "
		list.next++
	}
	io.WriteString(w, indent+marker)
}

func (r *terminalRenderer) codeBlock(w io.Writer, node *blackfriday.Node) {
	if lang := strings.TrimSpace(string(node.CodeBlockData.Info)); lang != "" {
		io.WriteString(w, r.mutedStyle.Render("["+lang+"]")+"\n")
	}
	code := bytes.TrimRight(node.Literal, "\n")
	for _, line := range strings.Split(string(code), "\n") {
		io.WriteString(w, "  "+r.codeStyle.Render(line)+"\n")
	}
	io.WriteString(w, "\n")
}

func (r *terminalRenderer) quotePrefix(w io.Writer) {
	if r.quote > 0 {
		io.WriteString(w, r.mutedStyle.Render(strings.Repeat("│ ", r.quote)))
	}
}

// linkTextIs 自动链接的文字就是地址，不重复显示
func (r *terminalRenderer) linkTextIs(node *blackfriday.Node, dest string) bool {
	child := node.FirstChild
	return child != nil && child.Next == nil && child.Type == blackfriday.Text && string(child.Literal) == dest
}

func step(entering bool) int {
	if entering {
		return 1
	}
	return -1
}
