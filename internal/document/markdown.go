package document

import (
	"strings"
	"unicode/utf8"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// inspectMarkdown 校验Markdown文档，返回第一个标题
// 渲染后没有任何文本内容的文档视为空文档
func inspectMarkdown(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", ErrInvalidEncoding
	}

	// 创建Markdown解析器
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse(content)

	// 将Markdown转换为HTML后提取纯文本
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	plainText := extractTextFromHTML(string(markdown.Render(doc, renderer)))
	if strings.TrimSpace(plainText) == "" {
		return "", ErrEmptyFile
	}

	title := firstHeading(doc)
	if title == "" {
		title, _ = inspectText([]byte(plainText))
	}
	return truncate(title, 255), nil
}

// firstHeading 返回文档中第一个标题的文本
func firstHeading(doc ast.Node) string {
	var title string
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		heading, ok := node.(*ast.Heading)
		if !ok {
			return ast.GoToNext
		}
		title = strings.TrimSpace(nodeText(heading))
		if title == "" {
			return ast.GoToNext
		}
		return ast.Terminate
	})
	return title
}

// nodeText 收集节点下所有叶子节点的文本
func nodeText(node ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch leaf := n.(type) {
		case *ast.Text:
			sb.Write(leaf.Literal)
		case *ast.Code:
			sb.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	return sb.String()
}

// extractTextFromHTML 从HTML中提取纯文本
func extractTextFromHTML(html string) string {
	// 替换常见的块级元素为换行符
	replacements := []struct {
		Old string
		New string
	}{
		{"<br>", "\n"},
		{"<br/>", "\n"},
		{"<br />", "\n"},
		{"</p>", "\n"},
		{"</li>", "\n"},
		{"</h1>", "\n"},
		{"</h2>", "\n"},
		{"</h3>", "\n"},
	}

	result := html
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r.Old, r.New)
	}

	// 移除所有HTML标签
	for {
		start := strings.Index(result, "<")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], ">")
		if end == -1 {
			break
		}
		result = result[:start] + " " + result[start+end+1:]
	}

	return strings.TrimSpace(result)
}
