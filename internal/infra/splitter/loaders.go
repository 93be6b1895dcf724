package splitter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"rag-pipeline/internal/domain"
)

type loader func(data []byte) (string, error)

var loaders = map[string]loader{
	".txt":      plainText,
	".text":     plainText,
	".md":       markdownText,
	".markdown": markdownText,
	".html":     htmlText,
	".htm":      htmlText,
	".csv":      csvText,
	".json":     jsonText,
}

// Supported reports whether filename has an extension with a loader.
func Supported(filename string) bool {
	_, ok := loaders[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract returns the plain text of a file, chosen by extension.
func Extract(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	load, ok := loaders[ext]
	if !ok {
		return "", fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidArgument, ext)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8 text", domain.ErrInvalidArgument, filename)
	}
	out, err := load(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, filename, err)
	}
	return out, nil
}

func plainText(data []byte) (string, error) {
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

// markdownText keeps the readable text of headings, paragraphs, list items
// and code blocks, one block per paragraph.
func markdownText(src []byte) (string, error) {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.CodeSpan:
			// children are Text nodes; nothing extra
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
				buf.WriteString("\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.Blockquote:
			if !entering {
				buf.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return collapseBlankLines(buf.String()), nil
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var blocks []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td, th, blockquote").Each(func(_ int, s *goquery.Selection) {
		// nested matches are covered by their outermost block
		if s.ParentsFiltered("p, li, pre, blockquote").Length() > 0 {
			return
		}
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			blocks = append(blocks, t)
		}
	})
	if len(blocks) == 0 {
		if t := strings.Join(strings.Fields(root.Text()), " "); t != "" {
			blocks = append(blocks, t)
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

// csvText renders each row as "column: value" lines, rows separated by a
// blank line.
func csvText(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var rows []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for i, v := range rec {
			col := fmt.Sprintf("column_%d", i)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				col = strings.TrimSpace(header[i])
			}
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(col + ": " + strings.TrimSpace(v))
		}
		rows = append(rows, sb.String())
	}
	return strings.Join(rows, "\n\n"), nil
}

// jsonText flattens a JSON document into "path: value" lines for every
// scalar leaf, keys in sorted order.
func jsonText(data []byte) (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	var lines []string
	flattenJSON("", v, &lines)
	return strings.Join(lines, "\n"), nil
}

func flattenJSON(path string, v any, out *[]string) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := k
			if path != "" {
				p = path + "." + k
			}
			flattenJSON(p, t[k], out)
		}
	case []any:
		for i, e := range t {
			flattenJSON(fmt.Sprintf("%s[%d]", path, i), e, out)
		}
	case nil:
	default:
		s := fmt.Sprint(t)
		if path == "" {
			*out = append(*out, s)
			return
		}
		*out = append(*out, path+": "+s)
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
