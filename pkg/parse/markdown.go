package parse

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced code block lifted out of a markdown document.
type CodeBlock struct {
	Language string
	Code     string
}

// ExtractCodeBlocks scans a markdown string and returns every fenced code
// block with its language tag. The enclosing fences are not included.
func ExtractCodeBlocks(markdownText string) ([]CodeBlock, error) {
	var blocks []CodeBlock
	source := []byte(markdownText)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if cb, ok := n.(*ast.FencedCodeBlock); ok {
			if cb.Lines().Len() > 0 {
				start := cb.Lines().At(0).Start
				stop := cb.Lines().At(cb.Lines().Len() - 1).Stop
				blocks = append(blocks, CodeBlock{
					Language: string(cb.Language(source)),
					Code:     string(source[start:stop]),
				})
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// ExtractBlocksByLanguage returns the contents of fenced code blocks whose
// language tag matches, case-insensitively. An empty language matches every
// block.
func ExtractBlocksByLanguage(markdownText string, language string) ([]string, error) {
	blocks, err := ExtractCodeBlocks(markdownText)
	if err != nil {
		return nil, err
	}

	language = strings.ToLower(language)
	var results []string
	for _, block := range blocks {
		if language == "" || strings.ToLower(block.Language) == language {
			results = append(results, block.Code)
		}
	}
	return results, nil
}

// ExtractYAMLBlocks returns the contents of fenced YAML/YML code blocks in
// document order.
func ExtractYAMLBlocks(markdownText string) ([]string, error) {
	blocks, err := ExtractCodeBlocks(markdownText)
	if err != nil {
		return nil, err
	}

	var results []string
	for _, block := range blocks {
		lang := strings.ToLower(block.Language)
		if lang == "yaml" || lang == "yml" {
			results = append(results, block.Code)
		}
	}
	return results, nil
}
