package tools

import (
	"fmt"
	"strings"
)

// describe returns the first non-empty doc line, or a generated description
// when the doc is empty or opens straight into an Args section.
func describe(name, doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		low := strings.ToLower(line)
		if strings.HasPrefix(low, "args:") || strings.HasPrefix(low, "arguments:") {
			break
		}
		return line
	}
	return fmt.Sprintf("Auto-generated tool for function `%s`", name)
}

// parseParamDocs reads the "Args:" / "Arguments:" block of a doc string.
//
//	Search the web.
//
//	Args:
//	    query: search keywords
//	    count: number of results
func parseParamDocs(doc string) map[string]string {
	docs := make(map[string]string)
	if strings.TrimSpace(doc) == "" {
		return docs
	}
	inArgs := false
	for _, line := range dedent(doc) {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if isArgsHeader(stripped) {
			inArgs = true
			continue
		}
		if !inArgs {
			continue
		}
		if !isIndented(line) {
			inArgs = false
			continue
		}
		name, desc, ok := strings.Cut(stripped, ":")
		if !ok {
			continue
		}
		docs[strings.TrimSpace(name)] = strings.TrimSpace(desc)
	}
	return docs
}

func isArgsHeader(line string) bool {
	return strings.EqualFold(line, "Args:") || strings.EqualFold(line, "Arguments:")
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

// dedent strips the whitespace prefix shared by all non-blank lines.
func dedent(doc string) []string {
	lines := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return lines
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.TrimPrefix(line, prefix)
	}
	return out
}
