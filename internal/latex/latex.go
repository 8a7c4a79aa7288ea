// Package latex recognizes the small, fixed LaTeX vocabulary the prefilter
// rewrites: generic environments, labels, graphics inclusion, graphicspath
// directives and the hidden equation anchor. It is a set of text patterns,
// not a LaTeX parser.
package latex

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	beginRe    = regexp.MustCompile(`\\begin\{(\w+\*?)\}`)
	labelRe    = regexp.MustCompile(`\s*\\label\{([\w:.\-]+)\}`)
	graphicsRe = regexp.MustCompile(`(\\includegraphics\s*(?:\[[^\]]*\])?\s*\{)([^{}]*)(\})`)
	pathDirRe  = regexp.MustCompile(`\\graphicspath\s*\{((?:\s*\{[^{}]*\})+)\s*\}`)
	pathItemRe = regexp.MustCompile(`\{([^{}]*)\}`)
)

// Environment is a matched \begin{Name}[Title] Body \end{Name} block.
type Environment struct {
	Name     string
	Title    string
	HasTitle bool
	Body     string
}

// MatchEnvironment finds the first \begin{NAME} in text that is closed by a
// later \end{NAME}. The body runs to the last such \end, so nested
// environments of the same name stay inside the body. The optional title is
// a balanced [...] group directly after the \begin.
func MatchEnvironment(text string) (Environment, bool) {
	for _, loc := range beginRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[loc[2]:loc[3]]
		rest := text[loc[1]:]
		end := strings.LastIndex(rest, `\end{`+name+`}`)
		if end < 0 {
			continue
		}
		env := Environment{Name: name}
		inner := rest[:end]
		if title, n, ok := bracketGroup(inner); ok {
			env.Title, env.HasTitle = title, true
			inner = inner[n:]
		}
		env.Body = inner
		return env, true
	}
	return Environment{}, false
}

// bracketGroup reads a balanced [...] at the start of s and returns its
// content and the number of bytes consumed.
func bracketGroup(s string) (string, int, bool) {
	if !strings.HasPrefix(s, "[") {
		return "", 0, false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[1:i], i + 1, true
			}
		}
	}
	return "", 0, false
}

// ExtractLabel finds the first \label{TOKEN} in body and returns the token
// and the body with that label command (and its leading whitespace) removed.
func ExtractLabel(body string) (label, stripped string, ok bool) {
	loc := labelRe.FindStringSubmatchIndex(body)
	if loc == nil {
		return "", body, false
	}
	return body[loc[2]:loc[3]], body[:loc[0]] + body[loc[1]:], true
}

// HasLabel reports whether text contains a \label command.
func HasLabel(text string) bool {
	return strings.Contains(text, `\label`)
}

// ReplaceGraphics replaces the file argument of every \includegraphics in
// text with resolve(file). Matches are rewritten left to right and never
// overlap, so one replacement cannot disturb the next.
func ReplaceGraphics(text string, resolve func(string) string) string {
	return graphicsRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := graphicsRe.FindStringSubmatch(m)
		return sub[1] + resolve(strings.TrimSpace(sub[2])) + sub[3]
	})
}

// GraphicsFiles lists the file arguments of all \includegraphics in text.
func GraphicsFiles(text string) []string {
	var files []string
	for _, m := range graphicsRe.FindAllStringSubmatch(text, -1) {
		files = append(files, strings.TrimSpace(m[2]))
	}
	return files
}

// ParseGraphicsPath returns the directories declared by every
// \graphicspath{{dir1}{dir2}...} in text, in order. ok is false when text
// holds no well-formed directive.
func ParseGraphicsPath(text string) (dirs []string, ok bool) {
	for _, m := range pathDirRe.FindAllStringSubmatch(text, -1) {
		ok = true
		for _, item := range pathItemRe.FindAllStringSubmatch(m[1], -1) {
			if d := strings.TrimSpace(item[1]); d != "" {
				dirs = append(dirs, d)
			}
		}
	}
	return dirs, ok
}

// HasGraphicsPath reports whether text mentions a \graphicspath directive,
// well-formed or not.
func HasGraphicsPath(text string) bool {
	return strings.Contains(text, `\graphicspath`)
}

// AnchorTeX is the equation whose tag and label let a math renderer resolve
// \ref{label} to number n.
func AnchorTeX(label string, n int) string {
	return fmt.Sprintf(`\begin{equation}\tag{%d}\label{%s}\end{equation}`, n, label)
}

// WrapEquation wraps a display math body in an equation environment,
// numbered when the body carries a \label and starred otherwise.
func WrapEquation(body string) string {
	star := "*"
	if HasLabel(body) {
		star = ""
	}
	return fmt.Sprintf("\\begin{equation%s}\n%s\n\\end{equation%s}", star, body, star)
}

// IsEquation reports whether a display math body is already an equation
// environment.
func IsEquation(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), `\begin{equation`)
}
