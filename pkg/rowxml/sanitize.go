package rowxml

import (
	"regexp"
	"strings"
)

var (
	knownEntity   = regexp.MustCompile(`^&(?:amp|lt|gt|quot|apos|#[0-9]+|#[xX][0-9A-Fa-f]+);`)
	danglingStart = regexp.MustCompile(`<([A-Za-z_][\w.:-]*)\s*<`)
	startTag      = regexp.MustCompile(`<([A-Za-z_][\w.:-]*)(\s[^<>]*?)?(/?)>`)
	spacedEquals  = regexp.MustCompile(`\s*=\s*`)
	anyTag        = regexp.MustCompile(`<[^<>]*>`)
	markupStart   = regexp.MustCompile(`^\s*<[A-Za-z_!?/]`)
	completeTag   = regexp.MustCompile(`^<(?:/?[A-Za-z_][\w.:-]*(?:\s[^<>]*?)?/?|!--[\s\S]*?--|!\[CDATA\[[\s\S]*?\]\]|\?[\s\S]*?\?|![A-Za-z][^<>]*)>`)
)

// sanitizeLight applies the repairs that are safe for well-formed input:
// stray ampersands are escaped, a start tag running into another tag is
// self-closed, valueless attributes get a value and bytes after the last
// '>' are dropped.
func sanitizeLight(s string) string {
	s = outsideMarkupSections(s, func(seg string) string {
		seg = escapeAmpersands(seg)
		seg = danglingStart.ReplaceAllString(seg, "<$1/><")
		return fixStartTags(seg)
	})
	if i := strings.LastIndexByte(s, '>'); i >= 0 {
		s = s[:i+1]
	}
	return s
}

// outsideMarkupSections applies fn to the parts of s that are not CDATA
// sections or comments.
func outsideMarkupSections(s string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/16)
	for {
		i, closer := nextSection(s)
		if i < 0 {
			b.WriteString(fn(s))
			return b.String()
		}
		b.WriteString(fn(s[:i]))
		end := strings.Index(s[i:], closer)
		if end < 0 {
			b.WriteString(s[i:])
			return b.String()
		}
		end += i + len(closer)
		b.WriteString(s[i:end])
		s = s[end:]
	}
}

func nextSection(s string) (int, string) {
	cdata := strings.Index(s, "<![CDATA[")
	comment := strings.Index(s, "<!--")
	switch {
	case cdata < 0 && comment < 0:
		return -1, ""
	case comment < 0 || (cdata >= 0 && cdata < comment):
		return cdata, "]]>"
	default:
		return comment, "-->"
	}
}

func escapeAmpersands(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); i++ {
		if s[i] == '&' && !knownEntity.MatchString(s[i:min(len(s), i+12)]) {
			b.WriteString("&amp;")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// fixStartTags quotes unquoted attribute values and gives valueless
// attributes their own name as value.
func fixStartTags(s string) string {
	return startTag.ReplaceAllStringFunc(s, func(tag string) string {
		m := startTag.FindStringSubmatch(tag)
		// unbalanced quotes mean the tag was cut at a '>' inside a value
		if m[2] == "" || strings.Count(m[2], `"`)%2 == 1 || strings.Count(m[2], "'")%2 == 1 {
			return tag
		}
		return "<" + m[1] + fixAttributes(m[2]) + m[3] + ">"
	})
}

func fixAttributes(a string) string {
	var b strings.Builder
	i := 0
	for i < len(a) {
		if isSpace(a[i]) {
			b.WriteByte(a[i])
			i++
			continue
		}
		if a[i] == '=' {
			i++
			continue
		}

		j := i
		for j < len(a) && !isSpace(a[j]) && a[j] != '=' {
			j++
		}
		name := a[i:j]
		b.WriteString(name)

		k := j
		for k < len(a) && isSpace(a[k]) {
			k++
		}
		if k >= len(a) || a[k] != '=' {
			b.WriteString(`="` + name + `"`)
			i = j
			continue
		}

		k++
		for k < len(a) && isSpace(a[k]) {
			k++
		}
		b.WriteByte('=')
		if k < len(a) && (a[k] == '"' || a[k] == '\'') {
			end := strings.IndexByte(a[k+1:], a[k])
			if end < 0 {
				b.WriteString(a[k:])
				b.WriteByte(a[k])
				return b.String()
			}
			b.WriteString(a[k : k+end+2])
			i = k + end + 2
			continue
		}
		m := k
		for m < len(a) && !isSpace(a[m]) {
			m++
		}
		b.WriteString(`"` + strings.ReplaceAll(a[k:m], `"`, "&quot;") + `"`)
		i = m
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// heuristicPasses returns the progressively cleaned variants of s tried by
// the heuristic strategy, mildest first.
func heuristicPasses(s string) []string {
	first := wrapStrayBodies(collapseTagEquals(stripLeadingJunk(s)))
	second := escapeStrayBrackets(first)
	third := escapeIncompleteTags(second)
	return []string{first, second, third}
}

func stripLeadingJunk(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	if i := strings.IndexByte(s, '<'); i > 0 {
		s = s[i:]
	}
	return s
}

func collapseTagEquals(s string) string {
	return outsideMarkupSections(s, func(seg string) string {
		return anyTag.ReplaceAllStringFunc(seg, func(tag string) string {
			return spacedEquals.ReplaceAllString(tag, "=")
		})
	})
}

// wrapStrayBodies wraps the body of an element in CDATA when it contains
// '<' or '>' but does not start with markup.
func wrapStrayBodies(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 64)
	pos := 0
	for {
		loc := startTag.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			b.WriteString(s[pos:])
			return b.String()
		}
		start := pos
		tagEnd := start + loc[1]
		b.WriteString(s[start:tagEnd])
		pos = tagEnd
		if loc[7] > loc[6] {
			continue
		}

		closeTag := "</" + s[start+loc[2]:start+loc[3]] + ">"
		end := strings.Index(s[tagEnd:], closeTag)
		if end < 0 {
			continue
		}
		body := s[tagEnd : tagEnd+end]
		if !strings.ContainsAny(body, "<>") || markupStart.MatchString(body) {
			continue
		}
		b.WriteString("<![CDATA[")
		b.WriteString(strings.ReplaceAll(body, "]]>", "]]]]><![CDATA[>"))
		b.WriteString("]]>")
		b.WriteString(closeTag)
		pos = tagEnd + end + len(closeTag)
	}
}

// escapeStrayBrackets escapes '<' that cannot open markup and '>' outside
// tags.
func escapeStrayBrackets(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 64)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			if i+1 >= len(s) || !opensMarkup(s[i+1]) {
				b.WriteString("&lt;")
				continue
			}
			end := tagEnd(s, i)
			if end < 0 {
				b.WriteString("&lt;")
				continue
			}
			b.WriteString(s[i:end])
			i = end - 1
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// escapeIncompleteTags escapes every '<' that does not begin a complete tag,
// comment, CDATA section or processing instruction, and every '>' outside
// them.
func escapeIncompleteTags(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 64)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			m := completeTag.FindStringIndex(s[i:])
			if m == nil {
				b.WriteString("&lt;")
				continue
			}
			b.WriteString(s[i : i+m[1]])
			i += m[1] - 1
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func opensMarkup(c byte) bool {
	return c == '/' || c == '!' || c == '?' || c == '_' ||
		(c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// tagEnd returns the index just past the markup starting at s[i], or -1.
func tagEnd(s string, i int) int {
	closer := ">"
	switch {
	case strings.HasPrefix(s[i:], "<![CDATA["):
		closer = "]]>"
	case strings.HasPrefix(s[i:], "<!--"):
		closer = "-->"
	case strings.HasPrefix(s[i:], "<?"):
		closer = "?>"
	}
	j := strings.Index(s[i+1:], closer)
	if j < 0 {
		return -1
	}
	return i + 1 + j + len(closer)
}
