package module

import (
	"strings"
	"unicode"
)

// Parse scans src for static import/export declarations and dynamic
// import() call sites. It is a lightweight scanner, not a full parser: it
// walks the source once, skipping string/template literals and comments so
// keywords inside them are never mistaken for declarations, and recognizes
// the declaration shapes a bundler needs to see.
func Parse(id string, src []byte) *Module {
	m := &Module{ID: id, Source: src, Hash: hashSource(src)}
	s := &scanner{src: string(src)}

	for !s.eof() {
		s.skipTrivia()
		if s.eof() {
			break
		}
		start := s.pos
		switch {
		case s.matchKeyword("import"):
			if static := s.parseImport(m); static {
				m.Stmts = append(m.Stmts, Span{Start: start, End: s.pos})
			}
		case s.matchKeyword("export"):
			declStart := s.pos
			s.parseExport(m)
			m.Stmts = append(m.Stmts, Span{Start: start, End: s.pos})
			// parseExport skips a declaration's body whole; import() call
			// sites inside it (e.g. in an exported function) are still recorded.
			m.Dynamic = append(m.Dynamic, Parse(id, src[declStart:s.pos]).Dynamic...)
		default:
			s.advanceToken()
		}
	}
	return m
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

// skipTrivia advances past whitespace, line comments and block comments.
// String/template literals are not trivia here; advanceToken skips those.
func (s *scanner) skipTrivia() {
	for !s.eof() {
		c := s.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			s.skipLineComment()
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
			s.skipBlockComment()
		default:
			return
		}
	}
}

func (s *scanner) skipLineComment() {
	for !s.eof() && s.peek() != '\n' {
		s.pos++
	}
}

func (s *scanner) skipBlockComment() {
	s.pos += 2
	for !s.eof() {
		if s.peek() == '*' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/' {
			s.pos += 2
			return
		}
		s.pos++
	}
}

// skipString consumes a quoted string literal (including escapes) starting
// at the current quote character and returns its content.
func (s *scanner) skipString() string {
	quote := s.peek()
	s.pos++
	start := s.pos
	for !s.eof() {
		c := s.peek()
		if c == '\\' {
			s.pos += 2
			continue
		}
		if c == quote {
			content := s.src[start:s.pos]
			s.pos++
			return content
		}
		if quote == '`' && c == '$' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '{' {
			// template interpolation: bail out of literal tracking, this
			// specifier can't be a static string anyway.
			depth := 1
			s.pos += 2
			for !s.eof() && depth > 0 {
				if s.peek() == '{' {
					depth++
				} else if s.peek() == '}' {
					depth--
				}
				s.pos++
			}
			continue
		}
		s.pos++
	}
	return s.src[start:]
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || unicode.IsDigit(rune(c))
}

// matchKeyword consumes `kw` if it occurs at the current position as a
// whole identifier (not a prefix of a longer one) and advances past it. Any
// trivia after the keyword is left in place.
func (s *scanner) matchKeyword(kw string) bool {
	if !strings.HasPrefix(s.src[s.pos:], kw) {
		return false
	}
	end := s.pos + len(kw)
	if end < len(s.src) && isIdentPart(s.src[end]) {
		return false
	}
	s.pos = end
	return true
}

func (s *scanner) readIdent() string {
	s.skipTrivia()
	start := s.pos
	if s.eof() || !isIdentStart(s.peek()) {
		return ""
	}
	for !s.eof() && isIdentPart(s.peek()) {
		s.pos++
	}
	return s.src[start:s.pos]
}

// advanceToken skips one "uninteresting" token: an identifier, a string
// literal, or a single character, so the outer loop makes forward progress.
func (s *scanner) advanceToken() {
	c := s.peek()
	switch {
	case c == '\'' || c == '"' || c == '`':
		s.skipString()
	case isIdentStart(c):
		for !s.eof() && isIdentPart(s.peek()) {
			s.pos++
		}
	default:
		s.pos++
	}
}

// readClauseUntilFrom reads raw text up to (not including) a top-level
// `from` keyword or statement terminator, returning the clause body.
func (s *scanner) readClauseUntilFrom() (body string, hasFrom bool) {
	start := s.pos
	depth := 0
	for !s.eof() {
		s.skipTrivia()
		if s.eof() {
			break
		}
		c := s.peek()
		if depth == 0 && s.matchKeyword("from") {
			return strings.TrimSpace(s.src[start : s.pos-len("from")]), true
		}
		if depth == 0 && (c == ';' || c == '\n') {
			return strings.TrimSpace(s.src[start:s.pos]), false
		}
		switch c {
		case '{', '(', '[':
			depth++
			s.pos++
		case '}', ')', ']':
			if depth > 0 {
				depth--
			}
			s.pos++
		case '\'', '"', '`':
			s.skipString()
		default:
			s.pos++
		}
	}
	return strings.TrimSpace(s.src[start:s.pos]), false
}

func (s *scanner) readSpecifier() (string, bool) {
	s.skipTrivia()
	if s.eof() {
		return "", false
	}
	c := s.peek()
	if c != '\'' && c != '"' && c != '`' {
		return "", false
	}
	return s.skipString(), true
}

// parseImport consumes one import form and reports whether it was a static
// declaration (as opposed to a dynamic import() expression or import.meta,
// neither of which should be stripped from a module body at render time).
func (s *scanner) parseImport(m *Module) bool {
	// import(...) dynamic form: only a paren can legally follow immediately.
	save := s.pos
	s.skipTrivia()
	if s.peek() == '(' {
		s.pos++
		spec, ok := s.readSpecifier()
		s.skipTrivia()
		if s.peek() == ')' {
			s.pos++
		}
		if ok {
			m.Dynamic = append(m.Dynamic, DynamicImport{Specifier: spec})
		} else {
			m.Dynamic = append(m.Dynamic, DynamicImport{Unresolvable: true})
		}
		return false
	}
	s.pos = save

	// import.meta and similar: not an import declaration, bail.
	if s.peek() == '.' {
		return false
	}

	clause, hasFrom := s.readClauseUntilFrom()
	var specifier string
	if hasFrom {
		spec, ok := s.readSpecifier()
		if !ok {
			return false
		}
		specifier = spec
	} else {
		// `import 'side-effect-specifier'` form: the clause body IS the
		// specifier, already dequoted by readClauseUntilFrom's scan not
		// applying here -- handle directly.
		clause = strings.TrimSpace(clause)
		if len(clause) >= 2 && (clause[0] == '\'' || clause[0] == '"') {
			specifier = clause[1 : len(clause)-1]
			m.Imports = append(m.Imports, ImportSpecifier{Specifier: specifier, Kind: ImportSideEffect})
		}
		return true
	}

	parseImportClause(m, clause, specifier)
	return true
}

func parseImportClause(m *Module, clause, specifier string) {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		m.Imports = append(m.Imports, ImportSpecifier{Specifier: specifier, Kind: ImportSideEffect})
		return
	}

	parts := splitTopLevelComma(clause)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case strings.HasPrefix(part, "* as "):
			local := strings.TrimSpace(strings.TrimPrefix(part, "* as "))
			m.Imports = append(m.Imports, ImportSpecifier{Specifier: specifier, Kind: ImportNamespace, Local: local})
		case strings.HasPrefix(part, "{"):
			inner := strings.TrimSuffix(strings.TrimPrefix(part, "{"), "}")
			for _, namedRaw := range splitTopLevelComma(inner) {
				named := strings.TrimSpace(namedRaw)
				if named == "" {
					continue
				}
				imported, local := splitAs(named)
				m.Imports = append(m.Imports, ImportSpecifier{Specifier: specifier, Kind: ImportNamed, Imported: imported, Local: local})
			}
		default:
			// bare default binding
			m.Imports = append(m.Imports, ImportSpecifier{Specifier: specifier, Kind: ImportDefault, Local: part})
		}
	}
}

func (s *scanner) parseExport(m *Module) {
	s.skipTrivia()
	if s.matchKeyword("default") {
		// export default <expr>; we don't need the expression, only that a
		// default export exists.
		m.Exports = append(m.Exports, ExportSpecifier{Kind: ExportDefault})
		// consume to end of statement for forward progress.
		for !s.eof() && s.peek() != '\n' && s.peek() != ';' {
			s.advanceToken()
		}
		return
	}

	s.skipTrivia()
	if s.peek() == '*' {
		s.pos++
		s.skipTrivia()
		local := ""
		if s.matchKeyword("as") {
			local = s.readIdent()
		}
		s.skipTrivia()
		if s.matchKeyword("from") {
			if spec, ok := s.readSpecifier(); ok {
				kind := ExportAll
				if local != "" {
					kind = ExportReexport
				}
				m.Exports = append(m.Exports, ExportSpecifier{Kind: kind, Exported: local, Specifier: spec})
			}
		}
		return
	}

	if s.peek() == '{' {
		clause, hasFrom := s.readClauseUntilFrom()
		specifier := ""
		if hasFrom {
			if spec, ok := s.readSpecifier(); ok {
				specifier = spec
			}
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(clause), "{"), "}")
		for _, raw := range splitTopLevelComma(inner) {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			local, exported := splitAs(name)
			kind := ExportNamed
			if specifier != "" {
				kind = ExportReexport
			}
			m.Exports = append(m.Exports, ExportSpecifier{Kind: kind, Local: local, Exported: exported, Specifier: specifier})
		}
		return
	}

	// export const/let/var/function/class/async function <name> ...
	for _, kw := range []string{"const", "let", "var", "function*", "function", "class", "async"} {
		if s.matchKeyword(kw) {
			if kw == "async" {
				s.skipTrivia()
				s.matchKeyword("function")
				s.skipTrivia()
				if s.peek() == '*' {
					s.pos++
				}
			}
			name := s.readIdent()
			if name != "" {
				// `const` can introduce several bindings; we only capture
				// the first declarator name, which covers the overwhelming
				// common case ("export const x = ...").
				m.Exports = append(m.Exports, ExportSpecifier{Kind: ExportNamed, Local: name, Exported: name})
			}
			s.skipDeclarationTail()
			return
		}
	}
}

// skipDeclarationTail advances past the remainder of a declaration (the
// "= expr;" of a const/let/var, or the parameter list and body of a
// function/class), so the caller's recorded Span covers the whole
// declaration rather than just its leading keyword and name -- leaving the
// tail in place would strip only "export const x" and splice the leftover
// "= 42;" into the module body on its own, which isn't valid JS.
func (s *scanner) skipDeclarationTail() {
	depth := 0
	for !s.eof() {
		c := s.peek()
		switch c {
		case '\'', '"', '`':
			s.skipString()
			continue
		case '{':
			if depth == 0 {
				s.skipBalancedBraces()
				return
			}
			depth++
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ';':
			if depth == 0 {
				s.pos++
				return
			}
		case '\n':
			if depth == 0 {
				return
			}
		}
		s.pos++
	}
}

// skipBalancedBraces consumes a brace-delimited block starting at the
// current '{', including nested braces and string/template literals.
func (s *scanner) skipBalancedBraces() {
	depth := 0
	for !s.eof() {
		c := s.peek()
		switch c {
		case '\'', '"', '`':
			s.skipString()
			continue
		case '{':
			depth++
		case '}':
			depth--
		}
		s.pos++
		if depth == 0 {
			return
		}
	}
}

func splitTopLevelComma(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func splitAs(s string) (left, right string) {
	idx := strings.Index(s, " as ")
	if idx < 0 {
		return s, s
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+4:])
}
