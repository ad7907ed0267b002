package guard

import (
	"strings"
)

// Requested is what the statement text itself asks for, independent of the planner
type Requested struct {
	IdentifierSet

	// Aliases maps a range alias to its relation key or CTE name
	Aliases map[string]string
	// CTE lists the names bound by WITH clauses
	CTE map[string]bool

	// CTEOutputs holds the output columns of each CTE; nil when the list is not knowable (SELECT *)
	CTEOutputs map[string]map[string]bool
	// CTERefs holds the columns the statement reads from each CTE
	CTERefs map[string]map[string]bool
}

func newRequested() Requested {
	return Requested{
		IdentifierSet: NewIdentifierSet(),
		Aliases:       make(map[string]string),
		CTE:           make(map[string]bool),
		CTEOutputs:    make(map[string]map[string]bool),
		CTERefs:       make(map[string]map[string]bool),
	}
}

func (r Requested) addCTERef(name, column string) {
	cols, ok := r.CTERefs[name]
	if !ok {
		cols = make(map[string]bool)
		r.CTERefs[name] = cols
	}
	cols[column] = true
}

// words that end a source list or can never be an alias
var clauseWords = map[string]bool{
	"where": true, "join": true, "inner": true, "left": true, "right": true, "full": true,
	"outer": true, "cross": true, "natural": true, "on": true, "using": true, "group": true,
	"order": true, "limit": true, "offset": true, "having": true, "union": true,
	"intersect": true, "except": true, "window": true, "fetch": true, "for": true,
	"returning": true, "set": true, "values": true, "select": true, "from": true, "as": true,
	"lateral": true, "tablesample": true, "into": true, "default": true, "with": true,
	"when": true, "then": true, "else": true, "end": true, "and": true, "or": true,
	"not": true, "is": true, "in": true, "only": true, "overriding": true, "conflict": true,
}

type source struct {
	key     string // schema.table, or the CTE name
	alias   string
	cte     bool
	derived bool // subquery or function in FROM
	depth   int
}

type cteDef struct {
	name    string
	columns []string
	body    []token
}

// ExtractRequested reads the relations and columns a statement names. It looks at
// FROM, JOIN, INSERT INTO and UPDATE targets, the top-level select list, INSERT
// column lists and UPDATE SET targets. CTE bodies are read the same way.
func ExtractRequested(sql string) Requested {
	req := newRequested()
	extractInto(req, lex(sql), map[string]bool{})
	return req
}

func extractInto(req Requested, toks []token, outer map[string]bool) {
	ctes, mainStart := parseCTEs(toks)

	visible := make(map[string]bool, len(outer)+len(ctes))
	for name := range outer {
		visible[name] = true
	}
	for _, c := range ctes {
		visible[c.name] = true
		req.CTE[c.name] = true
	}

	for _, c := range ctes {
		extractInto(req, c.body, visible)
		if len(c.columns) > 0 {
			req.CTEOutputs[c.name] = toSet(c.columns)
			continue
		}
		req.CTEOutputs[c.name] = selectOutputs(c.body)
	}

	main := toks[mainStart:]
	sources := scanSources(main, visible)
	for _, s := range sources {
		if s.alias != "" && !s.derived {
			req.Aliases[s.alias] = s.key
		}
		if !s.cte && !s.derived {
			req.addRelation(s.key)
		}
	}

	var top []source
	for _, s := range sources {
		if s.depth == 0 {
			top = append(top, s)
		}
	}

	switch {
	case len(main) > 0 && main[0].is("insert"):
		if len(top) > 0 && !top[0].cte && !top[0].derived {
			for _, col := range insertColumns(main) {
				req.addColumn(top[0].key, col)
			}
		}
	case len(main) > 0 && main[0].is("update"):
		if len(top) > 0 && !top[0].cte && !top[0].derived {
			for _, col := range updateColumns(main) {
				req.addColumn(top[0].key, col)
			}
		}
	}

	for _, item := range selectItems(main) {
		if item.column == "" || item.column == "*" || nonColumns[item.column] {
			continue
		}
		attribute(req, item, top, sources, visible)
	}
}

func attribute(req Requested, item selectItem, top, all []source, ctes map[string]bool) {
	if item.qualifier == "" {
		if len(top) != 1 || top[0].derived {
			return
		}
		if top[0].cte {
			req.addCTERef(top[0].key, item.column)
			return
		}
		req.addColumn(top[0].key, item.column)
		return
	}

	for _, s := range all {
		if s.alias != item.qualifier {
			continue
		}
		switch {
		case s.derived:
		case s.cte:
			req.addCTERef(s.key, item.column)
		default:
			req.addColumn(s.key, item.column)
		}
		return
	}
	if ctes[item.qualifier] {
		req.addCTERef(item.qualifier, item.column)
		return
	}
	for _, s := range all {
		if s.cte || s.derived || s.alias != "" {
			continue
		}
		if s.key == item.qualifier || strings.HasSuffix(s.key, "."+item.qualifier) {
			req.addColumn(s.key, item.column)
			return
		}
	}
	if strings.Contains(item.qualifier, ".") {
		req.addColumn(normalizeRelation(item.qualifier), item.column)
	}
}

// parseCTEs reads a leading WITH clause and returns its CTEs and the index of the main statement
func parseCTEs(toks []token) ([]cteDef, int) {
	if len(toks) == 0 || !toks[0].is("with") {
		return nil, 0
	}
	i := 1
	if i < len(toks) && toks[i].is("recursive") {
		i++
	}

	var ctes []cteDef
	for i < len(toks) && toks[i].isName() {
		def := cteDef{name: foldIdent(toks[i].text)}
		i++
		if i < len(toks) && toks[i].isPunct("(") {
			end := matchParen(toks, i)
			for _, part := range splitTopLevel(toks[i+1 : min(end, len(toks))]) {
				if len(part) == 1 && part[0].isName() {
					def.columns = append(def.columns, foldIdent(part[0].text))
				}
			}
			i = end + 1
		}
		if i >= len(toks) || !toks[i].is("as") {
			break
		}
		i++
		if i < len(toks) && toks[i].is("not") {
			i++
		}
		if i < len(toks) && toks[i].is("materialized") {
			i++
		}
		if i >= len(toks) || !toks[i].isPunct("(") {
			break
		}
		end := matchParen(toks, i)
		def.body = toks[i+1 : min(end, len(toks))]
		ctes = append(ctes, def)
		i = end + 1
		if i < len(toks) && toks[i].isPunct(",") {
			i++
			continue
		}
		break
	}
	if i > len(toks) {
		i = len(toks)
	}
	return ctes, i
}

// scanSources finds FROM and JOIN items, the INSERT INTO target and the UPDATE target.
// Names inside expression parentheses are ignored; subquery parentheses are entered.
func scanSources(toks []token, ctes map[string]bool) []source {
	var (
		out   []source
		stack []bool // true for a subquery paren
	)
	inExpr := func() bool {
		for _, sub := range stack {
			if !sub {
				return true
			}
		}
		return false
	}
	add := func(s source) {
		s.depth = len(stack)
		out = append(out, s)
	}

	if len(toks) > 0 && toks[0].is("update") {
		j := 1
		if j < len(toks) && toks[j].is("only") {
			j++
		}
		if s, _, ok := readSource(toks, j, ctes, false); ok {
			add(s)
		}
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.isPunct("("):
			sub := i+1 < len(toks) && (toks[i+1].is("select") || toks[i+1].is("with") || toks[i+1].is("values"))
			stack = append(stack, sub)
		case t.isPunct(")"):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case inExpr():
		case t.is("into") && i > 0 && toks[0].is("insert"):
			if s, _, ok := readSource(toks, i+1, ctes, false); ok {
				add(s)
			}
		case t.is("from") && i > 0 && toks[i-1].is("distinct"):
			// IS [NOT] DISTINCT FROM
		case t.is("from") || t.is("join"):
			j := i + 1
			for {
				if j < len(toks) && (toks[j].is("lateral") || toks[j].is("only")) {
					j++
				}
				if j < len(toks) && toks[j].isPunct("(") {
					end := matchParen(toks, j)
					alias, next := readAlias(toks, end+1)
					if alias != "" {
						add(source{derived: true, alias: alias})
					}
					j = next
				} else {
					s, next, ok := readSource(toks, j, ctes, true)
					if !ok {
						break
					}
					add(s)
					j = next
				}
				if !t.is("from") || j >= len(toks) || !toks[j].isPunct(",") {
					break
				}
				j++
			}
		}
	}
	return out
}

// readSource reads a relation name and optional alias at i. With calls set, name(...) is
// read as a set-returning function.
func readSource(toks []token, i int, ctes map[string]bool, calls bool) (source, int, bool) {
	if i >= len(toks) || !toks[i].isName() {
		return source{}, i, false
	}
	if toks[i].kind == tokWord && clauseWords[strings.ToLower(toks[i].text)] {
		return source{}, i, false
	}
	parts, next := qualifiedName(toks, i)
	if len(parts) == 0 || parts[len(parts)-1] == "*" {
		return source{}, i, false
	}

	var s source
	if calls && next < len(toks) && toks[next].isPunct("(") {
		next = matchParen(toks, next) + 1
		s.derived = true
	} else if len(parts) == 1 && ctes[foldIdent(parts[0])] {
		s.key = foldIdent(parts[0])
		s.cte = true
	} else {
		s.key = normalizeRelation(strings.Join(parts, "."))
	}

	s.alias, next = readAlias(toks, next)
	if s.derived && s.alias == "" {
		return source{}, next, false
	}
	return s, next, true
}

// readAlias reads [AS] alias [(col, ...)] at i
func readAlias(toks []token, i int) (string, int) {
	j := i
	explicit := false
	if j < len(toks) && toks[j].is("as") {
		j++
		explicit = true
	}
	if j >= len(toks) || !toks[j].isName() {
		return "", i
	}
	if toks[j].kind == tokWord && clauseWords[strings.ToLower(toks[j].text)] {
		return "", i
	}
	if !explicit && j+1 < len(toks) && toks[j+1].isPunct(".") {
		return "", i
	}
	alias := foldIdent(toks[j].text)
	j++
	if j < len(toks) && toks[j].isPunct("(") {
		j = matchParen(toks, j) + 1
	}
	return alias, j
}

type selectItem struct {
	qualifier string
	column    string // empty for expressions
	output    string // output name, empty when unnamed
	star      bool
}

// selectItems parses the first select list at depth zero of toks
func selectItems(toks []token) []selectItem {
	start, end := -1, len(toks)
	depth := 0
	for i, t := range toks {
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
		case depth != 0:
		case start < 0 && t.is("select"):
			start = i + 1
		case start >= 0 && (t.is("from") || t.is("into") || t.is("where") || t.is("group") ||
			t.is("order") || t.is("limit") || t.is("union") || t.is("intersect") || t.is("except") ||
			t.is("having") || t.is("window") || t.is("offset")):
			end = i
		}
		if start >= 0 && end < len(toks) {
			break
		}
	}
	if start < 0 || start > end {
		return nil
	}

	list := toks[start:end]
	if len(list) > 0 && list[0].is("all") {
		list = list[1:]
	}
	if len(list) > 0 && list[0].is("distinct") {
		list = list[1:]
		if len(list) > 1 && list[0].is("on") && list[1].isPunct("(") {
			list = list[min(matchParen(list, 1)+1, len(list)):]
		}
	}

	var items []selectItem
	for _, part := range splitTopLevel(list) {
		if len(part) == 0 {
			continue
		}
		items = append(items, parseSelectItem(part))
	}
	return items
}

func parseSelectItem(part []token) selectItem {
	var item selectItem
	base := part
	n := len(part)
	switch {
	case n >= 3 && part[n-2].is("as") && part[n-1].isName():
		base = part[:n-2]
		item.output = foldIdent(part[n-1].text)
	case n >= 2 && part[n-1].isName() && implicitAliasFollows(part[n-2]):
		base = part[:n-1]
		item.output = foldIdent(part[n-1].text)
	}

	if len(base) == 1 && base[0].isPunct("*") {
		item.star = true
		return item
	}

	parts, next := qualifiedName(base, 0)
	if next != len(base) || len(parts) == 0 {
		if len(base) > 1 && base[0].kind == tokWord && base[1].isPunct("(") && item.output == "" {
			item.output = strings.ToLower(base[0].text)
		}
		return item
	}
	last := parts[len(parts)-1]
	if last == "*" {
		item.star = true
		return item
	}
	item.column = foldIdent(last)
	if !identRe.MatchString(item.column) {
		item.column = ""
	}
	if len(parts) > 1 {
		qs := make([]string, 0, len(parts)-1)
		for _, p := range parts[:len(parts)-1] {
			qs = append(qs, foldIdent(p))
		}
		item.qualifier = strings.Join(qs, ".")
	}
	if item.output == "" {
		item.output = item.column
	}
	return item
}

func implicitAliasFollows(prev token) bool {
	switch prev.kind {
	case tokWord:
		return !clauseWords[strings.ToLower(prev.text)]
	case tokQuoted, tokString, tokNumber:
		return true
	case tokPunct:
		return prev.text == ")"
	}
	return false
}

// selectOutputs returns the output names of a query body, nil when a star hides them
func selectOutputs(body []token) map[string]bool {
	_, start := parseCTEs(body)
	out := make(map[string]bool)
	for _, item := range selectItems(body[start:]) {
		if item.star {
			return nil
		}
		if item.output != "" {
			out[item.output] = true
		}
	}
	return out
}

// insertColumns reads the column list of INSERT INTO target (a, b)
func insertColumns(toks []token) []string {
	for i := 0; i < len(toks); i++ {
		if !toks[i].is("into") {
			continue
		}
		_, next := qualifiedName(toks, i+1)
		if next < len(toks) && toks[next].is("as") {
			next += 2
		}
		if next >= len(toks) || !toks[next].isPunct("(") {
			return nil
		}
		end := matchParen(toks, next)
		var cols []string
		for _, part := range splitTopLevel(toks[next+1 : min(end, len(toks))]) {
			if len(part) == 1 && part[0].isName() {
				cols = append(cols, foldIdent(part[0].text))
			}
		}
		return cols
	}
	return nil
}

// updateColumns reads the assignment targets of UPDATE ... SET
func updateColumns(toks []token) []string {
	start := -1
	for i, t := range toks {
		if t.is("set") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}
	end := len(toks)
	depth := 0
	for i := start; i < len(toks); i++ {
		switch {
		case toks[i].isPunct("("):
			depth++
		case toks[i].isPunct(")"):
			depth--
		case depth == 0 && (toks[i].is("where") || toks[i].is("from") || toks[i].is("returning")):
			end = i
		}
		if end < len(toks) {
			break
		}
	}

	var cols []string
	for _, part := range splitTopLevel(toks[start:end]) {
		if len(part) == 0 {
			continue
		}
		if part[0].isPunct("(") {
			closing := matchParen(part, 0)
			for _, p := range splitTopLevel(part[1:min(closing, len(part))]) {
				if len(p) == 1 && p[0].isName() {
					cols = append(cols, foldIdent(p[0].text))
				}
			}
			continue
		}
		if part[0].isName() {
			cols = append(cols, foldIdent(part[0].text))
		}
	}
	return cols
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it] = true
	}
	return out
}
