package formula

// Reference is one cell, range or defined name written in a formula.
type Reference struct {
	Range   RangeAddress
	Name    string
	Sheet   string
	IsRange bool
	IsName  bool
}

func (r Reference) String() string {
	switch {
	case r.IsName && r.Sheet != "":
		return QuoteSheetName(r.Sheet) + "!" + r.Name
	case r.IsName:
		return r.Name
	case r.IsRange:
		local := r.Range.Start.Local() + ":" + r.Range.End.Local()
		if r.Range.Sheet == "" {
			return local
		}
		return QuoteSheetName(r.Range.Sheet) + "!" + local
	}
	return r.Range.Start.String()
}

// References lists the references written in a formula in source order. it
// is a static reading of the text; names are not expanded and INDIRECT
// targets are not followed.
func References(node ASTNode) []Reference {
	var refs []Reference
	Walk(node, func(n ASTNode) bool {
		switch t := n.(type) {
		case *CellRefNode:
			refs = append(refs, Reference{Range: NewRange(t.Address, t.Address), Sheet: t.Address.Sheet})
		case *RangeNode:
			refs = append(refs, Reference{Range: t.Range, Sheet: t.Range.Sheet, IsRange: true})
		case *NameNode:
			refs = append(refs, Reference{Name: t.Name, Sheet: t.Sheet, IsName: true})
		}
		return true
	})
	return refs
}

// References lists the references written in the formula.
func (f *Formula) References() []Reference {
	return References(f.Root)
}
