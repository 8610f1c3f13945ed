package formula

import (
	"slices"
	"strconv"
	"strings"
)

func lookupFunctions() []FunctionSpec {
	return []FunctionSpec{
		fn("ADDRESS", CategoryLookup, 2, 5, fnAddress),
		lazy("CHOOSE", CategoryLookup, 2, Variadic, func(c *Call) Value {
			k := c.Int(0)
			if c.Failed() {
				return c.Failure()
			}
			if k < 1 || k >= c.Len() {
				return Err(ErrorCodeValue)
			}
			return branch(c, k)
		}),
		lazy("ROW", CategoryLookup, 0, 1, func(c *Call) Value { return position(c, true) }),
		lazy("COLUMN", CategoryLookup, 0, 1, func(c *Call) Value { return position(c, false) }),
		lazy("ROWS", CategoryLookup, 1, 1, func(c *Call) Value { return extent(c, true) }),
		lazy("COLUMNS", CategoryLookup, 1, 1, func(c *Call) Value { return extent(c, false) }),
		{Name: "INDEX", Category: CategoryLookup, MinArgs: 2, MaxArgs: 4, Lazy: true, Fn: fnIndex, RefFn: indexRef},
		volatile(FunctionSpec{Name: "INDIRECT", Category: CategoryLookup, MinArgs: 1, MaxArgs: 2, RefFn: indirectRef}),
		volatile(FunctionSpec{Name: "OFFSET", Category: CategoryLookup, MinArgs: 3, MaxArgs: 5, Lazy: true, RefFn: offsetRef}),
		arrayFn("TRANSPOSE", CategoryLookup, 1, 1, func(c *Call) Value {
			v := c.Arg(0)
			if v.Type == ValueTypeError {
				return v
			}
			return transpose(v)
		}),
		arrayFn("MATCH", CategoryLookup, 2, 3, fnMatch),
		arrayFn("VLOOKUP", CategoryLookup, 3, 4, func(c *Call) Value { return tableLookup(c, false) }),
		arrayFn("HLOOKUP", CategoryLookup, 3, 4, func(c *Call) Value { return tableLookup(c, true) }),
		arrayFn("LOOKUP", CategoryLookup, 2, 3, fnLookup),
		arrayFn("XLOOKUP", CategoryLookup, 3, 6, fnXLookup),
		arrayFn("XMATCH", CategoryLookup, 2, 4, fnXMatch),
		arrayFn("FILTER", CategoryLookup, 2, 3, fnFilter),
		arrayFn("SORT", CategoryLookup, 1, 4, fnSort),
		arrayFn("UNIQUE", CategoryLookup, 1, 3, fnUnique),
	}
}

func fnAddress(c *Call) Value {
	row, col := c.Int(0), c.Int(1)
	absNum := c.IntOr(2, 1)
	a1 := c.BoolOr(3, true)
	sheet := c.StrOr(4, "")
	if c.Failed() {
		return c.Failure()
	}
	if row < 1 || row > MaxRows || col < 1 || col > MaxColumns || absNum < 1 || absNum > 4 {
		return Err(ErrorCodeValue)
	}
	absRow := absNum == 1 || absNum == 2
	absCol := absNum == 1 || absNum == 3

	var local string
	if a1 {
		local = CellAddress{Row: row, Col: col, AbsRow: absRow, AbsCol: absCol}.Local()
	} else {
		part := func(prefix string, n int, abs bool) string {
			if abs {
				return prefix + strconv.Itoa(n)
			}
			return prefix + "[" + strconv.Itoa(n) + "]"
		}
		local = part("R", row, absRow) + part("C", col, absCol)
	}
	if sheet != "" {
		return Text(QuoteSheetName(sheet) + "!" + local)
	}
	return Text(local)
}

// position implements ROW and COLUMN.
func position(c *Call, rows bool) Value {
	if c.Len() == 0 || c.IsMissing(0) {
		addr, ok := c.Context().Cell()
		if !ok {
			return Err(ErrorCodeValue)
		}
		if rows {
			return Number(float64(addr.Row))
		}
		return Number(float64(addr.Col))
	}
	r, code, ok := c.Ref(0)
	switch {
	case !ok:
		return Err(ErrorCodeValue)
	case code != noError:
		return Err(code)
	}
	if rows {
		if r.Rows() == 1 {
			return Number(float64(r.Start.Row))
		}
		out := make([]Value, r.Rows())
		for i := range out {
			out[i] = Number(float64(r.Start.Row + i))
		}
		return Column(out)
	}
	if r.Cols() == 1 {
		return Number(float64(r.Start.Col))
	}
	out := make([]Value, r.Cols())
	for i := range out {
		out[i] = Number(float64(r.Start.Col + i))
	}
	return Row(out)
}

// extent implements ROWS and COLUMNS without resolving referenced cells.
func extent(c *Call, rows bool) Value {
	var h, w int
	if r, code, ok := c.Ref(0); ok {
		if code != noError {
			return Err(code)
		}
		h, w = r.Rows(), r.Cols()
	} else {
		v := c.Arg(0)
		if v.Type == ValueTypeError {
			return v
		}
		h, w = v.Dims()
	}
	if rows {
		return Number(float64(h))
	}
	return Number(float64(w))
}

// indexBounds applies INDEX's row and column arguments to a block of the
// given size, returning 0-based offsets and the size of the selection. a
// zero index selects the whole row or column.
func indexBounds(c *Call, rows, cols int) (r0, c0, h, w int, code ErrorCode) {
	row := c.Int(1)
	col := c.IntOr(2, 0)
	area := c.IntOr(3, 1)
	if c.Failed() {
		return 0, 0, 0, 0, c.err
	}
	if area != 1 {
		return 0, 0, 0, 0, ErrorCodeRef
	}
	if !c.Has(2) && rows == 1 && cols > 1 {
		row, col = 1, row
	}
	if row < 0 || col < 0 || row > rows || col > cols {
		return 0, 0, 0, 0, ErrorCodeRef
	}
	r0, h = 0, rows
	if row > 0 {
		r0, h = row-1, 1
	}
	c0, w = 0, cols
	if col > 0 {
		c0, w = col-1, 1
	}
	return r0, c0, h, w, noError
}

func indexRef(c *Call) (RangeAddress, ErrorCode) {
	base, code, ok := c.Ref(0)
	switch {
	case !ok:
		return RangeAddress{}, ErrorCodeValue
	case code != noError:
		return RangeAddress{}, code
	}
	r0, c0, h, w, code := indexBounds(c, base.Rows(), base.Cols())
	if code != noError {
		return RangeAddress{}, code
	}
	start := base.Start.Offset(r0, c0)
	return NewRange(start, start.Offset(h-1, w-1)), noError
}

func fnIndex(c *Call) Value {
	if c.IsRef(0) {
		r, code := indexRef(c)
		if code != noError {
			return Err(code)
		}
		if r.Size() == 1 {
			return c.Context().ResolveCell(r.Start)
		}
		return c.Context().ResolveRange(r)
	}
	v := c.Arg(0)
	if v.Type == ValueTypeError {
		return v
	}
	rows, cols := v.Dims()
	r0, c0, h, w, code := indexBounds(c, rows, cols)
	if code != noError {
		return Err(code)
	}
	if h == 1 && w == 1 {
		return v.At(r0, c0)
	}
	return subArray(v, r0, c0, h, w)
}

func subArray(v Value, r0, c0, h, w int) Value {
	out := make([][]Value, h)
	for i := range out {
		out[i] = make([]Value, w)
		for j := range out[i] {
			out[i][j] = v.At(r0+i, c0+j)
		}
	}
	return Array(out)
}

func indirectRef(c *Call) (RangeAddress, ErrorCode) {
	text := strings.TrimSpace(c.Str(0))
	a1 := c.BoolOr(1, true)
	if c.Failed() {
		return RangeAddress{}, c.err
	}
	ctx := c.Context()
	if !a1 {
		return parseR1C1(text, ctx)
	}
	if r, err := ParseRangeAddress(text); err == nil {
		return r, noError
	}
	if names, ok := ctx.Resolver().(NameResolver); ok {
		sheet, name := ctx.Sheet(), text
		if s, rest, err := splitSheet(text); err == nil && s != "" {
			sheet, name = s, rest
		}
		if target, found := names.ResolveName(sheet, name); found {
			if r, err := ParseRangeAddress(strings.TrimPrefix(strings.TrimSpace(target), "=")); err == nil {
				return r, noError
			}
		}
	}
	return RangeAddress{}, ErrorCodeRef
}

// parseR1C1 reads "R2C3", "R[-1]C[2]" or a range of two such cells.
// relative parts count from the formula's own cell.
func parseR1C1(text string, ctx *EvalContext) (RangeAddress, ErrorCode) {
	sheet, local, err := splitSheet(text)
	if err != nil {
		return RangeAddress{}, ErrorCodeRef
	}
	origin, _ := ctx.Cell()
	cell := func(s string) (CellAddress, bool) {
		s = strings.ToUpper(s)
		if !strings.HasPrefix(s, "R") {
			return CellAddress{}, false
		}
		rowPart, colPart, found := strings.Cut(s[1:], "C")
		if !found {
			return CellAddress{}, false
		}
		row, ok := r1c1Part(rowPart, origin.Row)
		if !ok {
			return CellAddress{}, false
		}
		col, ok := r1c1Part(colPart, origin.Col)
		if !ok {
			return CellAddress{}, false
		}
		addr := CellAddress{Sheet: sheet, Row: row, Col: col}
		return addr, addr.Valid()
	}
	first, second, isRange := strings.Cut(local, ":")
	start, ok := cell(first)
	if !ok {
		return RangeAddress{}, ErrorCodeRef
	}
	end := start
	if isRange {
		if end, ok = cell(second); !ok {
			return RangeAddress{}, ErrorCodeRef
		}
	}
	return NewRange(start, end), noError
}

func r1c1Part(s string, origin int) (int, bool) {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		n, err := strconv.Atoi(s[1 : len(s)-1])
		if err != nil || origin == 0 {
			return 0, false
		}
		return origin + n, true
	}
	if s == "" {
		return origin, origin > 0
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func offsetRef(c *Call) (RangeAddress, ErrorCode) {
	base, code, ok := c.Ref(0)
	switch {
	case !ok:
		return RangeAddress{}, ErrorCodeValue
	case code != noError:
		return RangeAddress{}, code
	}
	dr, dc := c.Int(1), c.Int(2)
	h, w := c.IntOr(3, base.Rows()), c.IntOr(4, base.Cols())
	if c.Failed() {
		return RangeAddress{}, c.err
	}
	if h < 1 || w < 1 {
		return RangeAddress{}, ErrorCodeRef
	}
	start := base.Start.Offset(dr, dc)
	end := start.Offset(h-1, w-1)
	if !start.Valid() || !end.Valid() {
		return RangeAddress{}, ErrorCodeRef
	}
	return NewRange(start, end), noError
}

func transpose(v Value) Value {
	rows, cols := v.Dims()
	out := make([][]Value, cols)
	for j := range out {
		out[j] = make([]Value, rows)
		for i := range out[j] {
			out[j][i] = v.At(i, j)
		}
	}
	return Array(out)
}

// vectorOf returns the elements of a single row or column.
func vectorOf(v Value) ([]Value, bool) {
	rows, cols := v.Dims()
	if rows != 1 && cols != 1 {
		return nil, false
	}
	return v.Flatten(), true
}

// lookupEqual is exact lookup matching: kinds must agree, text ignores case
// and may use wildcards.
func lookupEqual(target, cand Value, wildcards bool) bool {
	if target.Type != cand.Type {
		return false
	}
	switch target.Type {
	case ValueTypeText:
		if wildcards && hasWildcards(target.Str) {
			return wildcardMatch(target.Str, cand.Str)
		}
		return strings.EqualFold(target.Str, cand.Str)
	case ValueTypeError:
		return false
	}
	return compareValues(target, cand) == 0
}

func exactSearch(cands []Value, target Value, wildcards, reverse bool) int {
	if reverse {
		for i := len(cands) - 1; i >= 0; i-- {
			if lookupEqual(target, cands[i], wildcards) {
				return i
			}
		}
		return -1
	}
	for i, cand := range cands {
		if lookupEqual(target, cand, wildcards) {
			return i
		}
	}
	return -1
}

// approxSearch binary-searches cands, assumed sorted, for the last element
// not past target: the greatest element <= target when ascending or the
// smallest element >= target when descending. elements of another kind
// than target are never returned. unsorted input gives an arbitrary but
// in-range answer.
func approxSearch(cands []Value, target Value, descending bool) int {
	lo, hi, found := 0, len(cands)-1, -1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		cand := cands[mid]
		var cmp int
		switch {
		case cand.Type == ValueTypeError || cand.Type == ValueTypeBlank:
			cmp = 1
		default:
			cmp = compareValues(cand, target)
		}
		if descending {
			cmp = -cmp
		}
		if cmp <= 0 {
			if typeRank(cand) == typeRank(target) && cand.Type != ValueTypeBlank && cand.Type != ValueTypeError {
				found = mid
			}
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return found
}

// exactFlag reports whether a range_lookup style argument asks for an exact
// match. an empty slot counts as FALSE.
func exactFlag(c *Call, i int) bool {
	if i >= c.Len() {
		return false
	}
	if c.IsMissing(i) {
		return true
	}
	return !c.Bool(i)
}

func lookupTarget(c *Call) Value {
	v := c.Scalar(0)
	if v.Type == ValueTypeBlank {
		return Number(0)
	}
	return v
}

func fnMatch(c *Call) Value {
	target := lookupTarget(c)
	if c.Failed() {
		return c.Failure()
	}
	cands, ok := vectorOf(c.Arg(1))
	if !ok {
		return Err(ErrorCodeNA)
	}
	mode := 1
	switch {
	case c.Len() > 2 && c.IsMissing(2):
		mode = 0
	case c.Has(2):
		n := c.Num(2)
		if c.Failed() {
			return c.Failure()
		}
		switch {
		case n > 0:
			mode = 1
		case n < 0:
			mode = -1
		default:
			mode = 0
		}
	}
	var i int
	switch mode {
	case 0:
		i = exactSearch(cands, target, true, false)
	case 1:
		i = approxSearch(cands, target, false)
	default:
		i = approxSearch(cands, target, true)
	}
	if i < 0 {
		return Err(ErrorCodeNA)
	}
	return Number(float64(i + 1))
}

// tableLookup implements VLOOKUP and, with horizontal set, HLOOKUP.
func tableLookup(c *Call, horizontal bool) Value {
	target := lookupTarget(c)
	table := c.Array(1)
	index := c.Int(2)
	exact := exactFlag(c, 3)
	if c.Failed() {
		return c.Failure()
	}
	if horizontal {
		table = transpose(table)
	}
	rows, cols := table.Dims()
	if index < 1 {
		return Err(ErrorCodeValue)
	}
	if index > cols {
		return Err(ErrorCodeRef)
	}
	keys := make([]Value, rows)
	for i := range keys {
		keys[i] = table.At(i, 0)
	}
	var i int
	if exact {
		i = exactSearch(keys, target, true, false)
	} else {
		i = approxSearch(keys, target, false)
	}
	if i < 0 {
		return Err(ErrorCodeNA)
	}
	return table.At(i, index-1)
}

func fnLookup(c *Call) Value {
	target := lookupTarget(c)
	source := c.Array(1)
	if c.Failed() {
		return c.Failure()
	}
	rows, cols := source.Dims()
	var keys, results []Value
	if c.Has(2) {
		var ok bool
		if keys, ok = vectorOf(source); !ok {
			return Err(ErrorCodeNA)
		}
		if results, ok = vectorOf(c.Arg(2)); !ok {
			return Err(ErrorCodeNA)
		}
	} else if cols > rows {
		for j := 0; j < cols; j++ {
			keys = append(keys, source.At(0, j))
			results = append(results, source.At(rows-1, j))
		}
	} else {
		for i := 0; i < rows; i++ {
			keys = append(keys, source.At(i, 0))
			results = append(results, source.At(i, cols-1))
		}
	}
	i := approxSearch(keys, target, false)
	if i < 0 || i >= len(results) {
		return Err(ErrorCodeNA)
	}
	return results[i]
}

// xsearch implements the match and search modes shared by XLOOKUP and
// XMATCH. matchMode: 0 exact, -1 exact or next smaller, 1 exact or next
// larger, 2 wildcard. searchMode: 1 forward, -1 backward, 2 binary
// ascending, -2 binary descending.
func xsearch(cands []Value, target Value, matchMode, searchMode int) (int, ErrorCode) {
	switch matchMode {
	case 0, -1, 1, 2:
	default:
		return -1, ErrorCodeValue
	}
	switch searchMode {
	case 2, -2:
		if matchMode == 2 {
			return -1, ErrorCodeValue
		}
		i := approxSearch(cands, target, searchMode == -2)
		if i >= 0 && compareValues(cands[i], target) == 0 {
			return i, noError
		}
		switch {
		case matchMode == -1 && searchMode == 2, matchMode == 1 && searchMode == -2:
			return i, noError
		case matchMode == 1 && i+1 < len(cands) && searchMode == 2:
			return i + 1, noError
		case matchMode == -1 && i+1 < len(cands) && searchMode == -2:
			return i + 1, noError
		}
		return -1, noError
	case 1, -1:
	default:
		return -1, ErrorCodeValue
	}

	reverse := searchMode == -1
	if i := exactSearch(cands, target, matchMode == 2, reverse); i >= 0 || matchMode == 0 || matchMode == 2 {
		return i, noError
	}
	best := -1
	for k := range cands {
		i := k
		if reverse {
			i = len(cands) - 1 - k
		}
		cand := cands[i]
		if typeRank(cand) != typeRank(target) || cand.Type == ValueTypeBlank || cand.Type == ValueTypeError {
			continue
		}
		cmp := compareValues(cand, target)
		if (matchMode == -1 && cmp > 0) || (matchMode == 1 && cmp < 0) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		closer := compareValues(cand, cands[best])
		if (matchMode == -1 && closer > 0) || (matchMode == 1 && closer < 0) {
			best = i
		}
	}
	return best, noError
}

func fnXLookup(c *Call) Value {
	target := lookupTarget(c)
	lookupArr := c.Array(1)
	returnArr := c.Array(2)
	matchMode := c.IntOr(4, 0)
	searchMode := c.IntOr(5, 1)
	if c.Failed() {
		return c.Failure()
	}
	cands, ok := vectorOf(lookupArr)
	if !ok {
		return Err(ErrorCodeValue)
	}
	lr, lc := lookupArr.Dims()
	rr, rc := returnArr.Dims()
	vertical := (lc == 1 && lr > 1) || (lr == 1 && lc == 1 && rr == 1)
	if (vertical && rr != lr) || (!vertical && rc != lc) {
		return Err(ErrorCodeValue)
	}
	i, code := xsearch(cands, target, matchMode, searchMode)
	if code != noError {
		return Err(code)
	}
	if i < 0 {
		if c.Has(3) {
			return c.Arg(3)
		}
		return Err(ErrorCodeNA)
	}
	if vertical {
		if rc == 1 {
			return returnArr.At(i, 0)
		}
		return subArray(returnArr, i, 0, 1, rc)
	}
	if rr == 1 {
		return returnArr.At(0, i)
	}
	return subArray(returnArr, 0, i, rr, 1)
}

func fnXMatch(c *Call) Value {
	target := lookupTarget(c)
	matchMode := c.IntOr(2, 0)
	searchMode := c.IntOr(3, 1)
	if c.Failed() {
		return c.Failure()
	}
	cands, ok := vectorOf(c.Arg(1))
	if !ok {
		return Err(ErrorCodeValue)
	}
	i, code := xsearch(cands, target, matchMode, searchMode)
	if code != noError {
		return Err(code)
	}
	if i < 0 {
		return Err(ErrorCodeNA)
	}
	return Number(float64(i + 1))
}

func fnFilter(c *Call) Value {
	arr, include := c.Array(0), c.Array(1)
	if c.Failed() {
		return c.Failure()
	}
	rows, cols := arr.Dims()
	ir, ic := include.Dims()
	byRow := ic == 1 && ir == rows
	if !byRow && !(ir == 1 && ic == cols) {
		return Err(ErrorCodeValue)
	}
	var keep []int
	for k, v := range include.Flatten() {
		if v.Type == ValueTypeError {
			return v
		}
		b, code := ToBool(v)
		if code != noError {
			return Err(code)
		}
		if b {
			keep = append(keep, k)
		}
	}
	if len(keep) == 0 {
		if c.Has(2) {
			return c.Arg(2)
		}
		return Err(ErrorCodeNA)
	}
	var out [][]Value
	if byRow {
		for _, i := range keep {
			out = append(out, slices.Clone(arr.Rows[i]))
		}
		return Array(out)
	}
	out = make([][]Value, rows)
	for i := range out {
		for _, j := range keep {
			out[i] = append(out[i], arr.At(i, j))
		}
	}
	return Array(out)
}

// compareForSort orders values for SORT: numbers, text, booleans, errors,
// then blanks.
func compareForSort(a, b Value) int {
	rank := func(v Value) int {
		switch v.Type {
		case ValueTypeError:
			return 3
		case ValueTypeBlank:
			return 4
		}
		return 0
	}
	if ra, rb := rank(a), rank(b); ra != rb || ra != 0 {
		return ra - rb
	}
	return compareValues(a, b)
}

func fnSort(c *Call) Value {
	arr := c.Array(0)
	index := c.IntOr(1, 1)
	order := c.IntOr(2, 1)
	byCol := c.BoolOr(3, false)
	if c.Failed() {
		return c.Failure()
	}
	if byCol {
		arr = transpose(arr)
	}
	_, cols := arr.Dims()
	if index < 1 || index > cols || (order != 1 && order != -1) {
		return Err(ErrorCodeValue)
	}
	rows := slices.Clone(arr.Rows)
	slices.SortStableFunc(rows, func(a, b []Value) int {
		return order * compareForSort(a[index-1], b[index-1])
	})
	out := Array(rows)
	if byCol {
		return transpose(out)
	}
	return out
}

func fnUnique(c *Call) Value {
	arr := c.Array(0)
	byCol := c.BoolOr(1, false)
	exactlyOnce := c.BoolOr(2, false)
	if c.Failed() {
		return c.Failure()
	}
	if byCol {
		arr = transpose(arr)
	}
	sameRow := func(a, b []Value) bool {
		for k := range a {
			if a[k].Type != b[k].Type || compareValues(a[k], b[k]) != 0 {
				return false
			}
			if a[k].Type == ValueTypeError && a[k].Err != b[k].Err {
				return false
			}
		}
		return true
	}
	var groups [][]Value
	var counts []int
	for _, row := range arr.Rows {
		found := false
		for g := range groups {
			if sameRow(groups[g], row) {
				counts[g]++
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, row)
			counts = append(counts, 1)
		}
	}
	var out [][]Value
	for g, row := range groups {
		if exactlyOnce && counts[g] != 1 {
			continue
		}
		out = append(out, slices.Clone(row))
	}
	if len(out) == 0 {
		return Err(ErrorCodeNA)
	}
	result := Array(out)
	if byCol {
		return transpose(result)
	}
	return result
}
