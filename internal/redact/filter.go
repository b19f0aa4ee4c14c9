package redact

import (
	"bytes"
	"fmt"
	"math"
	"sort"
)

// Box is an axis-aligned rectangle in default user space.
type Box struct {
	X0, Y0, X1, Y1 float64
}

func (b Box) contains(x, y float64) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1
}

type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m x n, the transform applying m first.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func (m matrix) inverse() (matrix, bool) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-12 {
		return identity, false
	}
	return matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, true
}

// Fill is the color painted over a redacted marker, RGB in [0,1].
type Fill [3]float64

// White is the default redaction fill.
var White = Fill{1, 1, 1}

type edit struct {
	start, end int
	text       string
}

// filterContent drops the text-showing operations whose origin lies inside
// one of boxes and paints fill over every box. A fill is placed right after
// the text object that showed the marker, so content drawn later stays on
// top. It returns the rewritten stream and the number of dropped operations.
func filterContent(content []byte, boxes []Box, fill Fill) ([]byte, int, error) {
	ops, err := parseOperations(content)
	if err != nil {
		return nil, 0, err
	}

	var (
		edits    []edit
		ctm      = identity
		stack    []matrix
		tm, tlm  = identity, identity
		leading  float64
		dropped  int
		painted  = make([]bool, len(boxes))
		inBlock  []int // boxes hit in the current text object
		trailing bool  // previous show was dropped and not repositioned since
	)

	num := func(o operation, i int) float64 {
		if i < len(o.operands) && o.operands[i].kind == operandNumber {
			return o.operands[i].num
		}
		return 0
	}
	mat := func(o operation) (matrix, bool) {
		if len(o.operands) < 6 {
			return identity, false
		}
		var m matrix
		for i := 0; i < 6; i++ {
			m[i] = num(o, len(o.operands)-6+i)
		}
		return m, true
	}
	moveTo := func(tx, ty float64) {
		tlm = matrix{1, 0, 0, 1, tx, ty}.mul(tlm)
		tm = tlm
		trailing = false
	}
	show := func(o operation, keep string) {
		x, y := tm.mul(ctm).apply(0, 0)
		hit := -1
		for i, b := range boxes {
			if b.contains(x, y) {
				hit = i
				break
			}
		}
		if hit < 0 && !trailing {
			return
		}
		if hit >= 0 && !painted[hit] {
			painted[hit] = true
			inBlock = append(inBlock, hit)
		}
		edits = append(edits, edit{start: o.start, end: o.end, text: keep})
		dropped++
		trailing = true
	}

	for _, o := range ops {
		switch o.op {
		case "q":
			stack = append(stack, ctm)
		case "Q":
			if n := len(stack); n > 0 {
				ctm, stack = stack[n-1], stack[:n-1]
			}
		case "cm":
			if m, ok := mat(o); ok {
				ctm = m.mul(ctm)
			}
		case "BT":
			tm, tlm = identity, identity
			trailing = false
		case "ET":
			for _, i := range inBlock {
				edits = append(edits, edit{start: o.end, end: o.end, text: "\n" + fillOp(boxes[i], ctm, fill)})
			}
			inBlock = nil
			trailing = false
		case "Tm":
			if m, ok := mat(o); ok {
				tm, tlm = m, m
			}
			trailing = false
		case "Td":
			moveTo(num(o, 0), num(o, 1))
		case "TD":
			leading = -num(o, 1)
			moveTo(num(o, 0), num(o, 1))
		case "TL":
			leading = num(o, 0)
		case "T*":
			moveTo(0, -leading)
		case "Tj", "TJ":
			show(o, "")
		case "'":
			moveTo(0, -leading)
			show(o, "T*")
		case "\"":
			moveTo(0, -leading)
			keep := "T*"
			if len(o.operands) >= 3 {
				aw, ac := o.operands[0], o.operands[1]
				keep = fmt.Sprintf("%s Tw %s Tc T*", content[aw.start:aw.end], content[ac.start:ac.end])
			}
			show(o, keep)
		}
	}

	// markers found by text extraction but not matched to an operation,
	// e.g. drawn from a form XObject, still get covered
	for i, b := range boxes {
		if !painted[i] {
			edits = append(edits, edit{start: len(content), end: len(content), text: "\n" + fillOp(b, ctm, fill)})
		}
	}

	return applyEdits(content, edits), dropped, nil
}

// fillOp paints b, given in default user space, under the current
// transformation ctm.
func fillOp(b Box, ctm matrix, fill Fill) string {
	var buf bytes.Buffer
	buf.WriteString("q ")
	if ctm != identity {
		if inv, ok := ctm.inverse(); ok {
			fmt.Fprintf(&buf, "%.6f %.6f %.6f %.6f %.6f %.6f cm ",
				unsigned(inv[0]), unsigned(inv[1]), unsigned(inv[2]), unsigned(inv[3]), unsigned(inv[4]), unsigned(inv[5]))
		}
	}
	fmt.Fprintf(&buf, "%.3f %.3f %.3f rg %.3f %.3f %.3f %.3f re f Q\n",
		fill[0], fill[1], fill[2], b.X0, b.Y0, b.X1-b.X0, b.Y1-b.Y0)
	return buf.String()
}

// unsigned drops the sign of values that print as zero, so no "-0.000000"
// reaches the content stream.
func unsigned(v float64) float64 {
	if math.Abs(v) < 5e-7 {
		return 0
	}
	return v
}

// applyEdits replaces or inserts text at the edit spans. Edits must not
// overlap; inserts at the same offset keep their order.
func applyEdits(content []byte, edits []edit) []byte {
	sortEdits(edits)
	var out bytes.Buffer
	pos := 0
	for _, e := range edits {
		out.Write(content[pos:e.start])
		out.WriteString(e.text)
		pos = e.end
	}
	out.Write(content[pos:])
	return out.Bytes()
}

func sortEdits(edits []edit) {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
}
