package csvdoc

import (
	"fmt"
)

// Edit operations accepted by Apply
const (
	OpSetCell      = "set_cell"
	OpSetHeader    = "set_header"
	OpAddRow       = "add_row"
	OpDeleteRow    = "delete_row"
	OpAddColumn    = "add_column"
	OpDeleteColumn = "delete_column"
)

// Edit is one editor action. Row and Col are ignored by operations that do
// not need them.
type Edit struct {
	Op    string `json:"op" binding:"required"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value"`
}

// Apply runs the edits in order. Either all of them succeed or the document
// is left untouched.
func (d *Document) Apply(edits []Edit) error {
	work := d.Clone()
	for i, e := range edits {
		if err := work.apply(e); err != nil {
			return fmt.Errorf("edit %d (%s): %w", i, e.Op, err)
		}
	}
	*d = *work
	return nil
}

func (d *Document) apply(e Edit) error {
	switch e.Op {
	case OpSetCell:
		return d.SetCell(e.Row, e.Col, e.Value)
	case OpSetHeader:
		return d.SetHeader(e.Col, e.Value)
	case OpAddRow:
		d.AddRow()
		return nil
	case OpDeleteRow:
		return d.DeleteRow(e.Row)
	case OpAddColumn:
		d.AddColumn()
		return nil
	case OpDeleteColumn:
		return d.DeleteColumn(e.Col)
	default:
		return &UnknownOpError{Op: e.Op}
	}
}

// UnknownOpError reports an unsupported edit operation
type UnknownOpError struct {
	Op string
}

func (e *UnknownOpError) Error() string {
	return fmt.Sprintf("unknown edit operation %q", e.Op)
}
