package auth

// CodeLength is the number of digit cells on the code entry panel.
const CodeLength = 6

// CodeBuffer models the six single-character digit cells of the code entry
// panel: typing a digit fills the focused cell and advances focus, backspace
// on an empty cell moves focus back and clears that cell, and a digit paste
// fills cells from the start. Input and Paste report completion so callers can
// auto-submit on the sixth digit.
type CodeBuffer struct {
	cells  [CodeLength]byte
	cursor int
}

// Input types one character into the focused cell. Non-digits are ignored.
// It returns true when this input filled the final cell.
func (b *CodeBuffer) Input(ch byte) bool {
	if ch < '0' || ch > '9' {
		return false
	}
	b.cells[b.cursor] = ch
	if b.cursor < CodeLength-1 {
		b.cursor++
		return false
	}
	return true
}

// Backspace clears the focused cell, or moves focus to the previous cell and
// clears it when the focused cell is already empty.
func (b *CodeBuffer) Backspace() {
	if b.cells[b.cursor] == 0 && b.cursor > 0 {
		b.cursor--
	}
	b.cells[b.cursor] = 0
}

// Paste fills cells from the start with the digits of s, ignoring everything
// else and truncating to six. It returns true when all six cells were filled.
func (b *CodeBuffer) Paste(s string) bool {
	b.Reset()
	n := 0
	for i := 0; i < len(s) && n < CodeLength; i++ {
		if s[i] < '0' || s[i] > '9' {
			continue
		}
		b.cells[n] = s[i]
		n++
	}
	if n > 0 {
		b.cursor = n - 1
		if n < CodeLength {
			b.cursor = n
		}
	}
	return n == CodeLength
}

// Code returns the digits entered so far, in cell order.
func (b *CodeBuffer) Code() string {
	out := make([]byte, 0, CodeLength)
	for _, c := range b.cells {
		if c != 0 {
			out = append(out, c)
		}
	}
	return string(out)
}

// Complete reports whether all six cells are filled.
func (b *CodeBuffer) Complete() bool {
	for _, c := range b.cells {
		if c == 0 {
			return false
		}
	}
	return true
}

// Reset empties all cells and returns focus to the first one.
func (b *CodeBuffer) Reset() {
	*b = CodeBuffer{}
}
