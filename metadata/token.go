package metadata

import "fmt"

// Token is a metadata token: table number in the high byte, 1-based row
// index (RID) in the low 24 bits.
type Token uint32

// NewToken builds a token from a table and RID.
func NewToken(t Table, rid uint32) Token {
	return Token(uint32(t)<<24 | rid&0x00FFFFFF)
}

// Table returns the table number.
func (t Token) Table() Table {
	return Table(t >> 24)
}

// RID returns the 1-based row index.
func (t Token) RID() uint32 {
	return uint32(t) & 0x00FFFFFF
}

// IsNil reports whether the token has a zero RID.
func (t Token) IsNil() bool {
	return t.RID() == 0
}

func (t Token) String() string {
	return fmt.Sprintf("%s[0x%08x]", t.Table(), uint32(t))
}
