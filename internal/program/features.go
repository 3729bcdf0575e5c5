package program

// Features holds the two independent hardware-compatibility bit groups a
// canonical container declares.
type Features struct {
	Flags    uint64
	Extended uint64
}

// Mask clears the bits set in ignored.
func (f Features) Mask(ignored Features) Features {
	return Features{Flags: f.Flags &^ ignored.Flags, Extended: f.Extended &^ ignored.Extended}
}

// Equal reports whether both bit groups match.
func (f Features) Equal(other Features) bool {
	return f.Flags == other.Flags && f.Extended == other.Extended
}

// IsZero reports whether no feature bit is declared.
func (f Features) IsZero() bool {
	return f.Flags == 0 && f.Extended == 0
}

// Info is caller-supplied program information, typically from a database.
type Info struct {
	Title    string
	Features Features
}
