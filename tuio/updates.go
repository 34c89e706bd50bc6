package tuio

// BoundsUpdate is a decoded /tuio2/bnd message.
type BoundsUpdate struct {
	SessionID SessionID
	UserID    int32
	Bounds    Bounds
}

// Key returns the pattern the update targets
func (u BoundsUpdate) Key() PatternKey {
	return PatternKey{SessionID: u.SessionID, UserID: u.UserID}
}

// SymbolUpdate is a decoded /tuio2/sym message.
type SymbolUpdate struct {
	SessionID SessionID
	UserID    int32
	Symbol    Symbol
}

// Key returns the pattern the update targets
func (u SymbolUpdate) Key() PatternKey {
	return PatternKey{SessionID: u.SessionID, UserID: u.UserID}
}

// PointerUpdate is a decoded /tuio2/ptr message. Pointer.Data is always empty.
type PointerUpdate struct {
	Pointer Pointer
}

// Key returns the pointer the update targets
func (u PointerUpdate) Key() PointerKey {
	return u.Pointer.Key()
}

// DataUpdate is a decoded /tuio2/dat message.
type DataUpdate struct {
	SessionID SessionID
	UserID    int32
	ClassID   int32
	Data      Data
}

// Key returns the pointer the update targets
func (u DataUpdate) Key() PointerKey {
	return PointerKey{SessionID: u.SessionID, UserID: u.UserID, ClassID: u.ClassID}
}
