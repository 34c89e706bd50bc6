package tuio

import "fmt"

// PatternKey identifies an ImagePattern in the store.
type PatternKey struct {
	SessionID SessionID
	UserID    int32
}

func (k PatternKey) String() string {
	return fmt.Sprintf("%d_%d", k.SessionID, k.UserID)
}

// PointerKey identifies a Pointer in the store. Two pointers with equal keys are the same
// element regardless of their positional fields.
type PointerKey struct {
	SessionID SessionID
	UserID    int32
	ClassID   int32
}

func (k PointerKey) String() string {
	return fmt.Sprintf("%d_%d_%d", k.SessionID, k.UserID, k.ClassID)
}
