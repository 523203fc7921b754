package models

import "fmt"

// Kind identifies a family of storage backends.
type Kind string

const (
	// KindMongo is the document store (MongoDB).
	KindMongo Kind = "mongo"
	// KindSQL is a relational engine used as a key-value store (SQLite, SQL Server).
	KindSQL Kind = "sql"
	// KindMemory is the in-process cache store.
	KindMemory Kind = "memory"
)

// Kinds lists every supported backend kind.
var Kinds = []Kind{KindMongo, KindSQL, KindMemory}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMongo, KindSQL, KindMemory:
		return true
	}
	return false
}

// ParseKind validates a kind name from configuration.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown provider kind %q", s)
	}
	return k, nil
}

// Capabilities describes optional backend features.
type Capabilities struct {
	NativeUpload  bool `json:"nativeUpload"`
	NativeTTL     bool `json:"nativeTTL"`
	NativeArrays  bool `json:"nativeArrays"`
	NestedObjects bool `json:"nestedObjects"`
}

// DefaultCapabilities returns the declared capabilities of a backend kind.
func DefaultCapabilities(k Kind) Capabilities {
	switch k {
	case KindMongo:
		return Capabilities{NativeUpload: true, NativeArrays: true, NestedObjects: true}
	case KindMemory:
		return Capabilities{NativeTTL: true, NativeArrays: true, NestedObjects: true}
	default:
		return Capabilities{}
	}
}

// Provider is a named backend.
type Provider struct {
	Name         string       `json:"name"`
	Kind         Kind         `json:"kind"`
	Capabilities Capabilities `json:"capabilities"`
}
