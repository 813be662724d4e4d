package models

// VariableKind tags the runtime type of a variable's value.
type VariableKind string

const (
	VariableKindString     VariableKind = "string"
	VariableKindNumber     VariableKind = "number"
	VariableKindBoolean    VariableKind = "boolean"
	VariableKindStructured VariableKind = "structured"
)

// Variable is one entry in the run-scoped variable store.
type Variable struct {
	Name  string       `json:"name"`
	Value any          `json:"value"`
	Kind  VariableKind `json:"kind"`
}

// InferVariableKind maps a runtime value to its kind tag. Anything that is
// not a string, number, or boolean is structured.
func InferVariableKind(value any) VariableKind {
	switch value.(type) {
	case string:
		return VariableKindString
	case int, int32, int64, float32, float64:
		return VariableKindNumber
	case bool:
		return VariableKindBoolean
	default:
		return VariableKindStructured
	}
}
