// Package ast defines the parsed form of a library document: named
// constants, function declarations and an optional main entry point. Bodies
// are kept as expression source here; runtime.Compile turns them into trees.
package ast

// Library represents a complete parsed library document.
type Library struct {
	// Constants in source order.
	Constants []*Constant

	// Functions in source order. Does not include main.
	Functions []*Function

	// Main is the entry point run by the engine. Nil if the document only
	// defines functions.
	Main *Function
}

// Constant is a named literal value published in the library's static
// scope.
type Constant struct {
	Name string

	// Value is the decoded YAML value: nil, bool, int64, float64, string,
	// []interface{} or map[string]interface{}.
	Value interface{}
}

// Function is a named function declaration.
type Function struct {
	Name string

	// Params is the ordered parameter list.
	Params []Param

	// Returns is the declared result type name. Empty means any.
	Returns string

	// Body is the expression source of the function body.
	Body string

	// Doc is an optional free-form description.
	Doc string
}

// Param is a function parameter.
type Param struct {
	Name string

	// Type is the declared type name. Empty means any.
	Type string
}

// Function returns the function declared as name, including main.
func (l *Library) Function(name string) (*Function, bool) {
	if l.Main != nil && name == l.Main.Name {
		return l.Main, true
	}
	for _, f := range l.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Constant returns the constant declared as name.
func (l *Library) Constant(name string) (*Constant, bool) {
	for _, c := range l.Constants {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
