// Package parser converts YAML/JSON library documents into AST types.
package parser

import (
	"fmt"
	"strings"

	"github.com/lemonberrylabs/splice/pkg/ast"
	"github.com/lemonberrylabs/splice/pkg/types"
	"gopkg.in/yaml.v3"
)

// MaxSourceSize is the maximum library source size in bytes (128 KB).
const MaxSourceSize = 128 * 1024

// MaxFunctions is the maximum number of functions per library, main
// included.
const MaxFunctions = 500

// reserved names cannot be used for functions, constants or parameters
// because the expression language reads them as keywords or
// constructs.
var reserved = map[string]bool{
	"true": true, "True": true, "TRUE": true,
	"false": true, "False": true, "FALSE": true,
	"null": true, "None": true,
	"and": true, "or": true, "not": true, "in": true,
	"fn": true, "use": true, "if": true,
}

// ParseError represents an error encountered during library parsing.
type ParseError struct {
	Message  string
	Location string // e.g., "params of function 'inc'"
}

func (e *ParseError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("parse error at %s: %s", e.Location, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Parse parses a YAML or JSON library definition into an AST Library.
func Parse(source []byte) (*ast.Library, error) {
	if len(source) > MaxSourceSize {
		return nil, &ParseError{Message: fmt.Sprintf("library source size %d exceeds maximum %d bytes", len(source), MaxSourceSize)}
	}

	var raw yaml.Node
	if err := yaml.Unmarshal(source, &raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	// The root node is a document node containing the actual content
	if raw.Kind != yaml.DocumentNode || len(raw.Content) == 0 {
		return nil, &ParseError{Message: "empty library definition"}
	}

	rootNode := raw.Content[0]
	if rootNode.Kind != yaml.MappingNode {
		return nil, &ParseError{Message: "library definition must be a mapping"}
	}

	lib := &ast.Library{}
	seen := make(map[string]string)

	for i := 0; i+1 < len(rootNode.Content); i += 2 {
		key := rootNode.Content[i].Value
		val := rootNode.Content[i+1]

		switch key {
		case "constants":
			constants, err := parseConstants(val, seen)
			if err != nil {
				return nil, err
			}
			lib.Constants = constants
		case "functions":
			functions, err := parseFunctions(val, seen)
			if err != nil {
				return nil, err
			}
			lib.Functions = functions
		case "main":
			if err := claim(seen, "main", "function", "main"); err != nil {
				return nil, err
			}
			main, err := parseFunction("main", val)
			if err != nil {
				return nil, err
			}
			lib.Main = main
		default:
			return nil, &ParseError{Message: fmt.Sprintf("unknown top-level key '%s'", key)}
		}
	}

	if lib.Main == nil && len(lib.Functions) == 0 {
		return nil, &ParseError{Message: "library must define 'main' or at least one function"}
	}
	count := len(lib.Functions)
	if lib.Main != nil {
		count++
	}
	if count > MaxFunctions {
		return nil, &ParseError{Message: fmt.Sprintf("library defines %d functions, maximum is %d", count, MaxFunctions)}
	}

	return lib, nil
}

// claim records name as taken by a declaration of the given kind.
func claim(seen map[string]string, name, kind, loc string) error {
	if err := checkIdentifier(name, loc); err != nil {
		return err
	}
	if prev, ok := seen[name]; ok {
		return &ParseError{
			Message:  fmt.Sprintf("'%s' is already declared as a %s", name, prev),
			Location: loc,
		}
	}
	seen[name] = kind
	return nil
}

// checkIdentifier reports whether name can be referenced from an
// expression.
func checkIdentifier(name, loc string) error {
	if name == "" {
		return &ParseError{Message: "name must not be empty", Location: loc}
	}
	for i, ch := range name {
		letter := ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
		digit := ch >= '0' && ch <= '9'
		if !letter && !(digit && i > 0) {
			return &ParseError{
				Message:  fmt.Sprintf("'%s' is not a valid identifier", name),
				Location: loc,
			}
		}
	}
	if reserved[name] {
		return &ParseError{
			Message:  fmt.Sprintf("'%s' is a reserved word", name),
			Location: loc,
		}
	}
	return nil
}

// parseConstants parses the constants section.
func parseConstants(node *yaml.Node, seen map[string]string) ([]*ast.Constant, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{Message: "constants must be a mapping", Location: "constants"}
	}

	var constants []*ast.Constant
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if err := claim(seen, name, "constant", fmt.Sprintf("constant '%s'", name)); err != nil {
			return nil, err
		}
		constants = append(constants, &ast.Constant{
			Name:  name,
			Value: nodeToInterface(node.Content[i+1]),
		})
	}
	return constants, nil
}

// parseFunctions parses the functions section.
func parseFunctions(node *yaml.Node, seen map[string]string) ([]*ast.Function, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{Message: "functions must be a mapping", Location: "functions"}
	}

	var functions []*ast.Function
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if name == "main" {
			return nil, &ParseError{
				Message:  "main must be declared at the top level",
				Location: "functions",
			}
		}
		if err := claim(seen, name, "function", fmt.Sprintf("function '%s'", name)); err != nil {
			return nil, err
		}
		fn, err := parseFunction(name, node.Content[i+1])
		if err != nil {
			return nil, err
		}
		functions = append(functions, fn)
	}
	return functions, nil
}

// parseFunction parses a single function body. A scalar is shorthand for a
// parameterless function with that body.
func parseFunction(name string, node *yaml.Node) (*ast.Function, error) {
	fn := &ast.Function{Name: name}
	loc := fmt.Sprintf("function '%s'", name)

	if node.Kind == yaml.ScalarNode {
		fn.Body = node.Value
		if strings.TrimSpace(fn.Body) == "" {
			return nil, &ParseError{Message: "function body must not be empty", Location: loc}
		}
		return fn, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Message:  "function must be a mapping or an expression",
			Location: loc,
		}
	}

	hasBody := false
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]

		switch key {
		case "params":
			params, err := parseParams(val, name)
			if err != nil {
				return nil, err
			}
			fn.Params = params
		case "returns":
			if err := checkType(val, loc); err != nil {
				return nil, err
			}
			fn.Returns = val.Value
		case "body":
			if val.Kind != yaml.ScalarNode {
				return nil, &ParseError{Message: "body must be an expression string", Location: loc}
			}
			fn.Body = val.Value
			hasBody = true
		case "doc":
			fn.Doc = val.Value
		default:
			return nil, &ParseError{
				Message:  fmt.Sprintf("unknown key '%s' in function body", key),
				Location: loc,
			}
		}
	}

	if !hasBody || strings.TrimSpace(fn.Body) == "" {
		return nil, &ParseError{
			Message:  "function must have a 'body'",
			Location: loc,
		}
	}

	return fn, nil
}

// parseParams parses parameter definitions: a bare name, or a single-key
// mapping from name to type.
func parseParams(node *yaml.Node, functionName string) ([]ast.Param, error) {
	loc := fmt.Sprintf("params of function '%s'", functionName)
	if node.Kind != yaml.SequenceNode {
		return nil, &ParseError{Message: "params must be a sequence", Location: loc}
	}

	names := make(map[string]bool)
	var params []ast.Param
	for _, item := range node.Content {
		var p ast.Param
		switch item.Kind {
		case yaml.ScalarNode:
			p.Name = item.Value
		case yaml.MappingNode:
			if len(item.Content) != 2 {
				return nil, &ParseError{
					Message:  "typed parameter must be a single key-value pair",
					Location: loc,
				}
			}
			p.Name = item.Content[0].Value
			if err := checkType(item.Content[1], loc); err != nil {
				return nil, err
			}
			p.Type = item.Content[1].Value
		default:
			return nil, &ParseError{Message: "invalid parameter definition", Location: loc}
		}
		if err := checkIdentifier(p.Name, loc); err != nil {
			return nil, err
		}
		if names[p.Name] {
			return nil, &ParseError{
				Message:  fmt.Sprintf("duplicate parameter '%s'", p.Name),
				Location: loc,
			}
		}
		names[p.Name] = true
		params = append(params, p)
	}
	return params, nil
}

// checkType validates a declared type name.
func checkType(node *yaml.Node, loc string) error {
	if node.Kind != yaml.ScalarNode {
		return &ParseError{Message: "type must be a name", Location: loc}
	}
	if _, err := types.ParseValueType(node.Value); err != nil {
		return &ParseError{Message: err.Error(), Location: loc}
	}
	return nil
}

// nodeToInterface converts a yaml.Node to a Go interface{}.
func nodeToInterface(node *yaml.Node) interface{} {
	switch node.Kind {
	case yaml.ScalarNode:
		return scalarToInterface(node)
	case yaml.SequenceNode:
		result := make([]interface{}, len(node.Content))
		for i, item := range node.Content {
			result[i] = nodeToInterface(item)
		}
		return result
	case yaml.MappingNode:
		result := make(map[string]interface{})
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			result[key] = nodeToInterface(node.Content[i+1])
		}
		return result
	case yaml.AliasNode:
		return nodeToInterface(node.Alias)
	}
	return nil
}

// scalarToInterface converts a YAML scalar node to the appropriate Go type.
func scalarToInterface(node *yaml.Node) interface{} {
	switch node.ShortTag() {
	case "!!null":
		return nil
	case "!!str":
		return node.Value
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err == nil {
			return b
		}
		return node.Value
	case "!!int":
		var i int64
		if err := node.Decode(&i); err == nil {
			return i
		}
		return node.Value
	case "!!float":
		var f float64
		if err := node.Decode(&f); err == nil {
			return f
		}
		return node.Value
	}
	return node.Value
}
