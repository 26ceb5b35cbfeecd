package options

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// FormatOptions toggles the textual conversions applied to plain values.
type FormatOptions struct {
	SplitCommas   bool
	ParseLiterals bool
}

// DefaultFormatOptions enables every conversion.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{SplitCommas: true, ParseLiterals: true}
}

// Format converts a stored value into the form handed to steps.
//
// Script and ui values pass through. Dictionary and note values unwrap one
// level of a two-element container. Plain strings that spell a list, tuple or
// map literal become that structure, and other strings containing commas are split
// into trimmed tokens.
func Format(v Value, opts FormatOptions) any {
	switch v.Type {
	case TagScript, TagUI:
		return v.Raw
	case TagDictionary, TagNote:
		if pair, ok := v.Raw.([]any); ok && len(pair) == 2 {
			return pair[0]
		}
		return v.Raw
	}

	text, ok := v.Raw.(string)
	if !ok {
		return v.Raw
	}
	if opts.ParseLiterals {
		if parsed, ok := ParseLiteral(text); ok {
			return parsed
		}
	}
	if opts.SplitCommas && strings.Contains(text, ",") {
		return splitTokens(text)
	}
	return text
}

func splitTokens(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseLiteral parses text as a list, tuple or map literal. Tuples are written
// in parentheses or as bare comma separated constants and come back as lists.
// Only constant values are accepted; anything else, including bare scalars,
// reports false.
func ParseLiteral(text string) (any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if strings.HasPrefix(text, "[") || strings.HasPrefix(text, "{") {
		if value, ok := parseContainer(text); ok {
			return value, true
		}
	}
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		if value, ok := parseTuple(text[1 : len(text)-1]); ok {
			return value, true
		}
	}
	if strings.Contains(text, ",") {
		return parseTuple(text)
	}
	return nil, false
}

// parseTuple parses the inside of a tuple. A single element without a
// trailing comma is just that element, which only counts when it is itself a
// container.
func parseTuple(inner string) (any, bool) {
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return []any{}, true
	}
	trailing := strings.HasSuffix(inner, ",")
	if trailing {
		inner = strings.TrimSpace(strings.TrimSuffix(inner, ","))
	}
	value, ok := parseContainer("[" + inner + "]")
	if !ok {
		return nil, false
	}
	items := value.([]any)
	if len(items) == 1 && !trailing {
		switch items[0].(type) {
		case []any, map[string]any:
			return items[0], true
		}
		return nil, false
	}
	return items, true
}

func parseContainer(text string) (any, bool) {
	tree, err := parser.Parse(text)
	if err != nil {
		return nil, false
	}
	switch tree.Node.(type) {
	case *ast.ArrayNode, *ast.MapNode:
	default:
		return nil, false
	}
	value, err := literalValue(tree.Node)
	if err != nil {
		return nil, false
	}
	return value, true
}

func literalValue(node ast.Node) (any, error) {
	switch n := node.(type) {
	case *ast.NilNode:
		return nil, nil
	case *ast.BoolNode:
		return n.Value, nil
	case *ast.IntegerNode:
		return n.Value, nil
	case *ast.FloatNode:
		return n.Value, nil
	case *ast.StringNode:
		return n.Value, nil
	case *ast.ConstantNode:
		return n.Value, nil
	case *ast.IdentifierNode:
		// Literals written by older tooling use capitalised keywords.
		switch n.Value {
		case "True":
			return true, nil
		case "False":
			return false, nil
		case "None":
			return nil, nil
		}
		return nil, fmt.Errorf("identifier %q is not a literal", n.Value)
	case *ast.UnaryNode:
		inner, err := literalValue(n.Node)
		if err != nil {
			return nil, err
		}
		switch n.Operator {
		case "-":
			switch x := inner.(type) {
			case int:
				return -x, nil
			case float64:
				return -x, nil
			}
		case "+":
			switch inner.(type) {
			case int, float64:
				return inner, nil
			}
		}
		return nil, fmt.Errorf("unsupported unary %q", n.Operator)
	case *ast.ArrayNode:
		out := make([]any, 0, len(n.Nodes))
		for _, item := range n.Nodes {
			v, err := literalValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *ast.MapNode:
		out := make(map[string]any, len(n.Pairs))
		for _, raw := range n.Pairs {
			pair, ok := raw.(*ast.PairNode)
			if !ok {
				return nil, fmt.Errorf("unexpected map element %T", raw)
			}
			key, err := literalValue(pair.Key)
			if err != nil {
				return nil, err
			}
			value, err := literalValue(pair.Value)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(key)] = value
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported literal node %T", node)
	}
}
