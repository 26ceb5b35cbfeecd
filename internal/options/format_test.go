package options_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rigproc/internal/options"
)

func TestFormat(t *testing.T) {
	all := options.DefaultFormatOptions()
	cases := []struct {
		name string
		in   options.Value
		opts options.FormatOptions
		want any
	}{
		{"script passthrough", options.Value{Raw: "a, b", Type: options.TagScript}, all, "a, b"},
		{"ui passthrough", options.Value{Raw: "[1, 2]", Type: options.TagUI}, all, "[1, 2]"},
		{"dictionary unwrap", options.Value{Raw: []any{map[string]any{"k": 1.0}, []any{"k"}}, Type: options.TagDictionary}, all, map[string]any{"k": 1.0}},
		{"note unwrap", options.Value{Raw: []any{"text", "meta"}, Type: options.TagNote}, all, "text"},
		{"note without pair", options.Value{Raw: "text", Type: options.TagNote}, all, "text"},
		{"list literal", options.Value{Raw: "[1, 2.5, 'x', -3]"}, all, []any{1, 2.5, "x", -3}},
		{"map literal", options.Value{Raw: `{"a": [true, None]}`}, all, map[string]any{"a": []any{true, nil}}},
		{"tuple literal", options.Value{Raw: "(1, 2)"}, all, []any{1, 2}},
		{"float tuple literal", options.Value{Raw: "(0.5, 1.0, 2.0)"}, all, []any{0.5, 1.0, 2.0}},
		{"single element tuple", options.Value{Raw: "('x',)"}, all, []any{"x"}},
		{"empty tuple", options.Value{Raw: "()"}, all, []any{}},
		{"bare tuple", options.Value{Raw: "1, 2"}, all, []any{1, 2}},
		{"parenthesised list", options.Value{Raw: "([1, 2])"}, all, []any{1, 2}},
		{"parenthesised word", options.Value{Raw: "(a, b)"}, all, []string{"(a", "b)"}},
		{"comma split", options.Value{Raw: " a , b,,c "}, all, []string{"a", "b", "c"}},
		{"split disabled", options.Value{Raw: "a,b"}, options.FormatOptions{}, "a,b"},
		{"literal disabled falls to split", options.Value{Raw: "[1, 2]"}, options.FormatOptions{SplitCommas: true}, []string{"[1", "2]"}},
		{"plain scalar", options.Value{Raw: "hello"}, all, "hello"},
		{"non string", options.Value{Raw: 3.0}, all, 3.0},
		{"reference group", options.Value{Raw: "a,b", Type: options.TagReferenceGroup}, all, []string{"a", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, options.Format(tc.in, tc.opts))
		})
	}
}

func TestParseLiteralRejectsExpressions(t *testing.T) {
	for _, text := range []string{"1 + 2", "[foo]", "{a: len(x)}", "[1, 2", "42", "(7)", "(x, 1)", ""} {
		_, ok := options.ParseLiteral(text)
		assert.False(t, ok, text)
	}
}

func TestParseTag(t *testing.T) {
	tag, ok := options.ParseTag("Plain")
	assert.True(t, ok)
	assert.Equal(t, options.TagPlain, tag)

	tag, ok = options.ParseTag("reference_group")
	assert.True(t, ok)
	assert.Equal(t, options.TagReferenceGroup, tag)

	_, ok = options.ParseTag("bogus")
	assert.False(t, ok)
}
