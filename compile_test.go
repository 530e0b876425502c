package forthline

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	dot := native(".", nil)
	one := literalWord("1", 1)
	two := literalWord("2", 2)

	main, err := Compile([]Word{
		one, CodeIf, dot, CodeElse, two, CodeThen,
		CodeDo, CodeBegin, one, CodeUntil, CodePlusLoop,
		CodeKey,
	})
	require.NoError(t, err)
	assert.Equal(t, &Main{Body: []Node{
		&Action{Word: one},
		&Conditional{
			Consequent:  []Node{&Action{Word: dot}},
			Alternative: []Node{&Action{Word: two}},
		},
		&CountedLoop{
			Body:          []Node{&IndefiniteLoop{Body: []Node{&Action{Word: one}}}},
			StepFromStack: true,
		},
		&Action{Word: CodeKey},
	}}, main)

	def := &CompiledDefinition{Name: "f", Body: main}
	assert.Equal(t, ": f 1 if . else 2 then do begin 1 until +loop key ;", def.String())
}

func TestCompile_errors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		words []Word
		err   error
		code  ControlCode
	}{
		{"unclosed if", []Word{CodeIf}, ErrUnbalancedControl, ""},
		{"unclosed do", []Word{CodeDo, CodeIf, CodeThen}, ErrUnbalancedControl, ""},
		{"then without if", []Word{CodeThen}, ErrUnbalancedControl, CodeThen},
		{"double else", []Word{CodeIf, CodeElse, CodeElse, CodeThen}, ErrUnbalancedControl, CodeElse},
		{"loop closes if", []Word{CodeIf, CodeLoop}, ErrUnbalancedControl, CodeLoop},
		{"until closes do", []Word{CodeDo, CodeUntil}, ErrUnbalancedControl, CodeUntil},
		{"crossed", []Word{CodeDo, CodeIf, CodeLoop, CodeThen}, ErrUnbalancedControl, CodeLoop},
		{"variable", []Word{CodeVariable}, ErrUnknownControlCode, CodeVariable},
		{"colon", []Word{CodeDefine}, ErrUnknownControlCode, CodeDefine},
		{"is", []Word{CodeIs}, ErrUnknownControlCode, CodeIs},
	} {
		t.Run(tc.name, func(t *testing.T) {
			main, err := Compile(tc.words)
			assert.Nil(t, main)
			require.ErrorIs(t, err, tc.err)
			var ce CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tc.code, ce.Code)
		})
	}
}

func TestCompile_empty(t *testing.T) {
	main, err := Compile(nil)
	require.NoError(t, err)
	assert.Empty(t, main.Body)

	var sb strings.Builder
	formatNodes(&sb, main.Body)
	assert.Equal(t, "", sb.String())
}
