package forthline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDictionary(t *testing.T) {
	d := NewDictionary()
	square := &CompiledDefinition{Name: "square", Body: &Main{}}

	assert.ErrorIs(t, d.Add("", square, false), ErrEmptyName)
	require.NoError(t, d.Add("Square", square, false))
	require.NoError(t, d.Add("dup", native("dup", nil), true))

	w, err := d.Lookup("SQUARE")
	require.NoError(t, err)
	assert.Same(t, square, w)
	for i := 0; i < 3; i++ {
		again, err := d.Lookup("square")
		require.NoError(t, err)
		assert.Same(t, square, again, "repeated lookups return the same word")
	}

	w, err = d.Lookup("nothing")
	assert.NoError(t, err)
	assert.Nil(t, w)

	perm, err := d.IsPermanent("dup")
	require.NoError(t, err)
	assert.True(t, perm)
	_, err = d.IsPermanent("nothing")
	assert.ErrorIs(t, err, ErrWordNotFound)

	assert.Equal(t, []string{"dup", "square"}, d.Names())
}

func TestDictionary_redefinitions(t *testing.T) {
	d := NewDictionary()
	square := &CompiledDefinition{Name: "square", Body: &Main{}}
	require.NoError(t, d.Add("square", square, false))

	require.NoError(t, d.Redefine("sq", "square", false))
	require.NoError(t, d.Redefine("s", "sq", true))
	w, err := d.Lookup("s")
	require.NoError(t, err)
	assert.Same(t, square, w, "alias chains resolve to the final word")

	err = d.Redefine("sq", "other", false)
	assert.ErrorIs(t, err, ErrDuplicateRedefinition)
	assert.EqualError(t, err, "can't redefine word already in dictionary: sq")
	assert.ErrorIs(t, d.Redefine("square", "sq", false), ErrDuplicateRedefinition)
	assert.ErrorIs(t, d.Redefine("", "sq", false), ErrEmptyName)

	require.NoError(t, d.Redefine("a", "b", false))
	require.NoError(t, d.Redefine("b", "a", false))
	_, err = d.Lookup("a")
	assert.ErrorIs(t, err, ErrCircularDefinition)
	_, err = d.Lookup("b")
	assert.ErrorIs(t, err, ErrCircularDefinition)

	require.NoError(t, d.Redefine("dangling", "missing", false))
	w, err = d.Lookup("dangling")
	assert.NoError(t, err)
	assert.Nil(t, w)

	lit := literalWord("42", 42)
	require.NoError(t, d.RedefineWord("answer", lit, false))
	w, err = d.Lookup("answer")
	require.NoError(t, err)
	assert.Same(t, lit, w)
	assert.ErrorIs(t, d.RedefineWord("nil", nil, false), ErrWordNotFound)

	var logged []string
	d.logfn = func(mess string, args ...interface{}) { logged = append(logged, mess) }
	res := d.Resolved()
	assert.Same(t, square, res["sq"])
	assert.Same(t, square, res["s"])
	assert.Same(t, lit, res["answer"])
	assert.NotContains(t, res, "a")
	assert.NotContains(t, res, "b")
	assert.NotContains(t, res, "dangling")
	assert.Len(t, logged, 3, "unresolvable names are logged")

	target, ok := d.Alias("sq")
	assert.True(t, ok)
	assert.Equal(t, "square", target)
	_, ok = d.Alias("answer")
	assert.False(t, ok)

	perm, err := d.IsPermanent("s")
	require.NoError(t, err)
	assert.True(t, perm)

	assert.Equal(t, 6, d.Forget())
	assert.Equal(t, []string{"s"}, d.Names())

	d.Remove("s")
	assert.Equal(t, 0, d.Len())
}

func TestDictionary_addReplacesRedefinition(t *testing.T) {
	d := NewDictionary()
	require.NoError(t, d.Add("x", literalWord("1", 1), false))
	require.NoError(t, d.Redefine("y", "x", false))
	two := literalWord("2", 2)
	require.NoError(t, d.Add("y", two, false))
	w, err := d.Lookup("y")
	require.NoError(t, err)
	assert.Same(t, two, w)
}

func TestDictionary_forgetRestoresPermanent(t *testing.T) {
	d := NewDictionary()
	one, two := literalWord("1", 1), literalWord("2", 2)
	require.NoError(t, d.Add("plus", one, true))
	require.NoError(t, d.Add("plus", two, false))

	w, err := d.Lookup("plus")
	require.NoError(t, err)
	assert.Same(t, two, w)

	assert.Equal(t, 1, d.Forget())
	w, err = d.Lookup("plus")
	require.NoError(t, err)
	assert.Same(t, one, w, "permanent word restored")
	perm, err := d.IsPermanent("plus")
	require.NoError(t, err)
	assert.True(t, perm)

	require.NoError(t, d.Add("plus", two, false))
	require.NoError(t, d.Add("plus", literalWord("3", 3), false))
	d.Forget()
	w, err = d.Lookup("plus")
	require.NoError(t, err)
	assert.Same(t, one, w, "restored after repeated overrides")
}
