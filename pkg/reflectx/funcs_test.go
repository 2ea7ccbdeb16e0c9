package reflectx

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type namedFunc func(string) string

func topLevel(s string) string { return s }

func TestIsFunction(t *testing.T) {
	assert.True(t, IsFunction(topLevel))
	assert.True(t, IsFunction(func() {}))
	assert.False(t, IsFunction(nil))
	assert.False(t, IsFunction("not a function"))
	assert.False(t, IsFunction(42))
}

func TestFunctionName(t *testing.T) {
	assert.Equal(t, "topLevel", FunctionName(topLevel))
	assert.Equal(t, "reflectx.namedFunc", FunctionName(namedFunc(topLevel)))
	assert.Empty(t, FunctionName("nope"))
}

func TestIsRefinedType(t *testing.T) {
	type vars map[string]any
	assert.True(t, IsRefinedType[vars](reflect.TypeOf(vars{})))
	assert.False(t, IsRefinedType[vars](reflect.TypeOf(map[string]any{})))
	assert.False(t, IsRefinedType[vars](reflect.TypeOf("")))
}
