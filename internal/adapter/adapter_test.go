package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicegraph/slicegraph/internal/types"
)

func TestRegistryForLazyConstruction(t *testing.T) {
	r := NewRegistry()

	a, ok := r.For(".go")
	require.True(t, ok)
	assert.Equal(t, "go", a.Language())

	// second call returns the same cached instance
	a2, ok := r.For(".go")
	require.True(t, ok)
	assert.Same(t, a, a2)
}

func TestRegistryForUnknownExtension(t *testing.T) {
	r := NewRegistry()
	_, ok := r.For(".nope")
	assert.False(t, ok)
}

func TestRegistryOverrideReplacesInstance(t *testing.T) {
	r := NewRegistry()
	_, ok := r.For(".go")
	require.True(t, ok)

	called := false
	r.Register(".go", func() (Adapter, error) {
		called = true
		return &queryAdapter{lang: "go-custom", exts: []string{".go"}}, nil
	})

	a, ok := r.For(".go")
	require.True(t, ok)
	assert.True(t, called)
	assert.Equal(t, "go-custom", a.Language())
}

func TestRegistryExtensionsCoversBuiltins(t *testing.T) {
	r := NewRegistry()
	exts := r.Extensions()
	want := []string{".go", ".py", ".js", ".ts", ".java", ".cs", ".cpp", ".php", ".rs", ".c", ".kt", ".sh"}
	for _, w := range want {
		assert.Contains(t, exts, w)
	}
}

func TestGoAdapterExtractsFunctionAndCall(t *testing.T) {
	r := NewRegistry()
	a, ok := r.For(".go")
	require.True(t, ok)

	src := []byte(`package main

func Greet(name string) string {
	return format(name)
}

func format(s string) string {
	return s
}
`)
	tree, err := a.Parse(src, "main.go")
	require.NoError(t, err)
	require.NotNil(t, tree)

	symbols := a.ExtractSymbols(tree, src, "main.go")
	require.NotEmpty(t, symbols)

	names := make(map[string]bool)
	for _, s := range symbols {
		names[s.Name] = true
		assert.NotEmpty(t, s.ASTFingerprint)
	}
	assert.True(t, names["Greet"])
	assert.True(t, names["format"])

	calls := a.ExtractCalls(tree, src, "main.go", symbols)
	require.NotEmpty(t, calls)
	found := false
	for _, c := range calls {
		if c.Callee == "format" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGoAdapterExtractsImports(t *testing.T) {
	r := NewRegistry()
	a, ok := r.For(".go")
	require.True(t, ok)

	src := []byte(`package main

import "fmt"

func main() {
	fmt.Println("hi")
}
`)
	tree, err := a.Parse(src, "main.go")
	require.NoError(t, err)

	imports := a.ExtractImports(tree, src, "main.go")
	require.Len(t, imports, 1)
	assert.Equal(t, "fmt", imports[0].Specifier)
}

func TestPythonAdapterExtractsClassMethod(t *testing.T) {
	r := NewRegistry()
	a, ok := r.For(".py")
	require.True(t, ok)

	src := []byte(`class Greeter:
    def greet(self, name):
        return helper(name)

def helper(name):
    return name
`)
	tree, err := a.Parse(src, "greeter.py")
	require.NoError(t, err)

	symbols := a.ExtractSymbols(tree, src, "greeter.py")
	var sawClass, sawMethod, sawFunc bool
	for _, s := range symbols {
		switch {
		case s.Kind == types.KindClass && s.Name == "Greeter":
			sawClass = true
		case s.Kind == types.KindMethod && s.Name == "greet":
			sawMethod = true
		case s.Kind == types.KindFunction && s.Name == "helper":
			sawFunc = true
		}
	}
	assert.True(t, sawClass)
	assert.True(t, sawMethod)
	assert.True(t, sawFunc)
}

func TestCAdapterExtractsFunction(t *testing.T) {
	r := NewRegistry()
	a, ok := r.For(".c")
	require.True(t, ok)
	assert.Equal(t, "c", a.Language())

	src := []byte(`int add(int a, int b) {
    return a + b;
}
`)
	tree, err := a.Parse(src, "main.c")
	require.NoError(t, err)
	require.NotNil(t, tree)

	symbols := a.ExtractSymbols(tree, src, "main.c")
	require.NotEmpty(t, symbols)
}

func TestShellAdapterExtractsFunction(t *testing.T) {
	r := NewRegistry()
	a, ok := r.For(".sh")
	require.True(t, ok)
	assert.Equal(t, "shell", a.Language())

	src := []byte(`deploy() {
    echo "deploying"
}
`)
	tree, err := a.Parse(src, "deploy.sh")
	require.NoError(t, err)
	require.NotNil(t, tree)

	symbols := a.ExtractSymbols(tree, src, "deploy.sh")
	require.NotEmpty(t, symbols)
	assert.Equal(t, "deploy", symbols[0].Name)
}
