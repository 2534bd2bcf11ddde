package parser

import (
	"strings"
	"sync"
	"testing"
)

func TestEngine_ParseWellFormed(t *testing.T) {
	e := NewEngine()

	tree, diags := e.Parse([]byte(`public class Account {
	private Integer count;
	public Integer getCount() { return count; }
}`))
	defer tree.Close()

	if tree.Root() == nil {
		t.Fatal("expected a root node")
	}
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
}

func TestEngine_ParseMalformed(t *testing.T) {
	e := NewEngine()

	tree, diags := e.Parse([]byte(`public class Broken {
	public void ok() {}
	%%%
}`))
	defer tree.Close()

	if tree.Root() == nil {
		t.Fatal("expected a partial tree for malformed input")
	}
	if len(diags) == 0 {
		t.Fatal("expected syntax diagnostics for malformed input")
	}
	if diags[0].Line < 1 || diags[0].Column < 1 {
		t.Errorf("diagnostic positions must be 1-based, got %+v", diags[0])
	}
}

func TestEngine_ParseConcurrent(t *testing.T) {
	e := NewEngine()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, _ := e.Parse([]byte(`public class C { public void m() {} }`))
			if tree.Root() == nil {
				t.Error("expected root node")
			}
			tree.Close()
		}()
	}
	wg.Wait()

	if e.pool.Stats() != 0 {
		t.Errorf("expected all parsers returned to the pool, %d still leased", e.pool.Stats())
	}
}

func TestIsApexPath(t *testing.T) {
	cases := map[string]bool{
		"classes/Account.cls":    true,
		"triggers/Fire.trigger":  true,
		"scripts/anon.apex":      true,
		"classes/Account.CLS":    true,
		"src/main.go":            false,
		"classes/Account.cls-meta.xml": false,
	}
	for path, want := range cases {
		if got := IsApexPath(path); got != want {
			t.Errorf("IsApexPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestEngine_ParseApexModifiers(t *testing.T) {
	e := NewEngine()

	src := []byte(`global with sharing class Api {
	public virtual void run() {}
	public override void stop() {}
}`)
	tree, diags := e.Parse(src)
	defer tree.Close()

	if tree.Root() == nil {
		t.Fatal("expected a root node")
	}
	if len(diags) != 0 {
		t.Fatalf("apex modifiers must not surface as syntax errors, got %v", diags)
	}
	if string(tree.Source) != string(src) {
		t.Fatal("tree must carry the original source text")
	}
}

func TestNormalizeApexModifiers(t *testing.T) {
	src := []byte("public virtual class B {\n\tInteger globalCount;\n}")
	out := normalizeApexModifiers(src)

	if len(out) != len(src) {
		t.Fatalf("normalization must preserve length: %d != %d", len(out), len(src))
	}
	if string(out[7:14]) != "       " {
		t.Errorf("virtual should be blanked, got %q", out[7:14])
	}
	if !strings.Contains(string(out), "globalCount") {
		t.Error("identifiers containing modifier words must stay intact")
	}
	for i, c := range src {
		if c == '\n' && out[i] != '\n' {
			t.Fatal("newlines must survive normalization")
		}
	}

	plain := []byte("public class C {}")
	if got := normalizeApexModifiers(plain); &got[0] != &plain[0] {
		t.Error("sources without apex modifiers should come back unchanged")
	}
}
