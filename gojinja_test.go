package gojinja2

import (
	"testing"

	"github.com/tmpleaf/gojinja2/value"
)

func TestRenderTemplateHello(t *testing.T) {
	out, err := RenderTemplate("Hello {{ name }}!", map[string]Value{"name": value.String("Go")})
	if err != nil {
		t.Fatalf("RenderTemplate error: %v", err)
	}
	if out != "Hello Go!" {
		t.Fatalf("expected 'Hello Go!', got %q", out)
	}
}

func TestFloorDivisionOperator(t *testing.T) {
	out, err := RenderTemplate("{{ 7 // 2 }}", nil)
	if err != nil {
		t.Fatalf("RenderTemplate error: %v", err)
	}
	if out != "3" {
		t.Fatalf("expected '3', got %q", out)
	}
}

func TestParseStringWithName(t *testing.T) {
	tmpl, err := ParseStringWithName("{{ greeting }}", "custom")
	if err != nil {
		t.Fatalf("ParseStringWithName error: %v", err)
	}
	if tmpl.Name() != "custom" {
		t.Fatalf("expected template name 'custom', got %q", tmpl.Name())
	}
	out, err := tmpl.Render(map[string]Value{"greeting": value.String("Hi")})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "Hi" {
		t.Fatalf("expected 'Hi', got %q", out)
	}
}

func TestForLoopIndex(t *testing.T) {
	out, err := RenderTemplate(
		"{% for x in items %}{{ loop.index }}:{{ x }} {% endfor %}",
		map[string]Value{"items": value.Seq([]Value{value.String("a"), value.String("b"), value.String("c")})},
	)
	if err != nil {
		t.Fatalf("RenderTemplate error: %v", err)
	}
	if out != "1:a 2:b 3:c " {
		t.Fatalf("unexpected loop output: %q", out)
	}
}

func TestExtendsAndSuper(t *testing.T) {
	env := NewEnvironment(NewMapLoader(map[string]string{
		"base.html":  "{% block content %}base{% endblock %}",
		"child.html": "{% extends \"base.html\" %}{% block content %}{{ super() }}+child{% endblock %}",
	}))
	tpl, err := GetTemplate(env, "child.html")
	if err != nil {
		t.Fatalf("GetTemplate error: %v", err)
	}
	out, err := tpl.Render(nil)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "base+child" {
		t.Fatalf("expected 'base+child', got %q", out)
	}
}

func TestAutoescapeAndSafe(t *testing.T) {
	env := NewEnvironment(NewMapLoader(map[string]string{
		"page.html": "{{ raw }} {{ raw|safe }}",
	}))
	tpl, err := GetTemplate(env, "page.html")
	if err != nil {
		t.Fatalf("GetTemplate error: %v", err)
	}
	out, err := tpl.Render(map[string]Value{"raw": value.String("<b>hi</b>")})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	want := "&lt;b&gt;hi&lt;/b&gt; <b>hi</b>"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestForElseEmpty(t *testing.T) {
	out, err := RenderTemplate(
		"{% for x in items %}{{ x }}{% else %}empty{% endfor %}",
		map[string]Value{"items": value.Seq(nil)},
	)
	if err != nil {
		t.Fatalf("RenderTemplate error: %v", err)
	}
	if out != "empty" {
		t.Fatalf("expected 'empty', got %q", out)
	}
}

func TestSetAndPluralize(t *testing.T) {
	out, err := RenderTemplate(
		"{% set count = items|length %}{{ count }} item{{ count|pluralize }}",
		map[string]Value{"items": value.Seq([]Value{value.String("a"), value.String("b")})},
	)
	if err != nil {
		t.Fatalf("RenderTemplate error: %v", err)
	}
	if out != "2 items" {
		t.Fatalf("expected '2 items', got %q", out)
	}
}

func TestRecursiveForLoop(t *testing.T) {
	node := func(name string, children Value) Value {
		m := value.NewOrderedMap()
		m.Set(value.KeyString("name"), value.String(name))
		m.Set(value.KeyString("children"), children)
		return value.Map(m)
	}
	tree := value.Seq([]Value{
		node("a", value.Seq([]Value{node("a1", value.Seq(nil))})),
		node("b", value.Seq(nil)),
	})
	out, err := RenderTemplate(
		"{% for node in tree recursive %}{{ node.name }}"+
			"{% if node.children %}({{ loop(node.children) }}){% endif %}{% endfor %}",
		map[string]Value{"tree": tree},
	)
	if err != nil {
		t.Fatalf("RenderTemplate error: %v", err)
	}
	if out != "a(a1)b" {
		t.Fatalf("expected 'a(a1)b', got %q", out)
	}
}

func TestSandboxDeniesFilter(t *testing.T) {
	env := NewEnvironment(nil)
	mgr := NewSecurityManager()
	UseSandbox(env, mgr, "restricted")
	// the restricted policy's builtin whitelist allows upper/lower/trim/
	// escape only; "title" is not on that list.
	tpl, err := AddTemplate(env, "tpl", "{{ name|title }}")
	if err != nil {
		t.Fatalf("AddTemplate error: %v", err)
	}
	_, _, err = tpl.RenderWithSecurity(map[string]Value{"name": value.String("go")})
	if err == nil {
		t.Fatalf("expected restricted policy to deny the title filter")
	}
}

func TestTemplateChain(t *testing.T) {
	env := NewEnvironment(NewMapLoader(map[string]string{
		"a.html": "A",
		"b.html": "B",
	}))
	chain := NewTemplateChain(env).Add("a.html").Add("b.html")
	out, err := chain.Render(nil)
	if err != nil {
		t.Fatalf("chain render error: %v", err)
	}
	if out != "AB" {
		t.Fatalf("expected 'AB', got %q", out)
	}
}

func TestBatchRenderer(t *testing.T) {
	env := NewEnvironment(NewMapLoader(map[string]string{
		"greet.html": "Hi {{ name }}",
	}))
	br := NewBatchRenderer(env)
	out, err := br.RenderAll("greet.html", []map[string]Value{
		{"name": value.String("A")},
		{"name": value.String("B")},
	})
	if err != nil {
		t.Fatalf("batch render error: %v", err)
	}
	if out[0] != "Hi A" || out[1] != "Hi B" {
		t.Fatalf("unexpected batch output: %v", out)
	}
}

func TestApplySyntaxConfigCustomDelimiters(t *testing.T) {
	env := NewEnvironment(nil)
	cfg := DefaultSyntaxConfig()
	cfg.VariableStart, cfg.VariableEnd = "<<", ">>"
	cfg.BlockStart, cfg.BlockEnd = "<%", "%>"
	if err := ApplySyntaxConfig(env, cfg); err != nil {
		t.Fatalf("ApplySyntaxConfig error: %v", err)
	}
	tpl, err := AddTemplate(env, "tpl", "<% if ok %><< name >><% endif %>")
	if err != nil {
		t.Fatalf("AddTemplate error: %v", err)
	}
	out, err := tpl.Render(map[string]Value{"ok": value.Bool(true), "name": value.String("Go")})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "Go" {
		t.Fatalf("expected 'Go', got %q", out)
	}
}

func TestLoadSyntaxConfigYAML(t *testing.T) {
	yaml := []byte("variable_start: \"<<\"\nvariable_end: \">>\"\n")
	cfg, err := LoadSyntaxConfigYAML(yaml)
	if err != nil {
		t.Fatalf("LoadSyntaxConfigYAML error: %v", err)
	}
	if cfg.VariableStart != "<<" || cfg.VariableEnd != ">>" {
		t.Fatalf("unexpected parsed config: %+v", cfg)
	}
	if cfg.BlockStart != "{%" {
		t.Fatalf("expected unspecified fields to keep their defaults, got %q", cfg.BlockStart)
	}
}

func TestLoadSyntaxConfigYAMLRejectsReusedStartDelimiter(t *testing.T) {
	yaml := []byte("variable_start: \"{%\"\n")
	if _, err := LoadSyntaxConfigYAML(yaml); err == nil {
		t.Fatalf("expected a reused start delimiter to fail validation")
	}
}

func TestSelectTemplate(t *testing.T) {
	env := NewEnvironment(NewMapLoader(map[string]string{
		"two.html": "Two",
	}))
	selected, err := SelectTemplate(env, []string{"missing.html", "two.html"})
	if err != nil {
		t.Fatalf("SelectTemplate error: %v", err)
	}
	out, err := selected.Render(nil)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "Two" {
		t.Fatalf("expected 'Two', got %q", out)
	}
}
