// Package lang holds the per-language AST query tables the extractor uses
// to find canonical block boundaries (functions, classes, structs, …).
package lang

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/semcode-dev/semcode/internal/block"
)

// Config describes how to find symbol-defining nodes for one language:
// which tree-sitter node types correspond to which Block.Kind, and which
// child node type holds the declared name.
type Config struct {
	Name       string
	Extensions []string

	// NodeKinds maps a tree-sitter node type to the Block.Kind it represents.
	NodeKinds map[string]block.Kind

	// NameField is the node type searched (direct children, then one level
	// deeper) for the identifier text.
	NameFields []string
}

// Registry resolves a file extension or language name to its Config and
// compiled tree-sitter Language, and is safe for concurrent use across
// parallel extraction workers (spec §4.2 "per-language thread safety").
type Registry struct {
	mu        sync.RWMutex
	configs   map[string]*Config
	extToLang map[string]string
	tsLangs   map[string]*sitter.Language
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry, built once on first use.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = newRegistry()
	})
	return defaultRegistry
}

func newRegistry() *Registry {
	r := &Registry{
		configs:   make(map[string]*Config),
		extToLang: make(map[string]string),
		tsLangs:   make(map[string]*sitter.Language),
	}
	r.register(goConfig(), golang.GetLanguage())
	r.register(pythonConfig(), python.GetLanguage())
	r.register(javascriptConfig(), javascript.GetLanguage())
	r.register(jsxConfig(), javascript.GetLanguage())
	r.register(typescriptConfig(), typescript.GetLanguage())
	r.register(tsxConfig(), tsx.GetLanguage())
	r.register(rustConfig(), rust.GetLanguage())
	return r
}

func (r *Registry) register(cfg *Config, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.tsLangs[cfg.Name] = tsLang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

// ByExtension resolves a file extension (with or without leading dot) to
// its language Config.
func (r *Registry) ByExtension(ext string) (*Config, bool) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	cfg, ok := r.configs[name]
	return cfg, ok
}

// ByName resolves a language name to its Config.
func (r *Registry) ByName(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// TreeSitterLanguage returns the compiled grammar for a language name.
func (r *Registry) TreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.tsLangs[name]
	return l, ok
}

func goConfig() *Config {
	return &Config{
		Name:       "go",
		Extensions: []string{".go"},
		NodeKinds: map[string]block.Kind{
			"function_declaration": block.KindFunction,
			"method_declaration":   block.KindMethod,
			"type_declaration":     block.KindStruct,
		},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}
}

func pythonConfig() *Config {
	return &Config{
		Name:       "python",
		Extensions: []string{".py", ".pyw", ".pyi"},
		NodeKinds: map[string]block.Kind{
			"function_definition":  block.KindFunction,
			"class_definition":     block.KindClass,
			"decorated_definition": block.KindFunction,
		},
		NameFields: []string{"identifier"},
	}
}

func javascriptConfig() *Config {
	return &Config{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".cjs"},
		NodeKinds: map[string]block.Kind{
			"function_declaration": block.KindFunction,
			"method_definition":    block.KindMethod,
			"class_declaration":    block.KindClass,
		},
		NameFields: []string{"identifier", "property_identifier"},
	}
}

func jsxConfig() *Config {
	cfg := *javascriptConfig()
	cfg.Name = "jsx"
	cfg.Extensions = []string{".jsx"}
	return &cfg
}

func typescriptConfig() *Config {
	return &Config{
		Name:       "typescript",
		Extensions: []string{".ts"},
		NodeKinds: map[string]block.Kind{
			"function_declaration":   block.KindFunction,
			"method_definition":      block.KindMethod,
			"class_declaration":      block.KindClass,
			"interface_declaration":  block.KindInterface,
			"type_alias_declaration": block.KindOther,
		},
		NameFields: []string{"identifier", "property_identifier", "type_identifier"},
	}
}

func tsxConfig() *Config {
	cfg := *typescriptConfig()
	cfg.Name = "tsx"
	cfg.Extensions = []string{".tsx"}
	return &cfg
}

func rustConfig() *Config {
	return &Config{
		Name:       "rust",
		Extensions: []string{".rs"},
		NodeKinds: map[string]block.Kind{
			"function_item": block.KindFunction,
			"struct_item":   block.KindStruct,
			"enum_item":     block.KindEnum,
			"trait_item":    block.KindTrait,
			"impl_item":     block.KindImpl,
			"mod_item":      block.KindModule,
		},
		NameFields: []string{"identifier", "type_identifier", "field_identifier"},
	}
}
