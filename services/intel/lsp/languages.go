// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"os/exec"
	"strings"
	"sync"
)

// LanguageConfig describes how to run the LSP server for one language.
type LanguageConfig struct {
	// Language is the LSP language identifier ("go", "python", ...).
	Language string `yaml:"language"`

	// Command is the server binary name or path.
	Command string `yaml:"command"`

	// Args are additional command-line arguments.
	Args []string `yaml:"args"`

	// Extensions are the file extensions handled, with leading dot.
	Extensions []string `yaml:"extensions"`

	// InitializationOptions are passed verbatim in the initialize request.
	InitializationOptions interface{} `yaml:"initialization_options"`
}

// Configs holds the language configurations known to a manager.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Configs struct {
	mu     sync.RWMutex
	byLang map[string]LanguageConfig
	byExt  map[string]string
}

// DefaultConfigs returns configurations for the commonly installed
// language servers.
func DefaultConfigs() *Configs {
	c := &Configs{
		byLang: make(map[string]LanguageConfig),
		byExt:  make(map[string]string),
	}
	for _, cfg := range []LanguageConfig{
		{
			Language:   "go",
			Command:    "gopls",
			Args:       []string{"serve"},
			Extensions: []string{".go"},
		},
		{
			Language:   "python",
			Command:    "pyright-langserver",
			Args:       []string{"--stdio"},
			Extensions: []string{".py", ".pyi"},
		},
		{
			Language:   "typescript",
			Command:    "typescript-language-server",
			Args:       []string{"--stdio"},
			Extensions: []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
		},
		{
			Language:   "rust",
			Command:    "rust-analyzer",
			Extensions: []string{".rs"},
		},
		{
			Language:   "c",
			Command:    "clangd",
			Extensions: []string{".c", ".h", ".cpp", ".hpp", ".cc"},
		},
	} {
		c.Register(cfg)
	}
	return c
}

// Register adds or replaces the configuration for a language.
func (c *Configs) Register(cfg LanguageConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byLang[cfg.Language] = cfg
	for _, ext := range cfg.Extensions {
		c.byExt[strings.ToLower(ext)] = cfg.Language
	}
}

// ForLanguage returns the configuration for a language.
func (c *Configs) ForLanguage(language string) (LanguageConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.byLang[language]
	return cfg, ok
}

// LanguageForExtension maps a file extension (with leading dot) to a
// registered language.
func (c *Configs) LanguageForExtension(ext string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lang, ok := c.byExt[strings.ToLower(ext)]
	return lang, ok
}

// Languages returns the registered language identifiers.
func (c *Configs) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byLang))
	for lang := range c.byLang {
		out = append(out, lang)
	}
	return out
}

// Installed reports whether the server binary for a language is on PATH.
func (c *Configs) Installed(language string) bool {
	cfg, ok := c.ForLanguage(language)
	if !ok {
		return false
	}
	_, err := exec.LookPath(cfg.Command)
	return err == nil
}
