// Package loader reads compilation units written as YAML trees and turns
// them into ast nodes for the analyzer.
//
// A unit is a YAML sequence of items. Every item is a declaration, a
// statement or an expression:
//
//	- fn: add
//	  params: {a: int, b: int}
//	  returns: int
//	  body:
//	    - return: {op: "+", l: a, r: b}
//	- let: r
//	  type: int
//	  value: {call: add, args: [5, 10]}
//
// Items that cannot be decoded become ast.BadNode values and are reported
// with their file position.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"tern/internal/ast"
	"tern/internal/token"
)

// Unit is a loaded compilation unit.
type Unit struct {
	Path  string     // file or directory the unit was loaded from
	Files []string   // source files in load order
	Nodes []ast.Node // top-level items of every file, concatenated
}

// Error is a problem found while decoding a unit.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

// Load reads a single unit file, or every unit file of a directory.
func Load(path string) (*Unit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadFile reads one unit file. The returned unit is usable even when err is
// not nil; undecodable items are ast.BadNode values.
func LoadFile(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %s: %w", path, err)
	}
	nodes, err := Decode(path, data)
	return &Unit{Path: path, Files: []string{path}, Nodes: nodes}, err
}

// LoadDir reads every .yaml and .yml file of dir, in name order, as one
// unit. Subdirectories are ignored.
func LoadDir(dir string) (*Unit, error) {
	files, err := unitFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no unit files in %s", dir)
	}

	unit := &Unit{Path: dir}
	var errs error
	for _, path := range files {
		part, err := LoadFile(path)
		errs = multierr.Append(errs, err)
		if part == nil {
			continue
		}
		unit.Files = append(unit.Files, path)
		unit.Nodes = append(unit.Nodes, part.Nodes...)
	}
	return unit, errs
}

func unitFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read unit directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

// Decode decodes the unit held in data. Positions of the returned nodes name
// file. An empty document is an empty unit.
func Decode(file string, data []byte) ([]ast.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Pos: token.Position{File: file, Line: 1, Column: 1}, Msg: err.Error()}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	d := &decoder{file: file}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		d.errorf(root, "a unit must be a list of items")
		return nil, d.errs
	}
	return d.body(root), d.errs
}
