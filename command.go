// Copyright 2015 Google Inc. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gta3sc

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// ParamKind is the kind of value a ParamDesc slot accepts.
type ParamKind int

const (
	KindInt8 ParamKind = iota
	KindInt16
	KindInt32
	KindFloat16
	KindFloat32
	KindGlobalVar
	KindLocalVar
	KindTextLabel
	KindString
	KindEnum
	KindLabel
)

// ParamDesc describes one formal parameter of a Command.
type ParamDesc struct {
	Kind     ParamKind
	EnumRef  string // only meaningful when Kind == KindEnum
	Optional bool
	Out      bool
}

// Command is one immutable catalog entry.
type Command struct {
	Name       string
	Opcode     uint16
	Supported  bool
	Params     []ParamDesc
	EntityType string // optional; empty when the command has none
	IsKeyword  bool
}

// Alternator is a named set of commands sharing one script-level
// identifier, disambiguated by argument types at resolution time.
type Alternator struct {
	Name     string
	Commands []*Command
}

// ResolveError is the failure mode of resolve_alternator.
type ResolveError int

const (
	ResolveOK ResolveError = iota
	ResolveNoMatch
	ResolveAmbiguous
)

func (e ResolveError) Error() string {
	switch e {
	case ResolveNoMatch:
		return "no matching overload"
	case ResolveAmbiguous:
		return "ambiguous overload"
	default:
		return "ok"
	}
}

// CommandDB is the immutable, shared-ownership catalog of every engine
// command, built once before any job begins and never mutated thereafter.
// Commands and alternators are held in two separate lookup tables.
type CommandDB struct {
	commands    map[string]*Command
	alternators map[string]*Alternator
	// TextLabelVars widens short text-label parameter slots to also
	// accept text-label variables.
	TextLabelVars bool
}

// NewCommandDB returns an empty, mutable-until-frozen database. Callers
// populate it (directly, or via LoadCommandDBXML) then treat it as
// read-only for the rest of the process.
func NewCommandDB() *CommandDB {
	return &CommandDB{
		commands:    make(map[string]*Command),
		alternators: make(map[string]*Alternator),
	}
}

// AddCommand registers c under its name (case-insensitive lookups).
func (db *CommandDB) AddCommand(c *Command) {
	db.commands[strings.ToUpper(c.Name)] = c
}

// AddAlternator registers alt under its name.
func (db *CommandDB) AddAlternator(alt *Alternator) {
	db.alternators[strings.ToUpper(alt.Name)] = alt
}

// FindCommand performs an exact, case-insensitive lookup.
func (db *CommandDB) FindCommand(name string) (*Command, bool) {
	c, ok := db.commands[strings.ToUpper(name)]
	return c, ok
}

// FindAlternator performs an exact, case-insensitive lookup.
func (db *CommandDB) FindAlternator(name string) (*Alternator, bool) {
	a, ok := db.alternators[strings.ToUpper(name)]
	return a, ok
}

// ArgType is the statically inferred type of one call-site argument,
// produced by the semantic analyzer before resolution.
type ArgType struct {
	Kind    ParamKind
	EnumRef string
	// IntValue/HasIntValue let the resolver range-check integer literals
	// against intN slots even though the slot width itself is chosen
	// later, by the emitter.
	IntValue    int64
	HasIntValue bool
}

// paramAccepts reports whether p can bind arg: the argument's static
// kind (or, for int literals, whether its value fits the parameter's
// width) must be compatible with the parameter's declared kind.
func paramAccepts(p ParamDesc, arg ArgType, textLabelVars bool) bool {
	switch p.Kind {
	case KindInt8, KindInt16, KindInt32:
		if !arg.HasIntValue {
			return false
		}
		return intFitsWidth(arg.IntValue, p.Kind)
	case KindFloat16, KindFloat32:
		return arg.Kind == KindFloat16 || arg.Kind == KindFloat32
	case KindGlobalVar:
		return arg.Kind == KindGlobalVar
	case KindLocalVar:
		return arg.Kind == KindLocalVar
	case KindTextLabel:
		if arg.Kind == KindTextLabel {
			return true
		}
		if textLabelVars && (arg.Kind == KindGlobalVar || arg.Kind == KindLocalVar) {
			return true
		}
		return false
	case KindString:
		return arg.Kind == KindString
	case KindEnum:
		return arg.Kind == KindEnum && arg.EnumRef == p.EnumRef
	case KindLabel:
		return arg.Kind == KindLabel
	default:
		return false
	}
}

func intFitsWidth(v int64, kind ParamKind) bool {
	switch kind {
	case KindInt8:
		return v >= -128 && v <= 127
	case KindInt16:
		return v >= -32768 && v <= 32767
	case KindInt32:
		return v >= -2147483648 && v <= 2147483647
	}
	return false
}

// candidateMatches reports whether c structurally accepts args. There is
// no specificity ranking among candidates: a candidate with fewer
// optional trailing parameters unused is considered no more specific
// than one with more, so any two candidates that both match are equally
// specific, and ResolveAlternator rejects such ties as ambiguous.
func candidateMatches(c *Command, args []ArgType, textLabelVars bool) bool {
	required := 0
	for _, p := range c.Params {
		if !p.Optional {
			required++
		}
	}
	if len(args) < required || len(args) > len(c.Params) {
		return false
	}
	for i, arg := range args {
		if !paramAccepts(c.Params[i], arg, textLabelVars) {
			return false
		}
	}
	return true
}

// ResolveAlternator picks the single command of alt whose parameter
// kinds match argTypes: zero matches is ResolveNoMatch,
// more than one is always ResolveAmbiguous — ties are never silently
// broken by declaration order.
func (db *CommandDB) ResolveAlternator(alt *Alternator, argTypes []ArgType) (*Command, ResolveError) {
	var matches []*Command
	for _, c := range alt.Commands {
		if !c.Supported {
			continue
		}
		if candidateMatches(c, argTypes, db.TextLabelVars) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return nil, ResolveNoMatch
	case 1:
		return matches[0], ResolveOK
	default:
		return nil, ResolveAmbiguous
	}
}

// --- XML command database loading ---
//
// No third-party XML library appears anywhere in the retrieved example
// corpus (see DESIGN.md), so this one loader is built on the standard
// library's encoding/xml — the wire format here is an input contract,
// not an ambient concern with a pack-library analogue.

type xmlCommandDB struct {
	XMLName     xml.Name        `xml:"Commands"`
	Commands    []xmlCommand    `xml:"Command"`
	Alternators []xmlAlternator `xml:"Alternator"`
}

type xmlCommand struct {
	Name       string     `xml:"Name,attr"`
	ID         string     `xml:"ID,attr"`
	Supported  bool       `xml:"Supported,attr"`
	EntityType string     `xml:"EntityType,attr"`
	IsKeyword  bool       `xml:"Keyword,attr"`
	Params     []xmlParam `xml:"Param"`
}

type xmlParam struct {
	Type     string `xml:"Type,attr"`
	Enum     string `xml:"Enum,attr"`
	Optional bool   `xml:"Optional,attr"`
	Out      bool   `xml:"Out,attr"`
}

type xmlAlternator struct {
	Name     string   `xml:"Name,attr"`
	Commands []string `xml:"Command"`
}

var paramKindNames = map[string]ParamKind{
	"int8":        KindInt8,
	"int16":       KindInt16,
	"int32":       KindInt32,
	"float16":     KindFloat16,
	"float32":     KindFloat32,
	"global_var":  KindGlobalVar,
	"local_var":   KindLocalVar,
	"text_label":  KindTextLabel,
	"string":      KindString,
	"enum":        KindEnum,
	"label":       KindLabel,
}

// LoadCommandDBXML parses the XML command database format into a
// populated, ready-to-freeze CommandDB.
func LoadCommandDBXML(r io.Reader) (*CommandDB, error) {
	var doc xmlCommandDB
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing command database: %w", err)
	}
	db := NewCommandDB()
	for _, xc := range doc.Commands {
		var id uint64
		if xc.ID != "" {
			if _, err := fmt.Sscanf(xc.ID, "0x%x", &id); err != nil {
				if _, err2 := fmt.Sscanf(xc.ID, "%d", &id); err2 != nil {
					return nil, fmt.Errorf("command %q: invalid ID %q", xc.Name, xc.ID)
				}
			}
		}
		c := &Command{
			Name:       xc.Name,
			Opcode:     uint16(id),
			Supported:  xc.Supported,
			EntityType: xc.EntityType,
			IsKeyword:  xc.IsKeyword,
		}
		for _, xp := range xc.Params {
			kind, ok := paramKindNames[strings.ToLower(xp.Type)]
			if !ok {
				return nil, fmt.Errorf("command %q: unknown param type %q", xc.Name, xp.Type)
			}
			c.Params = append(c.Params, ParamDesc{
				Kind:     kind,
				EnumRef:  xp.Enum,
				Optional: xp.Optional,
				Out:      xp.Out,
			})
		}
		db.AddCommand(c)
	}
	for _, xa := range doc.Alternators {
		alt := &Alternator{Name: xa.Name}
		for _, cn := range xa.Commands {
			if c, ok := db.FindCommand(cn); ok {
				alt.Commands = append(alt.Commands, c)
			}
		}
		db.AddAlternator(alt)
	}
	return db, nil
}
