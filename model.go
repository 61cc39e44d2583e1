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
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// ModelRegistry is the case-insensitive model-name -> id table, merged
// from a default IDE and any number of level-specific IDE/DAT sources.
// It is shared read-only state once built.
type ModelRegistry struct {
	byName map[string]int32
}

// NewModelRegistry returns an empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{byName: make(map[string]int32)}
}

// Lookup resolves name case-insensitively.
func (m *ModelRegistry) Lookup(name string) (int32, bool) {
	id, ok := m.byName[strings.ToLower(name)]
	return id, ok
}

// Merge adds every entry of other into m, with other's entries winning
// on name collision — later sources, i.e. more specific level IDE/DAT
// files, override the default IDE.
func (m *ModelRegistry) Merge(other *ModelRegistry) {
	for k, v := range other.byName {
		m.byName[k] = v
	}
}

func (m *ModelRegistry) set(name string, id int32) {
	m.byName[strings.ToLower(name)] = id
}

// ModelEntry is one (name, id) pair of a ModelRegistry.
type ModelEntry struct {
	Name string
	ID   int32
}

// Entries returns every registered model ordered by ascending id, for
// the San Andreas binary header's model list.
func (m *ModelRegistry) Entries() []ModelEntry {
	out := make([]ModelEntry, 0, len(m.byName))
	for name, id := range m.byName {
		out = append(out, ModelEntry{Name: name, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ModelSource is the collaborator interface a concrete IDE/DAT reader
// satisfies; the core only depends on this shape, not on any one
// concrete loader.
type ModelSource interface {
	LoadModels(r io.Reader) (*ModelRegistry, error)
}

// whitespaceModelSource reads the whitespace-delimited "name id" pairs
// of IDE/DAT files. Blank lines and lines starting with ';' or '#' are
// ignored, matching the comment conventions of the original IDE/DAT
// formats.
type whitespaceModelSource struct{}

// WhitespaceModelSource is the one concrete ModelSource this repo ships.
var WhitespaceModelSource ModelSource = whitespaceModelSource{}

func (whitespaceModelSource) LoadModels(r io.Reader) (*ModelRegistry, error) {
	reg := NewModelRegistry()
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		fields := splitSpaces(line)
		if len(fields) < 2 {
			glog.V(1).Infof("model source line %d: skipping malformed line %q", lineno, line)
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(fields[0], ","), 10, 32)
		name := fields[1]
		if err != nil {
			// Some IDE dialects put the name first and id second;
			// try the reverse before giving up on the line.
			id, err = strconv.ParseInt(strings.TrimSuffix(fields[1], ","), 10, 32)
			name = fields[0]
			if err != nil {
				glog.V(1).Infof("model source line %d: no integer id in %q", lineno, line)
				continue
			}
		}
		reg.set(strings.TrimSuffix(name, ","), int32(id))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return reg, nil
}
