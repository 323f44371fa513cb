// Package option implements the Option Set: a closed, four-scope schema of
// mount options (ro, init, type) with per-option precedence resolution.
package option

import (
	"fmt"
	"strings"
)

// Name is a canonical (post-alias-expansion) option name.
type Name string

const (
	RO   Name = "ro"
	Init Name = "init"
	Type Name = "type"
)

// Scope identifies one of the four layered option stores.
type Scope int

const (
	ScopeDefaults Scope = iota
	ScopeGlobal
	ScopeTree
	ScopePath
	numScopes
)

// Defaults holds the schema's fixed default values.
var Defaults = map[Name]string{
	RO:   "0",
	Init: "never",
	Type: "e",
}

// InitValues is the closed set of legal `init` values.
var InitValues = map[string]bool{
	"never": true, "skip": true, "missing": true, "always": true,
}

// TypeValues is the closed set of legal `type` values.
var TypeValues = map[string]bool{"d": true, "f": true, "e": true}

// precedence returns the scope resolution order for name, lowest to highest
// priority. `ro` is special-cased per the resolution rule: operator intent
// expressed via the global `-o` overrides a more local `ro` setting. Every
// other option lets more specific scopes refine a less specific one.
func precedence(name Name) [numScopes]Scope {
	if name == RO {
		return [numScopes]Scope{ScopeDefaults, ScopePath, ScopeTree, ScopeGlobal}
	}

	return [numScopes]Scope{ScopeDefaults, ScopeGlobal, ScopeTree, ScopePath}
}

// Set is one scope's worth of option values.
type Set map[Name]string

// Parse splits an option string on `,` then each item on `=`, validating
// each against the schema and expanding the `rw` alias to its canonical
// `ro=0` form. Unknown names are rejected at parse time.
func Parse(optstr string) (Set, error) {
	set := Set{}
	if optstr == "" {
		return set, nil
	}

	for _, item := range strings.Split(optstr, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		name, value, hasValue := strings.Cut(item, "=")
		name = strings.TrimSpace(name)

		switch name {
		case "rw":
			if hasValue {
				return nil, fmt.Errorf("option: %q takes no value", "rw")
			}

			set[RO] = "0"
		case "ro":
			if !hasValue {
				set[RO] = "1"

				continue
			}

			if value != "0" && value != "1" {
				return nil, fmt.Errorf("option: invalid value %q for %q", value, "ro")
			}

			set[RO] = value
		case "init":
			if !hasValue || !InitValues[value] {
				return nil, fmt.Errorf("option: invalid value %q for %q", value, "init")
			}

			set[Init] = value
		case "type":
			if !hasValue || !TypeValues[value] {
				return nil, fmt.Errorf("option: invalid value %q for %q", value, "type")
			}

			set[Type] = value
		default:
			return nil, fmt.Errorf("option: unknown option %q", name)
		}
	}

	return set, nil
}

// Layers is the four scopes' worth of resolved Sets for a session, indexed
// by Scope.
type Layers [numScopes]Set

// NewLayers builds a Layers with the defaults scope pre-populated.
func NewLayers() Layers {
	var l Layers

	l[ScopeDefaults] = Set(Defaults)

	return l
}

// Resolve returns the effective value for name given tree and path scope
// sets layered on top of the session's global scope, walking the
// option-specific precedence order and returning the last scope that has
// the key set.
func (l Layers) Resolve(name Name, treeSet, pathSet Set) string {
	scopes := l
	scopes[ScopeTree] = treeSet
	scopes[ScopePath] = pathSet

	order := precedence(name)

	value := Defaults[name]

	for _, scope := range order {
		if set := scopes[scope]; set != nil {
			if v, ok := set[name]; ok {
				value = v
			}
		}
	}

	return value
}

// IsRO reports the boolean value of a resolved `ro` string.
func IsRO(value string) bool { return value == "1" }
