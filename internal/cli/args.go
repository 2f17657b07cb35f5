// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser parses the arguments of one command.
//
// Supported formats:
//
//	--flag value     long flag with a separate value
//	--flag=value     long flag with an inline value
//	-f value         short flag
//	--flag           boolean flag
//	--               end of flags; everything after is positional
//
// Flags named as boolean never consume the following argument, so
// "ask --save what is Go" keeps "what" as a positional.
type ArgParser struct {
	subcommand string
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
	raw        []string
}

// NewArgParser parses raw. boolNames lists flags that never take a value.
//
// Example:
//
//	args := NewArgParser([]string{"clear", "--yes", "--limit", "5"}, "yes")
//	args.Subcommand()          // "clear"
//	args.BoolFlag("yes")       // true
//	args.FlagInt("limit")      // 5
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	isBool := make(map[string]bool, len(boolNames))
	for _, name := range boolNames {
		isBool[strings.TrimLeft(name, "-")] = true
	}

	parser := &ArgParser{
		flags:      make(map[string]string),
		boolFlags:  make(map[string]bool),
		positional: make([]string, 0),
		raw:        raw,
	}

	i := 0
	for i < len(raw) {
		arg := raw[i]

		if arg == "--" {
			parser.positional = append(parser.positional, raw[i+1:]...)
			break
		}

		// A lone "-" is a positional (conventionally stdin).
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			parser.positional = append(parser.positional, arg)
			i++
			continue
		}

		if name, value, ok := strings.Cut(arg, "="); ok {
			name = strings.TrimLeft(name, "-")
			if isBool[name] || value == "true" || value == "false" {
				parser.boolFlags[name] = value != "false" && value != "0"
			} else {
				parser.flags[name] = value
			}
			i++
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if !isBool[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			parser.flags[name] = raw[i+1]
			i += 2
			continue
		}
		parser.boolFlags[name] = true
		i++
	}

	if len(parser.positional) > 0 {
		parser.subcommand = parser.positional[0]
	}
	return parser
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the value of the first of names that was given.
func (p *ArgParser) Flag(names ...string) string {
	for _, name := range names {
		if val, ok := p.flags[strings.TrimLeft(name, "-")]; ok {
			return val
		}
	}
	return ""
}

// FlagOrDefault returns the flag value or defaultValue.
func (p *ArgParser) FlagOrDefault(name, defaultValue string) string {
	if val := p.Flag(name); val != "" {
		return val
	}
	return defaultValue
}

// FlagInt parses an integer flag. ok is false when the flag is absent.
func (p *ArgParser) FlagInt(name string) (n int, ok bool, err error) {
	val := p.Flag(name)
	if val == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(val)
	if err != nil {
		return 0, true, fmt.Errorf("invalid value for --%s: %q is not a number", name, val)
	}
	return n, true, nil
}

// FlagIntOrDefault returns an integer flag or defaultValue when absent.
func (p *ArgParser) FlagIntOrDefault(name string, defaultValue int) (int, error) {
	n, ok, err := p.FlagInt(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return defaultValue, nil
	}
	return n, nil
}

// BoolFlag reports whether any of names was given as a boolean flag.
func (p *ArgParser) BoolFlag(names ...string) bool {
	for _, name := range names {
		if p.boolFlags[strings.TrimLeft(name, "-")] {
			return true
		}
	}
	return false
}

// HasFlag reports whether name was given in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, isString := p.flags[name]
	_, isBool := p.boolFlags[name]
	return isString || isBool
}

// Positional returns positional argument i, or "".
func (p *ArgParser) Positional(i int) string {
	if i < 0 || i >= len(p.positional) {
		return ""
	}
	return p.positional[i]
}

// PositionalFrom returns the positional arguments from index start on.
func (p *ArgParser) PositionalFrom(start int) []string {
	if start >= len(p.positional) {
		return nil
	}
	return p.positional[start:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// Raw returns the unparsed arguments.
func (p *ArgParser) Raw() []string {
	return p.raw
}

// JoinPositionalArgs joins the positionals from start with spaces.
func (p *ArgParser) JoinPositionalArgs(start int) string {
	return strings.Join(p.PositionalFrom(start), " ")
}
