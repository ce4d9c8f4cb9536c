package command

import (
	"fmt"
	"slices"
	"strings"
)

// Registry maps command names and aliases to Command definitions.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]string
	order    []string
}

// NewRegistry creates a Registry populated with the given commands.
//
// Precondition: No two commands may share a canonical name or alias.
// Postcondition: Returns a Registry or an error on name/alias collisions.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Command, len(cmds)),
		aliases:  make(map[string]string),
	}
	taken := func(name string) bool {
		_, isCmd := r.commands[name]
		_, isAlias := r.aliases[name]
		return isCmd || isAlias
	}

	for i := range cmds {
		cmd := &cmds[i]
		if taken(cmd.Name) {
			return nil, fmt.Errorf("command name %q already registered", cmd.Name)
		}
		r.commands[cmd.Name] = cmd
		r.order = append(r.order, cmd.Name)
		for _, alias := range cmd.Aliases {
			if taken(alias) {
				return nil, fmt.Errorf("alias %q of %q already registered", alias, cmd.Name)
			}
			r.aliases[alias] = cmd.Name
		}
	}
	return r, nil
}

// DefaultRegistry creates a Registry with all built-in commands.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up a command by name or alias.
//
// Postcondition: Returns (command, true) if found, or (nil, false).
func (r *Registry) Resolve(input string) (*Command, bool) {
	if canonical, ok := r.aliases[input]; ok {
		input = canonical
	}
	cmd, ok := r.commands[input]
	return cmd, ok
}

// Commands returns all registered commands in registration order.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// HelpLines renders one line per command, grouped by category in
// registration order.
func (r *Registry) HelpLines() []string {
	var cats []string
	byCat := make(map[string][]*Command)
	for _, cmd := range r.Commands() {
		if !slices.Contains(cats, cmd.Category) {
			cats = append(cats, cmd.Category)
		}
		byCat[cmd.Category] = append(byCat[cmd.Category], cmd)
	}

	var lines []string
	for _, cat := range cats {
		lines = append(lines, strings.ToUpper(cat))
		for _, cmd := range byCat[cat] {
			line := fmt.Sprintf("  %-30s %s", cmd.Usage, cmd.Help)
			if len(cmd.Aliases) > 0 {
				line += fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases, ", "))
			}
			lines = append(lines, line)
		}
	}
	return lines
}
