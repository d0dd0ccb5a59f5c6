// Package command holds the chat command catalog and its authorization rules.
//
// The catalog is a static table of Definitions. NewAuthorizer validates the whole
// table once and compiles it into an alias index; after that every chat
// invocation is resolved with Resolve and gated with Authorize.
package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

// Prefix marks a chat message as a command.
const Prefix = "!"

var (
	// ErrUnknownCommand is returned when text matches no alias.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNotEligible is returned when a role clause rejects the caller.
	ErrNotEligible = errors.New("you are not eligible to use this command")
	// ErrInvalidCatalog wraps every catalog validation failure.
	ErrInvalidCatalog = errors.New("invalid command catalog")
)

// Role is a role clause a command may require.
type Role string

const (
	RoleAnyone    Role = "anyone"
	RoleDeveloper Role = "developer"
	RoleCreator   Role = "creator"
)

func (r Role) valid() bool {
	switch r {
	case RoleAnyone, RoleDeveloper, RoleCreator:
		return true
	}
	return false
}

// Name is the canonical name of a command.
type Name string

const (
	Search   Name = "Search"
	Exit     Name = "Exit"
	StartNow Name = "StartNow"
	Help     Name = "Help"
	Stats    Name = "Stats"
)

// Definition declares one command. The lower-cased Name is always an alias in
// addition to Aliases.
type Definition struct {
	Name        Name
	Aliases     []string
	Description string
	// Roles are evaluated in order; any clause may veto.
	Roles []Role
}

// DefaultCatalog is the catalog the bot ships with.
func DefaultCatalog() []Definition {
	return []Definition{
		{
			Name:        Search,
			Aliases:     []string{"c"},
			Description: "returns solves for a given query string",
			Roles:       []Role{RoleAnyone},
		},
		{
			Name:        Exit,
			Description: "kicks the bot out of the room",
			Roles:       []Role{RoleDeveloper, RoleCreator},
		},
		{
			Name:        StartNow,
			Aliases:     []string{"sn"},
			Description: "start the game now",
			Roles:       []Role{RoleDeveloper},
		},
		{
			Name:        Help,
			Aliases:     []string{"h"},
			Description: "get help for a command",
			Roles:       []Role{RoleAnyone},
		},
		{
			Name:        Stats,
			Aliases:     []string{"s"},
			Description: "shows your stats for this room",
			Roles:       []Role{RoleAnyone},
		},
	}
}

// Caller identifies who invoked a command.
type Caller struct {
	Roles []string
	// AuthID is the authenticated user id, empty for guests.
	AuthID string
	// RoomCreator is the id of the user who created the room.
	RoomCreator string
}

func (c Caller) hasRole(role Role) bool {
	return slices.Contains(c.Roles, string(role))
}

type Authorizer struct {
	defs      map[Name]Definition
	order     []Name
	aliases   map[string]Name
	superuser string
}

// NewAuthorizer validates defs and compiles them. superuser is the
// authenticated id that passes every role clause; empty disables it.
func NewAuthorizer(defs []Definition, superuser string) (*Authorizer, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}
	a := &Authorizer{
		defs:      make(map[Name]Definition, len(defs)),
		aliases:   make(map[string]Name),
		superuser: superuser,
	}
	for _, def := range defs {
		a.defs[def.Name] = def
		a.order = append(a.order, def.Name)
		for _, alias := range allAliases(def) {
			a.aliases[alias] = def.Name
		}
	}
	return a, nil
}

func allAliases(def Definition) []string {
	return append([]string{strings.ToLower(string(def.Name))}, def.Aliases...)
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, fmt.Sprintf(format, args...))
}

// Validate checks the whole catalog and reports every violation at once.
func Validate(defs []Definition) error {
	var errs error
	owners := make(map[string]Name)
	seenNames := make(map[Name]bool)

	for _, def := range defs {
		if def.Name == "" {
			errs = multierr.Append(errs, violation("command with empty name"))
			continue
		}
		if seenNames[def.Name] {
			errs = multierr.Append(errs, violation("command %s declared twice", def.Name))
			continue
		}
		seenNames[def.Name] = true

		if strings.TrimSpace(def.Description) == "" {
			errs = multierr.Append(errs, violation("command %s must define a description", def.Name))
		}
		if len(def.Roles) == 0 {
			errs = multierr.Append(errs, violation("command %s must define at least one role", def.Name))
		}
		seenRoles := make(map[Role]bool)
		for _, role := range def.Roles {
			if !role.valid() {
				errs = multierr.Append(errs, violation("command %s: unknown role %q", def.Name, role))
			}
			if seenRoles[role] {
				errs = multierr.Append(errs, violation("command %s: duplicate role %q", def.Name, role))
			}
			seenRoles[role] = true
		}

		local := make(map[string]bool)
		for _, alias := range allAliases(def) {
			if alias == "" {
				errs = multierr.Append(errs, violation("command %s: empty alias", def.Name))
				continue
			}
			if local[alias] {
				errs = multierr.Append(errs, violation("command %s: duplicate alias %q", def.Name, alias))
				continue
			}
			local[alias] = true
			if owner, taken := owners[alias]; taken {
				errs = multierr.Append(errs, violation("command %s: alias %q already used by %s", def.Name, alias, owner))
				continue
			}
			owners[alias] = def.Name
		}
	}
	return errs
}

// Resolve maps text to a command. Matching is case-sensitive.
func (a *Authorizer) Resolve(text string) (Name, error) {
	name, ok := a.aliases[text]
	if !ok {
		return "", ErrUnknownCommand
	}
	return name, nil
}

// Authorize evaluates the role clauses of name for caller.
func (a *Authorizer) Authorize(name Name, caller Caller) error {
	def, ok := a.defs[name]
	if !ok {
		return ErrUnknownCommand
	}
	superuser := a.superuser != "" && caller.AuthID == a.superuser

	for _, role := range def.Roles {
		switch role {
		case RoleAnyone:
		case RoleDeveloper:
			if !caller.hasRole(RoleDeveloper) && !superuser {
				return ErrNotEligible
			}
		case RoleCreator:
			if superuser {
				return nil
			}
			isCreator := caller.AuthID != "" && caller.AuthID == caller.RoomCreator
			if !caller.hasRole(RoleCreator) && !isCreator {
				return ErrNotEligible
			}
		}
	}
	return nil
}

// Describe returns the help text of name.
func (a *Authorizer) Describe(name Name) string {
	return a.defs[name].Description
}

// Names lists the catalog in declaration order.
func (a *Authorizer) Names() []Name {
	return slices.Clone(a.order)
}

// Invocation is a chat message split into command text and query.
type Invocation struct {
	Command string
	Query   string
}

// Parse splits a "!cmd query" message. ok is false when the message is not a
// command.
func Parse(message string) (Invocation, bool) {
	rest, ok := strings.CutPrefix(message, Prefix)
	if !ok {
		return Invocation{}, false
	}
	cmd, query, _ := strings.Cut(rest, " ")
	return Invocation{Command: cmd, Query: query}, true
}
