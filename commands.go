package adbfs

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Command is an action exposed to the host under a stable identifier.
type Command interface {
	// Name returns the command identifier, e.g. "adbfs.workspaceInit".
	Name() string

	// Description returns human-readable help text.
	Description() string

	// Execute runs the command.
	Execute(ctx context.Context, args []string) error
}

// CommandFunc adapts a function into a Command.
type CommandFunc struct {
	ID   string
	Help string
	Run  func(ctx context.Context, args []string) error
}

func (c *CommandFunc) Name() string        { return c.ID }
func (c *CommandFunc) Description() string { return c.Help }

func (c *CommandFunc) Execute(ctx context.Context, args []string) error {
	return c.Run(ctx, args)
}

// Commands handles command registration and execution.
type Commands struct {
	mu   sync.RWMutex
	cmds map[string]Command
}

func NewCommands() *Commands {
	return &Commands{
		cmds: make(map[string]Command),
	}
}

func (c *Commands) Register(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}

	name := cmd.Name()
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cmds[name]; exists {
		return fmt.Errorf("command already registered: %s", name)
	}

	c.cmds[name] = cmd
	return nil
}

func (c *Commands) Unregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cmds[name]; !exists {
		return fmt.Errorf("command not found: %s", name)
	}

	delete(c.cmds, name)
	return nil
}

func (c *Commands) Get(name string) (Command, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cmd, exists := c.cmds[name]
	if !exists {
		return nil, fmt.Errorf("command not found: %s", name)
	}

	return cmd, nil
}

// List returns all registered commands ordered by name.
func (c *Commands) List() []Command {
	c.mu.RLock()
	defer c.mu.RUnlock()

	commands := make([]Command, 0, len(c.cmds))
	for _, cmd := range c.cmds {
		commands = append(commands, cmd)
	}

	slices.SortFunc(commands, func(a, b Command) int {
		return strings.Compare(a.Name(), b.Name())
	})

	return commands
}

// Execute looks up a command by name and runs it outside of the registry lock.
func (c *Commands) Execute(ctx context.Context, name string, args ...string) error {
	cmd, err := c.Get(name)
	if err != nil {
		return err
	}

	return cmd.Execute(ctx, args)
}
