package main

import (
	"strings"

	"github.com/alecthomas/kong"
)

// CLICommand is a subcommand registered with kong as a dynamic command.
type CLICommand interface {
	CLIHandler() any
	CLIOptions() CLIConfig
}

type CLIConfig struct {
	Name        string
	Description string
	Group       string
	Aliases     []string
	Hidden      bool
}

func (opts CLIConfig) BuildTags() []string {
	var tags []string
	if len(opts.Aliases) > 0 {
		tags = append(tags, `aliases:"`+strings.Join(opts.Aliases, ",")+`"`)
	}
	if opts.Hidden {
		tags = append(tags, `hidden:""`)
	}
	return tags
}

// cliOptions turns commands into kong options, keeping registration order.
func cliOptions(cmds ...CLICommand) []kong.Option {
	options := make([]kong.Option, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd == nil {
			continue
		}
		opts := cmd.CLIOptions()
		options = append(options, kong.DynamicCommand(
			opts.Name,
			opts.Description,
			opts.Group,
			cmd.CLIHandler(),
			opts.BuildTags()...,
		))
	}
	return options
}
