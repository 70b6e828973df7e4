package main

import (
	"fmt"
	"os"

	"capybara/command"
	"capybara/command/version"

	"github.com/hashicorp/cli"
)

func main() {

	commands := map[string]cli.CommandFactory{
		"capy pr":     command.NewCommand(command.NewPullRequestCommand()),
		"capy rev":    command.NewCommand(command.NewRevisionCommand()),
		"capy branch": command.NewCommand(command.NewBranchCommand()),
		"bara":        command.NewCommand(command.NewBaraCommand()),
		"cate":        command.NewCommand(command.NewCateCommand()),
		"version":     command.NewCommand(version.NewVersionCommand()),
	}

	cli := &cli.CLI{
		Name:                       "capybara",
		Version:                    version.VersionNumber(),
		Args:                       command.Forward(os.Args[1:]),
		Commands:                   commands,
		Autocomplete:               true,
		AutocompleteNoDefaultFlags: false,
	}

	exitCode, err := cli.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %s\n", err.Error())
	}

	os.Exit(exitCode)
}
