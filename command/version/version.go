package version

import (
	"context"
	"fmt"
	"runtime/debug"

	"capybara/config"

	"github.com/spf13/pflag"
)

// set with -ldflags "-X capybara/command/version.version=..."
var version = ""

func VersionNumber() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

type VersionCommand struct {
	flags *pflag.FlagSet
}

func NewVersionCommand() *VersionCommand {
	return &VersionCommand{flags: pflag.NewFlagSet("version", pflag.ContinueOnError)}
}

func (c *VersionCommand) Synopsis() string {
	return "Print the version"
}

func (c *VersionCommand) Flags() *pflag.FlagSet {
	return c.flags
}

func (c *VersionCommand) Execute(ctx context.Context, cfg *config.Config, args []string) error {
	fmt.Println("capybara", VersionNumber())
	return nil
}
