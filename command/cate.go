package command

import (
	"cmp"
	"context"
	"fmt"
	"os"

	"capybara/ci"
	"capybara/command/ui"
	"capybara/config"
	"capybara/storage"
	"capybara/tracing"

	"github.com/google/go-github/v66/github"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type CateCommand struct {
	flags *pflag.FlagSet

	token    string
	owner    string
	repo     string
	s3Bucket string
}

func NewCateCommand() *CateCommand {
	c := &CateCommand{flags: pflag.NewFlagSet("cate", pflag.ContinueOnError)}

	c.flags.StringVar(&c.token, "token", "", "GitHub access token (defaults to GITHUB_TOKEN environment variable)")
	c.flags.StringVar(&c.owner, "owner", "", "Owner of the target repository (token owner by default)")
	c.flags.StringVar(&c.repo, "repo", "", "Name of the target repository (default capybara-reports)")
	c.flags.StringVar(&c.s3Bucket, "s3-bucket", "", "Publish to this S3 bucket instead of GitHub Pages")

	return c
}

func (c *CateCommand) Synopsis() string {
	return "Publish a report directory to GitHub Pages or S3"
}

func (c *CateCommand) Flags() *pflag.FlagSet {
	return c.flags
}

func (c *CateCommand) Execute(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one report directory, got %d arguments", len(args))
	}

	dir := args[0]
	if info, err := os.Stat(dir); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	publisher, err := c.publisher(ctx, cfg)
	if err != nil {
		return err
	}

	url, err := storage.Publish(ctx, publisher, dir)
	if err != nil {
		return err
	}

	ui.Successf("Published %s", dir)
	fmt.Println(url)
	return nil
}

// publishTarget is where a report goes once flags and config are merged.
type publishTarget struct {
	token  string
	owner  string
	repo   string
	bucket string
}

func (c *CateCommand) target(cfg *config.Config) publishTarget {
	return publishTarget{
		token:  cmp.Or(c.token, cfg.GitHub.Token),
		owner:  c.owner,
		repo:   cmp.Or(c.repo, cfg.Publish.PagesRepo),
		bucket: cmp.Or(c.s3Bucket, cfg.Publish.S3Bucket),
	}
}

func (c *CateCommand) publisher(ctx context.Context, cfg *config.Config) (storage.Publisher, error) {
	span := trace.SpanFromContext(ctx)
	target := c.target(cfg)

	if target.bucket != "" {
		span.SetAttributes(attribute.String("publish.s3_bucket", target.bucket))
		return storage.NewS3(ctx, target.bucket)
	}

	gh := cfg.GitHub
	gh.Token = target.token
	if err := gh.RequireToken(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("publish.pages_repo", target.repo),
		tracing.HashedString("github.token", gh.Token),
	)

	client := github.NewClient(ci.NewHTTPClient()).WithAuthToken(gh.Token)
	return storage.NewGitHubPages(ctx, client, target.owner, target.repo)
}
