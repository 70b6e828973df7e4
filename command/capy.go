package command

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"capybara/cache"
	"capybara/ci"
	"capybara/command/ui"
	"capybara/config"
	"capybara/logging"
	"capybara/tracing"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// capyFlags are shared by the artifact download commands.
type capyFlags struct {
	flags *pflag.FlagSet

	token        string
	owner        string
	repo         string
	artifactName string
	out          string
}

func newCapyFlags(name string) *capyFlags {
	f := &capyFlags{flags: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	f.flags.StringVar(&f.token, "token", "", "GitHub access token (defaults to GITHUB_TOKEN environment variable)")
	f.flags.StringVar(&f.owner, "owner", "", "Owner of the target repository (default eic)")
	f.flags.StringVar(&f.repo, "repo", "", "Name of the target repository (default EICrecon)")
	f.flags.StringVar(&f.artifactName, "artifact-name", "", "Name of the artifact to download")
	f.flags.StringVar(&f.out, "out", ".", "Directory to download artifacts into")
	return f
}

// session is what a download command works with once the flags are resolved.
type session struct {
	client     *ci.Client
	downloader *ci.Downloader
	artifact   string
	close      func()
}

func (f *capyFlags) open(ctx context.Context, cfg *config.Config) (*session, error) {
	gh := cfg.GitHub
	gh.Token = cmp.Or(f.token, gh.Token)
	gh.Owner = cmp.Or(f.owner, gh.Owner)
	gh.Repo = cmp.Or(f.repo, gh.Repo)
	gh.ArtifactName = cmp.Or(f.artifactName, gh.ArtifactName)

	if err := gh.RequireToken(); err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("github.repo", gh.Owner+"/"+gh.Repo),
		tracing.HashedString("github.token", gh.Token),
	)

	client, err := ci.NewClient(gh.Token, gh.Owner, gh.Repo)
	if err != nil {
		return nil, err
	}

	s := &session{client: client, artifact: gh.ArtifactName, close: func() {}}

	// the downloads work without the index, only slower on repeated runs
	var index ci.ArtifactCache
	c, err := cache.Open(ctx, cfg.CacheFile)
	if err != nil {
		logging.FromContext(ctx).Warn("artifact cache unavailable", zap.String("path", cfg.CacheFile), zap.Error(err))
	} else {
		index = c
		s.close = func() { c.Close() }
	}

	s.downloader = ci.NewDownloader(client, index, f.out)
	return s, nil
}

func scanRuns(ctx context.Context, find func(observe ci.Observer) (ci.Scan, error), withBase bool) (ci.Scan, error) {
	scan, err := ui.Track(ctx, "Loading workflows", func(status func(string)) (ci.Scan, error) {
		return find(func(p ci.Progress) {
			status(progressText(p, withBase))
		})
	})

	for _, run := range scan.Skipped {
		ui.Errorf("Skipping workflow %s on %s with no artifacts", run.HTMLURL, run.HeadBranch)
	}

	return scan, err
}

func progressText(p ci.Progress, withBase bool) string {
	text := fmt.Sprintf("%d head:%s", p.RunID, yesNo(p.HeadFound))
	if withBase {
		text += " base:" + yesNo(p.BaseFound)
	}
	return text
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

type PullRequestCommand struct {
	*capyFlags
}

func NewPullRequestCommand() *PullRequestCommand {
	return &PullRequestCommand{capyFlags: newCapyFlags("capy pr")}
}

func (c *PullRequestCommand) Synopsis() string {
	return "Download the artifacts of the head and base workflow runs of a pull request"
}

func (c *PullRequestCommand) Flags() *pflag.FlagSet {
	return c.flags
}

func (c *PullRequestCommand) Execute(ctx context.Context, cfg *config.Config, args []string) error {
	number, err := pullRequestNumber(args)
	if err != nil {
		return err
	}

	s, err := c.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	ui.Successf("Fetching metadata for #%d...", number)
	pr, err := s.client.PullRequest(ctx, number)
	if err != nil {
		return err
	}

	ui.Printf("Title: %s", pr.Title)
	otherRepo := ""
	if !sameRepo(pr.Head.Repo, s.client.FullName()) {
		otherRepo = ui.Italic(pr.Head.Repo) + "/"
	}
	ui.Printf("PR head: %s%s@%s, targets %s@%s", otherRepo, ui.Bold(pr.Head.Ref), pr.Head.SHA, ui.Bold(pr.Base.Ref), pr.Base.SHA)

	scan, err := scanRuns(ctx, func(observe ci.Observer) (ci.Scan, error) {
		return ci.FindPullRequestRuns(ctx, s.client, s.client.FullName(), pr, observe)
	}, true)
	if err != nil {
		return err
	}

	fmt.Printf("PR base workflow: %s\n", scan.Base.HTMLURL)
	fmt.Printf("PR head workflow: %s\n", scan.Head.HTMLURL)

	paths := make([]string, 2)
	g, ctx := errgroup.WithContext(ctx)
	for i, run := range []ci.Run{*scan.Base, *scan.Head} {
		g.Go(func() error {
			path, err := s.downloader.Download(ctx, run, s.artifact)
			paths[i] = path
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, path := range paths {
		fmt.Println(path)
	}

	return nil
}

func pullRequestNumber(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one pull request number, got %d arguments", len(args))
	}

	number, err := strconv.Atoi(args[0])
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("invalid pull request number %q", args[0])
	}

	return number, nil
}

type RevisionCommand struct {
	*capyFlags
}

func NewRevisionCommand() *RevisionCommand {
	return &RevisionCommand{capyFlags: newCapyFlags("capy rev")}
}

func (c *RevisionCommand) Synopsis() string {
	return "Download the artifact of the workflow run for a revision"
}

func (c *RevisionCommand) Flags() *pflag.FlagSet {
	return c.flags
}

func (c *RevisionCommand) Execute(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one revision, got %d arguments", len(args))
	}

	s, err := c.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	sha, err := s.client.Commit(ctx, args[0])
	if err != nil {
		return err
	}

	scan, err := scanRuns(ctx, func(observe ci.Observer) (ci.Scan, error) {
		return ci.FindRevisionRun(ctx, s.client, s.client.FullName(), sha, observe)
	}, false)
	if err != nil {
		return err
	}

	return downloadHead(ctx, s, scan, "Revision")
}

type BranchCommand struct {
	*capyFlags
}

func NewBranchCommand() *BranchCommand {
	return &BranchCommand{capyFlags: newCapyFlags("capy branch")}
}

func (c *BranchCommand) Synopsis() string {
	return "Download the artifact of the newest workflow run on a branch"
}

func (c *BranchCommand) Flags() *pflag.FlagSet {
	return c.flags
}

func (c *BranchCommand) Execute(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one branch, got %d arguments", len(args))
	}

	s, err := c.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	scan, err := scanRuns(ctx, func(observe ci.Observer) (ci.Scan, error) {
		return ci.FindBranchRun(ctx, s.client, s.client.FullName(), args[0], observe)
	}, false)
	if err != nil {
		return err
	}

	return downloadHead(ctx, s, scan, "Branch")
}

func downloadHead(ctx context.Context, s *session, scan ci.Scan, what string) error {
	fmt.Printf("%s workflow: %s\n", what, scan.Head.HTMLURL)

	path, err := s.downloader.Download(ctx, *scan.Head, s.artifact)
	if err != nil {
		return err
	}

	fmt.Println(path)
	return nil
}

var capySubcommands = []string{"pr", "rev", "branch", "-h", "--help", "-help"}

// Forward rewrites the deprecated "capy <number>" to "capy pr <number>".
func Forward(args []string) []string {
	if len(args) < 2 || args[0] != "capy" || slices.Contains(capySubcommands, args[1]) {
		return args
	}

	ui.Warnln("Invoking `capy' without subcommand is deprecated. Use `capy pr'.")

	out := make([]string, 0, len(args)+1)
	out = append(out, "capy", "pr")
	return append(out, args[1:]...)
}

func sameRepo(a, b string) bool {
	return strings.EqualFold(a, b)
}
