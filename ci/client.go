package ci

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Run is the part of a workflow run the finders look at.
type Run struct {
	ID         int64
	HeadRepo   string
	HeadBranch string
	HeadSHA    string
	HTMLURL    string
	CreatedAt  time.Time
}

type Ref struct {
	Repo string
	Ref  string
	SHA  string
}

type PullRequest struct {
	Number int
	Title  string
	Head   Ref
	Base   Ref
}

// Client talks to the GitHub API on behalf of one repository.
type Client struct {
	gh    *github.Client
	http  *http.Client
	owner string
	repo  string
}

type Option func(*Client) error

// WithBaseURL points the client at another API root, such as a GitHub
// Enterprise instance or a test server.
func WithBaseURL(base string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return err
		}
		c.gh.BaseURL = u
		return nil
	}
}

func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func NewClient(token, owner, repo string, opts ...Option) (*Client, error) {
	httpClient := NewHTTPClient()

	c := &Client{
		gh:    github.NewClient(httpClient).WithAuthToken(token),
		http:  httpClient,
		owner: owner,
		repo:  repo,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Client) FullName() string {
	return c.owner + "/" + c.repo
}

func (c *Client) PullRequest(ctx context.Context, number int) (PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return PullRequest{}, fmt.Errorf("pull request #%d is not accessible: %w", number, err)
	}

	return PullRequest{
		Number: pr.GetNumber(),
		Title:  pr.GetTitle(),
		Head: Ref{
			Repo: pr.GetHead().GetRepo().GetFullName(),
			Ref:  pr.GetHead().GetRef(),
			SHA:  pr.GetHead().GetSHA(),
		},
		Base: Ref{
			Repo: pr.GetBase().GetRepo().GetFullName(),
			Ref:  pr.GetBase().GetRef(),
			SHA:  pr.GetBase().GetSHA(),
		},
	}, nil
}

// Commit resolves a branch, tag or abbreviated sha to a full commit sha.
func (c *Client) Commit(ctx context.Context, ref string) (string, error) {
	sha, _, err := c.gh.Repositories.GetCommitSHA1(ctx, c.owner, c.repo, ref, "")
	if err != nil {
		return "", fmt.Errorf("revision %s is not accessible: %w", ref, err)
	}
	return sha, nil
}

// WorkflowRuns lists the repository's workflow runs, newest first, fetching
// further pages as the caller keeps ranging.
func (c *Client) WorkflowRuns(ctx context.Context) iter.Seq2[Run, error] {
	return func(yield func(Run, error) bool) {
		opts := &github.ListWorkflowRunsOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		}

		for {
			runs, resp, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, c.owner, c.repo, opts)
			if err != nil {
				yield(Run{}, fmt.Errorf("error listing workflow runs: %w", err))
				return
			}

			for _, r := range runs.WorkflowRuns {
				if !yield(toRun(r), nil) {
					return
				}
			}

			if resp.NextPage == 0 {
				return
			}
			opts.Page = resp.NextPage
		}
	}
}

func (c *Client) HasArtifacts(ctx context.Context, runID int64) (bool, error) {
	list, _, err := c.gh.Actions.ListWorkflowRunArtifacts(ctx, c.owner, c.repo, runID, &github.ListOptions{PerPage: 1})
	if err != nil {
		return false, fmt.Errorf("error listing artifacts of run %d: %w", runID, err)
	}
	return list.GetTotalCount() > 0, nil
}

// artifactID finds the artifact called name among the run's artifacts.
func (c *Client) artifactID(ctx context.Context, runID int64, name string) (int64, error) {
	opts := &github.ListOptions{PerPage: 100}

	for {
		list, resp, err := c.gh.Actions.ListWorkflowRunArtifacts(ctx, c.owner, c.repo, runID, opts)
		if err != nil {
			return 0, fmt.Errorf("error listing artifacts of run %d: %w", runID, err)
		}

		for _, a := range list.Artifacts {
			if a.GetName() == name {
				return a.GetID(), nil
			}
		}

		if resp.NextPage == 0 {
			return 0, fmt.Errorf("%w: %s in run %d", ErrArtifactNotFound, name, runID)
		}
		opts.Page = resp.NextPage
	}
}

// archiveURL returns the short lived download location of an artifact zip.
func (c *Client) archiveURL(ctx context.Context, artifactID int64) (*url.URL, error) {
	u, _, err := c.gh.Actions.DownloadArtifact(ctx, c.owner, c.repo, artifactID, 1)
	if err != nil {
		return nil, fmt.Errorf("error resolving artifact %d download: %w", artifactID, err)
	}
	return u, nil
}

func toRun(r *github.WorkflowRun) Run {
	return Run{
		ID:         r.GetID(),
		HeadRepo:   r.GetHeadRepository().GetFullName(),
		HeadBranch: r.GetHeadBranch(),
		HeadSHA:    r.GetHeadSHA(),
		HTMLURL:    r.GetHTMLURL(),
		CreatedAt:  r.GetCreatedAt().Time,
	}
}
