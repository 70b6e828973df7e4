package storage

import (
	"context"
	"fmt"
	"net/http"

	"capybara/logging"

	"github.com/google/go-github/v66/github"
	"go.uber.org/zap"
)

const (
	PagesBranch = "gh-pages"
	noJekyll    = ".nojekyll"
)

// GitHubPages commits files to the gh-pages branch of a repository.
type GitHubPages struct {
	gh    *github.Client
	owner string
	repo  string
}

// NewGitHubPages resolves the target repository, creating it and its
// gh-pages branch when missing. An empty owner means the token's user.
func NewGitHubPages(ctx context.Context, gh *github.Client, owner, repo string) (*GitHubPages, error) {
	log := logging.FromContext(ctx)

	user, _, err := gh.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("resolving the token's user: %w", err)
	}
	if owner == "" {
		owner = user.GetLogin()
	}

	repository, resp, err := gh.Repositories.Get(ctx, owner, repo)
	if isNotFound(resp) {
		log.Warn("repository is not available, attempting to create it", zap.String("repo", owner+"/"+repo))

		org := ""
		if owner != user.GetLogin() {
			org = owner
		}
		repository, _, err = gh.Repositories.Create(ctx, org, &github.Repository{
			Name:     github.String(repo),
			AutoInit: github.Bool(true),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("resolving %s/%s: %w", owner, repo, err)
	}

	p := &GitHubPages{gh: gh, owner: owner, repo: repository.GetName()}

	if err := p.ensureBranch(ctx, repository.GetDefaultBranch()); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *GitHubPages) ensureBranch(ctx context.Context, from string) error {
	_, resp, err := p.gh.Git.GetRef(ctx, p.owner, p.repo, "heads/"+PagesBranch)
	if err == nil {
		return nil
	}
	if !isNotFound(resp) {
		return err
	}

	base, _, err := p.gh.Git.GetRef(ctx, p.owner, p.repo, "heads/"+from)
	if err != nil {
		return fmt.Errorf("reading branch %s: %w", from, err)
	}

	_, _, err = p.gh.Git.CreateRef(ctx, p.owner, p.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + PagesBranch),
		Object: &github.GitObject{SHA: base.GetObject().SHA},
	})
	if err != nil {
		return fmt.Errorf("creating branch %s: %w", PagesBranch, err)
	}

	logging.FromContext(ctx).Info("created branch", zap.String("branch", PagesBranch))
	return nil
}

// Put commits one file. Paths are content addressed, so a file that already
// exists is left alone.
func (p *GitHubPages) Put(ctx context.Context, path string, content []byte) error {
	_, resp, err := p.gh.Repositories.CreateFile(ctx, p.owner, p.repo, path, &github.RepositoryContentFileOptions{
		Message: github.String("Adding " + path),
		Content: content,
		Branch:  github.String(PagesBranch),
	})
	if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
		logging.FromContext(ctx).Info("already published", zap.String("path", path))
		return nil
	}
	return err
}

func (p *GitHubPages) Finish(ctx context.Context, prefix string) (string, error) {
	_, _, resp, err := p.gh.Repositories.GetContents(ctx, p.owner, p.repo, noJekyll, &github.RepositoryContentGetOptions{
		Ref: PagesBranch,
	})
	switch {
	case isNotFound(resp):
		if err := p.Put(ctx, noJekyll, []byte{}); err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	}

	return p.URL(prefix), nil
}

func (p *GitHubPages) URL(prefix string) string {
	return fmt.Sprintf("https://%s.github.io/%s/%s/", p.owner, p.repo, prefix)
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}
