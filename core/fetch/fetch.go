// Package fetch obtains a repository working copy for a job.
package fetch

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/atomiq/atomiq/core/infra/logging"
	"github.com/atomiq/atomiq/core/sandbox"
)

// ErrFetch marks any failure to obtain the repository.
var ErrFetch = errors.New("fetch repository")

var githubRepoRe = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

const zipFetchTimeout = 60 * time.Second

// Clone materializes the repository at destDir/repo via a shallow git
// clone. When git is unavailable or the clone fails, public GitHub
// repositories are fetched as a branch zip instead. On failure the repo
// dir is removed so the destination is fully populated or cleanly absent.
func Clone(ctx context.Context, repoURL, destDir string) (string, error) {
	repoDir := filepath.Join(destDir, "repo")
	if err := os.RemoveAll(repoDir); err != nil {
		return "", fmt.Errorf("%w: clear dest: %v", ErrFetch, err)
	}
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create dest: %v", ErrFetch, err)
	}

	cloneErr := gitClone(ctx, repoURL, repoDir)
	if cloneErr == nil {
		return repoDir, nil
	}
	logging.Warn("fetch", "git clone failed, trying zip fallback", "url", repoURL, "error", cloneErr)

	if err := zipFallback(ctx, repoURL, destDir, repoDir); err != nil {
		os.RemoveAll(repoDir)
		return "", fmt.Errorf("%w: %v (clone: %v)", ErrFetch, err, cloneErr)
	}
	return repoDir, nil
}

func gitClone(ctx context.Context, repoURL, repoDir string) error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git not available: %w", err)
	}
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", repoURL, repoDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone: %v %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// zipFallback downloads the main or master branch archive of a public
// GitHub repository and unpacks it into repoDir.
func zipFallback(ctx context.Context, repoURL, workDir, repoDir string) error {
	owner, repo, ok := ParseGitHubURL(repoURL)
	if !ok {
		return fmt.Errorf("url not recognized as a public github repo")
	}
	client := &http.Client{Timeout: zipFetchTimeout}
	for _, branch := range []string{"main", "master"} {
		zipURL := fmt.Sprintf("https://github.com/%s/%s/archive/refs/heads/%s.zip", owner, repo, branch)
		zipPath := filepath.Join(workDir, fmt.Sprintf("%s-%s.zip", repo, branch))
		if err := download(ctx, client, zipURL, zipPath); err != nil {
			logging.Warn("fetch", "branch zip unavailable", "branch", branch, "error", err)
			continue
		}
		prefix := fmt.Sprintf("%s-%s/", repo, branch)
		if err := unzipInto(zipPath, prefix, repoDir); err != nil {
			return err
		}
		os.Remove(zipPath)
		return nil
	}
	return fmt.Errorf("no downloadable branch zip for %s/%s", owner, repo)
}

// ParseGitHubURL extracts owner and repository name from a github.com URL.
func ParseGitHubURL(url string) (owner, repo string, ok bool) {
	m := githubRepoRe.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	repo = strings.TrimSuffix(m[2], ".git")
	if repo == "" {
		return "", "", false
	}
	return m[1], repo, true
}

func download(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d for %s", resp.StatusCode, url)
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}

// unzipInto extracts entries under prefix into repoDir, stripping the
// prefix. Entry paths resolve through the sandbox so a crafted archive
// cannot write outside the repo dir.
func unzipInto(zipPath, prefix, repoDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		name := strings.TrimPrefix(f.Name, prefix)
		if name == "" {
			continue
		}
		dest, err := sandbox.Resolve(repoDir, name)
		if err != nil {
			logging.Warn("fetch", "skipping unsafe zip entry", "entry", f.Name)
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(dest)
		if err != nil {
			rc.Close()
			return err
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return err
		}
		out.Close()
		rc.Close()
	}
	return nil
}
