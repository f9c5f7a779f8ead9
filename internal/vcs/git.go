// Package vcs wraps the git binary for resolving and checking out encoder
// source revisions. All failures carry the tool's captured output.
package vcs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// RevisionError reports a revision spec that could not be resolved to a
// commit hash.
type RevisionError struct {
	Spec   string
	Output string
	Err    error
}

func (e *RevisionError) Error() string {
	return fmt.Sprintf("cannot resolve revision %q: %v\n%s", e.Spec, e.Err, e.Output)
}

func (e *RevisionError) Unwrap() error { return e.Err }

var fullHashPattern = regexp.MustCompile(`^[0-9a-f]{40,64}$`)

// Repo is a local clone of an encoder source repository.
type Repo struct {
	gitPath string
	dir     string
	remote  string
}

// NewRepo creates a handle for the clone at dir, cloned from remote when
// missing. The repository is not touched until Ensure is called.
func NewRepo(gitPath, dir, remote string) *Repo {
	if gitPath == "" {
		gitPath = "git"
	}
	return &Repo{gitPath: gitPath, dir: dir, remote: remote}
}

// Dir returns the local clone directory.
func (r *Repo) Dir() string { return r.dir }

// run executes git with the repository as working directory and returns
// its combined output.
func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, string(out))
	}
	return string(out), nil
}

// Ensure clones the remote if the local repository does not exist yet.
func (r *Repo) Ensure(ctx context.Context) error {
	if _, err := os.Stat(r.dir); err == nil {
		return nil
	}
	cmd := exec.CommandContext(ctx, r.gitPath, "clone", r.remote, r.dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone %s: %w\n%s", r.remote, err, string(out))
	}
	return nil
}

// Fetch updates the clone from its remote.
func (r *Repo) Fetch(ctx context.Context) error {
	_, err := r.run(ctx, "fetch", "--all")
	return err
}

// RevParse resolves a user-given revision spec ("master", a tag, a short
// hash) into the full commit hash.
func (r *Repo) RevParse(ctx context.Context, spec string) (string, error) {
	out, err := r.run(ctx, "rev-parse", spec)
	if err != nil {
		return "", &RevisionError{Spec: spec, Output: out, Err: err}
	}
	hash := strings.TrimSpace(out)
	if !fullHashPattern.MatchString(hash) {
		return "", &RevisionError{Spec: spec, Output: out, Err: fmt.Errorf("unexpected rev-parse output")}
	}
	return hash, nil
}

// Checkout moves the working tree to the given commit.
func (r *Repo) Checkout(ctx context.Context, hash string) error {
	_, err := r.run(ctx, "checkout", hash)
	return err
}
