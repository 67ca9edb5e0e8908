// Package gitrepo serves templates and their manifest from a git repository,
// so every template change is a versioned commit.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"exchangedocs/internal/config"
	"exchangedocs/internal/generate"
	"exchangedocs/internal/resolve"
)

const (
	mainBranch   = "main"
	manifestFile = "templates.toml"
)

// Extensions a template file may carry, in lookup order.
var Extensions = []string{".docx", ".txt", ".pdf"}

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

var ErrInvalidTemplate = errors.New("invalid template")

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Library is a template repository rooted at one directory. Reads resolve
// the head of main.
type Library struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func New(dir string) *Library {
	return &Library{dir: dir, now: time.Now}
}

// Commit stores content as <templateID><ext>, replacing any other format of
// the same template.
func (l *Library) Commit(templateID, ext string, content []byte, author, message string) (CommitInfo, error) {
	if !validID.MatchString(templateID) {
		return CommitInfo{}, fmt.Errorf("%w: id %q", ErrInvalidTemplate, templateID)
	}
	ext = strings.ToLower(ext)
	if !knownExt(ext) {
		return CommitInfo{}, fmt.Errorf("%w: extension %q", ErrInvalidTemplate, ext)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	repo, err := l.ensureRepo()
	if err != nil {
		return CommitInfo{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	for _, other := range Extensions {
		if other == ext {
			continue
		}
		name := templateID + other
		if _, err := os.Stat(filepath.Join(l.dir, name)); err == nil {
			if _, err := worktree.Remove(name); err != nil {
				return CommitInfo{}, fmt.Errorf("git rm %s: %w", name, err)
			}
		}
	}
	if message == "" {
		message = "Update template " + templateID
	}
	return l.commitFile(repo, templateID+ext, content, author, message)
}

// CommitManifest validates and commits templates.toml.
func (l *Library) CommitManifest(data []byte, author, message string) (CommitInfo, error) {
	if _, err := config.ParseManifest(data); err != nil {
		return CommitInfo{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	repo, err := l.ensureRepo()
	if err != nil {
		return CommitInfo{}, err
	}
	if message == "" {
		message = "Update template manifest"
	}
	return l.commitFile(repo, manifestFile, data, author, message)
}

// GetTemplate returns the template at the head of main. The manifest supplies
// the display name when it lists the template.
func (l *Library) GetTemplate(_ context.Context, templateID string) (generate.Template, error) {
	if !validID.MatchString(templateID) {
		return generate.Template{}, fmt.Errorf("%w: %s", generate.ErrTemplateNotFound, templateID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.head()
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return generate.Template{}, fmt.Errorf("%w: %s", generate.ErrTemplateNotFound, templateID)
		}
		return generate.Template{}, err
	}
	return templateFromCommit(head, templateID)
}

// GetTemplateAt returns the template as of the given commit.
func (l *Library) GetTemplateAt(templateID, hash string) (generate.Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	repo, err := git.PlainOpen(l.dir)
	if err != nil {
		return generate.Template{}, fmt.Errorf("open repo: %w", err)
	}
	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return generate.Template{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return generate.Template{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return templateFromCommit(commitObj, templateID)
}

// Manifest returns templates.toml at the head of main, or an empty manifest.
func (l *Library) Manifest() (*config.Manifest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.head()
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return &config.Manifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	return manifestFromCommit(head)
}

// Requirements reads the template's policy from the committed manifest.
func (l *Library) Requirements(_ context.Context, templateID string) (resolve.Policy, error) {
	m, err := l.Manifest()
	if err != nil {
		return resolve.Policy{}, err
	}
	return m.Policy(templateID), nil
}

// History lists commits on main that touched the template, newest first.
func (l *Library) History(templateID string, limit int) ([]CommitInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	repo, err := git.PlainOpen(l.dir)
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}

	iter, err := repo.Log(&git.LogOptions{
		From: ref.Hash(),
		PathFilter: func(p string) bool {
			return strings.TrimSuffix(p, filepath.Ext(p)) == templateID
		},
	})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (l *Library) ensureRepo() (*git.Repository, error) {
	repo, err := git.PlainOpen(l.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInitWithOptions(l.dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(mainBranch)},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (l *Library) head() (*object.Commit, error) {
	repo, err := git.PlainOpen(l.dir)
	if err != nil {
		return nil, err
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, git.ErrRepositoryNotExists
		}
		return nil, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commitObj, nil
}

func (l *Library) commitFile(repo *git.Repository, name string, content []byte, author, message string) (CommitInfo, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, name), content, 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := worktree.Add(name); err != nil {
		return CommitInfo{}, fmt.Errorf("git add %s: %w", name, err)
	}
	if author == "" {
		author = "exchangedocs"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.exchangedocs.dev", sanitizeEmail(author)),
			When:  l.now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit %s: %w", name, err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

func templateFromCommit(commitObj *object.Commit, templateID string) (generate.Template, error) {
	for _, ext := range Extensions {
		name := templateID + ext
		content, err := readFile(commitObj, name)
		if errors.Is(err, object.ErrFileNotFound) {
			continue
		}
		if err != nil {
			return generate.Template{}, err
		}
		tpl := generate.Template{ID: templateID, Name: templateID, Content: content, ObjectPath: name}
		if m, err := manifestFromCommit(commitObj); err == nil {
			if entry, ok := m.Lookup(templateID); ok && entry.Name != "" {
				tpl.Name = entry.Name
			}
		}
		return tpl, nil
	}
	return generate.Template{}, fmt.Errorf("%w: %s", generate.ErrTemplateNotFound, templateID)
}

func manifestFromCommit(commitObj *object.Commit) (*config.Manifest, error) {
	data, err := readFile(commitObj, manifestFile)
	if errors.Is(err, object.ErrFileNotFound) {
		return &config.Manifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	return config.ParseManifest(data)
}

func readFile(commitObj *object.Commit, name string) ([]byte, error) {
	file, err := commitObj.File(name)
	if err != nil {
		return nil, err
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open %s reader: %w", name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func knownExt(ext string) bool {
	for _, known := range Extensions {
		if ext == known {
			return true
		}
	}
	return false
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
