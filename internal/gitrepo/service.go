// Package gitrepo reads project repositories from disk to render merge request diffs.
package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var ErrRepoNotFound = errors.New("repository not found")

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Diff returns the unified patch that turns baseSHA into headSHA.
func (s *Service) Diff(repoPath, baseSHA, headSHA string) (string, error) {
	lock := s.repoLock(repoPath)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(repoPath)
	if err != nil {
		return "", err
	}

	baseHash, err := resolveHash(repo, baseSHA)
	if err != nil {
		return "", err
	}
	headHash, err := resolveHash(repo, headSHA)
	if err != nil {
		return "", err
	}

	base, err := repo.CommitObject(baseHash)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", baseSHA, err)
	}
	head, err := repo.CommitObject(headHash)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", headSHA, err)
	}

	patch, err := base.Patch(head)
	if err != nil {
		return "", fmt.Errorf("diff %s..%s: %w", shortHash(baseSHA), shortHash(headSHA), err)
	}
	return patch.String(), nil
}

func (s *Service) open(repoPath string) (*git.Repository, error) {
	path, err := s.repoDir(repoPath)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, repoPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open repo %s: %w", repoPath, err)
	}
	return repo, nil
}

// repoDir maps a project path such as group/project to its directory,
// preferring a bare group/project.git checkout when present.
func (s *Service) repoDir(repoPath string) (string, error) {
	cleaned := filepath.Clean("/" + strings.TrimSpace(repoPath))
	if cleaned == "/" {
		return "", fmt.Errorf("%w: empty path", ErrRepoNotFound)
	}
	dir := filepath.Join(s.baseDir, cleaned)
	if _, err := os.Stat(dir + ".git"); err == nil {
		return dir + ".git", nil
	}
	return dir, nil
}

func (s *Service) repoLock(repoPath string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[repoPath]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[repoPath] = lock
	}
	return lock
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

func shortHash(input string) string {
	if len(input) <= 8 {
		return input
	}
	return input[:8]
}
