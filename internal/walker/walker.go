// Package walker traverses a project tree honoring .gitignore semantics,
// a hardcoded directory ignore list, and binary/sensitive file filters,
// producing the file stream the extractor consumes.
package walker

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/semcode-dev/semcode/internal/gitignore"
)

// DefaultMaxFileSize is the walker's default size cap (spec: 1 MiB).
const DefaultMaxFileSize = 1 << 20

// gitignoreCacheSize bounds the per-directory matcher cache.
const gitignoreCacheSize = 1000

// defaultIgnoreDirs are skipped regardless of .gitignore contents.
var defaultIgnoreDirs = map[string]bool{
	"node_modules": true,
	"target":       true,
	"build":        true,
	"dist":         true,
	".git":         true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".pixi":        true,
}

// binaryExtensions are skipped without a content sniff — the extension
// alone is decisive for these, matching the reference implementation's
// walker, which treats archives, media, model weights, and build
// artifacts as never worth opening. Expressed as gitignore-style glob
// patterns so they compile through the same Matcher as real .gitignore
// rules and sensitive-file patterns.
var binaryExtensions = []string{
	"*.pyc", "*.pyo", "*.o", "*.so", "*.dylib",
	"*.dll", "*.bin", "*.exe", "*.a", "*.lib",
	"*.zip", "*.tar", "*.gz", "*.bz2", "*.xz",
	"*.7z", "*.rar", "*.jar", "*.war", "*.whl",
	"*.pdf", "*.doc", "*.docx", "*.xls", "*.xlsx",
	"*.ppt", "*.pptx", "*.png", "*.jpg", "*.jpeg",
	"*.gif", "*.ico", "*.svg", "*.webp", "*.bmp",
	"*.tiff", "*.mp3", "*.mp4", "*.wav", "*.avi",
	"*.mov", "*.mkv", "*.db", "*.sqlite", "*.sqlite3",
	"*.pkl", "*.npy", "*.npz", "*.onnx", "*.pt",
	"*.pth", "*.safetensors", "*.lock",
}

// sensitiveFilePatterns are never indexed, even if not gitignored.
var sensitiveFilePatterns = []string{
	".env", ".env.*", "*.pem", "*.key", "*.p12", "*.pfx",
	"*credentials*", "*secrets*", "*password*", ".netrc", ".npmrc", ".pypirc",
	"id_rsa", "id_dsa", "id_ecdsa", "id_ed25519",
}

// File is one entry produced by a walk.
type File struct {
	AbsPath      string
	RelativePath string // POSIX form, relative to root
	MTimeNS      int64
	Size         int64
}

// Options configures a walk.
type Options struct {
	// MaxFileSize rejects files larger than this many bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64
	// ExcludeDirs are additional directories to skip, each a relative path
	// (skipped with everything below it), "path/**", or "**/name" (any
	// directory of that name). Wildcards are not expanded otherwise.
	ExcludeDirs []string
	// ExcludeFiles are additional glob-style file patterns to skip.
	ExcludeFiles []string
	// IndexDirName is the marker directory name to always skip (it is the
	// index's own storage, never indexable content).
	IndexDirName string
	// FollowSymlinks enables following symbolic links (default: false).
	FollowSymlinks bool
	// IncludeHidden indexes dot-prefixed files and directories (default: false).
	IncludeHidden bool
}

// Walker discovers indexable files beneath a root, caching parsed
// .gitignore matchers with bounded memory.
type Walker struct {
	mu               sync.Mutex
	gitignoreCache   *lru.Cache[string, *gitignore.Matcher]
	visitedDirs      map[string]bool
	sensitiveMatcher *gitignore.Matcher
	binaryMatcher    *gitignore.Matcher
}

// New builds a Walker.
func New() (*Walker, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("walker: building gitignore cache: %w", err)
	}
	return &Walker{
		gitignoreCache:   cache,
		sensitiveMatcher: gitignore.NewFromPatterns(sensitiveFilePatterns),
		binaryMatcher:    gitignore.NewFromPatterns(binaryExtensions),
	}, nil
}

// Scan walks root and invokes visit for every indexable file, including
// its bytes-readable guarantee: the caller may open AbsPath immediately.
func (w *Walker) Scan(ctx context.Context, root string, opts Options, visit func(File) error) error {
	return w.walk(ctx, root, opts, true, visit)
}

// ScanMetadata is Scan without the readability guarantee — used by the
// freshness path, which only needs (path, mtime, size) to detect change.
func (w *Walker) ScanMetadata(ctx context.Context, root string, opts Options, visit func(File) error) error {
	return w.walk(ctx, root, opts, false, visit)
}

func (w *Walker) walk(ctx context.Context, root string, opts Options, checkBinary bool, visit func(File) error) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("walker: resolving root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("walker: stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("walker: root is not a directory: %s", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	w.mu.Lock()
	w.visitedDirs = make(map[string]bool)
	w.mu.Unlock()

	excludeFiles := gitignore.NewFromPatterns(opts.ExcludeFiles)

	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil // inaccessible directories are skipped, not fatal
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if w.shouldSkipDir(d.Name(), relPath, opts) {
				return filepath.SkipDir
			}
			return w.checkSymlinkCycle(path, opts)
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if w.shouldSkipFile(relPath, absRoot, opts, excludeFiles) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.Size() > maxSize {
			return nil
		}
		if checkBinary && w.isBinary(path, relPath) {
			return nil
		}

		return visit(File{
			AbsPath:      path,
			RelativePath: relPath,
			MTimeNS:      fi.ModTime().UnixNano(),
			Size:         fi.Size(),
		})
	})
}

func (w *Walker) checkSymlinkCycle(dir string, opts Options) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.visitedDirs[real] {
		return filepath.SkipDir
	}
	w.visitedDirs[real] = true
	return nil
}

func (w *Walker) shouldSkipDir(name, relPath string, opts Options) bool {
	if defaultIgnoreDirs[name] {
		return true
	}
	if opts.IndexDirName != "" && name == opts.IndexDirName {
		return true
	}
	if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, pattern := range opts.ExcludeDirs {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

func (w *Walker) shouldSkipFile(relPath, absRoot string, opts Options, excludeFiles *gitignore.Matcher) bool {
	base := filepath.Base(relPath)

	if !opts.IncludeHidden && strings.HasPrefix(base, ".") {
		return true
	}
	if w.sensitiveMatcher.Match(base, false) {
		return true
	}
	if excludeFiles.Match(base, false) {
		return true
	}
	return w.isGitignored(relPath, absRoot)
}

func (w *Walker) isBinary(absPath, relPath string) bool {
	base := strings.ToLower(filepath.Base(relPath))
	if w.binaryMatcher.Match(base, false) {
		return true
	}
	// Ambiguous extension (unknown or none): sniff the first 8KiB for a
	// null byte rather than trust the name.
	f, err := os.Open(absPath)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, 8192)
	n, _ := f.Read(buf)
	return bytes.Contains(buf[:n], []byte{0})
}

func (w *Walker) isGitignored(relPath, absRoot string) bool {
	if m := w.matcherFor(absRoot, ""); m != nil && m.Match(relPath, false) {
		return true
	}
	dir := filepath.Dir(relPath)
	if dir == "." {
		return false
	}
	cur := absRoot
	base := ""
	for _, part := range strings.Split(dir, "/") {
		cur = filepath.Join(cur, part)
		if base == "" {
			base = part
		} else {
			base = base + "/" + part
		}
		if m := w.matcherFor(cur, base); m != nil && m.Match(relPath, false) {
			return true
		}
	}
	return false
}

func (w *Walker) matcherFor(dir, base string) *gitignore.Matcher {
	w.mu.Lock()
	m, ok := w.gitignoreCache.Get(dir)
	w.mu.Unlock()
	if ok {
		return m
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err != nil {
		return nil
	}
	m = gitignore.New()
	if err := m.AddFromFile(gitignorePath, base); err != nil {
		return nil
	}

	w.mu.Lock()
	w.gitignoreCache.Add(dir, m)
	w.mu.Unlock()
	return m
}

// matchDirPattern mirrors the teacher's "**/name/**" and "name/**"
// exclude-pattern conventions for directories.
func matchDirPattern(relPath, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
		for _, part := range strings.Split(relPath, "/") {
			if part == suffix {
				return true
			}
		}
		return false
	}
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+"/")
	}
	return relPath == pattern || strings.HasPrefix(relPath, pattern+"/")
}
