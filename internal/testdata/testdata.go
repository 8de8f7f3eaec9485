// Package testdata resolves a problem id to its ordered test cases,
// mirroring the blob store's test-data objects into an on-disk cache.
package testdata

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jjudge-oj/judge-worker/internal/storage"
	"github.com/jjudge-oj/judge-worker/types"
)

// caseFilePattern matches "<name>-<N>.in" / "<name>-<N>.out".
var caseFilePattern = regexp.MustCompile(`^.+-(\d+)\.(in|out)$`)

// Provider fetches and caches per-problem test cases.
type Provider struct {
	backend        storage.ObjectStorage
	problemRoot    string // root directory holding per-problem test data caches
	testDataPrefix string // e.g. "problems/%s/test_data/"

	mu     sync.Mutex
	locks  map[int64]*sync.Mutex // per-problem cold-download lock
}

// NewProvider builds a Provider backed by backend, caching under problemRoot.
func NewProvider(backend storage.ObjectStorage, problemRoot, testDataPrefix string) *Provider {
	return &Provider{
		backend:        backend,
		problemRoot:    problemRoot,
		testDataPrefix: testDataPrefix,
		locks:          make(map[int64]*sync.Mutex),
	}
}

// Fetch resolves problemID to its ordered (input, expected) pairs.
func (p *Provider) Fetch(ctx context.Context, problemID int64) ([]types.TestCase, error) {
	dir := filepath.Join(p.problemRoot, fmt.Sprintf("%d", problemID), "test_data")

	if !hasEntries(dir) {
		if err := p.downloadColdProblem(ctx, problemID, dir); err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("testdata: read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	ins, outs, err := sortTestFiles(names)
	if err != nil {
		return nil, err
	}

	cases := make([]types.TestCase, 0, len(ins))
	for i := range ins {
		input, err := os.ReadFile(filepath.Join(dir, ins[i]))
		if err != nil {
			return nil, fmt.Errorf("testdata: read %s: %w", ins[i], err)
		}
		expected, err := os.ReadFile(filepath.Join(dir, outs[i]))
		if err != nil {
			return nil, fmt.Errorf("testdata: read %s: %w", outs[i], err)
		}
		cases = append(cases, types.TestCase{Input: string(input), Expected: string(expected)})
	}
	return cases, nil
}

func hasEntries(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// downloadColdProblem mirrors every object under the problem's test-data
// prefix into a sibling temp directory, then publishes it into dir via an
// atomic rename. A per-problem mutex plus the re-check of hasEntries after
// acquiring it means a second concurrent cold-downloader's rename becomes a
// no-op once the first has published.
func (p *Provider) downloadColdProblem(ctx context.Context, problemID int64, dir string) error {
	lock := p.lockFor(problemID)
	lock.Lock()
	defer lock.Unlock()

	if hasEntries(dir) {
		return nil
	}

	prefix := fmt.Sprintf(p.testDataPrefix, fmt.Sprintf("%d", problemID))
	keys, err := p.backend.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("testdata: list %s: %w", prefix, err)
	}

	stagingDir := dir + ".staging"
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("testdata: clear staging dir: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return fmt.Errorf("testdata: create staging dir: %w", err)
	}

	if len(keys) > 0 {
		for _, key := range keys {
			if err := p.downloadOne(ctx, key, filepath.Join(stagingDir, filepath.Base(key))); err != nil {
				os.RemoveAll(stagingDir)
				return err
			}
		}
	} else if bundleErr := p.downloadBundle(ctx, problemID, stagingDir); bundleErr != nil {
		os.RemoveAll(stagingDir)
		if errors.Is(bundleErr, ErrNoTestData) {
			return fmt.Errorf("testdata: %w: no test data for problem %d", ErrNoTestData, problemID)
		}
		return bundleErr
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		os.RemoveAll(stagingDir)
		return fmt.Errorf("testdata: create parent dir: %w", err)
	}
	if err := os.Rename(stagingDir, dir); err != nil {
		// Another downloader published first; staging becomes orphaned
		// only if the rename genuinely failed, not on EEXIST-style races
		// where the destination already has content.
		if hasEntries(dir) {
			os.RemoveAll(stagingDir)
			return nil
		}
		return fmt.Errorf("testdata: publish %s: %w", dir, err)
	}
	return nil
}

// downloadBundle fetches problems/<problem_id>/test_data.tar.gz and
// extracts its paired .in/.out entries into destDir. This is the
// supplementary pre-packed bundle format; the per-object layout above is
// always tried first.
func (p *Provider) downloadBundle(ctx context.Context, problemID int64, destDir string) error {
	bundleKey := fmt.Sprintf("problems/%d/test_data.tar.gz", problemID)
	reader, err := p.backend.Get(ctx, bundleKey)
	if err != nil {
		return fmt.Errorf("%w: bundle %s unavailable: %v", ErrNoTestData, bundleKey, err)
	}
	defer reader.Close()

	gz, err := gzip.NewReader(reader)
	if err != nil {
		return fmt.Errorf("testdata: open gzip bundle: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	found := false
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("testdata: read bundle entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.Base(header.Name)
		if !strings.HasSuffix(name, ".in") && !strings.HasSuffix(name, ".out") {
			continue
		}
		found = true
		if err := extractBundleEntry(tr, filepath.Join(destDir, name)); err != nil {
			return err
		}
	}
	if !found {
		return fmt.Errorf("%w: bundle contained no test files", ErrNoTestData)
	}
	return nil
}

func extractBundleEntry(r io.Reader, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("testdata: create %s: %w", dest, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("testdata: write %s: %w", dest, err)
	}
	return nil
}

func (p *Provider) downloadOne(ctx context.Context, key, dest string) error {
	reader, err := p.backend.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("testdata: download %s: %w", key, err)
	}
	defer reader.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("testdata: create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("testdata: write %s: %w", dest, err)
	}
	return nil
}

func (p *Provider) lockFor(problemID int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[problemID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[problemID] = lock
	}
	return lock
}

// sortTestFiles filters filenames to the -N.(in|out) pattern, pairs them by
// N, and sorts ascending numerically.
func sortTestFiles(filenames []string) (ins, outs []string, err error) {
	type numbered struct {
		name string
		n    int
	}
	var inFiles, outFiles []numbered

	for _, f := range filenames {
		m := caseFilePattern.FindStringSubmatch(f)
		if m == nil {
			continue
		}
		n, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			continue
		}
		switch {
		case strings.HasSuffix(f, ".in"):
			inFiles = append(inFiles, numbered{f, n})
		case strings.HasSuffix(f, ".out"):
			outFiles = append(outFiles, numbered{f, n})
		}
	}

	if len(inFiles) == 0 && len(outFiles) == 0 {
		return nil, nil, fmt.Errorf("testdata: %w: no test files matched the expected pattern", ErrBadTestData)
	}

	sort.Slice(inFiles, func(i, j int) bool { return inFiles[i].n < inFiles[j].n })
	sort.Slice(outFiles, func(i, j int) bool { return outFiles[i].n < outFiles[j].n })

	if len(inFiles) != len(outFiles) {
		return nil, nil, fmt.Errorf("testdata: %w: %d input files, %d output files", ErrBadTestData, len(inFiles), len(outFiles))
	}
	for i := range inFiles {
		if inFiles[i].n != outFiles[i].n {
			return nil, nil, fmt.Errorf("testdata: %w: test case numbering mismatch at index %d", ErrBadTestData, i)
		}
		ins = append(ins, inFiles[i].name)
		outs = append(outs, outFiles[i].name)
	}
	return ins, outs, nil
}
