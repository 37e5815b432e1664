package install

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/slok/botctl/internal/model"
)

func openDownload(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	return resp, nil
}

func downloadFile(ctx context.Context, client *http.Client, url, dstPath string, onProgress ProgressFn) error {
	resp, err := openDownload(ctx, client, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", dstPath, err)
	}
	defer f.Close()

	pw := NewProgressWriter(f, resp.ContentLength, onProgress)
	if _, err := io.Copy(pw, resp.Body); err != nil {
		f.Close()
		os.Remove(dstPath)
		return fmt.Errorf("writing file %s: %w", dstPath, err)
	}

	return nil
}

// downloadAndExtract streams a .tar.gz and extracts it into dstDir.
func downloadAndExtract(ctx context.Context, client *http.Client, url, dstDir string, stripComponents int, onProgress ProgressFn) error {
	resp, err := openDownload(ctx, client, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	pw := NewProgressWriter(io.Discard, resp.ContentLength, onProgress)
	reader := io.TeeReader(resp.Body, pw)

	return extractTarGz(reader, dstDir, stripComponents)
}

// extractTarGz extracts a gzipped tarball into dstDir dropping the first stripComponents path
// components. Entries or links that would land outside dstDir are rejected, symlinks
// extracted earlier in the same tarball included.
func extractTarGz(r io.Reader, dstDir string, stripComponents int) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("decompressing tgz: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dstDir, err)
	}
	root, err := filepath.EvalSymlinks(dstDir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dstDir, err)
	}

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		rel, ok := stripPath(header.Name, stripComponents)
		if !ok {
			continue
		}
		target, err := entryPath(root, rel)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating dir %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := removeSymlink(target); err != nil {
				return err
			}
			if err := writeFile(target, tr, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf("absolute symlink %q -> %q: %w", header.Name, header.Linkname, model.ErrNotValid)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating dir for %s: %w", target, err)
			}
			if _, err := resolveIn(root, filepath.Dir(target), header.Linkname); err != nil {
				return fmt.Errorf("symlink %q: %w", header.Name, err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink %s: %w", target, err)
			}

		case tar.TypeLink:
			linkRel, ok := stripPath(header.Linkname, stripComponents)
			if !ok {
				return fmt.Errorf("hard link %q has an invalid target: %w", header.Name, model.ErrNotValid)
			}
			linkTarget, err := entryPath(root, linkRel)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Link(linkTarget, target); err != nil {
				return fmt.Errorf("creating hard link %s: %w", target, err)
			}
		}
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating dir for %s: %w", target, err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", target, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("extracting file %s: %w", target, err)
	}

	return nil
}

func stripPath(name string, components int) (string, bool) {
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	parts := strings.Split(clean, "/")
	if len(parts) <= components {
		return "", false
	}

	rel := strings.Join(parts[components:], "/")
	if rel == "" || rel == "." {
		return "", false
	}
	return rel, true
}

// entryPath returns where rel is extracted. The parent dirs are resolved through the
// symlinks already on disk, the last element is never followed.
func entryPath(root, rel string) (string, error) {
	parent, err := resolveIn(root, root, path.Dir(rel))
	if err != nil {
		return "", fmt.Errorf("tar entry %q: %w", rel, err)
	}
	target := filepath.Join(parent, path.Base(rel))
	if !within(root, target) {
		return "", fmt.Errorf("tar entry %q escapes the install dir: %w", rel, model.ErrNotValid)
	}
	return target, nil
}

// resolveIn walks rel from base one element at a time following the existing symlinks,
// failing as soon as the path leaves root.
func resolveIn(root, base, rel string) (string, error) {
	current := base
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			current = filepath.Dir(current)
		default:
			current = filepath.Join(current, part)
			info, err := os.Lstat(current)
			switch {
			case errors.Is(err, fs.ErrNotExist):
			case err != nil:
				return "", fmt.Errorf("checking %s: %w", current, err)
			case info.Mode()&fs.ModeSymlink != 0:
				resolved, err := filepath.EvalSymlinks(current)
				if err != nil {
					return "", fmt.Errorf("resolving %s: %w: %w", current, model.ErrNotValid, err)
				}
				current = resolved
			}
		}

		if !within(root, current) {
			return "", fmt.Errorf("path %q escapes the install dir: %w", rel, model.ErrNotValid)
		}
	}

	return current, nil
}

func removeSymlink(target string) error {
	info, err := os.Lstat(target)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return nil
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("replacing symlink %s: %w", target, err)
	}
	return nil
}

func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
