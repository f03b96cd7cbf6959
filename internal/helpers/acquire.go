package helpers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/levitate-os/recipe/internal/checksum"
	"github.com/levitate-os/recipe/internal/rerr"
	"go.starlark.net/starlark"
	"golang.org/x/sys/unix"
)

// acquireBuiltins groups download, the verify_* digest checks,
// fetch_sha256, http_get, git_clone, the GitHub release/tag lookups,
// plus the disk-space and filename-sanitation helpers.
func (r *Registry) acquireBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"download":              builtin("download", r.download),
		"verify_sha256":         builtin("verify_sha256", r.verifier(checksum.SHA256)),
		"verify_sha512":         builtin("verify_sha512", r.verifier(checksum.SHA512)),
		"verify_blake3":         builtin("verify_blake3", r.verifier(checksum.BLAKE3)),
		"fetch_sha256":          builtin("fetch_sha256", r.fetchSHA256),
		"http_get":              builtin("http_get", r.httpGet),
		"git_clone":             builtin("git_clone", r.gitClone),
		"github_latest_release": builtin("github_latest_release", r.githubLatestRelease),
		"github_latest_tag":     builtin("github_latest_tag", r.githubLatestTag),
		"check_disk_space":      builtin("check_disk_space", r.checkDiskSpace),
		"get_available_space":   builtin("get_available_space", r.getAvailableSpace),
		"format_bytes":          builtin("format_bytes", r.formatBytes),
		"url_filename":          builtin("url_filename", r.urlFilename),
	}
}

// download fetches url into <build_dir>/dest (dest may include
// subdirectories), records it as last_downloaded, and returns the
// absolute path. The body is copied to disk without a progress display;
// progress for large files is shown by the verify_* helpers instead.
func (r *Registry) download(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var url, dest string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &url, "dest", &dest); err != nil {
		return nil, err
	}

	destPath := filepath.Join(r.Ctx.BuildDir, dest)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "creating download destination dir", err)
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "building download request for "+url, err)
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, &rerr.RecipeError{Kind: rerr.IoError, Message: "downloading " + url, Path: url, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &rerr.RecipeError{Kind: rerr.IoError, Message: fmt.Sprintf("download %s: HTTP %d", url, resp.StatusCode), Path: url}
	}

	f, err := os.Create(destPath)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "creating download file "+destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return nil, &rerr.RecipeError{Kind: rerr.IoError, Message: "writing downloaded content for " + url, Path: destPath, Cause: err}
	}

	r.Ctx.SetLastDownloaded(destPath)
	r.Logger.Info("downloaded file", "url", url, "dest", destPath)
	return starlark.String(destPath), nil
}

// verifier returns a verify_<algo>(path, hex) builtin closed over algo.
func (r *Registry) verifier(algo checksum.Algorithm) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var path, hex string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path, "hex", &hex); err != nil {
			return nil, err
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.Ctx.BuildDir, path)
		}
		if err := checksum.VerifyFile(path, algo, hex, os.Stderr); err != nil {
			return nil, err
		}
		return starlark.None, nil
	}
}

// fetchSHA256 downloads a checksum file and extracts the SHA-256 line
// matching filename (BSD-style and GNU-style lines).
func (r *Registry) fetchSHA256(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var url, filename string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &url, "filename", &filename); err != nil {
		return nil, err
	}
	body, err := r.getBody(url)
	if err != nil {
		return nil, err
	}
	hex, ok := checksum.ParseChecksumFile(body, filename)
	if !ok {
		return nil, rerr.New(rerr.IoError, fmt.Sprintf("no sha256 entry for %s found in %s", filename, url))
	}
	return starlark.String(hex), nil
}

// httpGet returns the body of a GET request as a string.
func (r *Registry) httpGet(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var url string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &url); err != nil {
		return nil, err
	}
	body, err := r.getBody(url)
	if err != nil {
		return nil, err
	}
	return starlark.String(body), nil
}

func (r *Registry) getBody(url string) (string, error) {
	resp, err := r.HTTP.Get(url)
	if err != nil {
		return "", &rerr.RecipeError{Kind: rerr.IoError, Message: "GET " + url, Path: url, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &rerr.RecipeError{Kind: rerr.IoError, Message: fmt.Sprintf("GET %s: HTTP %d", url, resp.StatusCode), Path: url}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", rerr.Wrap(rerr.IoError, "reading response body for "+url, err)
	}
	return string(data), nil
}

// gitClone shallow-clones url into <build_dir>/dest, then checks out ref
// if given: a branch or tag resolves under the shallow clone directly; a
// bare commit SHA falls back to a full unshallow fetch when the shallow
// clone doesn't contain it.
func (r *Registry) gitClone(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var url, dest, ref string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &url, "dest", &dest, "ref?", &ref); err != nil {
		return nil, err
	}
	destPath := filepath.Join(r.Ctx.BuildDir, dest)

	cloneArgs := []string{"clone", "--depth", "1"}
	if ref != "" {
		cloneArgs = append(cloneArgs, "--branch", ref)
	}
	cloneArgs = append(cloneArgs, url, destPath)

	cmd := exec.Command("git", cloneArgs...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ref == "" {
			return nil, &rerr.RecipeError{Kind: rerr.CommandFailed, Message: "git clone " + url, Tail: string(out), Cause: err}
		}
		// ref may be a commit SHA unreachable under a shallow+branch
		// clone; retry as a full clone (the unshallow fetch after it is
		// best-effort) and check ref out from there.
		_ = os.RemoveAll(destPath)
		plain := exec.Command("git", "clone", url, destPath)
		if out2, err2 := plain.CombinedOutput(); err2 != nil {
			return nil, &rerr.RecipeError{Kind: rerr.CommandFailed, Message: "git clone " + url, Tail: string(out2), Cause: err2}
		}
		fetch := exec.Command("git", "fetch", "--unshallow")
		fetch.Dir = destPath
		_ = fetch.Run()
		checkout := exec.Command("git", "checkout", ref)
		checkout.Dir = destPath
		if out3, err3 := checkout.CombinedOutput(); err3 != nil {
			return nil, &rerr.RecipeError{Kind: rerr.CommandFailed, Message: "git checkout " + ref, Tail: string(out3), Cause: err3}
		}
	}

	r.Logger.Info("cloned repository", "url", url, "dest", destPath, "ref", ref)
	return starlark.String(destPath), nil
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("repo must be owner/name, got %q", repo)
	}
	return parts[0], parts[1], nil
}

func (r *Registry) githubLatestRelease(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var repo string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "repo", &repo); err != nil {
		return nil, err
	}
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "parsing repo", err)
	}
	release, _, err := r.GitHub.Repositories.GetLatestRelease(context.Background(), owner, name)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "fetching latest release for "+repo, err)
	}
	return starlark.String(release.GetTagName()), nil
}

func (r *Registry) githubLatestTag(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var repo string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "repo", &repo); err != nil {
		return nil, err
	}
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "parsing repo", err)
	}
	tags, _, err := r.GitHub.Repositories.ListTags(context.Background(), owner, name, nil)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "listing tags for "+repo, err)
	}
	if len(tags) == 0 {
		return nil, rerr.New(rerr.IoError, "no tags found for "+repo)
	}
	return starlark.String(tags[0].GetName()), nil
}

// checkDiskSpace fails if fewer than minBytes are available under path.
func (r *Registry) checkDiskSpace(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	var minBytes int64
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path, "min_bytes", &minBytes); err != nil {
		return nil, err
	}
	avail, err := availableSpace(path)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "statfs "+path, err)
	}
	if avail < uint64(minBytes) {
		return nil, rerr.New(rerr.IoError, fmt.Sprintf("insufficient disk space at %s: need %s, have %s", path, formatBytes(minBytes), formatBytes(int64(avail))))
	}
	return starlark.None, nil
}

func (r *Registry) getAvailableSpace(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	avail, err := availableSpace(path)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "statfs "+path, err)
	}
	return starlark.MakeUint64(avail), nil
}

func availableSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

func (r *Registry) formatBytes(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var n int64
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n", &n); err != nil {
		return nil, err
	}
	return starlark.String(formatBytes(n)), nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for n/div >= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// urlFilename infers a destination filename from a URL, stripping any
// query string or fragment and sanitizing it to a safe filename,
// exposed to recipes that want it without requiring the core download()
// helper to support filename inference itself.
func (r *Registry) urlFilename(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var url string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &url); err != nil {
		return nil, err
	}
	return starlark.String(sanitizeFilename(extractFilename(url))), nil
}

func extractFilename(url string) string {
	url = strings.SplitN(url, "?", 2)[0]
	url = strings.SplitN(url, "#", 2)[0]
	idx := strings.LastIndex(url, "/")
	if idx < 0 {
		return url
	}
	return url[idx+1:]
}

func sanitizeFilename(name string) string {
	if name == "" {
		return "download"
	}
	var sb strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
			sb.WriteRune(c)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
