// Package models provisions model files on local disk and holds the
// process-wide handles built from them.
package models

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Spec describes one model artifact. When Member is set, URL points at a
// zip archive and Path is filled from the archive entry with that base
// name. The archive is kept next to Path so sibling specs share it.
type Spec struct {
	Name   string
	Path   string
	URL    string
	Member string
	SHA256 string
}

// Fetcher makes sure model files exist locally, downloading the missing
// ones. It never retries.
type Fetcher struct {
	Client   *http.Client
	Progress io.Writer // nil disables the progress bar
}

// NewFetcher returns a fetcher drawing progress on w.
func NewFetcher(w io.Writer) *Fetcher {
	return &Fetcher{Client: http.DefaultClient, Progress: w}
}

// EnsureAll runs Ensure for every spec and stops at the first failure.
func (f *Fetcher) EnsureAll(ctx context.Context, specs []Spec) error {
	for _, s := range specs {
		if _, err := f.Ensure(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Ensure returns the local path of spec, downloading it first when the
// file is absent. A cached file is reused as long as its checksum matches.
func (f *Fetcher) Ensure(ctx context.Context, spec Spec) (string, error) {
	if spec.Path == "" {
		return "", fmt.Errorf("model %s: no path configured", spec.Name)
	}

	if _, err := os.Stat(spec.Path); err == nil {
		if err := verifyFile(spec.Path, spec.SHA256); err != nil {
			return "", fmt.Errorf("model %s: cached file: %w", spec.Name, err)
		}
		log.Debug().Str("model", spec.Name).Str("path", spec.Path).Msg("using cached model")
		return spec.Path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("model %s: %w", spec.Name, err)
	}

	if spec.URL == "" {
		return "", fmt.Errorf("model %s: %s not found and no download url configured", spec.Name, spec.Path)
	}

	log.Info().Str("model", spec.Name).Str("url", spec.URL).Msg("downloading model")
	if err := f.download(ctx, spec); err != nil {
		return "", fmt.Errorf("model %s: %w", spec.Name, err)
	}
	log.Info().Str("model", spec.Name).Str("path", spec.Path).Msg("model downloaded")
	return spec.Path, nil
}

func (f *Fetcher) download(ctx context.Context, spec Spec) error {
	if err := os.MkdirAll(filepath.Dir(spec.Path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if spec.Member == "" {
		return f.fetch(ctx, spec.Name, spec.URL, spec.Path, spec.SHA256)
	}

	archive := filepath.Join(filepath.Dir(spec.Path), archiveName(spec))
	if _, err := os.Stat(archive); errors.Is(err, os.ErrNotExist) {
		if err := f.fetch(ctx, spec.Name, spec.URL, archive, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		log.Debug().Str("model", spec.Name).Str("archive", archive).Msg("using cached archive")
	}
	return extract(archive, spec.Member, spec.Path, spec.SHA256)
}

// fetch streams url into dst through a .part file.
func (f *Fetcher) fetch(ctx context.Context, name, url, dst, want string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	part := dst + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create %s: %w", part, err)
	}
	defer os.Remove(part)

	hash := sha256.New()
	w := io.MultiWriter(out, hash)
	if f.Progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription("⬇️  "+name),
			progressbar.OptionSetWriter(f.Progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		w = io.MultiWriter(w, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", part, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", part, err)
	}

	if err := checkSum(hash.Sum(nil), want); err != nil {
		return err
	}
	return os.Rename(part, dst)
}

// extract copies the entry of archive whose base name is member to dst.
func extract(archive, member, dst, want string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	var entry *zip.File
	for _, zf := range zr.File {
		if !zf.FileInfo().IsDir() && path.Base(zf.Name) == member {
			entry = zf
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("%s not found in %s", member, filepath.Base(archive))
	}

	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer in.Close()

	part := dst + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create %s: %w", part, err)
	}
	defer os.Remove(part)

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hash), in); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", member, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", part, err)
	}

	if err := checkSum(hash.Sum(nil), want); err != nil {
		return err
	}
	log.Info().Str("archive", filepath.Base(archive)).Str("member", member).Msg("model extracted")
	return os.Rename(part, dst)
}

func archiveName(spec Spec) string {
	if u, err := url.Parse(spec.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return spec.Name + ".zip"
}

func verifyFile(path, want string) error {
	if want == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return err
	}
	return checkSum(hash.Sum(nil), want)
}

func checkSum(sum []byte, want string) error {
	if want == "" {
		return nil
	}
	got := hex.EncodeToString(sum)
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
	}
	return nil
}
