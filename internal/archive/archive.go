package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/lights-manager/internal/config"
)

// Format is an archive kind recognised from a file name.
type Format int

const (
	// None is a plain file that is installed as-is.
	None Format = iota
	Zip
	Tar
	TarGz
	Gzip
	// Rar and SevenZip are recognised but cannot be unpacked.
	Rar
	SevenZip
)

var (
	// ErrUnsupportedArchive is returned for recognised formats that cannot be extracted.
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	// ErrUnsafePath is returned for entries that would land outside the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// Progress receives extraction progress in percent.
type Progress func(percent int)

// Classify recognises the archive format from the file name.
func Classify(name string) Format {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGz
	case strings.HasSuffix(lower, ".tar"):
		return Tar
	case strings.HasSuffix(lower, ".gz"):
		return Gzip
	case strings.HasSuffix(lower, ".zip"):
		return Zip
	case strings.HasSuffix(lower, ".rar"):
		return Rar
	case strings.HasSuffix(lower, ".7z"):
		return SevenZip
	default:
		return None
	}
}

// IsArchive reports whether name is an archive of any recognised format.
func IsArchive(name string) bool {
	return Classify(name) != None
}

// Supported returns ErrUnsupportedArchive for archives Extract cannot unpack.
func Supported(name string) error {
	switch Classify(name) {
	case Rar, SevenZip:
		return fmt.Errorf("%s: %w", filepath.Base(name), ErrUnsupportedArchive)
	default:
		return nil
	}
}

// Percent is the progress after entry i (zero based) of total: ceil((i+1)*100/total).
func Percent(i, total int) int {
	if total <= 0 {
		return 100
	}

	return int(math.Ceil(float64(i+1) * 100 / float64(total)))
}

// Extract unpacks the archive at src into dst and returns the relative paths
// of the top-level entries it created. A nil progress is allowed.
func Extract(src, dst string, progress Progress) ([]string, error) {
	if progress == nil {
		progress = func(int) {}
	}

	if err := Supported(src); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dst, config.DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	x := &extractor{dst: filepath.Clean(dst), top: make(map[string]struct{})}

	var err error

	switch Classify(src) {
	case Zip:
		err = x.zip(src, progress)
	case Tar:
		err = x.tarFile(src, false, progress)
	case TarGz:
		err = x.tarFile(src, true, progress)
	case Gzip:
		err = x.gzip(src, progress)
	default:
		return nil, fmt.Errorf("%s: not an archive: %w", filepath.Base(src), ErrUnsupportedArchive)
	}

	if err != nil {
		return nil, err
	}

	return x.topLevel(), nil
}

type extractor struct {
	dst string
	top map[string]struct{}
}

// target resolves an entry name under dst and remembers its top-level component.
func (x *extractor) target(name string) (string, error) {
	full, err := x.resolve(name)
	if err != nil {
		return "", err
	}

	if err = x.guard(name, full); err != nil {
		return "", err
	}

	rel, _ := filepath.Rel(x.dst, full)
	if first, _, _ := strings.Cut(filepath.ToSlash(rel), "/"); first != "." {
		x.top[first] = struct{}{}
	}

	return full, nil
}

// resolve maps an entry name under dst, rejecting absolute and escaping paths.
func (x *extractor) resolve(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) ||
		filepath.VolumeName(cleaned) != "" {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}

	full := filepath.Join(x.dst, cleaned)

	rel, err := filepath.Rel(x.dst, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}

	return full, nil
}

// guard rejects full when it, or any directory between dst and it, is an
// existing symlink: writes must never follow links created by the archive.
func (x *extractor) guard(name, full string) error {
	rel, err := filepath.Rel(x.dst, full)
	if err != nil {
		return fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}

	current := x.dst

	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." {
			continue
		}

		current = filepath.Join(current, part)

		info, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("inspect %s: %w", current, err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%q passes through symlink %q: %w", name, part, ErrUnsafePath)
		}
	}

	return nil
}

func (x *extractor) topLevel() []string {
	names := make([]string, 0, len(x.top))
	for name := range x.top {
		names = append(names, name)
	}

	return names
}

func (x *extractor) zip(src string, progress Progress) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for i, f := range zr.File {
		if err = x.zipEntry(f); err != nil {
			return err
		}

		progress(Percent(i, len(zr.File)))
	}

	return nil
}

func (x *extractor) zipEntry(f *zip.File) error {
	path, err := x.target(f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(path, config.DefaultDirPermissions)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	return writeFile(path, rc, f.Mode())
}

func (x *extractor) tarFile(src string, gzipped bool, progress Progress) error {
	// Tar streams have no index, so count the entries first.
	total, err := countTar(src, gzipped)
	if err != nil {
		return err
	}

	return withTarReader(src, gzipped, func(tr *tar.Reader) error {
		for i := 0; ; i++ {
			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}

			if err != nil {
				return fmt.Errorf("read tar: %w", err)
			}

			if err = x.tarEntry(hdr, tr); err != nil {
				return err
			}

			progress(Percent(i, total))
		}
	})
}

func (x *extractor) tarEntry(hdr *tar.Header, r io.Reader) error {
	path, err := x.target(hdr.Name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(path, config.DefaultDirPermissions)
	case tar.TypeReg:
		return writeFile(path, r, hdr.FileInfo().Mode())
	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return fmt.Errorf("%q -> %q: %w", hdr.Name, hdr.Linkname, ErrUnsafePath)
		}

		if _, err = x.resolve(filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil {
			return err
		}

		if err = os.MkdirAll(filepath.Dir(path), config.DefaultDirPermissions); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}

		return os.Symlink(hdr.Linkname, path)
	default:
		// Hard links, devices and FIFOs are not needed by release archives.
		return nil
	}
}

func (x *extractor) gzip(src string, progress Progress) error {
	f, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open gzip: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read gzip: %w", err)
	}
	defer gz.Close()

	name := gz.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}

	path, err := x.target(filepath.Base(name))
	if err != nil {
		return err
	}

	if err = writeFile(path, gz, 0o755); err != nil {
		return err
	}

	progress(Percent(0, 1))

	return nil
}

func countTar(src string, gzipped bool) (int, error) {
	total := 0

	err := withTarReader(src, gzipped, func(tr *tar.Reader) error {
		for {
			_, err := tr.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}

			if err != nil {
				return fmt.Errorf("read tar: %w", err)
			}

			total++
		}
	})

	return total, err
}

func withTarReader(src string, gzipped bool, fn func(*tar.Reader) error) error {
	f, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open tar: %w", err)
	}
	defer f.Close()

	var r io.Reader = f

	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("read gzip: %w", err)
		}
		defer gz.Close()

		r = gz
	}

	return fn(tar.NewReader(r))
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = config.DefaultFilePermissions
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err = io.Copy(out, r); err != nil {
		_ = out.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}
