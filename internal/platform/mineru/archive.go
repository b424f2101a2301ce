package mineru

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/phrazzld/docstream/internal/domain"
)

var imageExtensions = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
	".webp": "webp",
}

// maxEntryBytes guards against decompression bombs in a single archive member.
const maxEntryBytes = 64 << 20

// extractArchive reads the result archive: the markdown text (full.md when
// present, else the first .md file) and every image as an artifact whose id
// is "<session>_<n>" in archive order.
func extractArchive(data []byte, session string) (string, []domain.Artifact, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("open result archive: %w", err)
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX") {
			continue
		}
		files = append(files, f)
	}

	var mdFile *zip.File
	for _, f := range files {
		if path.Base(f.Name) == "full.md" {
			mdFile = f
			break
		}
		if mdFile == nil && strings.EqualFold(path.Ext(f.Name), ".md") {
			mdFile = f
		}
	}

	var text string
	if mdFile != nil {
		raw, err := readEntry(mdFile)
		if err != nil {
			return "", nil, err
		}
		text = strings.ToValidUTF8(string(raw), "")
	}

	var artifacts []domain.Artifact
	for _, f := range files {
		format, ok := imageExtensions[strings.ToLower(path.Ext(f.Name))]
		if !ok {
			continue
		}
		raw, err := readEntry(f)
		if err != nil {
			continue
		}
		n := len(artifacts)
		artifacts = append(artifacts, domain.Artifact{
			ID:       fmt.Sprintf("%s_%d", session, n),
			Format:   format,
			Filename: path.Base(f.Name),
			Page:     n + 1,
			Title:    fmt.Sprintf("Image %d", n+1),
			Category: "image",
			Data:     raw,
		})
	}

	return text, artifacts, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read archive entry %s: %w", f.Name, err)
	}
	if len(raw) > maxEntryBytes {
		return nil, fmt.Errorf("archive entry %s exceeds %d bytes", f.Name, maxEntryBytes)
	}
	return raw, nil
}
