package zip

import (
	"archive/zip"
	"io"
	"path"
	"strings"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets writes assets to w as a zip archive. Entry names are reduced
// to their base name so an archive never carries directory components.
func ArchiveAssets(w io.Writer, assets []Asset) error {
	zw := zip.NewWriter(w)
	for _, asset := range assets {
		name := path.Base(strings.ReplaceAll(asset.Filename, "\\", "/"))
		if name == "." || name == "/" || name == "" {
			name = "asset"
		}
		fw, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := fw.Write(asset.Data); err != nil {
			return err
		}
	}
	return zw.Close()
}
