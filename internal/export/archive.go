package export

import (
	"archive/zip"
	"bytes"
	"time"
)

// archive builds a zip whose bytes depend only on the entries added, so
// repeated exports of one session are identical.
type archive struct {
	buf      bytes.Buffer
	zw       *zip.Writer
	modified time.Time
}

func newArchive(modified time.Time) *archive {
	a := &archive{modified: modified.UTC()}
	if a.modified.IsZero() || a.modified.Year() < 1980 {
		a.modified = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	a.zw = zip.NewWriter(&a.buf)
	return a
}

func (a *archive) add(name string, data []byte, compress bool) error {
	method := zip.Store
	if compress {
		method = zip.Deflate
	}
	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: a.modified,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (a *archive) bytes() ([]byte, error) {
	if err := a.zw.Close(); err != nil {
		return nil, err
	}
	return a.buf.Bytes(), nil
}
