package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/integrity"
	"github.com/wippyai/wasm-distributed/location"
)

// maxEntrySize bounds decompressed archive entries.
const maxEntrySize = 64 << 20

// Archive builds a zip holding payload and its SRI digest under the entry
// names derived from name.
func Archive(name, suffix, ext string, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entries := []struct {
		name string
		data []byte
	}{
		{location.PayloadEntry(name, suffix, ext), payload},
		{location.DigestEntry(name, suffix, ext), []byte(integrity.Digest(payload))},
	}
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Extract reads the payload and its digest from an archive. Both entries
// must be present and non-empty.
func Extract(archive []byte, name, suffix, ext string) ([]byte, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, "", errors.ParseFailure(errors.PhaseImport, "archive", err)
	}

	payloadName := location.PayloadEntry(name, suffix, ext)
	digestName := location.DigestEntry(name, suffix, ext)

	var payload, sri []byte
	for _, f := range zr.File {
		switch f.Name {
		case payloadName:
			payload, err = readEntry(f)
		case digestName:
			sri, err = readEntry(f)
		default:
			continue
		}
		if err != nil {
			return nil, "", errors.ParseFailure(errors.PhaseImport, "archive entry "+f.Name, err)
		}
	}

	if len(payload) == 0 || len(bytes.TrimSpace(sri)) == 0 {
		return nil, "", errors.New(errors.PhaseImport, errors.KindLoadFailure).
			Module(name).
			Detail("could not get valid content from archive: need %s and %s", payloadName, digestName).
			Build()
	}
	return payload, string(bytes.TrimSpace(sri)), nil
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxEntrySize {
		return nil, fmt.Errorf("entry too large: %d bytes", f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxEntrySize))
}
