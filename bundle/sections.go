package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/wippyai/wasm-distributed/errors"
)

// Section is one framed section of a module.
// Name is set for custom sections only; Data excludes the name.
type Section struct {
	Name string
	Data []byte
	ID   byte
}

// Header returns the module preamble.
func Header() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], Magic)
	binary.LittleEndian.PutUint32(b[4:8], Version)
	return b
}

// Sections splits a module into its sections in file order.
func Sections(wasm []byte) ([]Section, error) {
	if len(wasm) < 8 {
		return nil, parseErr("module header", io.ErrUnexpectedEOF)
	}
	if binary.LittleEndian.Uint32(wasm[0:4]) != Magic {
		return nil, parseErr("module header", fmt.Errorf("bad magic %x", wasm[0:4]))
	}
	if v := binary.LittleEndian.Uint32(wasm[4:8]); v != Version {
		return nil, parseErr("module header", fmt.Errorf("unsupported version %d", v))
	}

	r := bytes.NewReader(wasm[8:])
	var out []Section
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		size, err := readLEB128u(r)
		if err != nil {
			return nil, parseErr("section size", err)
		}
		if int(size) > r.Len() {
			return nil, parseErr("section", fmt.Errorf("section %d size %d exceeds remaining %d bytes", id, size, r.Len()))
		}
		data := make([]byte, size)
		_, _ = io.ReadFull(r, data)

		sec := Section{ID: id, Data: data}
		if id == SectionCustom {
			name, rest, err := readName(data)
			if err != nil {
				return nil, parseErr("custom section name", err)
			}
			sec.Name = name
			sec.Data = rest
		}
		out = append(out, sec)
	}
	return out, nil
}

// CustomSections returns the payload of every custom section in the bundle
// namespace, keyed by section name. A repeated section keeps the last payload.
func CustomSections(wasm []byte) (map[string][]byte, error) {
	secs, err := Sections(wasm)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	for _, s := range secs {
		if s.ID != SectionCustom {
			continue
		}
		if _, ok := ExportName(s.Name); ok {
			out[s.Name] = s.Data
		}
	}
	return out, nil
}

// AppendSection appends a framed section to a module.
func AppendSection(wasm []byte, id byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(wasm)
	buf.WriteByte(id)
	writeLEB128u(&buf, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// AppendCustom appends a named custom section to a module.
func AppendCustom(wasm []byte, name string, data []byte) []byte {
	var payload bytes.Buffer
	writeLEB128u(&payload, uint32(len(name)))
	payload.WriteString(name)
	payload.Write(data)
	return AppendSection(wasm, SectionCustom, payload.Bytes())
}

// StripCustom rebuilds a module without the bundle namespace custom sections.
func StripCustom(wasm []byte) ([]byte, error) {
	secs, err := Sections(wasm)
	if err != nil {
		return nil, err
	}
	out := Header()
	for _, s := range secs {
		if s.ID == SectionCustom {
			if _, ok := ExportName(s.Name); ok {
				continue
			}
			out = AppendCustom(out, s.Name, s.Data)
			continue
		}
		out = AppendSection(out, s.ID, s.Data)
	}
	return out, nil
}

func readName(data []byte) (string, []byte, error) {
	r := bytes.NewReader(data)
	n, err := readLEB128u(r)
	if err != nil {
		return "", nil, err
	}
	if int(n) > r.Len() {
		return "", nil, io.ErrUnexpectedEOF
	}
	start := len(data) - r.Len()
	return string(data[start : start+int(n)]), data[start+int(n):], nil
}

func parseErr(what string, cause error) *errors.Error {
	return errors.ParseFailure(errors.PhaseImport, what, cause)
}
