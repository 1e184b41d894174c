package bundle

import (
	"encoding/json"

	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/integrity"
)

// Pack embeds a module definition and build information into a compiled
// module, replacing any bundle sections it already carries.
// When build.Pkg is empty it is set to the content digest of the packed
// module without its build section, so the same code packed with different
// definitions gets different install keys.
func Pack(wasm []byte, definition any, build *BuildInfo) ([]byte, error) {
	out, err := StripCustom(wasm)
	if err != nil {
		return nil, err
	}

	if definition != nil {
		def, err := json.Marshal(definition)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseImport, errors.KindInvalidInput, err, "encode definition")
		}
		out = AppendCustom(out, SectionPlugin, def)
	}

	if build != nil {
		build = build.Clone()
		if build.Pkg == "" {
			build.Pkg = integrity.ContentDigest(out).Encoded()
		}
		b, err := json.Marshal(build)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseImport, errors.KindInvalidInput, err, "encode build info")
		}
		out = AppendCustom(out, SectionBuild, b)
	}
	return out, nil
}
