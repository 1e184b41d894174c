package bundle

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs used by the bundle reader and the fixtures that build modules.
const (
	SectionCustom   byte = 0
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionExport   byte = 7
	SectionCode     byte = 10
)

// Custom section names.
const (
	SectionPrefix  = "distributed."
	SectionPlugin  = SectionPrefix + "plugin"
	SectionDefault = SectionPrefix + "default"
	SectionBuild   = SectionPrefix + "build"
)

// Export names as seen by the definition normalizer.
const (
	ExportPlugin  = "plugin"
	ExportDefault = "default"
	ExportBuild   = "build"
)

// ExportName maps a custom section name to its export name, reporting false
// for sections outside the bundle namespace.
func ExportName(section string) (string, bool) {
	if len(section) <= len(SectionPrefix) || section[:len(SectionPrefix)] != SectionPrefix {
		return "", false
	}
	return section[len(SectionPrefix):], true
}
