// Package bundle reads and writes the bundle wire format.
//
// A bundle is a WebAssembly core module carrying its module definition and
// build information as JSON custom sections:
//
//	distributed.plugin    module definition (preferred)
//	distributed.default   module definition (fallback)
//	distributed.build     build information
//
// Only the section framing is decoded here; validating and executing the
// module is left to the code loader. Archives are zip files holding the
// payload and its detached SRI digest.
package bundle
