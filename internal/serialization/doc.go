// Package serialization reads and writes model state dictionaries in the
// SafeTensors format used by HuggingFace and PyTorch tooling.
//
// Layout:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw little-endian bytes]
//
// The JSON header maps each tensor name to {dtype, shape, data_offsets};
// the optional "__metadata__" entry carries free-form string pairs such as
// the model configuration.
package serialization
