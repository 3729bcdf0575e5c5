// Package convert produces canonical containers through an external
// converter process.
//
// Converter is the injectable capability; ExecConverter runs the configured
// tool with the staging root as its working directory. Canonicalizer decides
// whether a source must first be copied to a private directory (archive
// members, stock or misnamed companions, network and removable media),
// verifies the output exists and reports failures as *ConversionError.
package convert
