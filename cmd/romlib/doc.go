// Package main hosts the romlib CLI entrypoint and command graph.
//
// The Cobra-based command tree discovers program images, compares them,
// manages the staging cache and temporary conversion area, and maintains the
// scan catalog. It centralizes configuration resolution and structured
// logging setup so subcommands can focus on output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
