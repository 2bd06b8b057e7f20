// Package runner defines how the engine launches external test commands.
// A Runner turns a Spec (target file plus environment) into a running
// Process whose combined output is delivered through the Spec's Output
// callback. The Registry maps runner names to implementations so that
// scenarios can select a command other than the default.
package runner
