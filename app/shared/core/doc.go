// Package core holds the pure building blocks shared by the command features of the
// library lending service: the generic decision result returned by Decide functions and
// the time normalization applied to every command.
//
// Nothing in here performs I/O. Decide functions take a snapshot loaded by the shell
// and return a DecisionResult; the shell applies the effect.
package core
