// Package logx is a thin structured-logging layer on top of zerolog.
//
// It exists so the rest of the codebase logs through one stable API
// (Logger + Field helpers) while sinks and levels can be swapped at
// runtime via Service.Apply without re-plumbing loggers everywhere.
package logx
