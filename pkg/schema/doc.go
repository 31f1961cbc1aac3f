// Package schema declares column schemas that govern typed frames on every
// engine.
//
// A schema is declared once, either as a Go struct of Col fields passed to
// Define, or at runtime through a Builder. Declaration is two-phase: names and
// types are collected first, then every descriptor is bound in a single Build
// step. After that a Model is immutable and may be shared freely.
//
// Descriptors never hold data. Engine packages turn them into expressions:
//
//	var Observations = schema.MustDefine[Observation]()
//
//	lazy.C(Observations.Cols.Value).Gt(lazy.Lit(90.0))
//	relational.C(Observations.Cols.Value).Gt(relational.Lit(90.0))
package schema
