// Package core defines the shared language of das.
//
// This package contains:
//   - Semantic column types (DataType, Kind) and their Go mapping
//   - Declared and observed fields, and the Record row shape
//   - The error taxonomy (SchemaError, RecordError, BindingError)
//   - Database adapter contracts (Adapter, AdapterConfig, Rows)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
