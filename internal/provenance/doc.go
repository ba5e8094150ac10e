// Package provenance parses and validates MAP Client provenance record
// files.
//
// A record is either fully well-formed or rejected wholesale before any
// side effect occurs; validation is aggregate, so every schema
// violation in the file is reported in one error. All other setup
// packages consume the parsed Record; none of them re-read the file.
package provenance
