// Package spreadsheet turns uploaded CSV or XLSX files into recipient
// records for the compose flow.
//
// The first row is always a header row. Headers are matched against a
// declared alias table per recipient field (firstName/FirstName/first_name
// and so on); unmatched headers are ignored and missing fields default to
// empty strings. CSV parsing is deliberately naive — comma-split with no
// quoting or escaping support — matching the import contract the UI exposes
// to its users.
package spreadsheet
