// Package placeholder substitutes recipient fields into email text.
//
// Templates address recipient fields with single-brace tokens such as
// {firstName} or {company}, and caller-defined variables with double-brace
// tokens such as {{promoCode}}. Substitution is literal find-and-replace
// over a fixed, disjoint token set, so replacement order does not matter.
//
// Recipient values are inserted verbatim. No escaping is applied before the
// HTML preview form embeds them in markup, and a value that itself contains
// a token literal will be substituted again on a second Render call. Both
// behaviors are inherited from the UI this engine was extracted from and are
// documented rather than guarded.
package placeholder
