// Package sanitizer normalizes free-form contact input before validation and
// storage.
//
// All functions are idempotent and never fail: input that cannot be
// normalized comes back empty, which validation then rejects.
//
// Normalization includes:
//   - Phone numbers: E.164 (+[country][number]), trying each supported region
//   - Names: collapse whitespace and trim
//   - Emails: trim and lowercase
package sanitizer
