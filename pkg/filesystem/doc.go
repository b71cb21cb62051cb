// Package filesystem provides the file layer the installer writes through.
//
// Everything goes through afero so the same code targets the live system,
// the mounted target root (a base-path view of /mnt), or an in-memory
// filesystem in tests.
package filesystem
