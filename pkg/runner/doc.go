// Package runner executes external tools for archstrap.
//
// Every installer action that touches the system goes through a Runner:
// the partition editor, the formatting and mount tools, pacstrap, genfstab,
// arch-chroot and the bootloader tools. Output of non-interactive commands
// is shown to the operator and the tail of it is kept in the Result so
// failures can be reported with context.
//
// Command.Stdin may carry secret material (passwords for chpasswd). It is
// never logged and never part of an error.
package runner
