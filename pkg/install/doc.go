// Package install wires the collector, the precondition checker and the
// sequencer into the concrete Arch Linux installation: the outer plan run
// from the live medium, and the chroot plan run by a copy of this binary
// inside the new system.
package install
