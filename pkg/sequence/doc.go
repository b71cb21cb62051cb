// Package sequence provides the fail-fast step engine for archstrap.
//
// A Sequence is an ordered list of Steps. The Sequencer runs them in
// declared order and stops at the first failure: later steps never run,
// nothing is retried and nothing is rolled back. Irreversible steps pass a
// confirmation gate immediately before they run; Verify steps show their
// output and wait for the operator afterwards.
//
// An Action step may drive a whole Sequence elsewhere, as the chroot stage
// does inside arch-chroot. Its failure is the failure of that single outer
// step.
package sequence
