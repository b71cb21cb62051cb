// Package testutil provides fakes for testing archstrap components.
//
// Key components:
//   - FakeRunner: records every command and answers with scripted results
//   - Input: builds operator input from lines
//   - SecretQueue: a masked-input reader fed from a list
//
// Nothing here touches the real system; tests never need root.
package testutil
