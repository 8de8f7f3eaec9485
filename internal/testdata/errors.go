package testdata

import "errors"

// ErrNoTestData means the blob store has no objects under the problem's
// test-data prefix.
var ErrNoTestData = errors.New("no test data found")

// ErrBadTestData means the files present don't satisfy the paired,
// equally-numbered invariant.
var ErrBadTestData = errors.New("malformed test data")
