// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package builder provides a chainable write API over package gcs.

Filter selectors feed elements one at a time with AddEntry and friends and
finish with Build.  The first error encountered (an oversized P, a block
identifier too short to key a filter) is kept by the builder and returned by
every later call to Key or Build, so a chain of calls only needs a single
error check at the end.
*/
package builder
