// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package filterdb persists built block filters so they can be served or
matched again without rebuilding them from chain data.

Filters are stored by currency and block id as their serialized content.
Filter headers can be stored alongside, which lets a caller extend a header
chain across runs.
*/
package filterdb
