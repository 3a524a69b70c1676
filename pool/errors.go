// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package pool

import "errors"

// ErrBufferOverflow is returned by Get when the requested size exceeds
// MaxBufferSize.
var ErrBufferOverflow = errors.New("pool: requested size exceeds maximum buffer size")
