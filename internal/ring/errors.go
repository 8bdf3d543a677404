// errors.go: error values for the ring buffer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ring

import "errors"

// ErrInvalidCapacity is returned when a buffer is constructed with a
// non-positive capacity.
var ErrInvalidCapacity = errors.New("ring: capacity must be greater than zero")
