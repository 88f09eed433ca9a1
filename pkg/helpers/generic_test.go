// Roverlink Core
// Copyright (c) 2026 The Roverlink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Roverlink Core.
//
// Roverlink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Roverlink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Roverlink Core.  If not, see <http://www.gnu.org/licenses/>.

package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	t.Parallel()

	assert.True(t, Contains([]string{"/dev/ttyUSB0", "/dev/ttyACM0"}, "/dev/ttyACM0"))
	assert.False(t, Contains([]string{"/dev/ttyUSB0"}, "/dev/ttyUSB1"))
	assert.False(t, Contains(nil, "anything"))
	assert.True(t, Contains([]int{1, 2, 3}, 2))
}

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 50, Clamp(10, 50, 255))
	assert.Equal(t, 255, Clamp(400, 50, 255))
	assert.Equal(t, 200, Clamp(200, 50, 255))
}
